package framework

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunnerStopCancels(t *testing.T) {
	stopCh := make(chan os.Signal, 2)
	r := NewRunner().handleStops(stopCh)
	r.Go(RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	stopCh <- os.Interrupt
	require.NoError(t, r.Wait())
}

func TestRunnerSecondStopForcesExit(t *testing.T) {
	stopCh := make(chan os.Signal, 2)
	stuck, release := make(chan struct{}), make(chan struct{})
	r := NewRunner().handleStops(stopCh)
	r.Go(RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(stuck)
		<-release
		return nil
	}))
	defer close(release)
	stopCh <- os.Interrupt
	<-stuck
	stopCh <- os.Interrupt
	require.Equal(t, ErrForcedExit, r.Wait())
}
