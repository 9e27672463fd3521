package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type intMsg struct {
	val int
}

func (m *intMsg) NewMessage() Message { return &intMsg{} }

type otherMsg struct{}

func (m *otherMsg) NewMessage() Message { return &otherMsg{} }

type collector struct {
	vals   []int
	finals int
}

func (c *collector) Control(cc ControlContext) error {
	if cc.Final() {
		c.finals++
	}
	cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
		if m, ok := mctx.CurrentMessage().(*intMsg); ok {
			mctx.MessageTaken()
			c.vals = append(c.vals, m.val)
		}
	}))
	return nil
}

func TestLoopFlushesOnStop(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	var c collector
	loop.AddController(PrLvPostProc, &c)
	loop.AddRunnable(NamedRun("producer", RunnableFunc(func(ctx context.Context) error {
		loop.PostMessage(&intMsg{val: 1})
		loop.TriggerNext()
		<-ctx.Done()
		// posted while stopping, must still be delivered.
		loop.PostMessage(&intMsg{val: 2})
		return ctx.Err()
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)
	require.Equal(t, context.DeadlineExceeded, err)
	require.Equal(t, []int{1, 2}, c.vals)
	require.Equal(t, 1, c.finals)
}

func TestLoopStopsOnRunnableError(t *testing.T) {
	loop := NewLoop()
	failure := errors.New("boom")
	loop.AddRunnable(RunnableFunc(func(ctx context.Context) error {
		return failure
	}))
	err := loop.Run(context.Background())
	require.Equal(t, failure, err)
}

func TestLoopKeepsUntakenMessages(t *testing.T) {
	loop := NewLoop()
	loop.PostMessage(&otherMsg{})
	loop.PostMessage(&intMsg{val: 3})
	var c collector
	var pending []int
	loop.AddController(PrLvPostProc, &c)
	loop.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		pending = append(pending, cc.Messages().Len())
		return nil
	}))
	loop.runIteration(context.Background(), false)
	loop.runIteration(context.Background(), false)
	require.Equal(t, []int{3}, c.vals)
	require.Equal(t, []int{1, 1}, pending)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Aggregate())
	e1 := errors.New("e1")
	errs.Add(nil, e1)
	require.Equal(t, e1, errs.Aggregate())
	errs.Add(errors.New("e2"))
	require.Equal(t, "Multiple errors:\ne1\ne2", errs.Aggregate().Error())
}
