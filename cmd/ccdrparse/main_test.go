package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var errClosed = errors.New("closed")

type closedWriter struct{}

func (closedWriter) Write([]byte) (int, error) { return 0, errClosed }

func writeTestLog(t *testing.T, content string) string {
	fn := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

func TestValidateFile(t *testing.T) {
	fn := writeTestLog(t, "00000100, 04, 00, 01, 00000064\n00000200, 04, 00, 01, 00000067\n")
	var res result
	require.NoError(t, validate(fn, &res))
	require.Equal(t, 1, res.report.Discontinuities)
	var out bytes.Buffer
	require.NoError(t, res.writeTo(&out))
	require.Contains(t, out.String(), "Discontinuity of 2 samples")
	require.Contains(t, out.String(), "Discontinuities:")
}

func TestWriteResultFails(t *testing.T) {
	fn := writeTestLog(t, "00000100, 04, 00, 01, 00000064\n")
	var res result
	require.NoError(t, validate(fn, &res))
	require.Equal(t, errClosed, res.writeTo(closedWriter{}))
}
