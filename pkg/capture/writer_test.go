package capture_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/ccdr.go/pkg/capture"
)

func TestAppendLine(t *testing.T) {
	rec := &capture.Record{
		Tick:          0x0001abcd,
		Cause:         capture.CauseRxReady,
		DeclaredCount: 8,
		Words:         []uint32{0xdeadbeef, 0x1},
	}
	require.Equal(t, "0001ABCD, 04, 00, 02, DEADBEEF, 00000001\n",
		string(capture.AppendLine(nil, rec, 0)))

	rec = &capture.Record{Tick: 5, Cause: capture.CauseRxError, Status: 0x02, HasStatus: true, DeclaredCount: 60}
	require.Equal(t, "00000005, 06, 02, 00\n", string(capture.AppendLine(nil, rec, 0)))

	rec = &capture.Record{Tick: 0x10, Cause: capture.CauseWatchdog}
	require.Equal(t, "00000020, FF, 00, 00\n", string(capture.AppendLine(nil, rec, 0xfffffff0)))
}

func TestWriterRoundTrip(t *testing.T) {
	records := []*capture.Record{
		{Tick: 100, Cause: capture.CauseRxReady, DeclaredCount: 16, Words: []uint32{1, 2, 3, 4}},
		{Tick: 200, Cause: capture.CauseRxTimeout, DeclaredCount: 6, Words: []uint32{5}},
		{Tick: 300, Cause: capture.CauseRxError, Status: 0x02, HasStatus: true, DeclaredCount: 64},
		{Tick: 400, Cause: capture.CauseWatchdog},
		{Tick: 0xffffffff, Cause: capture.CauseRxReady, DeclaredCount: 4, Words: []uint32{0xffffffff}},
	}
	var buf bytes.Buffer
	w := capture.NewWriter(&buf)
	for _, rec := range records {
		require.NoError(t, w.Append(rec))
	}
	require.NoError(t, w.Close())

	entries, err := capture.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, len(records))
	for i, e := range entries {
		rec := records[i]
		assert.Equal(t, i+1, e.Line)
		assert.Equal(t, rec.Tick, e.Tick)
		assert.Equal(t, rec.Cause, e.Cause)
		assert.Equal(t, rec.HasStatus, e.HasStatus)
		assert.Equal(t, rec.Status, e.Status)
		assert.Equal(t, rec.Words, e.Words)
		assert.False(t, e.Mismatch())
	}

	report, err := capture.Validate(strings.NewReader(buf.String()), nil)
	require.NoError(t, err)
	require.Zero(t, report.Mismatches)
}

func TestWriterOrigin(t *testing.T) {
	var buf bytes.Buffer
	w := capture.NewWriter(&buf)
	w.Origin = 1000
	require.NoError(t, w.Append(&capture.Record{Tick: 1010, Cause: capture.CauseWatchdog}))
	require.NoError(t, w.Flush())
	require.Equal(t, "0000000A, FF, 00, 00\n", buf.String())
}
