package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWritePackets(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte("hello")))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o', 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestReadTruncated(t *testing.T) {
	rw := New(bytes.NewBuffer([]byte{4, 0, 0, 0, 1, 2}))
	_, err := rw.ReadPacket()
	require.Equal(t, io.ErrUnexpectedEOF, err)

	rw = New(bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff}))
	_, err = rw.ReadPacket()
	require.Equal(t, ErrPacketTooLarge, err)
}
