// Package stream frames telemetry packets on a byte stream.
package stream

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxPacketSize bounds the length prefix accepted by ReadPacket.
const MaxPacketSize = 1 << 20

// ErrPacketTooLarge is returned for a length prefix over MaxPacketSize.
var ErrPacketTooLarge = errors.New("packet too large")

// ReadWriter implements telemetry.PacketReadWriter.
// Each packet is prefixed by its length in 4 bytes, little-endian.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements telemetry.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements telemetry.PacketWriter. The prefix and
// the packet are written in one call.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Write(buf)
	return err
}
