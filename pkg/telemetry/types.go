// Package telemetry publishes captured records while a session runs.
package telemetry

import "io"

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Transport sends encoded records of a chip.
type Transport interface {
	io.Closer
	Send(chip string, pkt []byte) error
}

// Source receives encoded records.
type Source interface {
	io.Closer
	PacketReader
}

// PacketTransport sends every chip on one PacketWriter.
type PacketTransport struct {
	PacketWriter
	io.Closer
}

// Send implements Transport.
func (t *PacketTransport) Send(_ string, pkt []byte) error {
	return t.WritePacket(pkt)
}

// Close implements io.Closer.
func (t *PacketTransport) Close() error {
	if t.Closer == nil {
		return nil
	}
	return t.Closer.Close()
}

// PacketSource reads packets from a PacketReader.
type PacketSource struct {
	PacketReader
	io.Closer
}

// Close implements io.Closer.
func (s *PacketSource) Close() error {
	if s.Closer == nil {
		return nil
	}
	return s.Closer.Close()
}
