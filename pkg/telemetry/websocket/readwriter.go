// Package websocket carries telemetry packets as websocket messages.
package websocket

import (
	"net/url"

	"golang.org/x/net/websocket"
)

// ReadWriter implements telemetry.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket server. The origin is derived from the URL.
func Dial(serverURL string) (*ReadWriter, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	origin := &url.URL{Scheme: "http", Host: u.Host}
	if u.Scheme == "wss" {
		origin.Scheme = "https"
	}
	conn, err := websocket.Dial(serverURL, "", origin.String())
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadPacket implements telemetry.PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements telemetry.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}
