package telemetry

import (
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/robotalks/ccdr.go/pkg/telemetry/mqtt"
	"github.com/robotalks/ccdr.go/pkg/telemetry/stream"
	"github.com/robotalks/ccdr.go/pkg/telemetry/websocket"
)

// Dial creates a Transport from URL:
//
//	mqtt://host:port/prefix/, mqtts://...  MQTT, one topic per chip
//	ws://host/path, wss://...             websocket messages
//	tcp://host:port                       length-prefixed stream
//	file:///path                          length-prefixed stream appended to a file
func Dial(rawURL, station string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		q, err := mqtt.Connect(rawURL)
		if err != nil {
			return nil, err
		}
		return mqtt.NewTransport(q, station), nil
	case "ws", "wss":
		rw, err := websocket.Dial(rawURL)
		if err != nil {
			return nil, err
		}
		return &PacketTransport{PacketWriter: rw, Closer: rw}, nil
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return &PacketTransport{PacketWriter: stream.New(conn), Closer: conn}, nil
	case "file":
		f, err := os.OpenFile(u.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		return &PacketTransport{PacketWriter: stream.New(f), Closer: f}, nil
	}
	return nil, fmt.Errorf("unsupported telemetry URL %q", rawURL)
}

// Open creates a Source from a URL accepted by Dial. For MQTT, the
// query parameters station and chip select the topics, default any.
func Open(rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		station, chip := u.Query().Get("station"), u.Query().Get("chip")
		if station == "" {
			station = "+"
		}
		if chip == "" {
			chip = "+"
		}
		q, err := mqtt.Connect(rawURL)
		if err != nil {
			return nil, err
		}
		src, err := mqtt.Subscribe(q, station, chip)
		if err != nil {
			q.Close()
			return nil, err
		}
		return src, nil
	case "ws", "wss":
		rw, err := websocket.Dial(rawURL)
		if err != nil {
			return nil, err
		}
		return &PacketSource{PacketReader: rw, Closer: rw}, nil
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return &PacketSource{PacketReader: stream.New(conn), Closer: conn}, nil
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, err
		}
		return &PacketSource{PacketReader: stream.New(f), Closer: f}, nil
	}
	return nil, fmt.Errorf("unsupported telemetry URL %q", rawURL)
}
