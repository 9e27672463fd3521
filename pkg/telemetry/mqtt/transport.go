package mqtt

import (
	"io"
	"sync"
)

// RecordsTopic is the topic of the records of a chip at a station.
func RecordsTopic(station, chip string) string {
	return station + "/" + chip + "/records"
}

// Transport implements telemetry.Transport.
type Transport struct {
	Queue   *Queue
	Station string
}

// NewTransport creates a Transport.
func NewTransport(q *Queue, station string) *Transport {
	return &Transport{Queue: q, Station: station}
}

// Send implements telemetry.Transport.
func (t *Transport) Send(chip string, pkt []byte) error {
	token := t.Queue.Pub(RecordsTopic(t.Station, chip), pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (t *Transport) Close() error {
	return t.Queue.Close()
}

// Source implements telemetry.Source by subscribing to record topics.
type Source struct {
	Queue *Queue

	sub      *Subscription
	packetCh chan []byte
	done     chan struct{}
	once     sync.Once
}

// Subscribe receives records of matching stations and chips;
// use "+" for any.
func Subscribe(q *Queue, station, chip string) (*Source, error) {
	s := &Source{Queue: q, packetCh: make(chan []byte, 64), done: make(chan struct{})}
	s.sub = q.Sub(RecordsTopic(station, chip), s.handleMsg)
	s.sub.Token.Wait()
	if err := s.sub.Token.Error(); err != nil {
		s.sub.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) handleMsg(_ string, payload []byte) {
	select {
	case s.packetCh <- payload:
	case <-s.done:
	}
}

// ReadPacket implements telemetry.PacketReader.
func (s *Source) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-s.packetCh:
		return pkt, nil
	case <-s.done:
		return nil, io.EOF
	}
}

// Close implements io.Closer.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.sub.Close()
		s.Queue.Close()
	})
	return err
}
