package telemetry

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/ccdr.go/pkg/acq"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
)

// DefaultBacklog is the number of packets queued for sending.
const DefaultBacklog = 256

type outPacket struct {
	chip string
	data []byte
}

// Publisher encodes the records posted to the loop and sends them on
// a Transport. Messages are left for other controllers. Publishing is
// best effort: packets are dropped when the transport falls behind.
type Publisher struct {
	Transport Transport
	Station   string

	queue   chan outPacket
	dropped uint64
	sent    uint64
}

// NewPublisher creates a Publisher.
func NewPublisher(t Transport, station string) *Publisher {
	return &Publisher{Transport: t, Station: station, queue: make(chan outPacket, DefaultBacklog)}
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "telemetry"
}

// Control implements framework.Controller.
func (p *Publisher) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		m, ok := mc.CurrentMessage().(*acq.RecordMsg)
		if !ok {
			return
		}
		f := &Frame{Station: p.Station, Chip: m.Chip, Origin: m.Origin, Record: *m.Record}
		pkt, err := f.Encode()
		if err != nil {
			errs.Add(err)
			return
		}
		select {
		case p.queue <- outPacket{chip: m.Chip, data: pkt}:
		default:
			atomic.AddUint64(&p.dropped, 1)
		}
	}))
	return errs.Aggregate()
}

// Run implements framework.Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			glog.Infof("telemetry: %d packets sent, %d dropped", atomic.LoadUint64(&p.sent), atomic.LoadUint64(&p.dropped))
			return ctx.Err()
		case pkt := <-p.queue:
			if err := p.Transport.Send(pkt.chip, pkt.data); err != nil {
				glog.Warningf("telemetry send error: %v", err)
				continue
			}
			atomic.AddUint64(&p.sent, 1)
		}
	}
}

// Sent returns the number of packets sent.
func (p *Publisher) Sent() uint64 {
	return atomic.LoadUint64(&p.sent)
}

// AddToLoop implements framework.LoopAdder.
func (p *Publisher) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPublish, p)
	l.AddRunnable(p)
}
