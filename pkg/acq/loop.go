package acq

import (
	"github.com/robotalks/ccdr.go/pkg/capture"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
)

// RecordMsg carries a captured record through the main loop.
type RecordMsg struct {
	// Chip is the name of the session which captured the record.
	Chip string
	// Origin is the tick at which the session was armed.
	Origin uint32
	Record *capture.Record
}

// NewMessage implements framework.Message.
func (m *RecordMsg) NewMessage() fx.Message {
	return &RecordMsg{}
}

type loopSink struct {
	session *Session
	ctl     fx.LoopControl
}

func (s *loopSink) Emit(rec *capture.Record) {
	s.ctl.PostMessage(&RecordMsg{Chip: s.session.Config.Name, Origin: s.session.StartTick(), Record: rec})
	s.ctl.TriggerNext()
}

// AddToLoop implements framework.LoopAdder. Records are posted
// to the loop as *RecordMsg.
func (s *Session) AddToLoop(l *fx.Loop) {
	s.Sink = &loopSink{session: s, ctl: l}
	l.AddRunnable(s)
}

// LogController appends posted records to a capture log and
// takes the messages.
type LogController struct {
	Writer *capture.Writer
	// Chip selects the records of one session, empty for all.
	Chip string

	appended int
}

// Appended is the number of records written.
func (c *LogController) Appended() int {
	return c.appended
}

// Control implements framework.Controller.
func (c *LogController) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		m, ok := mc.CurrentMessage().(*RecordMsg)
		if !ok || (c.Chip != "" && m.Chip != c.Chip) {
			return
		}
		mc.MessageTaken()
		c.Writer.Origin = m.Origin
		if err := c.Writer.Append(m.Record); err != nil {
			errs.Add(err)
			return
		}
		c.appended++
	}))
	errs.Add(c.Writer.Flush())
	return errs.Aggregate()
}

// AddToLoop implements framework.LoopAdder.
func (c *LogController) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, c)
}
