package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop is the main loop: it runs Runnables in the background and
// dispatches the messages they post to Controllers on its own goroutine.
type Loop struct {
	Interval time.Duration

	controllers [PriorityLevels][]Controller

	runners []Runnable

	messages messageList
	lock     sync.Mutex

	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	ctx      context.Context
	time     time.Time
	final    bool
	messages messageList
}

type messageList struct {
	head *messageItem
	tail *messageItem
	len  int
}

type messageItem struct {
	msg  Message
	next *messageItem
}

func (l *messageList) append(item *messageItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
	l.len++
}

func (l *messageList) splice(src *messageList) {
	l.head, l.tail, l.len = src.head, src.tail, src.len
	src.head, src.tail, src.len = nil, nil, 0
}

func (l *messageList) concat(lst *messageList) {
	if l.head == nil {
		l.head = lst.head
	} else {
		l.tail.next = lst.head
	}
	if lst.head != nil {
		l.tail = lst.tail
	}
	l.len += lst.len
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: 100 * time.Millisecond}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. When ctx is done, or any runnable fails,
// it waits for all runnables to return and then runs one final
// iteration so messages posted during shutdown are still processed.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner := NewRunnerWith(runCtx)
	runner.OnError = func(name string, err error) {
		glog.Errorf("Runner[%s] failed: %v", name, err)
		cancel()
	}
	runner.Go(l.runners...)

	interval := l.Interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			err := runner.Wait()
			l.runIteration(context.Background(), true)
			if err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			l.runIteration(runCtx, false)
		case <-l.wakeUpCh:
			l.runIteration(runCtx, false)
		}
	}
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.messages.append(&messageItem{msg: msg})
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	if l.wakeUpCh == nil {
		return
	}
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) runIteration(ctx context.Context, final bool) {
	iter := &loopIteration{ctx: ctx, time: time.Now(), final: final}
	l.lock.Lock()
	iter.messages.splice(&l.messages)
	l.lock.Unlock()
	for i := 0; i < PriorityLevels; i++ {
		for _, ctl := range l.controllers[i] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("controller error: %v", err)
			}
		}
	}
	if iter.messages.head != nil {
		// not taken, keep for the next iteration.
		l.lock.Lock()
		iter.messages.concat(&l.messages)
		l.messages.splice(&iter.messages)
		l.lock.Unlock()
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Final() bool {
	return t.final
}

func (t *loopIteration) Messages() MessageStore {
	return t
}

func (t *loopIteration) Len() int {
	return t.messages.len
}

type messageContext struct {
	item  *messageItem
	taken bool
}

func (c *messageContext) CurrentMessage() Message { return c.item.msg }
func (c *messageContext) MessageTaken()           { c.taken = true }

func (t *loopIteration) ProcessMessages(proc MessageProcessor) {
	var msgs, remains messageList
	msgs.splice(&t.messages)
	for msgs.head != nil {
		mctx := &messageContext{item: msgs.head}
		msgs.head = msgs.head.next
		mctx.item.next = nil
		proc.ProcessMessage(mctx)
		if !mctx.taken {
			remains.append(mctx.item)
		}
	}
	t.messages = remains
}
