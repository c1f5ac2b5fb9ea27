package bus

import (
	"fmt"
	"os"
	"sync"

	"github.com/ppiankov/agentbus/internal/event"
)

// Subscription delivers matching events, in append order, to a single
// callback. Each subscription drains its own queue on its own
// goroutine: a slow or panicking subscriber never blocks the appender
// or other subscribers.
type Subscription struct {
	id     int
	filter event.Type
	fn     func(event.Event)
	log    *Log

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []event.Event
	closed bool
}

// Subscribe registers a callback for events of the given type
// (event.Wildcard matches all). The callback sees every event appended
// after the subscription is created; there is no historical backfill —
// use Replay for that.
func (l *Log) Subscribe(filter event.Type, fn func(event.Event)) *Subscription {
	sub := &Subscription{filter: filter, fn: fn, log: l}
	sub.cond = sync.NewCond(&sub.mu)

	l.subMu.Lock()
	l.nextSub++
	sub.id = l.nextSub
	l.subs[sub.id] = sub
	l.subMu.Unlock()

	go sub.drain()
	return sub
}

// Close unsubscribes. Events already queued are still delivered.
func (s *Subscription) Close() {
	s.log.subMu.Lock()
	delete(s.log.subs, s.id)
	s.log.subMu.Unlock()
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Signal()
}

// fanout enqueues the event on every matching subscription. Called with
// the append lock held, which fixes the per-subscriber order.
func (l *Log) fanout(ev event.Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, sub := range l.subs {
		if sub.filter != event.Wildcard && sub.filter != ev.Type {
			continue
		}
		sub.mu.Lock()
		if !sub.closed {
			sub.queue = append(sub.queue, ev)
		}
		sub.mu.Unlock()
		sub.cond.Signal()
	}
}

func (s *Subscription) drain() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.deliver(ev)
	}
}

// deliver invokes the callback, containing panics so one bad subscriber
// cannot take down delivery to the rest.
func (s *Subscription) deliver(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "bus: subscriber panic on %s: %v\n", ev.ID, r)
		}
	}()
	s.fn(ev)
}
