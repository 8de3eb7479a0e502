package progress

import (
	"sync"
	"time"
)

// frameInterval is the minimum spacing between deliveries, matching one
// display frame at 60Hz.
const frameInterval = 16 * time.Millisecond

// Publisher delivers events to a callback at most once per frame interval.
// Publishes landing inside the same interval coalesce: only the latest
// payload is delivered, earlier ones are dropped, never queued. The most
// recently accepted event is always available through Snapshot, so late
// subscribers can catch up without waiting for the next delivery.
type Publisher struct {
	mu       sync.Mutex
	fn       func(Event)
	interval time.Duration
	seq      int64
	snapshot Event
	pending  bool
	lastSend time.Time
	timer    *time.Timer
}

// NewPublisher wraps fn. A nil fn is allowed; events are then only
// observable through Snapshot.
func NewPublisher(fn func(Event)) *Publisher {
	return &Publisher{fn: fn, interval: frameInterval}
}

// Publish accepts an event, stamping it with the next sequence number.
// Delivery is immediate when the previous delivery is at least one interval
// old, otherwise deferred and coalesced.
func (p *Publisher) Publish(ev Event) {
	p.mu.Lock()
	p.seq++
	ev.Seq = p.seq
	p.snapshot = ev

	if p.fn == nil {
		p.mu.Unlock()
		return
	}

	now := time.Now()
	if now.Sub(p.lastSend) >= p.interval {
		p.lastSend = now
		p.pending = false
		fn, out := p.fn, ev
		p.mu.Unlock()
		fn(out)
		return
	}

	if !p.pending {
		p.pending = true
		delay := p.interval - now.Sub(p.lastSend)
		p.timer = time.AfterFunc(delay, p.flush)
	}
	p.mu.Unlock()
}

// flush delivers the latest coalesced payload.
func (p *Publisher) flush() {
	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		return
	}
	p.pending = false
	p.lastSend = time.Now()
	fn, out := p.fn, p.snapshot
	p.mu.Unlock()
	if fn != nil {
		fn(out)
	}
}

// Flush forces immediate delivery of any coalesced payload. Terminal events
// (done, error) should be followed by a Flush so they are never lost to the
// throttle window.
func (p *Publisher) Flush() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	p.flush()
}

// Snapshot returns the most recently accepted event.
func (p *Publisher) Snapshot() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}
