package playback

import (
	"sync"
	"time"
)

// Clock creates the timers that drive the transport
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer
type Timer interface {
	C() <-chan time.Time
	// Stop reports whether the timer was stopped before firing
	Stop() bool
}

// tickObserver is implemented by clocks that need to know when a fired tick
// has been fully handled
type tickObserver interface {
	TickHandled()
}

type realClock struct{}

// RealClock returns the wall clock
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time {
	return r.t.C
}

func (r realTimer) Stop() bool {
	return r.t.Stop()
}

// ManualClock only moves when Advance is called. Advance fires due timers in
// deadline order and waits for each tick to be handled before moving on, so
// tests observe playback deterministically.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*manualTimer
	handled chan struct{}
}

// NewManualClock creates a manual clock starting at an arbitrary fixed instant
func NewManualClock() *ManualClock {
	return &ManualClock{
		now:     time.Unix(0, 0),
		handled: make(chan struct{}, 1),
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{
		clock:    c,
		deadline: c.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.remove(next)
		c.now = next.deadline
		now := c.now
		c.mu.Unlock()

		next.ch <- now
		<-c.handled
	}
}

// Pending returns the number of armed timers
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// TickHandled is called by the transport once a fired tick has been processed
func (c *ManualClock) TickHandled() {
	c.handled <- struct{}{}
}

func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	var next *manualTimer
	for _, t := range c.timers {
		if t.deadline.After(target) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	return next
}

func (c *ManualClock) remove(t *manualTimer) bool {
	for i, candidate := range c.timers {
		if candidate == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	ch       chan time.Time
}

func (t *manualTimer) C() <-chan time.Time {
	return t.ch
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.remove(t)
}
