package playback

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
)

// TransportState is the run state of the transport
type TransportState string

const (
	StateStopped TransportState = "stopped"
	StateRunning TransportState = "running"
	StatePaused  TransportState = "paused"
)

// StepFunc is called for every quarter-note step. at is the transport time of
// the step and interval its length at the tempo in force. Returning false ends
// playback and stops the transport.
type StepFunc func(step int64, at, interval time.Duration) bool

// Transport is the shared musical clock: one step per quarter note at the current BPM.
// Position and the phase within the current step are kept across pause and reset by stop.
type Transport struct {
	clock Clock
	bpm   atomic.Uint64 // math.Float64bits of the tempo

	mu       sync.Mutex
	state    TransportState
	position  int64         // next step to fire
	elapsed   time.Duration // transport time of the next step
	nextAt    time.Time     // clock time the armed step falls due
	remaining time.Duration // time left in the current step while paused
	onStep    StepFunc
	run       *transportRun
}

// transportRun is one running period, between start and pause/stop
type transportRun struct {
	stop chan struct{}
	done chan struct{}
}

// NewTransport creates a stopped transport
func NewTransport(clock Clock, bpm float64) *Transport {
	if clock == nil {
		clock = RealClock()
	}
	t := &Transport{clock: clock, state: StateStopped}
	t.SetBPM(bpm)
	return t
}

// SetBPM changes the tempo; it applies from the next step boundary
func (t *Transport) SetBPM(bpm float64) {
	t.bpm.Store(math.Float64bits(bpm))
}

// BPM returns the current tempo
func (t *Transport) BPM() float64 {
	return math.Float64frombits(t.bpm.Load())
}

// Interval returns the length of one step at the current tempo
func (t *Transport) Interval() time.Duration {
	return IntervalFor(t.BPM())
}

// IntervalFor returns the quarter-note length at bpm, clamped to the playable range
func IntervalFor(bpm float64) time.Duration {
	switch {
	case math.IsNaN(bpm) || bpm < models.MinTempo:
		bpm = models.MinTempo
	case bpm > models.MaxTempo:
		bpm = models.MaxTempo
	}
	return time.Duration(float64(time.Minute) / bpm)
}

// Schedule sets the step callback, replacing any previous one. nil clears it.
func (t *Transport) Schedule(fn StepFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStep = fn
}

// State returns the transport state
func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Position returns the next step to fire
func (t *Transport) Position() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// Start starts or resumes the transport. From a stop, the step at the current
// position fires before Start returns. A resume waits out what was left of the
// step that was sounding at the pause.
func (t *Transport) Start() {
	t.mu.Lock()
	if t.state == StateRunning {
		t.mu.Unlock()
		return
	}
	run := &transportRun{stop: make(chan struct{}), done: make(chan struct{})}
	t.run = run
	t.state = StateRunning
	remaining := t.remaining
	t.remaining = 0
	t.mu.Unlock()

	if remaining > 0 {
		go t.loop(run, t.arm(remaining))
		return
	}

	interval, ok := t.fire(run)
	if !ok {
		close(run.done)
		return
	}
	go t.loop(run, t.arm(interval))
}

// arm starts the timer for the next step and records when it falls due
func (t *Transport) arm(d time.Duration) Timer {
	t.mu.Lock()
	t.nextAt = t.clock.Now().Add(d)
	t.mu.Unlock()
	return t.clock.NewTimer(d)
}

// Pause stops firing and keeps the position. No step fires after Pause returns.
func (t *Transport) Pause() {
	t.halt(StatePaused)
}

// Stop stops firing and rewinds to the start
func (t *Transport) Stop() {
	t.halt(StateStopped)
}

func (t *Transport) halt(state TransportState) {
	t.mu.Lock()
	if t.state == StateStopped || (t.state == StatePaused && state == StatePaused) {
		t.mu.Unlock()
		return
	}
	run := t.run
	t.run = nil
	t.state = state
	if state == StateStopped {
		t.position = 0
		t.elapsed = 0
		t.remaining = 0
	}
	t.mu.Unlock()

	if run == nil {
		return
	}
	close(run.stop)
	<-run.done

	if state == StatePaused {
		t.mu.Lock()
		if t.state == StatePaused {
			t.remaining = max(t.nextAt.Sub(t.clock.Now()), 0)
		}
		t.mu.Unlock()
	}
}

func (t *Transport) loop(run *transportRun, timer Timer) {
	defer close(run.done)

	for {
		select {
		case <-run.stop:
			if !timer.Stop() {
				// the tick was fired but will never be handled
				t.tickHandled()
			}
			return
		case <-timer.C():
		}

		interval, ok := t.fire(run)
		if ok {
			timer = t.arm(interval)
		}
		t.tickHandled()
		if !ok {
			return
		}
	}
}

// fire runs the step at the current position for run and returns the interval to
// the next step. ok is false once the run is over.
func (t *Transport) fire(run *transportRun) (time.Duration, bool) {
	t.mu.Lock()
	if t.run != run {
		t.mu.Unlock()
		return 0, false
	}
	step := t.position
	at := t.elapsed
	interval := t.Interval()
	fn := t.onStep
	t.position++
	t.elapsed += interval
	t.mu.Unlock()

	if fn == nil || fn(step, at, interval) {
		return interval, true
	}

	t.mu.Lock()
	if t.run == run {
		t.run = nil
		t.state = StateStopped
		t.position = 0
		t.elapsed = 0
	}
	t.mu.Unlock()
	return 0, false
}

func (t *Transport) tickHandled() {
	if observer, ok := t.clock.(tickObserver); ok {
		observer.TickHandled()
	}
}
