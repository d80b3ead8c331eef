package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/audio"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingOutput remembers every trigger
type recordingOutput struct {
	mu          sync.Mutex
	active      bool
	disposed    bool
	activations int
	activateErr error
	gain        float64
	notes       []audio.Note
}

func (o *recordingOutput) Activate(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activations++
	if o.activateErr != nil {
		return o.activateErr
	}
	o.active = true
	return nil
}

func (o *recordingOutput) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *recordingOutput) Trigger(note audio.Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return audio.ErrInactive
	}
	o.notes = append(o.notes, note)
	return nil
}

func (o *recordingOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
}

func (o *recordingOutput) Dispose() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disposed = true
	o.active = false
	return nil
}

func (o *recordingOutput) names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.notes))
	for _, n := range o.notes {
		names = append(names, n.Pitch.Name)
	}
	return names
}

func (o *recordingOutput) last() audio.Note {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.notes[len(o.notes)-1]
}

func (o *recordingOutput) currentGain() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gain
}

func sunsetSpec() *models.MusicSpecification {
	return &models.MusicSpecification{
		Tempos:            []float64{90},
		Keys:              []string{"D major"},
		TimeSignatures:    []string{"4/4"},
		Instruments:       []string{"piano"},
		Notes:             []string{"D4", "F#4", "A4", "D5"},
		MelodyDescription: "calm arpeggio",
	}
}

func newTestScheduler(opts ...Option) (*Scheduler, *recordingOutput, *ManualClock) {
	clock := NewManualClock()
	output := &recordingOutput{}
	return NewScheduler(output, append([]Option{WithClock(clock)}, opts...)...), output, clock
}

func TestIntervalFor(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, IntervalFor(120))
	assert.Equal(t, 400*time.Millisecond, IntervalFor(150))
	assert.InDelta(t, 666.667, float64(IntervalFor(90))/float64(time.Millisecond), 0.001)

	// Out-of-range tempos clamp so the transport can never spin
	assert.Equal(t, 3*time.Second, IntervalFor(0))
	assert.Equal(t, 3*time.Second, IntervalFor(-5))
	assert.Equal(t, 3*time.Second, IntervalFor(1e-12))
	assert.Equal(t, 3*time.Second, IntervalFor(math.NaN()))
	assert.Equal(t, 150*time.Millisecond, IntervalFor(1e12))
	assert.Equal(t, 150*time.Millisecond, IntervalFor(math.Inf(1)))
}

func TestScheduler_Defaults(t *testing.T) {
	s, _, _ := newTestScheduler()

	session := s.Snapshot()
	assert.Equal(t, StateStopped, session.TransportState)
	assert.Equal(t, 120.0, session.CurrentTempo)
	assert.Equal(t, 50.0, session.CurrentVolume)
	assert.False(t, session.Attached)
	assert.True(t, session.Loop)
}

func TestScheduler_CommandsWithoutSpecAreNoOps(t *testing.T) {
	s, output, clock := newTestScheduler()
	ctx := context.Background()

	assert.NoError(t, s.SetTempo(150))
	assert.NoError(t, s.SetTempo(-1))
	assert.NoError(t, s.SetVolume(80))
	assert.NoError(t, s.Play(ctx))
	assert.NoError(t, s.Pause())

	clock.Advance(10 * time.Second)

	session := s.Snapshot()
	assert.Equal(t, StateStopped, session.TransportState)
	assert.Equal(t, 120.0, session.CurrentTempo)
	assert.Equal(t, 50.0, session.CurrentVolume)
	assert.Zero(t, output.activations, "no audio resource is acquired without a specification")
	assert.Empty(t, output.names())
	assert.Zero(t, clock.Pending())
}

func TestScheduler_SunsetPlayback(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	assert.Equal(t, 90.0, s.Snapshot().CurrentTempo)
	assert.InDelta(t, 0.5, output.currentGain(), 1e-9)

	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, 1, output.activations)
	assert.Equal(t, []string{"D4"}, output.names())

	interval := IntervalFor(90)
	for i := 0; i < 3; i++ {
		clock.Advance(interval)
	}
	assert.Equal(t, []string{"D4", "F#4", "A4", "D5"}, output.names())

	// Four distinct notes spaced by one quarter note at 90 BPM
	output.mu.Lock()
	for i, n := range output.notes {
		assert.Equal(t, time.Duration(i)*interval, n.At)
		assert.Equal(t, interval, n.Duration)
		assert.Equal(t, i, n.Index)
	}
	output.mu.Unlock()

	// The motif wraps
	clock.Advance(interval)
	assert.Equal(t, "D4", output.last().Pitch.Name)
	assert.Equal(t, 0, output.last().Index)
	assert.Equal(t, int64(5), s.Snapshot().NotesFired)
	assert.Equal(t, StateRunning, s.Snapshot().TransportState)
}

func TestScheduler_SetTempoMidPlay(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))

	slow := IntervalFor(90)
	clock.Advance(slow)
	before := s.Snapshot()
	assert.Equal(t, 2, before.NoteIndex)

	require.NoError(t, s.SetTempo(150))
	after := s.Snapshot()
	assert.Equal(t, 150.0, after.CurrentTempo)
	assert.Equal(t, before.Position, after.Position, "tempo changes never rewind")
	assert.Equal(t, before.NoteIndex, after.NoteIndex)
	assert.Equal(t, StateRunning, after.TransportState)

	// The step already armed keeps its length; later steps use the new tempo
	clock.Advance(slow)
	assert.Equal(t, "A4", output.last().Pitch.Name)

	clock.Advance(399 * time.Millisecond)
	assert.Equal(t, "A4", output.last().Pitch.Name)
	clock.Advance(time.Millisecond)
	assert.Equal(t, "D5", output.last().Pitch.Name)
	assert.Equal(t, 400*time.Millisecond, output.last().Duration)
	assert.Equal(t, []string{"D4", "F#4", "A4", "D5"}, output.names())
}

func TestScheduler_InvalidTempoAndVolume(t *testing.T) {
	s, output, _ := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))

	for _, bpm := range []float64{0, -10, 1e-12, 19.9, 400.1, 1e12, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, s.SetTempo(bpm), ErrInvalidTempo)
	}
	for _, level := range []float64{-1, 100.5, math.NaN()} {
		assert.ErrorIs(t, s.SetVolume(level), ErrInvalidVolume)
	}
	assert.Equal(t, 90.0, s.Snapshot().CurrentTempo)
	assert.Equal(t, 50.0, s.Snapshot().CurrentVolume)

	require.NoError(t, s.SetVolume(80))
	assert.InDelta(t, 0.8, output.currentGain(), 1e-9)
	require.NoError(t, s.SetVolume(0))
	assert.Zero(t, output.currentGain())
}

func TestScheduler_TempoRangeBoundaries(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.SetTempo(400))
	require.NoError(t, s.Play(context.Background()))

	clock.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"D4", "F#4"}, output.names())

	require.NoError(t, s.SetTempo(20))
	assert.Equal(t, 20.0, s.Snapshot().CurrentTempo)

	runaway := sunsetSpec()
	runaway.Tempos = []float64{1e12}
	assert.Error(t, s.AttachSpecification(runaway))
	assert.Equal(t, 20.0, s.Snapshot().CurrentTempo, "a rejected specification leaves the tempo alone")
}

func TestScheduler_DefaultTempoOutOfRangeIgnored(t *testing.T) {
	s := NewScheduler(&recordingOutput{}, WithDefaults(1e12, 30))
	assert.Equal(t, DefaultTempo, s.defaultTempo)
	assert.Equal(t, 30.0, s.volume)
}

func TestScheduler_PauseResume(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))

	interval := IntervalFor(90)
	clock.Advance(interval)
	require.NoError(t, s.Pause())

	session := s.Snapshot()
	assert.Equal(t, StatePaused, session.TransportState)
	assert.Equal(t, int64(2), session.Position)
	assert.Zero(t, clock.Pending())

	clock.Advance(10 * interval)
	assert.Equal(t, []string{"D4", "F#4"}, output.names())

	// Paused right on a step boundary: the whole of F#4 is still owed
	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, []string{"D4", "F#4"}, output.names())
	clock.Advance(interval)
	assert.Equal(t, []string{"D4", "F#4", "A4"}, output.names())
	assert.Equal(t, 2*interval, output.last().At)
	assert.Equal(t, 1, output.activations)

	// Pausing twice is harmless
	require.NoError(t, s.Pause())
	require.NoError(t, s.Pause())
	assert.Equal(t, StatePaused, s.Snapshot().TransportState)
}

func TestScheduler_PauseMidStepKeepsPhase(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))

	clock.Advance(10 * time.Millisecond)
	require.NoError(t, s.Pause())
	clock.Advance(time.Minute)

	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, []string{"D4"}, output.names(), "resume does not cut the sounding step short")

	clock.Advance(656 * time.Millisecond)
	assert.Equal(t, []string{"D4"}, output.names())
	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"D4", "F#4"}, output.names())
	assert.Equal(t, IntervalFor(90), output.last().At)

	// Re-attaching stops the transport and discards the leftover phase
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, s.Pause())
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, []string{"D4", "F#4", "D4"}, output.names())
}

func TestScheduler_DoubleAttachReleasesFirstSchedule(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))
	clock.Advance(IntervalFor(90))
	first := s.sequence

	second := sunsetSpec()
	second.Tempos = []float64{120}
	second.Notes = []string{"C4", "E4"}
	require.NoError(t, s.AttachSpecification(second))

	session := s.Snapshot()
	assert.Equal(t, StateStopped, session.TransportState)
	assert.Equal(t, int64(0), session.Position)
	assert.Equal(t, 120.0, session.CurrentTempo)
	assert.Zero(t, clock.Pending())

	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"D4", "F#4"}, output.names())

	require.NoError(t, s.Play(context.Background()))
	clock.Advance(IntervalFor(120))
	assert.Equal(t, []string{"D4", "F#4", "C4", "E4"}, output.names())
	assert.Equal(t, int64(2), first.Fired(), "the released schedule never fires again")
}

func TestScheduler_PlayOnce(t *testing.T) {
	s, output, clock := newTestScheduler(WithLoop(false))
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))

	interval := IntervalFor(90)
	for i := 0; i < 4; i++ {
		clock.Advance(interval)
	}

	assert.Equal(t, []string{"D4", "F#4", "A4", "D5"}, output.names())
	assert.Equal(t, StateStopped, s.Snapshot().TransportState)
	assert.Zero(t, clock.Pending())
}

func TestScheduler_ActivationFailure(t *testing.T) {
	s, output, clock := newTestScheduler()
	output.activateErr = errors.New("device busy")
	require.NoError(t, s.AttachSpecification(sunsetSpec()))

	err := s.Play(context.Background())
	assert.ErrorIs(t, err, output.activateErr)
	assert.Equal(t, StateStopped, s.Snapshot().TransportState)
	assert.Zero(t, clock.Pending())
}

func TestScheduler_AttachInvalidSpecKeepsState(t *testing.T) {
	s, _, _ := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))

	bad := sunsetSpec()
	bad.Notes = []string{"H4"}
	assert.Error(t, s.AttachSpecification(bad))
	assert.Error(t, s.AttachSpecification(nil))

	session := s.Snapshot()
	assert.True(t, session.Attached)
	assert.Equal(t, []string{"D4", "F#4", "A4", "D5"}, session.Notes)
}

func TestScheduler_Dispose(t *testing.T) {
	s, output, clock := newTestScheduler()
	require.NoError(t, s.AttachSpecification(sunsetSpec()))
	require.NoError(t, s.Play(context.Background()))

	require.NoError(t, s.Dispose())
	assert.True(t, output.disposed)
	assert.Zero(t, clock.Pending())
	assert.Equal(t, StateStopped, s.Snapshot().TransportState)

	assert.ErrorIs(t, s.Play(context.Background()), ErrDisposed)
	assert.ErrorIs(t, s.SetTempo(100), ErrDisposed)
	assert.ErrorIs(t, s.AttachSpecification(sunsetSpec()), ErrDisposed)
	assert.NoError(t, s.Dispose())
}

func TestPreconditionError(t *testing.T) {
	err := &PreconditionError{Command: "play"}
	assert.Equal(t, "cannot play: no music specification attached", err.Error())
}

func TestTransport_RealClock(t *testing.T) {
	var mu sync.Mutex
	var steps []int64
	transport := NewTransport(RealClock(), 400) // 150ms per step
	transport.Schedule(func(step int64, _, _ time.Duration) bool {
		mu.Lock()
		defer mu.Unlock()
		steps = append(steps, step)
		return true
	})

	transport.Start()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(steps) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	transport.Pause()

	mu.Lock()
	fired := len(steps)
	assert.Equal(t, []int64{0, 1, 2}, steps[:3])
	mu.Unlock()

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, fired, len(steps), "no step fires after Pause returns")
	mu.Unlock()
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(WithClock(NewManualClock()))

	entry := registry.Create()
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, registry.Len())

	got, err := registry.Get(entry.ID)
	require.NoError(t, err)
	assert.Same(t, entry, got)

	require.NoError(t, entry.Scheduler.AttachSpecification(sunsetSpec()))
	require.NoError(t, entry.Scheduler.Play(context.Background()))
	assert.True(t, entry.Events.Active())

	require.NoError(t, registry.Remove(entry.ID))
	assert.False(t, entry.Events.Active())
	assert.ErrorIs(t, registry.Remove(entry.ID), ErrSessionNotFound)
	_, err = registry.Get(entry.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	registry.Create()
	registry.Create()
	registry.Close()
	assert.Zero(t, registry.Len())
}

func TestRegistry_EvictIdle(t *testing.T) {
	registry := NewRegistry(WithClock(NewManualClock()))
	t.Cleanup(registry.Close)
	ttl := 30 * time.Minute

	idle := registry.Create()
	require.NoError(t, idle.Scheduler.AttachSpecification(sunsetSpec()))
	require.NoError(t, idle.Scheduler.Play(context.Background()))
	listened := registry.Create()
	notes, unsubscribe := listened.Events.Subscribe()
	fresh := registry.Create()

	later := time.Now().Add(ttl + time.Minute)
	fresh.lastActive.Store(later.Add(-time.Minute).UnixNano())

	assert.Equal(t, 1, registry.EvictIdle(later, ttl))
	assert.Equal(t, 2, registry.Len())
	_, err := registry.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, idle.Events.Active(), "evicted sessions release their output")

	// An open event stream keeps a session alive; once it closes the session can expire
	_, err = registry.Get(listened.ID)
	require.NoError(t, err)
	unsubscribe()
	_, open := <-notes
	assert.False(t, open)
	touched := listened.LastActive()
	assert.Zero(t, registry.EvictIdle(touched.Add(ttl-time.Second), ttl), "Get counts as activity")
	assert.Equal(t, 1, registry.EvictIdle(touched.Add(ttl+time.Second), ttl))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_EvictIdleSkipsSubscribed(t *testing.T) {
	registry := NewRegistry(WithClock(NewManualClock()))
	t.Cleanup(registry.Close)

	entry := registry.Create()
	_, unsubscribe := entry.Events.Subscribe()
	defer unsubscribe()

	assert.Zero(t, registry.EvictIdle(time.Now().Add(time.Hour), time.Minute))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_ReapStopsWithContext(t *testing.T) {
	registry := NewRegistry(WithClock(NewManualClock()))
	t.Cleanup(registry.Close)
	entry := registry.Create()
	entry.lastActive.Store(time.Now().Add(-time.Hour).UnixNano())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Reap(ctx, 20*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return registry.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Disabled reaping returns at once
	registry.Reap(context.Background(), 0)
}
