// Package playback turns a music specification into timed note triggers on a
// shared transport, with live tempo and volume control.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/Conceptual-Machines/algorhythm-api/internal/audio"
	"github.com/Conceptual-Machines/algorhythm-api/internal/contract"
	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
)

const (
	DefaultTempo  = 120.0
	DefaultVolume = 50.0
	maxVolume     = 100.0
)

var (
	ErrInvalidTempo  = fmt.Errorf("tempo must be between %g and %g BPM", models.MinTempo, models.MaxTempo)
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")
	ErrDisposed      = errors.New("scheduler disposed")
)

// PreconditionError reports a command issued before any specification was attached.
// Commands treat it as a no-op; it is only logged.
type PreconditionError struct {
	Command string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: no music specification attached", e.Command)
}

// Session is a point-in-time view of a scheduler
type Session struct {
	TransportState TransportState `json:"transportState"`
	CurrentTempo   float64        `json:"currentTempo"`
	CurrentVolume  float64        `json:"currentVolume"`
	Attached       bool           `json:"attached"`
	Loop           bool           `json:"loop"`
	Position       int64          `json:"position"`
	NoteIndex      int            `json:"noteIndex"`
	NotesFired     int64          `json:"notesFired"`
	Notes          []string       `json:"notes,omitempty"`
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock drives the transport from clock instead of the wall clock
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLoop sets whether attached melodies loop (the default) or play once
func WithLoop(loop bool) Option {
	return func(s *Scheduler) { s.loop = loop }
}

// WithDefaults sets the tempo and volume used before a specification is attached
func WithDefaults(tempo, volume float64) Option {
	return func(s *Scheduler) {
		if models.ValidTempo(tempo) {
			s.defaultTempo = tempo
		}
		if volume >= 0 && volume <= maxVolume {
			s.volume = volume
		}
	}
}

// Scheduler owns one transport, one output and at most one scheduled sequence
type Scheduler struct {
	mu           sync.Mutex
	clock        Clock
	transport    *Transport
	output       audio.Output
	spec         *models.MusicSpecification
	sequence     *Sequence
	loop         bool
	defaultTempo float64
	volume       float64
	disposed     bool
	metrics      *metrics.SentryMetrics
}

// NewScheduler creates a scheduler that owns output until Dispose
func NewScheduler(output audio.Output, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:        RealClock(),
		output:       output,
		loop:         true,
		defaultTempo: DefaultTempo,
		volume:       DefaultVolume,
		metrics:      metrics.NewSentryMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transport = NewTransport(s.clock, s.defaultTempo)
	return s
}

// AttachSpecification replaces the scheduled melody. The transport is stopped and
// rewound, the previous schedule released, and tempo and volume applied.
func (s *Scheduler) AttachSpecification(spec *models.MusicSpecification) error {
	if spec == nil {
		return errors.New("music specification is required")
	}
	if err := contract.ValidateSpecification(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}

	sequence, err := NewSequence(spec.Notes, s.output, s.loop)
	if err != nil {
		return err
	}

	s.transport.Stop()
	s.transport.Schedule(nil)
	if s.sequence != nil {
		s.sequence.Release()
	}

	s.sequence = sequence
	s.spec = spec
	s.transport.Schedule(sequence.Step)
	s.transport.SetBPM(spec.Tempo())
	s.output.SetGain(audio.GainFromLevel(s.volume))

	log.Printf("🎼 Specification attached: %d notes at %.0f BPM (loop=%t)", sequence.Len(), spec.Tempo(), s.loop)
	s.metrics.RecordPlaybackCommand("attach", true)
	return nil
}

// Play activates the output on first use, then starts or resumes the transport
func (s *Scheduler) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.spec == nil {
		s.skip("play")
		return nil
	}

	if !s.output.Active() {
		if err := s.output.Activate(ctx); err != nil {
			return fmt.Errorf("failed to activate audio output: %w", err)
		}
		s.output.SetGain(audio.GainFromLevel(s.volume))
	}

	s.transport.Start()
	s.metrics.RecordPlaybackCommand("play", true)
	return nil
}

// Pause stops note triggers, keeping the position
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.spec == nil {
		s.skip("pause")
		return nil
	}

	s.transport.Pause()
	s.metrics.RecordPlaybackCommand("pause", true)
	return nil
}

// SetTempo changes the tempo live without restarting or rewinding
func (s *Scheduler) SetTempo(bpm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.spec == nil {
		s.skip("set tempo")
		return nil
	}
	if !models.ValidTempo(bpm) {
		return ErrInvalidTempo
	}

	s.transport.SetBPM(bpm)
	s.metrics.RecordPlaybackCommand("tempo", true)
	return nil
}

// SetVolume maps a 0-100 level onto the output gain live
func (s *Scheduler) SetVolume(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.spec == nil {
		s.skip("set volume")
		return nil
	}
	if level < 0 || level > maxVolume || math.IsNaN(level) {
		return ErrInvalidVolume
	}

	s.volume = level
	s.output.SetGain(audio.GainFromLevel(level))
	logger.Debug("Volume changed", logger.Fields{"level": level, "db": audio.DecibelsFromLevel(level)})
	s.metrics.RecordPlaybackCommand("volume", true)
	return nil
}

// Snapshot returns the current session state
func (s *Scheduler) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := s.transport.Position()
	session := Session{
		TransportState: s.transport.State(),
		CurrentTempo:   s.transport.BPM(),
		CurrentVolume:  s.volume,
		Attached:       s.spec != nil,
		Loop:           s.loop,
		Position:       position,
	}
	if s.sequence != nil {
		session.NoteIndex = s.sequence.IndexAt(position)
		session.NotesFired = s.sequence.Fired()
		session.Notes = s.spec.Notes
	}
	return session
}

// Dispose stops playback, releases the schedule and disposes the output.
// The scheduler cannot be used afterwards.
func (s *Scheduler) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true

	s.transport.Stop()
	s.transport.Schedule(nil)
	if s.sequence != nil {
		s.sequence.Release()
	}
	return s.output.Dispose()
}

func (s *Scheduler) skip(command string) {
	err := &PreconditionError{Command: command}
	logger.Debug("Playback command ignored", logger.Fields{"reason": err.Error()})
	s.metrics.RecordPlaybackCommand(command, false)
}
