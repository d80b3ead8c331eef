// Package audio holds the sinks the playback scheduler triggers notes on.
package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/music"
)

var (
	// ErrInactive is returned when triggering before Activate
	ErrInactive = errors.New("audio output not activated")
	// ErrDisposed is returned by any use after Dispose
	ErrDisposed = errors.New("audio output disposed")
)

const maxLevel = 100.0

// Note is one trigger event from the scheduler
type Note struct {
	Pitch    music.Pitch
	Index    int           // position in the melody
	Step     int64         // transport step the note fires on
	At       time.Duration // transport time since playback started
	Duration time.Duration // subdivision length at the current tempo
}

// Output is an audio resource owned by one scheduler. It must be activated
// before it sounds, and is released with Dispose.
type Output interface {
	Activate(ctx context.Context) error
	Active() bool
	Trigger(note Note) error
	SetGain(gain float64)
	Dispose() error
}

// GainFromLevel maps a 0-100 volume level to a linear gain in [0,1]
func GainFromLevel(level float64) float64 {
	return math.Max(0, math.Min(level, maxLevel)) / maxLevel
}

// DecibelsFromLevel maps a 0-100 volume level to decibels full scale; 0 is -Inf
func DecibelsFromLevel(level float64) float64 {
	gain := GainFromLevel(level)
	if gain == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(gain)
}

// lifecycle tracks activation and disposal for the concrete outputs.
// Methods other than Active expect mu to be held.
type lifecycle struct {
	mu       sync.Mutex
	active   bool
	disposed bool
	gain     float64
}

func (l *lifecycle) activate() error {
	if l.disposed {
		return ErrDisposed
	}
	l.active = true
	return nil
}

func (l *lifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active && !l.disposed
}

func (l *lifecycle) ready() error {
	if l.disposed {
		return ErrDisposed
	}
	if !l.active {
		return ErrInactive
	}
	return nil
}

// dispose reports whether the output was active, and false if already disposed
func (l *lifecycle) dispose() (wasActive, first bool) {
	if l.disposed {
		return false, false
	}
	wasActive = l.active
	l.disposed = true
	l.active = false
	return wasActive, true
}
