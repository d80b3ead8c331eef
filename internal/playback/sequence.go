package playback

import (
	"sync/atomic"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/audio"
	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/music"
)

// Sequence plays a melody one note per transport step on an output
type Sequence struct {
	pitches  []music.Pitch
	loop     bool
	output   audio.Output
	fired    atomic.Int64
	released atomic.Bool
}

// NewSequence parses the note names into a sequence. Looping sequences wrap to
// the first note; others end the transport after the last note.
func NewSequence(notes []string, output audio.Output, loop bool) (*Sequence, error) {
	pitches, err := music.ParsePitches(notes)
	if err != nil {
		return nil, err
	}
	return &Sequence{pitches: pitches, loop: loop, output: output}, nil
}

// Len returns the number of notes
func (s *Sequence) Len() int {
	return len(s.pitches)
}

// IndexAt returns the note index that plays at a transport step
func (s *Sequence) IndexAt(step int64) int {
	if len(s.pitches) == 0 {
		return 0
	}
	if s.loop {
		return int(step % int64(len(s.pitches)))
	}
	if step >= int64(len(s.pitches)) {
		return len(s.pitches)
	}
	return int(step)
}

// Fired returns how many notes this sequence has triggered
func (s *Sequence) Fired() int64 {
	return s.fired.Load()
}

// Release detaches the sequence; it never triggers again
func (s *Sequence) Release() {
	s.released.Store(true)
}

// Step is the transport callback
func (s *Sequence) Step(step int64, at, interval time.Duration) bool {
	if s.released.Load() {
		return false
	}
	if len(s.pitches) == 0 {
		return s.loop
	}
	if !s.loop && step >= int64(len(s.pitches)) {
		return false
	}

	index := s.IndexAt(step)
	note := audio.Note{
		Pitch:    s.pitches[index],
		Index:    index,
		Step:     step,
		At:       at,
		Duration: interval,
	}
	if err := s.output.Trigger(note); err != nil {
		logger.Warn("Note trigger failed", logger.Fields{
			"note":  note.Pitch.Name,
			"step":  step,
			"error": err.Error(),
		})
		return true
	}
	s.fired.Add(1)
	return true
}
