package music

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	minMIDI            = 0
	maxMIDI            = 127
	concertA           = 440.0
	concertAMIDI       = 69
	semitonesPerOctave = 12
)

// Note semitone offsets from C
var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// Pitch is a parsed scientific-pitch-notation note such as "F#4"
type Pitch struct {
	Name string
	MIDI int
}

// ParsePitch parses a note name like "C4", "F#4" or "Bb3".
// C-1 is MIDI 0 and C4 is MIDI 60. Names outside the MIDI range are rejected.
func ParsePitch(name string) (Pitch, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 {
		return Pitch{}, fmt.Errorf("note name too short: %q", name)
	}

	semitone, ok := letterOffsets[upper(trimmed[0])]
	if !ok {
		return Pitch{}, fmt.Errorf("invalid note letter in %q", name)
	}

	idx := 1
	switch trimmed[idx] {
	case '#':
		semitone++
		idx++
	case 'b':
		semitone--
		idx++
	}

	if idx >= len(trimmed) {
		return Pitch{}, fmt.Errorf("missing octave in note name %q", name)
	}

	octave, err := strconv.Atoi(trimmed[idx:])
	if err != nil {
		return Pitch{}, fmt.Errorf("invalid octave in note name %q: %w", name, err)
	}

	midi := (octave+1)*semitonesPerOctave + semitone
	if midi < minMIDI || midi > maxMIDI {
		return Pitch{}, fmt.Errorf("note %q is outside the MIDI range", name)
	}

	return Pitch{Name: trimmed, MIDI: midi}, nil
}

// ParsePitches parses a melody, failing on the first invalid name
func ParsePitches(names []string) ([]Pitch, error) {
	pitches := make([]Pitch, 0, len(names))
	for i, name := range names {
		p, err := ParsePitch(name)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
		pitches = append(pitches, p)
	}
	return pitches, nil
}

// Frequency returns the equal-tempered frequency in Hz (A4 = 440)
func (p Pitch) Frequency() float64 {
	return concertA * math.Pow(2, float64(p.MIDI-concertAMIDI)/semitonesPerOctave)
}

// Key returns the MIDI note number as a byte
func (p Pitch) Key() uint8 {
	return uint8(p.MIDI)
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
