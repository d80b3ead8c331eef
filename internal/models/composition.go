package models

import "math"

// Playable tempo range in BPM, shared by specification validation and live tempo changes
const (
	MinTempo = 20.0
	MaxTempo = 400.0
)

// ValidTempo reports whether bpm lies within [MinTempo, MaxTempo]
func ValidTempo(bpm float64) bool {
	return !math.IsNaN(bpm) && bpm >= MinTempo && bpm <= MaxTempo
}

// ImageAnalysis is the semantic description of a photo produced by the analysis stage
type ImageAnalysis struct {
	DominantColors []string `json:"dominantColors"`
	Objects        []string `json:"objects"`
	Mood           string   `json:"mood"`
}

// MusicSpecification is the structured musical description produced by the composition stage.
// Single tempo/key/time-signature values are stored as length-1 change sequences.
type MusicSpecification struct {
	Tempos            []float64 `json:"tempoChanges"`
	Keys              []string  `json:"keyChanges"`
	TimeSignatures    []string  `json:"timeSignatureChanges"`
	Instruments       []string  `json:"instruments"`
	Notes             []string  `json:"notes"`
	MelodyDescription string    `json:"melodyDescription"`
	ChordProgression  []string  `json:"chordProgression,omitempty"`
}

// Tempo returns the opening tempo in BPM, or 0 if none is set
func (s *MusicSpecification) Tempo() float64 {
	if len(s.Tempos) == 0 {
		return 0
	}
	return s.Tempos[0]
}

// Key returns the opening key
func (s *MusicSpecification) Key() string {
	if len(s.Keys) == 0 {
		return ""
	}
	return s.Keys[0]
}

// TimeSignature returns the opening time signature
func (s *MusicSpecification) TimeSignature() string {
	if len(s.TimeSignatures) == 0 {
		return ""
	}
	return s.TimeSignatures[0]
}

// Composition is the combined pipeline output returned to callers
type Composition struct {
	Analysis      *ImageAnalysis      `json:"analysis"`
	Specification *MusicSpecification `json:"music_spec,omitempty"`
}
