package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSampleRate is the PCM rate SynthOutput renders at
	DefaultSampleRate = 44100
	synthAmplitude    = 0.5
)

// SynthOutput renders each note as a Hann-shaped sine tone and writes
// mono float32 little-endian PCM frames
type SynthOutput struct {
	lifecycle
	w          io.Writer
	sampleRate int
	frames     int64
}

// NewSynthOutput creates a synth writing PCM at sampleRate to w
func NewSynthOutput(w io.Writer, sampleRate int) *SynthOutput {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &SynthOutput{
		lifecycle:  lifecycle{gain: 1},
		w:          w,
		sampleRate: sampleRate,
	}
}

func (o *SynthOutput) Activate(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activate()
}

// Trigger renders the note for its subdivision length at the current gain
func (o *SynthOutput) Trigger(note Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ready(); err != nil {
		return err
	}

	tone := RenderTone(note.Pitch.Frequency(), note.Duration.Seconds(), o.sampleRate, o.gain)
	if len(tone) == 0 {
		return nil
	}

	samples := make([]float32, len(tone))
	for i, v := range tone {
		samples[i] = float32(v)
	}
	if err := binary.Write(o.w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("failed to write PCM frames: %w", err)
	}
	o.frames += int64(len(samples))
	return nil
}

func (o *SynthOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
}

func (o *SynthOutput) Dispose() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispose()
	return nil
}

// Frames returns how many PCM frames have been written
func (o *SynthOutput) Frames() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames
}

// RenderTone returns seconds of a sine at freq, shaped by a Hann window and scaled by gain
func RenderTone(freq, seconds float64, sampleRate int, gain float64) []float64 {
	n := int(math.Round(seconds * float64(sampleRate)))
	if n <= 0 {
		return nil
	}

	tone := make([]float64, n)
	step := 2 * math.Pi * freq / float64(sampleRate)
	for i := range tone {
		tone[i] = math.Sin(step * float64(i))
	}
	window.Hann(tone)
	floats.Scale(synthAmplitude*gain, tone)
	return tone
}
