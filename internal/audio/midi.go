package audio

import (
	"context"
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
)

const (
	defaultVelocity = 100
	ccChannelVolume = 7
	ccAllNotesOff   = 123
	maxMIDIValue    = 127
)

// MIDIOutput writes the melody as a live MIDI byte stream
type MIDIOutput struct {
	lifecycle
	w        io.Writer
	channel  uint8
	sounding int // MIDI key currently held, -1 when silent
}

// NewMIDIOutput creates a MIDI output on the given channel (0-15)
func NewMIDIOutput(w io.Writer, channel uint8) *MIDIOutput {
	return &MIDIOutput{
		lifecycle: lifecycle{gain: 1},
		w:         w,
		channel:   channel & 0x0F,
		sounding:  -1,
	}
}

func (o *MIDIOutput) Activate(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return nil
	}
	if err := o.activate(); err != nil {
		return err
	}
	return o.write(midi.ControlChange(o.channel, ccChannelVolume, midiValue(o.gain)))
}

// Trigger releases the sounding note and starts the next one
func (o *MIDIOutput) Trigger(note Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ready(); err != nil {
		return err
	}

	if o.sounding >= 0 {
		if err := o.write(midi.NoteOff(o.channel, uint8(o.sounding))); err != nil {
			return err
		}
	}
	key := note.Pitch.Key()
	if err := o.write(midi.NoteOn(o.channel, key, defaultVelocity)); err != nil {
		return err
	}
	o.sounding = int(key)
	return nil
}

// SetGain sends the gain as channel volume (CC7)
func (o *MIDIOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
	if o.ready() == nil {
		_ = o.write(midi.ControlChange(o.channel, ccChannelVolume, midiValue(gain)))
	}
}

// Dispose silences the channel
func (o *MIDIOutput) Dispose() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if wasActive, _ := o.dispose(); !wasActive {
		return nil
	}

	if o.sounding >= 0 {
		if err := o.write(midi.NoteOff(o.channel, uint8(o.sounding))); err != nil {
			return err
		}
		o.sounding = -1
	}
	return o.write(midi.ControlChange(o.channel, ccAllNotesOff, 0))
}

func (o *MIDIOutput) write(msg midi.Message) error {
	if _, err := o.w.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("failed to write MIDI message: %w", err)
	}
	return nil
}

func midiValue(gain float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(gain, 1)) * maxMIDIValue))
}
