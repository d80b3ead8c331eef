package audio

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// NoteEvent is the client-facing form of a triggered note
type NoteEvent struct {
	Index      int     `json:"index"`
	Note       string  `json:"note"`
	MIDI       int     `json:"midi"`
	Frequency  float64 `json:"frequency"`
	Step       int64   `json:"step"`
	AtMs       int64   `json:"at_ms"`
	DurationMs int64   `json:"duration_ms"`
	Gain       float64 `json:"gain"`
}

// EventOutput fans triggered notes out to subscribers, so a browser can
// sound them locally. Slow subscribers miss events rather than block playback.
type EventOutput struct {
	lifecycle
	subscribers map[int]chan NoteEvent
	nextID      int
}

// NewEventOutput creates an output with no subscribers
func NewEventOutput() *EventOutput {
	return &EventOutput{
		lifecycle:   lifecycle{gain: 1},
		subscribers: make(map[int]chan NoteEvent),
	}
}

func (o *EventOutput) Activate(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activate()
}

func (o *EventOutput) Trigger(note Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ready(); err != nil {
		return err
	}

	event := NoteEvent{
		Index:      note.Index,
		Note:       note.Pitch.Name,
		MIDI:       note.Pitch.MIDI,
		Frequency:  note.Pitch.Frequency(),
		Step:       note.Step,
		AtMs:       note.At.Milliseconds(),
		DurationMs: note.Duration.Milliseconds(),
		Gain:       o.gain,
	}
	for _, ch := range o.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (o *EventOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
}

// Subscribe returns a channel of note events and a function to stop receiving them.
// The channel is closed on unsubscribe or Dispose.
func (o *EventOutput) Subscribe() (<-chan NoteEvent, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan NoteEvent, subscriberBuffer)
	if o.disposed {
		close(ch)
		return ch, func() {}
	}

	id := o.nextID
	o.nextID++
	o.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subscribers[id]; ok {
				delete(o.subscribers, id)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of open subscriptions
func (o *EventOutput) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subscribers)
}

// Dispose closes every subscriber channel
func (o *EventOutput) Dispose() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispose()
	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
	return nil
}
