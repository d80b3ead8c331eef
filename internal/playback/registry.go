package playback

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/audio"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown session ids
var ErrSessionNotFound = errors.New("playback session not found")

// Entry is one registered playback session
type Entry struct {
	ID        string
	Scheduler *Scheduler
	Events    *audio.EventOutput
	CreatedAt time.Time

	lastActive atomic.Int64 // unix nanoseconds
}

// Touch marks the session as used now
func (e *Entry) Touch() {
	e.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session was last used
func (e *Entry) LastActive() time.Time {
	return time.Unix(0, e.lastActive.Load())
}

// Registry holds the live playback sessions of the HTTP surface, keyed by uuid
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Entry
	opts     []Option
}

// NewRegistry creates an empty registry; opts apply to every new scheduler
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		sessions: make(map[string]*Entry),
		opts:     opts,
	}
}

// Create registers a session whose notes are delivered as events
func (r *Registry) Create() *Entry {
	events := audio.NewEventOutput()
	entry := &Entry{
		ID:        uuid.New().String(),
		Scheduler: NewScheduler(events, r.opts...),
		Events:    events,
		CreatedAt: time.Now(),
	}
	entry.lastActive.Store(entry.CreatedAt.UnixNano())

	r.mu.Lock()
	r.sessions[entry.ID] = entry
	r.mu.Unlock()

	log.Printf("🎹 Playback session created: %s", entry.ID)
	return entry
}

// Get returns a session by id and marks it as used
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.Touch()
	return entry, nil
}

// Remove disposes and forgets a session
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	log.Printf("🎹 Playback session removed: %s", id)
	return entry.Scheduler.Dispose()
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close disposes every session
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Entry)
	r.mu.Unlock()

	for id, entry := range sessions {
		if err := entry.Scheduler.Dispose(); err != nil {
			log.Printf("⚠️  Failed to dispose session %s: %v", id, err)
		}
	}
}

// EvictIdle disposes every session unused for longer than ttl at now.
// Sessions with an open event stream are kept. It returns the number evicted.
func (r *Registry) EvictIdle(now time.Time, ttl time.Duration) int {
	cutoff := now.Add(-ttl).UnixNano()

	r.mu.Lock()
	var idle []*Entry
	for id, entry := range r.sessions {
		if entry.lastActive.Load() >= cutoff || entry.Events.Subscribers() > 0 {
			continue
		}
		delete(r.sessions, id)
		idle = append(idle, entry)
	}
	r.mu.Unlock()

	for _, entry := range idle {
		log.Printf("🧹 Playback session expired: %s (idle since %s)", entry.ID, entry.LastActive().Format(time.RFC3339))
		if err := entry.Scheduler.Dispose(); err != nil {
			log.Printf("⚠️  Failed to dispose session %s: %v", entry.ID, err)
		}
	}
	return len(idle)
}

// Reap evicts idle sessions every ttl/2 until ctx is done. A ttl of zero or less disables it.
func (r *Registry) Reap(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.EvictIdle(now, ttl); n > 0 {
				log.Printf("🧹 Evicted %d idle playback session(s), %d live", n, r.Len())
			}
		}
	}
}
