package store

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type memoryEntry[T Entity] struct {
	value   T
	expires time.Time
}

// MemoryStore keeps entries in an in-process map. Suitable for
// single-instance deployments; contents are lost on restart. Expired entries
// are invisible to Get immediately and physically reclaimed by a periodic
// sweep.
type MemoryStore[T Entity] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
	ttl     time.Duration
	sweeper *cron.Cron
}

// NewMemoryStore creates a store whose entries live for the given duration.
func NewMemoryStore[T Entity](ttl time.Duration) *MemoryStore[T] {
	s := &MemoryStore[T]{
		entries: make(map[string]memoryEntry[T]),
		ttl:     ttl,
		sweeper: cron.New(),
	}
	s.sweeper.AddFunc("@every 1m", s.sweep)
	s.sweeper.Start()
	return s
}

// Put inserts the entity. Overwriting an existing entry keeps its original
// expiry.
func (s *MemoryStore[T]) Put(ctx context.Context, id string, entity T) error {
	if err := validArgs(id, entity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires := time.Now().Add(s.ttl)
	if prior, ok := s.entries[id]; ok && time.Now().Before(prior.expires) {
		expires = prior.expires
	}
	s.entries[id] = memoryEntry[T]{value: entity, expires: expires}
	return nil
}

// Get returns the entity, removing it when consumable. The map mutex makes
// the get-and-delete atomic: concurrent readers of a consumable entry resolve
// to exactly one winner.
func (s *MemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return zero, ErrNotFound
	}
	if !time.Now().Before(entry.expires) {
		delete(s.entries, id)
		return zero, ErrNotFound
	}
	if entry.value.Consumable() {
		delete(s.entries, id)
	}
	return entry.value, nil
}

// Delete removes the entry if present.
func (s *MemoryStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Close stops the expiry sweeper.
func (s *MemoryStore[T]) Close() {
	s.sweeper.Stop()
}

func (s *MemoryStore[T]) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, id)
		}
	}
}
