package store

import (
	"context"
	"sync"
	"time"

	"github.com/entari/mjbridge/internal/task"
)

type memoryEntry struct {
	rec      task.Record
	expireAt time.Time
}

// MemoryStore keeps records in a timed map. A janitor goroutine evicts expired
// entries; reads also check expiry so a stale entry is never returned.
type MemoryStore struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry

	stop chan struct{}
	once sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	s := &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	interval := s.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if now.After(e.expireAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Save(_ context.Context, rec task.Record) error {
	s.mu.Lock()
	s.entries[rec.ID] = memoryEntry{rec: rec, expireAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (task.Record, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expireAt) {
		return task.Record{}, ErrNotFound
	}
	return e.rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]task.Record, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Record, 0, len(s.entries))
	for _, e := range s.entries {
		if now.After(e.expireAt) {
			continue
		}
		out = append(out, e.rec)
	}
	return out, nil
}

func (s *MemoryStore) ListBy(ctx context.Context, cond task.Condition) ([]task.Record, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(recs, cond), nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
