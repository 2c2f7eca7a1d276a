package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohammad-safakhou/brieflab/models"
)

type entry struct {
	run       models.Run
	expiresAt time.Time
}

// Store keeps run statuses in process memory. Expired entries are dropped
// lazily on access.
type Store struct {
	runs map[string]entry
	ttl  time.Duration
	mu   sync.RWMutex
	now  func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{runs: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (store *Store) Put(_ context.Context, run models.Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	e := entry{run: run}
	if store.ttl > 0 {
		e.expiresAt = store.now().Add(store.ttl)
	}
	store.runs[run.ID] = e
	return nil
}

func (store *Store) Get(_ context.Context, id string) (models.Run, error) {
	store.mu.RLock()
	e, ok := store.runs[id]
	store.mu.RUnlock()
	if !ok {
		return models.Run{}, models.ErrRunNotFound
	}
	if !e.expiresAt.IsZero() && store.now().After(e.expiresAt) {
		store.mu.Lock()
		delete(store.runs, id)
		store.mu.Unlock()
		return models.Run{}, models.ErrRunNotFound
	}
	return e.run, nil
}
