package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrNotExist is returned by a Backend when no document has been written under a name yet
var ErrNotExist = errors.New("snapshot does not exist")

// Backend persists whole snapshot documents by name
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Kind() string
}

// Snapshot is an in-memory keyed document that is loaded once and written back
// in full on every Save. Memory is authoritative: a failed write leaves the
// in-memory state untouched and is retried implicitly by the next Save.
// Save encodes values while other goroutines may read them, so a value must
// not be modified after Put; store a changed copy instead.
type Snapshot[T any] struct {
	backend Backend
	name    string
	logger  *zap.Logger

	mu    sync.RWMutex
	items map[string]T
}

// NewSnapshot creates an empty snapshot bound to a backend document
func NewSnapshot[T any](backend Backend, name string, logger *zap.Logger) *Snapshot[T] {
	return &Snapshot[T]{
		backend: backend,
		name:    name,
		logger:  logger.With(zap.String("snapshot", name), zap.String("backend", backend.Kind())),
		items:   make(map[string]T),
	}
}

// Load replaces the in-memory state with the persisted document. A missing or
// corrupt document yields an empty store.
func (s *Snapshot[T]) Load(ctx context.Context) {
	items := make(map[string]T)

	data, err := s.backend.Read(ctx, s.name)
	switch {
	case errors.Is(err, ErrNotExist):
		s.logger.Info("No snapshot found, starting empty")
	case err != nil:
		s.logger.Error("Failed to read snapshot, starting empty", zap.Error(err))
	default:
		if err := json.Unmarshal(data, &items); err != nil {
			s.logger.Error("Corrupt snapshot, starting empty", zap.Error(err))
			items = make(map[string]T)
		}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.logger.Info("Snapshot loaded", zap.Int("entries", len(items)))
}

// Save overwrites the persisted document with the full in-memory state
func (s *Snapshot[T]) Save(ctx context.Context) error {
	s.mu.RLock()
	data, err := json.Marshal(s.items)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", s.name, err)
	}

	if err := s.backend.Write(ctx, s.name, data); err != nil {
		s.logger.Error("Failed to persist snapshot", zap.Error(err))
		return fmt.Errorf("failed to persist snapshot %s: %w", s.name, err)
	}
	return nil
}

func (s *Snapshot[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *Snapshot[T]) Put(key string, value T) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *Snapshot[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Keys returns the stored keys in sorted order
func (s *Snapshot[T]) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *Snapshot[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
