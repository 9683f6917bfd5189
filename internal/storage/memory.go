package storage

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value []byte
	at    int64 // unix milli
}

type memoryStore struct {
	mu     sync.RWMutex
	m      map[string]memEntry
	closed bool
	now    func() time.Time
}

func newMemory() *memoryStore {
	return &memoryStore{m: map[string]memEntry{}, now: time.Now}
}

func (s *memoryStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (s *memoryStore) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.m[key] = memEntry{value: append([]byte(nil), value...), at: s.now().UnixMilli()}
	return nil
}

func (s *memoryStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cut := before.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := 0
	for k, e := range s.m {
		if e.at < cut {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.m = nil
	s.mu.Unlock()
	return nil
}
