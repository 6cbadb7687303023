package session

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/organsim/internal/model"
	"go.uber.org/zap"
)

// MemoryStore implements Store using an in-memory map
type MemoryStore struct {
	data     map[string]*entry
	mu       sync.RWMutex
	maxSize  int
	ttl      time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	profile   model.PatientProfile
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store. A non-positive ttl keeps
// sessions for the life of the process.
func NewMemoryStore(maxSize int, ttl time.Duration, logger *zap.Logger) *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go s.cleanup()
	}

	return s
}

// Load returns a copy of the stored profile.
func (s *MemoryStore) Load(ctx context.Context, id string) (model.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok || s.expired(e, time.Now()) {
		return model.DefaultProfile(), nil
	}
	return e.profile, nil
}

// Save stores p under id, evicting an entry when the store is full.
func (s *MemoryStore) Save(ctx context.Context, id string, p model.PatientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists && s.maxSize > 0 && len(s.data) >= s.maxSize {
		s.evictLocked()
	}

	e := &entry{profile: p}
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}
	s.data[id] = e

	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup loop.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Size returns the number of stored sessions
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.After(e.expiresAt)
}

// evictLocked drops an expired entry if there is one, otherwise the entry
// closest to expiry. The default session is never evicted.
func (s *MemoryStore) evictLocked() {
	now := time.Now()
	var victim string
	var oldest time.Time
	for k, e := range s.data {
		if k == DefaultID {
			continue
		}
		if s.expired(e, now) {
			victim = k
			break
		}
		if victim == "" || e.expiresAt.Before(oldest) {
			victim, oldest = k, e.expiresAt
		}
	}
	if victim != "" {
		delete(s.data, victim)
		s.logger.Debug("session evicted", zap.String("session_id", victim))
	}
}

// cleanup periodically removes expired entries
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for id, e := range s.data {
				if s.expired(e, now) {
					delete(s.data, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
