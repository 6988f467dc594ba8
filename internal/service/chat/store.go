package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/heartwise/backend/internal/metrics"
	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// StoreConfig tunes the session store. The zero value keeps sessions for
// the life of the process.
type StoreConfig struct {
	// TTL evicts sessions idle for longer than this. Zero disables eviction.
	TTL time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
	// NewID overrides session id generation, mainly for tests.
	NewID func() string
}

// Store owns every live transcript, keyed by session id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*transcript

	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

// NewStore bootstraps an empty in-memory session store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		sessions: make(map[string]*transcript),
		ttl:      cfg.TTL,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateSession provisions a session seeded with the coach greeting.
func (s *Store) CreateSession(_ context.Context) (chat.Transcript, error) {
	now := s.now()

	s.mu.Lock()
	id := s.newID()
	for {
		if _, taken := s.sessions[id]; !taken {
			break
		}
		id = s.newID()
	}
	t := newTranscript(id, now)
	s.sessions[id] = t
	size := len(s.sessions)

	// the transcript is not reachable by other goroutines until s.mu is released
	t.append(chat.SenderAssistant, reply.Greeting, now)
	snapshot := t.snapshot()
	s.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Set(float64(size))
	return snapshot, nil
}

// GetSession returns a copy of the session's transcript.
func (s *Store) GetSession(_ context.Context, sessionID string) (chat.Transcript, error) {
	var snapshot chat.Transcript
	err := s.withTranscript(sessionID, func(t *transcript) error {
		snapshot = t.snapshot()
		return nil
	})
	return snapshot, err
}

// Stats counts the session's messages by sender.
func (s *Store) Stats(ctx context.Context, sessionID string) (chat.Stats, error) {
	transcript, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Stats{}, err
	}
	return transcript.Stats(), nil
}

// Len reports the number of sessions held, including expired ones not yet
// swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// TTL returns the configured idle timeout.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// withTranscript runs fn while holding the session's lock. Expired or
// evicted sessions report ErrSessionNotFound.
func (s *Store) withTranscript(sessionID string, fn func(t *transcript) error) error {
	s.mu.RLock()
	t, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.evicted || s.expired(t, s.now()) {
		return ErrSessionNotFound
	}
	return fn(t)
}

func (s *Store) expired(t *transcript, now time.Time) bool {
	return s.ttl > 0 && now.Sub(t.idleSince()) > s.ttl
}

// Sweep removes sessions idle longer than the TTL and returns how many were
// removed.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	removed := 0
	for id, t := range s.sessions {
		if !s.expired(t, now) {
			continue
		}
		t.mu.Lock()
		// re-check under the session lock: a post may have just landed
		if s.expired(t, now) {
			t.evicted = true
			delete(s.sessions, id)
			removed++
		}
		t.mu.Unlock()
	}
	size := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		metrics.SessionsEvicted.Add(float64(removed))
	}
	metrics.ActiveSessions.Set(float64(size))
	return removed
}

// RunJanitor sweeps on every tick until ctx is done. It returns at once when
// eviction is disabled.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}
