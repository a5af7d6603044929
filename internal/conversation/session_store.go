package conversation

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by lookups for a conversation with no state.
var ErrSessionNotFound = errors.New("conversation: session not found")

const (
	defaultSessionTTL        = 24 * time.Hour
	defaultSessionMaxEntries = 10000
)

// SessionStore persists sessions between messages. Implementations return
// copies; callers own what they load.
type SessionStore interface {
	Load(ctx context.Context, key SessionKey) (*Session, bool, error)
	Save(ctx context.Context, key SessionKey, session *Session) error
	Delete(ctx context.Context, key SessionKey) error
}

type memoryEntry struct {
	key     SessionKey
	session *Session
	touched time.Time
}

// MemorySessionStore is a bounded in-process store. Entries idle for longer
// than the TTL are dropped on access and the least recently used entry is
// evicted once the store is full.
type MemorySessionStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List
	entries    map[SessionKey]*list.Element
	now        func() time.Time
}

// NewMemorySessionStore returns a store holding at most maxEntries sessions.
// Non-positive arguments fall back to 24h and 10000.
func NewMemorySessionStore(ttl time.Duration, maxEntries int) *MemorySessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultSessionMaxEntries
	}
	return &MemorySessionStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[SessionKey]*list.Element),
		now:        time.Now,
	}
}

func (s *MemorySessionStore) Load(_ context.Context, key SessionKey) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if s.expired(entry) {
		s.removeElement(el)
		return nil, false, nil
	}
	entry.touched = s.now()
	s.order.MoveToFront(el)
	return entry.session.Clone(), true, nil
}

func (s *MemorySessionStore) Save(_ context.Context, key SessionKey, session *Session) error {
	if session == nil {
		return errors.New("conversation: cannot save nil session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.session = session.Clone()
		entry.touched = now
		s.order.MoveToFront(el)
		return nil
	}

	s.entries[key] = s.order.PushFront(&memoryEntry{key: key, session: session.Clone(), touched: now})
	s.evict()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, key SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.removeElement(el)
	}
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// evict drops expired entries from the tail, then trims to capacity.
func (s *MemorySessionStore) evict() {
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if !s.expired(el.Value.(*memoryEntry)) {
			break
		}
		s.removeElement(el)
		el = prev
	}
	for s.order.Len() > s.maxEntries {
		s.removeElement(s.order.Back())
	}
}

func (s *MemorySessionStore) expired(e *memoryEntry) bool {
	return s.now().Sub(e.touched) > s.ttl
}

func (s *MemorySessionStore) removeElement(el *list.Element) {
	entry := s.order.Remove(el).(*memoryEntry)
	delete(s.entries, entry.key)
}
