// ABOUTME: Bounded TTL set of recently handled Matrix event IDs
// ABOUTME: Drops events the homeserver redelivers after a reconnect or sync retry

package matrix

import (
	"container/list"
	"sync"
	"time"
)

const (
	seenTTL     = 10 * time.Minute
	seenMaxSize = 4096
)

type seenEntry struct {
	at   time.Time
	elem *list.Element
}

// seenEvents remembers event IDs in insertion order. Expired entries are
// swept from the front on every insert, so no background goroutine is needed.
type seenEvents struct {
	mu      sync.Mutex
	entries map[string]*seenEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newSeenEvents(ttl time.Duration, maxSize int) *seenEvents {
	return &seenEvents{
		entries: make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// checkAndMark reports whether eventID was already seen within the TTL, marking
// it when it was not.
func (s *seenEvents) checkAndMark(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if e, ok := s.entries[eventID]; ok && now.Sub(e.at) < s.ttl {
		return true
	}

	if len(s.entries) >= s.maxSize {
		s.removeLocked(s.order.Front())
	}
	s.entries[eventID] = &seenEntry{at: now, elem: s.order.PushBack(eventID)}
	return false
}

func (s *seenEvents) sweepLocked(now time.Time) {
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		e := s.entries[front.Value.(string)]
		if now.Sub(e.at) < s.ttl {
			return
		}
		s.removeLocked(front)
	}
}

func (s *seenEvents) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	s.order.Remove(elem)
	delete(s.entries, elem.Value.(string))
}

func (s *seenEvents) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
