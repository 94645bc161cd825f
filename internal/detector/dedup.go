package detector

import (
	"container/list"
	"sync"
)

// SignatureSet is a bounded, LRU-evicting set of recently seen transaction
// signatures. Both the streaming and polling feed paths can deliver the same
// signature; the set guarantees at most one intent per signature without
// growing unboundedly over a long session.
type SignatureSet struct {
	mu      sync.Mutex
	cap     int
	order   *list.List               // front = most recent
	entries map[string]*list.Element // signature -> order element
}

// NewSignatureSet creates a SignatureSet holding at most capacity entries.
func NewSignatureSet(capacity int) *SignatureSet {
	if capacity < 1 {
		capacity = 1
	}
	return &SignatureSet{
		cap:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element, capacity),
	}
}

// Seen marks a signature and reports whether it was already present.
func (s *SignatureSet) Seen(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[signature]; ok {
		s.order.MoveToFront(el)
		return true
	}

	s.entries[signature] = s.order.PushFront(signature)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(string))
	}
	return false
}

// Contains reports whether a signature is present without touching recency.
func (s *SignatureSet) Contains(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[signature]
	return ok
}

// Seed inserts signatures without reporting, oldest first, so restarts do
// not re-trade intents already persisted before the process died.
func (s *SignatureSet) Seed(signatures []string) {
	for i := len(signatures) - 1; i >= 0; i-- {
		s.Seen(signatures[i])
	}
}

// Len returns the current number of entries.
func (s *SignatureSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
