// Package dedup tracks record identities seen during a session.
package dedup

import "sync"

// Set is a concurrency-safe identity set.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// ShouldProcess records identity and reports whether it was new.
// When several callers race on the same identity exactly one gets true.
// The empty identity is never admitted.
func (s *Set) ShouldProcess(identity string) bool {
	if identity == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[identity]; ok {
		return false
	}
	s.seen[identity] = struct{}{}
	return true
}

// Seen reports whether identity was recorded, without recording it.
func (s *Set) Seen(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[identity]
	return ok
}

// Len returns the number of recorded identities.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
