package classify

import (
	"fmt"
	"sync"
)

// Sequence hands out change ids (C0001, C0002, ...) for one comparison run
type Sequence struct {
	mu sync.Mutex
	n  int
}

// NewSequence creates a sequence starting at C0001
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next change id
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("C%04d", s.n)
}

// Issued returns how many ids have been handed out
func (s *Sequence) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
