// Package inspection provides per-inspection supporting state for the
// annotation engine: box numbering, the audit history log, and feedback
// export for model improvement.
package inspection

import "sync"

// Sequence allocates monotonically increasing box numbers for one
// inspection. Numbers are assigned once and never reused, even after the box
// is deleted, so historical references stay unambiguous.
type Sequence struct {
	mu   sync.Mutex
	next int
}

// NewSequence creates a sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

// ResumeSequence creates a sequence that continues after the highest number
// already assigned, for re-opening a stored inspection.
func ResumeSequence(highestAssigned int) *Sequence {
	return &Sequence{next: highestAssigned + 1}
}

// Next returns the next box number.
func (s *Sequence) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n
}

// Peek returns the number the next call to Next will return.
func (s *Sequence) Peek() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
