package annotation

import (
	"sort"
	"sync"
)

// Store holds the working set of annotations for one inspection, indexed by
// id, with a derived "visible" view: for each box number, the highest-version
// record of a logical box that has not been deleted.
//
// Records are treated as immutable once inserted; lifecycle transitions
// insert successor versions rather than mutating in place.
type Store struct {
	mu sync.RWMutex

	byID  map[string]*Annotation
	byBox map[int][]*Annotation // version chains, kept in ascending version order

	deleted map[int]bool // logical boxes removed from the visible set

	visible      []*Annotation
	visibleValid bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*Annotation),
		byBox:   make(map[int][]*Annotation),
		deleted: make(map[int]bool),
	}
}

// Upsert inserts or replaces a record by id and invalidates the visible view.
func (s *Store) Upsert(a *Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byID[a.ID]; ok {
		s.removeFromChain(prev)
	}
	s.byID[a.ID] = a

	// Ascending version order; records sharing a version (review transitions
	// keep the version number) stay in insertion order.
	chain := s.byBox[a.BoxNumber]
	i := sort.Search(len(chain), func(i int) bool { return chain[i].Version > a.Version })
	chain = append(chain, nil)
	copy(chain[i+1:], chain[i:])
	chain[i] = a
	s.byBox[a.BoxNumber] = chain

	s.visibleValid = false
}

func (s *Store) removeFromChain(a *Annotation) {
	chain := s.byBox[a.BoxNumber]
	for i, rec := range chain {
		if rec.ID == a.ID {
			s.byBox[a.BoxNumber] = append(chain[:i], chain[i+1:]...)
			return
		}
	}
}

// ByID returns the record with the given id.
func (s *Store) ByID(id string) (*Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok
}

// Latest returns the highest-version record for a logical box, whether or
// not the box has been deleted.
func (s *Store) Latest(boxNumber int) (*Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.byBox[boxNumber]
	if len(chain) == 0 {
		return nil, false
	}
	return chain[len(chain)-1], true
}

// MarkDeleted removes a logical box from the visible set permanently.
func (s *Store) MarkDeleted(boxNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[boxNumber] = true
	s.visibleValid = false
}

// IsDeleted reports whether a logical box has been deleted.
func (s *Store) IsDeleted(boxNumber int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted[boxNumber]
}

// Visible returns the derived view used by the renderer: the latest version
// of each non-deleted logical box, ordered by box number. The view is cached
// until the next Upsert or MarkDeleted.
func (s *Store) Visible() []*Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.visibleValid {
		s.visible = s.visible[:0]
		nums := make([]int, 0, len(s.byBox))
		for n := range s.byBox {
			if !s.deleted[n] && len(s.byBox[n]) > 0 {
				nums = append(nums, n)
			}
		}
		sort.Ints(nums)
		for _, n := range nums {
			chain := s.byBox[n]
			s.visible = append(s.visible, chain[len(chain)-1])
		}
		s.visibleValid = true
	}

	out := make([]*Annotation, len(s.visible))
	copy(out, s.visible)
	return out
}

// HistoryFor returns the version chain for a logical box in ascending
// version order, including versions of deleted boxes, for audit display.
func (s *Store) HistoryFor(boxNumber int) []*Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.byBox[boxNumber]
	out := make([]*Annotation, len(chain))
	copy(out, chain)
	return out
}

// MaxBoxNumber returns the highest box number ever assigned, or 0 when the
// store is empty. Deleted boxes count: their numbers are never reused.
func (s *Store) MaxBoxNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for n := range s.byBox {
		if n > max {
			max = n
		}
	}
	return max
}

// Len returns the total number of stored records across all versions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
