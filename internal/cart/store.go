// internal/cart/store.go
package cart

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

// MutationKind describes what changed in the store
type MutationKind string

const (
	MutationAdd     MutationKind = "add"
	MutationUpdate  MutationKind = "update"
	MutationRemove  MutationKind = "remove"
	MutationClear   MutationKind = "clear"
	MutationRestore MutationKind = "restore"
)

// Origin tells listeners who mutated the store
type Origin string

const (
	OriginUser       Origin = "user"
	OriginReconciler Origin = "reconciler"
	OriginRestore    Origin = "restore"
)

// Mutation is passed to listeners after every change
type Mutation struct {
	Kind   MutationKind
	Key    domain.LineKey
	Origin Origin
}

// Listener observes store mutations. lines is a copy of the cart after the change.
type Listener func(lines []domain.CartLine, m Mutation)

// Store holds the lines of one cart. Listeners run synchronously on the
// mutating goroutine, one mutation at a time and in the order the mutations
// were applied. Listeners must not mutate the store.
type Store struct {
	// held from a state change until its listeners return
	notifyMu sync.Mutex

	mu        sync.RWMutex
	lines     []domain.CartLine
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStore creates an empty cart store
func NewStore() *Store {
	return &Store{listeners: make(map[uint64]Listener)}
}

// Add puts the line in the cart, merging quantities when the tuple is already present
func (s *Store) Add(line domain.CartLine) error {
	if err := line.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	key := line.Key()
	kind := MutationAdd

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if i := s.index(key); i >= 0 {
		if s.lines[i].Quantity > domain.MaxLineQuantity-line.Quantity {
			s.mu.Unlock()
			return fmt.Errorf("%w: quantity for %s cannot exceed %d", domain.ErrValidation, key.Slug, domain.MaxLineQuantity)
		}
		s.lines[i].Quantity += line.Quantity
		if line.Title != "" {
			s.lines[i].Title = line.Title
		}
		kind = MutationUpdate
	} else {
		s.lines = append(s.lines, line)
	}
	lines := s.copyLocked()
	s.mu.Unlock()

	s.notify(lines, Mutation{Kind: kind, Key: key, Origin: OriginUser})
	return nil
}

// SetQuantity replaces the quantity of a line. A quantity <= 0 removes it.
// It reports whether the line existed.
func (s *Store) SetQuantity(key domain.LineKey, quantity int) bool {
	return s.setQuantity(key, quantity, OriginUser)
}

// Remove deletes the line and reports whether it existed
func (s *Store) Remove(key domain.LineKey) bool {
	return s.remove(key, OriginUser)
}

// Clear empties the cart
func (s *Store) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()

	s.notify([]domain.CartLine{}, Mutation{Kind: MutationClear, Origin: OriginUser})
}

// Restore replaces the cart content with lines. Invalid lines are dropped and
// duplicate tuples merged up to MaxLineQuantity.
func (s *Store) Restore(lines []domain.CartLine) {
	merged := make([]domain.CartLine, 0, len(lines))
	pos := make(map[domain.LineKey]int, len(lines))
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			continue
		}
		if i, ok := pos[l.Key()]; ok {
			merged[i].Quantity = min(merged[i].Quantity+l.Quantity, domain.MaxLineQuantity)
			continue
		}
		pos[l.Key()] = len(merged)
		merged = append(merged, l)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.lines = merged
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.notify(snapshot, Mutation{Kind: MutationRestore, Origin: OriginRestore})
}

// Lines returns a copy of the cart lines in insertion order
func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Quantity returns the quantity held for key
func (s *Store) Quantity(key domain.LineKey) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(key); i >= 0 {
		return s.lines[i].Quantity, true
	}
	return 0, false
}

// Subscribe registers l and returns a function that removes it
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// MarshalJSON encodes the line snapshot
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Lines())
}

// UnmarshalJSON restores the store from a line snapshot
func (s *Store) UnmarshalJSON(data []byte) error {
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("failed to decode cart: %w", err)
	}
	if s.listeners == nil {
		s.listeners = make(map[uint64]Listener)
	}
	s.Restore(lines)
	return nil
}

func (s *Store) setQuantity(key domain.LineKey, quantity int, origin Origin) bool {
	if quantity <= 0 {
		return s.remove(key, origin)
	}
	quantity = min(quantity, domain.MaxLineQuantity)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	i := s.index(key)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.lines[i].Quantity = quantity
	lines := s.copyLocked()
	s.mu.Unlock()

	s.notify(lines, Mutation{Kind: MutationUpdate, Key: key, Origin: origin})
	return true
}

func (s *Store) remove(key domain.LineKey, origin Origin) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	i := s.index(key)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	lines := s.copyLocked()
	s.mu.Unlock()

	s.notify(lines, Mutation{Kind: MutationRemove, Key: key, Origin: origin})
	return true
}

func (s *Store) index(key domain.LineKey) int {
	for i := range s.lines {
		if s.lines[i].Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) copyLocked() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) notify(lines []domain.CartLine, m Mutation) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(lines, m)
	}
}
