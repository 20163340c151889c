package defs

import (
	"github.com/zjrosen/loom/internal/log"
	"github.com/zjrosen/loom/internal/pubsub"
)

// Store holds every loaded definition, keyed by category and id. Within a
// category, insertion order is preserved and ids are unique: a second
// definition with the same id either replaces the first with a warning
// (allowDuplicates) or fails the load.
type Store struct {
	allowDuplicates bool
	order           []string
	byCategory      map[string]*bucket
	events          *pubsub.Broker[string]
}

type bucket struct {
	order []string
	defs  map[string]*Definition
}

// NewStore creates an empty store with the given duplicate policy.
func NewStore(allowDuplicates bool) *Store {
	return &Store{
		allowDuplicates: allowDuplicates,
		byCategory:      make(map[string]*bucket),
		events:          pubsub.NewBroker[string](),
	}
}

// AllowDuplicates reports the configured duplicate policy.
func (s *Store) AllowDuplicates() bool {
	return s.allowDuplicates
}

// Events exposes the broker on which duplicate warnings are published.
func (s *Store) Events() *pubsub.Broker[string] {
	return s.events
}

// Insert adds a definition. source names the document it came from and is
// only used in diagnostics.
func (s *Store) Insert(def *Definition, source string) error {
	b, ok := s.byCategory[def.Category]
	if !ok {
		b = &bucket{defs: make(map[string]*Definition)}
		s.byCategory[def.Category] = b
		s.order = append(s.order, def.Category)
	}
	if _, dup := b.defs[def.ID]; dup {
		msg := "duplicate entry found in '" + source + "': '" + def.ID + "' already defined"
		if err := s.HandleDuplicate(msg); err != nil {
			return (&Error{Msg: msg}).In(def.Category, def.ID)
		}
		// last wins: the body is replaced, the position is kept
		b.defs[def.ID] = def
		return nil
	}
	b.order = append(b.order, def.ID)
	b.defs[def.ID] = def
	return nil
}

// HandleDuplicate applies the configured duplicate policy to a detected
// collision: an error when duplicates are forbidden, otherwise a recorded
// warning. The expander reuses it for name collisions between expanded
// records.
func (s *Store) HandleDuplicate(msg string) error {
	if !s.allowDuplicates {
		log.Error(log.CatLoader, msg)
		return &Error{Msg: msg}
	}
	log.Warn(log.CatLoader, msg)
	s.events.Publish(pubsub.DuplicateEvent, msg)
	return nil
}

// Get returns the definition stored under (category, id).
func (s *Store) Get(category, id string) (*Definition, bool) {
	b, ok := s.byCategory[category]
	if !ok {
		return nil, false
	}
	def, ok := b.defs[id]
	return def, ok
}

// All returns the definitions of one category in insertion order.
func (s *Store) All(category string) []*Definition {
	b, ok := s.byCategory[category]
	if !ok {
		return nil
	}
	out := make([]*Definition, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.defs[id])
	}
	return out
}

// Categories returns every stored category in first-seen order.
func (s *Store) Categories() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DefaultsSet returns a deep copy of the named defaults set body. The
// implicit "global" set resolves to an empty map when not defined; any
// other missing name is an error.
func (s *Store) DefaultsSet(name string) (*Map, error) {
	if def, ok := s.Get(CategoryDefaults, name); ok {
		return def.Body.Clone(), nil
	}
	if name != GlobalDefaults {
		return nil, &Error{
			Category: CategoryDefaults,
			Name:     name,
			Msg:      "unknown defaults set: '" + name + "'",
		}
	}
	return NewMap(), nil
}
