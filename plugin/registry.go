package plugin

import (
	"fmt"
	"sync"
)

// CandidateRegistry collects candidate units awaiting load. It is the
// service-owned holding area consumed exactly once by the resolver.
type CandidateRegistry struct {
	mu         sync.Mutex
	candidates map[Identifier]*Candidate
	order      []Identifier // insertion order, for deterministic draining
}

// NewCandidateRegistry creates an empty registry.
func NewCandidateRegistry() *CandidateRegistry {
	return &CandidateRegistry{
		candidates: make(map[Identifier]*Candidate),
	}
}

// Register adds a unit, failing if its identifier is already present. The
// failure is fatal for that unit only — already-registered candidates are
// untouched. On success, Register recursively registers the unit's expanded
// sub-unit candidates; a sub-unit registration failure does not roll back
// its parent or siblings already registered.
func (r *CandidateRegistry) Register(c *Candidate) error {
	if c == nil || c.Manifest == nil {
		return fmt.Errorf("plugin: cannot register a nil candidate or manifest")
	}
	if err := c.Manifest.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	id := c.Identifier()
	if _, exists := r.candidates[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("plugin: candidate %s: %w", id, ErrAlreadyRegistered)
	}
	r.candidates[id] = c
	r.order = append(r.order, id)
	r.mu.Unlock()

	var firstErr error
	for _, child := range c.expandSubPlugins() {
		if err := r.Register(child); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("plugin: registering sub-plugin of %s: %w", id, err)
		}
	}
	return firstErr
}

// Drain returns the full candidate set keyed by identifier. Intended to be
// called once, by the resolver.
func (r *CandidateRegistry) Drain() map[Identifier]*Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Identifier]*Candidate, len(r.candidates))
	for id, c := range r.candidates {
		out[id] = c
	}
	return out
}

// OrderedIdentifiers returns every registered identifier in insertion order,
// for callers that inspect the registry directly. The resolver does not use
// it: it sorts by identifier on each pass (see resolver.go).
func (r *CandidateRegistry) OrderedIdentifiers() []Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Identifier, len(r.order))
	copy(out, r.order)
	return out
}
