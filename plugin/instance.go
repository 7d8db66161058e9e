package plugin

import "sync"

// Instance is the lifecycle-bearing object created from a Candidate. Its
// identity equals its manifest's identifier. Lifecycle transitions mutate
// the state field only; the manifest is never modified.
type Instance struct {
	Manifest   *Manifest
	identifier Identifier
	logger     Logger
	hook       Plugin

	mu    sync.RWMutex
	state State
}

func newInstance(m *Manifest, hook Plugin, logger Logger) *Instance {
	return &Instance{
		Manifest:   m,
		identifier: m.Identifier(),
		logger:     logger,
		hook:       hook,
		state:      StateNone,
	}
}

// Identifier returns the instance's identity.
func (i *Instance) Identifier() Identifier {
	return i.identifier
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}
