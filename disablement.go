package stylegen

import "sync"

// Capability is a class of work a backend performs.
type Capability string

const (
	CapabilityTextStyle Capability = "text-style"
	CapabilityImage     Capability = "image"
)

type disablementKey struct {
	backend    BackendID
	capability Capability
}

// DisablementState remembers which (backend, capability) pairs hit a
// zero-quota condition. It is owned by one Orchestrator, shared by all of its
// requests, and monotonic: a pair never becomes enabled again.
type DisablementState struct {
	mu       sync.RWMutex
	disabled map[disablementKey]bool
}

// NewDisablementState returns an empty state.
func NewDisablementState() *DisablementState {
	return &DisablementState{disabled: make(map[disablementKey]bool)}
}

// Disable marks the pair as disabled. It reports whether the pair was newly
// disabled by this call.
func (s *DisablementState) Disable(backend BackendID, capability Capability) bool {
	key := disablementKey{backend: backend, capability: capability}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled[key] {
		return false
	}
	s.disabled[key] = true
	return true
}

// Disabled reports whether the pair has been disabled.
func (s *DisablementState) Disabled(backend BackendID, capability Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disabled[disablementKey{backend: backend, capability: capability}]
}
