// Package runtimectx provides the explicit context object threaded through
// the decoders, the board builder, and the executor. It replaces every
// process-wide singleton (hash-name registry, component-override table)
// with fields on one object owned by the caller, per the Design Notes'
// "no file-scope mutable state" requirement.
package runtimectx

import (
	"sync"

	"github.com/cuwacunu/tsiemene/internal/logx"
)

// RuntimeContext owns the canonical-path hash-name registry and the
// contract-local training-setup override map for one process lifetime (or
// one test, in unit tests). It is safe for concurrent use.
type RuntimeContext struct {
	mu       sync.RWMutex
	names    map[string]string // canonical identity -> mnemonic name
	reserved map[string]bool   // mnemonic name -> taken

	overridesMu sync.RWMutex
	overrides   map[overrideKey]string // (contract_hash, component_name) -> profile_id

	Log logx.Logger
}

type overrideKey struct {
	contractHash  string
	componentName string
}

// New builds an empty RuntimeContext. Pass logx.NewNoOp() in tests.
func New(log logx.Logger) *RuntimeContext {
	if log == nil {
		log = logx.NewNoOp()
	}
	return &RuntimeContext{
		names:     make(map[string]string),
		reserved:  make(map[string]bool),
		overrides: make(map[overrideKey]string),
		Log:       log,
	}
}

// LookupName returns the mnemonic already assigned to identity, if any.
func (rc *RuntimeContext) LookupName(identity string) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	n, ok := rc.names[identity]
	return n, ok
}

// AssignName records that identity resolves to name, and marks name taken.
// It is a no-op (returning the existing assignment) if identity was
// already assigned, preserving §8's determinism property.
func (rc *RuntimeContext) AssignName(identity, name string) string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if existing, ok := rc.names[identity]; ok {
		return existing
	}
	rc.names[identity] = name
	rc.reserved[name] = true
	return name
}

// NameTaken reports whether name has already been assigned to some identity.
func (rc *RuntimeContext) NameTaken(name string) bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.reserved[name]
}

// SetOverride records a wave-time profile override for a component within
// a contract, replacing the original's global mutable registry with a
// contract-scoped map that is destroyed along with the RuntimeContext.
func (rc *RuntimeContext) SetOverride(contractHash, componentName, profileID string) {
	rc.overridesMu.Lock()
	defer rc.overridesMu.Unlock()
	rc.overrides[overrideKey{contractHash, componentName}] = profileID
}

// Override returns the overridden profile ID for a component, if any.
func (rc *RuntimeContext) Override(contractHash, componentName string) (string, bool) {
	rc.overridesMu.RLock()
	defer rc.overridesMu.RUnlock()
	p, ok := rc.overrides[overrideKey{contractHash, componentName}]
	return p, ok
}
