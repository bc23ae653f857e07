package contract

import (
	"sync"

	"github.com/luxfi/ids"

	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/wave"
)

// Registry holds decoded contracts and waves keyed by content hash, and
// resolves the (contract, wave) pair a board is built from. It is a
// process-context-scoped object, not a package-level singleton: callers
// own one Registry per runtime.
type Registry struct {
	mu        sync.RWMutex
	contracts map[ids.ID]*Contract
	waves     map[ids.ID]*wave.Wave
	waveText  map[ids.ID]string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: map[ids.ID]*Contract{},
		waves:     map[ids.ID]*wave.Wave{},
		waveText:  map[ids.ID]string{},
	}
}

// PutContract registers a contract under its own content hash.
func (r *Registry) PutContract(c *Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.Hash] = c
}

// Contract looks up a contract by hash.
func (r *Registry) Contract(h ids.ID) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[h]
	return c, ok
}

// PutWave registers a decoded wave under the content hash of its source
// text.
func (r *Registry) PutWave(text string, w *wave.Wave) ids.ID {
	h := wave.ContentHash(text)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waves[h] = w
	r.waveText[h] = text
	return h
}

// Wave looks up a decoded wave by hash.
func (r *Registry) Wave(h ids.ID) (*wave.Wave, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.waves[h]
	return w, ok
}

// Resolve fetches both halves of a board identity, failing with a
// CodeState error naming whichever hash did not resolve, per §6.4's
// "validation rejects executing one against the wrong hash pair".
func (r *Registry) Resolve(contractHash, waveHash ids.ID) (*Contract, *wave.Wave, error) {
	c, ok := r.Contract(contractHash)
	if !ok {
		return nil, nil, errctx.New(errctx.CodeState, "unknown contract hash %s", contractHash)
	}
	w, ok := r.Wave(waveHash)
	if !ok {
		return nil, nil, errctx.New(errctx.CodeState, "unknown wave hash %s", waveHash)
	}
	return c, w, nil
}
