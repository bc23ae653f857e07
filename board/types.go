// Package board implements the Board Builder and Board Executor: the
// instantiation of a validated circuit+wave pair into typed, wired nodes,
// and the single-threaded cooperative event loop that drives samples from
// source through wikimyei to sink.
//
// Node kinds are a tagged union rather than a shared base type: Node is a
// capability set {Directives, Step, TypeName, InstanceName, ID} satisfied
// independently by sourceNode, wikimyeiNode, and sinkNode. A caller walking
// a BoardContract's nodes operates over the interface; there is no
// inheritance hierarchy to switch on.
package board

import (
	"sync/atomic"
	"time"

	"github.com/cuwacunu/tsiemene/observation"
	"github.com/cuwacunu/tsiemene/typeregistry"
)

// Signal is the payload carried by one Event along a hop.
type Signal struct {
	Kind  typeregistry.Kind
	Batch *observation.Batch // payload:tensor
	Loss  float64            // loss:tensor
	Text  string              // meta:str, e.g. "metric=0.1234"

	EndOfBatch bool // a Source has completed one batch boundary
	EndOfEpoch bool // a Source has completed MAX_BATCHES_PER_EPOCH batches
	Done       bool // a Source has exhausted every configured epoch
}

// Event is one (from, to, directive, signal) item on the executor's queues.
type Event struct {
	From      string
	To        string
	Directive string
	Signal    Signal
}

// OutSignal is one outgoing directive+signal a Node.Step produces; the
// board (not the node) fans it out to every hop wired from that directive,
// per §3.6's "nodes own their internal state, the board owns the topology".
type OutSignal struct {
	Directive string
	Signal    Signal
}

// Node is the capability set every board node kind satisfies.
type Node interface {
	TypeName() string
	InstanceName() string
	ID() string
	Directives() []typeregistry.Directive
	Step(in Event) ([]OutSignal, error)
}

// WaveCursor is the mutable progress marker carried alongside a wave's
// static configuration: seed_wave per §4.7 step 5.
type WaveCursor struct {
	Episode   uint64
	Batch     uint64
	SpanBegin time.Time
	SpanEnd   time.Time
}

// Ingress is the initial directive + raw source command recorded as
// seed_ingress per §4.7 step 5.
type Ingress struct {
	Directive     string
	SourceCommand string
}

// CancelToken is a caller-owned cooperative cancellation flag, checked by
// the executor once per step boundary; it never forces termination.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a token in the not-cancelled state.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel requests that the executor stop after finishing its current step.
func (t *CancelToken) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool { return t.cancelled.Load() }
