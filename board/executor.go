package board

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/cuwacunu/tsiemene/internal/boardcfg"
	"github.com/cuwacunu/tsiemene/internal/boardmetrics"
	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/internal/logx"
)

// epochAdvancer is satisfied by wikimyeiNode; the executor type-asserts
// into it once a sink has reported an epoch-boundary metric.
type epochAdvancer interface {
	AdvanceEpoch(metric float64)
}

// Executor drives one BoardContract's event queues to completion: a
// single-threaded, cooperative scheduler in the same params+state shape as
// the teacher's chain Engine, with a private execState instead of a
// chainState.
type Executor struct {
	budget  boardcfg.ExecutionBudget
	metrics *boardmetrics.Registry
	log     logx.Logger

	mu    sync.Mutex
	state *execState
}

// execState tracks one run's mutable progress, mirroring the teacher's
// chainState: private fields, accessed only through methods.
type execState struct {
	stepsTaken      int64
	eventsProcessed int64
	running         bool
}

func (s *execState) StepsTaken() int64      { return s.stepsTaken }
func (s *execState) EventsProcessed() int64 { return s.eventsProcessed }
func (s *execState) Running() bool          { return s.running }

// NewExecutor builds an Executor bound to budget, reporting through metrics
// (may be nil) and log (may be nil, defaulting to a no-op logger).
func NewExecutor(budget boardcfg.ExecutionBudget, metrics *boardmetrics.Registry, log logx.Logger) *Executor {
	if log == nil {
		log = logx.NewNoOp()
	}
	return &Executor{
		budget:  budget,
		metrics: metrics,
		log:     log,
		state:   &execState{},
	}
}

// State returns the executor's current runtime state.
func (e *Executor) State() *execState {
	return e.state
}

// queue is one node's FIFO of pending events.
type queue struct {
	items []Event
}

func (q *queue) push(ev Event)     { q.items = append(q.items, ev) }
func (q *queue) empty() bool       { return len(q.items) == 0 }
func (q *queue) pop() (Event, bool) {
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// Run drives bc's event loop to completion: FIFO within a node, round-robin
// across ready nodes, suspension only at Step boundaries. cancel is checked
// once per step; it never forces termination mid-step. A node failure
// aborts the run, returning the number of events processed so far alongside
// the error. The run ends cleanly once every queue drains and the source
// has reported Done.
func (e *Executor) Run(ctx context.Context, bc *BoardContract, cancel *CancelToken) (int64, error) {
	if err := e.budget.Valid(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	if e.state.running {
		e.mu.Unlock()
		return 0, errctx.New(errctx.CodeState, "executor is already running")
	}
	e.state.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.state.running = false
		e.mu.Unlock()
	}()

	queues := make(map[string]*queue, len(bc.Order))
	for _, alias := range bc.Order {
		queues[alias] = &queue{}
	}

	sourceAlias := bc.rootAlias
	sourceDone := false
	if sourceAlias != "" {
		queues[sourceAlias].push(Event{To: sourceAlias, Directive: "payload"})
	}

	epochPending := map[string]bool{}

	rrIdx := 0
	for {
		if cancel != nil && cancel.Cancelled() {
			return e.state.eventsProcessed, nil
		}
		if e.state.stepsTaken >= e.budget.MaxSteps {
			return e.state.eventsProcessed, errctx.New(errctx.CodeState, "executor exceeded max steps %d", e.budget.MaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return e.state.eventsProcessed, err
		}

		alias, ev, ok := nextReady(bc.Order, queues, &rrIdx)
		if !ok {
			if !sourceDone && sourceAlias != "" {
				queues[sourceAlias].push(Event{To: sourceAlias, Directive: "payload"})
				continue
			}
			return e.state.eventsProcessed, nil
		}

		node, ok := bc.Nodes[alias]
		if !ok {
			return e.state.eventsProcessed, errctx.New(errctx.CodeState, "event routed to unknown alias %q", alias)
		}

		outs, err := node.Step(ev)
		e.state.stepsTaken++
		e.state.eventsProcessed++
		if e.metrics != nil {
			e.metrics.Averager(bc.Name+"_events", "events processed per step").Observe(float64(e.state.eventsProcessed))
		}
		if err != nil {
			return e.state.eventsProcessed, errctx.Wrap(errctx.CodeState, err, "node %q step failed", alias)
		}

		if alias == sourceAlias && ev.Directive == "payload" {
			for _, o := range outs {
				if o.Signal.Done {
					sourceDone = true
				}
			}
		}

		for _, o := range outs {
			if o.Directive == "payload" && o.Signal.EndOfEpoch {
				epochPending[alias] = true
			}
			for _, hop := range bc.HopsFrom[alias] {
				if hop.FromDirective != o.Directive {
					continue
				}
				target := queues[hop.ToAlias]
				if target == nil {
					continue
				}
				target.push(Event{From: alias, To: hop.ToAlias, Directive: hop.ToDirective, Signal: o.Signal})
			}
		}

		if ev.Directive == "meta" && ev.From != "" && epochPending[ev.From] {
			if metric, ok := parseMetric(ev.Signal.Text); ok {
				if adv, ok := bc.Nodes[ev.From].(epochAdvancer); ok {
					adv.AdvanceEpoch(metric)
				}
				epochPending[ev.From] = false
			}
		}
	}
}

// nextReady scans order starting at *rr for the next alias with a
// non-empty queue, advancing *rr past it so the next call resumes
// round-robin from there.
func nextReady(order []string, queues map[string]*queue, rr *int) (string, Event, bool) {
	n := len(order)
	for i := 0; i < n; i++ {
		idx := (*rr + i) % n
		alias := order[idx]
		q := queues[alias]
		if q != nil && !q.empty() {
			ev, _ := q.pop()
			*rr = (idx + 1) % n
			return alias, ev, true
		}
	}
	return "", Event{}, false
}

// parseMetric extracts the float value from a "metric=<float>" meta payload.
func parseMetric(text string) (float64, bool) {
	const prefix = "metric="
	if !strings.HasPrefix(text, prefix) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(text, prefix), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
