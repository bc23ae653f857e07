// Package boardmetrics exposes Prometheus-backed counters/gauges for the
// board executor and trainer, in the Averager shape used by the teacher's
// consensus engine metrics.
package boardmetrics

import (
	"sync"

	"github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Averager observes a running stream of float samples and reports their
// running mean, mirroring the teacher's metrics.Averager contract.
type Averager interface {
	Observe(v float64)
	Read() float64
}

type averager struct {
	mu        sync.RWMutex
	sum       float64
	count     float64
	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

// NewAverager registers name/help with reg and returns an Averager, or an
// error if registration fails.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	a := &averager{
		promCount: prometheus.NewCounter(prometheus.CounterOpts{Name: name + "_count", Help: help + " (count)"}),
		promSum:   prometheus.NewGauge(prometheus.GaugeOpts{Name: name + "_sum", Help: help + " (sum)"}),
	}
	if err := reg.Register(a.promCount); err != nil {
		return nil, errctx.Wrap(errctx.CodeState, err, "register averager count metric %s", name)
	}
	if err := reg.Register(a.promSum); err != nil {
		return nil, errctx.Wrap(errctx.CodeState, err, "register averager sum metric %s", name)
	}
	return a, nil
}

// NewAveragerWithErrs is like NewAverager but folds a registration failure
// into errs instead of returning it, so callers can register a batch of
// metrics and check for any failure once at the end.
func NewAveragerWithErrs(name, help string, reg prometheus.Registerer, errs *errctx.Errs) Averager {
	a, err := NewAverager(name, help, reg)
	if err != nil {
		errs.Add(err)
		return &averager{}
	}
	return a
}

func (a *averager) Observe(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum += v
	a.count++
	if a.promCount != nil {
		a.promCount.Inc()
	}
	if a.promSum != nil {
		a.promSum.Set(a.sum)
	}
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// BoardGatherer is the narrow registration surface a Board exposes to an
// embedding process, mirroring the teacher's runtime.Register(name,
// metric.Gatherer) pattern.
type BoardGatherer interface {
	metric.Gatherer
}

// Registry holds named Averagers for a single board contract's executor:
// per-sink loss and events-processed averagers.
type Registry struct {
	mu        sync.RWMutex
	averagers map[string]Averager
	reg       prometheus.Registerer
}

// NewRegistry builds a Registry backed by reg (use prometheus.NewRegistry()
// for an isolated test instance).
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{averagers: make(map[string]Averager), reg: reg}
}

// Averager returns (creating if needed) the named Averager.
func (r *Registry) Averager(name, help string) Averager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.averagers[name]; ok {
		return a
	}
	errs := &errctx.Errs{}
	a := NewAveragerWithErrs(name, help, r.reg, errs)
	r.averagers[name] = a
	return a
}
