package vicreg

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// SWA is a Stochastic Weight Average wrapper around an encoder: it holds a
// running-average copy of the base encoder's parameters, updated
// periodically rather than every step.
type SWA struct {
	Base    *Encoder
	Average *Encoder
	updates int
}

// NewSWA builds an averaged copy of base sharing its architecture.
func NewSWA(base *Encoder) *SWA {
	avg := &Encoder{C: base.C, D: base.D, Ce: base.Ce, Ff: base.Ff, E: base.E}
	avg.Expansion = cloneLayer(base.Expansion)
	avg.Fusion = cloneLayer(base.Fusion)
	for _, l := range base.Blocks {
		avg.Blocks = append(avg.Blocks, cloneLayer(l))
	}
	return &SWA{Base: base, Average: avg}
}

func cloneLayer(l *Layer) *Layer {
	return &Layer{
		W: mat.DenseCopyOf(l.W), B: mat.DenseCopyOf(l.B),
		actFn: l.actFn, actGradFn: l.actGradFn,
	}
}

// Update folds the base encoder's current parameters into the running
// average: avg = (avg*n + base) / (n+1).
func (s *SWA) Update() {
	s.updates++
	n := float64(s.updates)
	baseLayers := s.Base.Layers()
	avgLayers := s.Average.Layers()
	for i, avg := range avgLayers {
		base := baseLayers[i]
		avg.W.Scale(n/(n+1), avg.W)
		avg.W.Add(avg.W, scaled(base.W, 1/(n+1)))
		avg.B.Scale(n/(n+1), avg.B)
		avg.B.Add(avg.B, scaled(base.B, 1/(n+1)))
	}
}

// Model is the fully instantiated VICReg component: encoder, SWA wrapper,
// projector, loss, optimizer, and scheduler, bound to a fixed (C,T,D) shape
// and a contract-scoped runtime component name.
type Model struct {
	ComponentName string
	Spec          *Spec

	C, T, D int
	Encoder *Encoder
	SWA     *SWA

	Projector *Projector
	Loss      Loss
	Optimizer Optimizer
	Scheduler Scheduler
}

// Instantiate turns a pure Spec plus runtime shape into a live Model,
// following the two-stage "spec, then instantiate(spec, ctx)" split: the
// constructor itself does no JKSPEC reading.
func Instantiate(spec *Spec, runtimeComponentName string, c, t, d int, rng *rand.Rand) (*Model, error) {
	enc, err := NewEncoder(spec.Encoder, c, d, rng)
	if err != nil {
		return nil, err
	}
	if int(spec.Projector.Widths[0]) != enc.E {
		return nil, errctx.New(errctx.CodeSchema, "projector_mlp_spec first width %d must equal encoder embedding dim %d", spec.Projector.Widths[0], enc.E)
	}
	proj := NewProjector(spec.Projector, rng)

	loss, err := BuildLoss(spec.Loss)
	if err != nil {
		return nil, err
	}
	opt, err := BuildOptimizer(spec.Optimizer)
	if err != nil {
		return nil, err
	}
	var sched Scheduler
	if spec.Scheduler.Type != "" {
		sched, err = BuildScheduler(spec.Scheduler)
		if err != nil {
			return nil, err
		}
	}

	m := &Model{
		ComponentName: runtimeComponentName,
		Spec:          spec,
		C:             c, T: t, D: d,
		Encoder:   enc,
		Projector: proj,
		Loss:      loss,
		Optimizer: opt,
		Scheduler: sched,
	}
	if spec.Encoder.EnableBufferAvg {
		m.SWA = NewSWA(enc)
	}
	return m, nil
}

// lastTimestep extracts each batch row's value at its last timestep from a
// [B*T,E] matrix, producing [B,E]; returns per-row validity from mask.
func lastTimestep(h *mat.Dense, mask []bool, b, t int) (*mat.Dense, []bool) {
	_, e := h.Dims()
	out := mat.NewDense(b, e, nil)
	valid := make([]bool, b)
	for bi := 0; bi < b; bi++ {
		row := bi*t + (t - 1)
		for c := 0; c < e; c++ {
			out.Set(bi, c, h.At(row, c))
		}
		valid[bi] = mask[row]
	}
	return out, valid
}

// EncodeProject runs the encoder then the projector over one augmented
// view, returning the final [B,Pout] embedding, per-row validity, and the
// contexts Backward needs for this call.
func (m *Model) EncodeProject(x [][][][]float64, mask [][][]bool) (*mat.Dense, []bool, *EncoderCtx, *ProjectorCtx) {
	h, outMask, encCtx := m.Encoder.Forward(x, mask)
	last, valid := lastTimestep(h, outMask, len(x), m.T)
	z, projCtx := m.Projector.Forward(last)
	return z, valid, encCtx, projCtx
}

// TrainStep runs one VICReg training step on two augmented views (already
// produced by the augmentation engine from the same source batch):
// encode+project both through the same shared-weight encoder/projector,
// compute the loss on jointly-valid rows, backprop both views' gradients
// into the shared parameters, and step the optimizer and any per-batch
// scheduler.
func (m *Model) TrainStep(xa, xb [][][][]float64, maskA, maskB [][][]bool) (float64, error) {
	m.Encoder.ZeroGrad()
	m.Projector.ZeroGrad()

	za, validA, encCtxA, projCtxA := m.EncodeProject(xa, maskA)
	zb, validB, encCtxB, projCtxB := m.EncodeProject(xb, maskB)

	n, _ := za.Dims()
	var rows []int
	for i := 0; i < n; i++ {
		if validA[i] && validB[i] {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return 0, errctx.New(errctx.CodeState, "TrainStep found no jointly-valid rows in this batch")
	}

	zaValid := selectRows(za, rows)
	zbValid := selectRows(zb, rows)
	value, gradAValid, gradBValid := m.Loss.Compute(zaValid, zbValid)

	gradA := scatterRows(gradAValid, rows, n)
	gradB := scatterRows(gradBValid, rows, n)

	projGradA := m.Projector.Backward(gradA, projCtxA)
	projGradB := m.Projector.Backward(gradB, projCtxB)

	encGradA := scatterLastTimestep(projGradA, len(xa), m.T, m.Encoder.E)
	encGradB := scatterLastTimestep(projGradB, len(xb), m.T, m.Encoder.E)
	m.Encoder.Backward(encGradA, encCtxA)
	m.Encoder.Backward(encGradB, encCtxB)

	params, grads := collectGrads(m.Encoder, m.Projector)
	m.Optimizer.Step(params, grads)
	if m.Scheduler != nil && m.Scheduler.Mode() == PerBatch {
		m.Scheduler.Step(m.Optimizer, value)
	}
	if m.SWA != nil {
		m.SWA.Update()
	}
	return value, nil
}

// AdvanceEpoch steps any per-epoch scheduler; metric is ignored unless the
// scheduler's Mode is PerEpochWithMetric.
func (m *Model) AdvanceEpoch(metric float64) {
	if m.Scheduler == nil {
		return
	}
	if m.Scheduler.Mode() == PerEpoch || m.Scheduler.Mode() == PerEpochWithMetric {
		m.Scheduler.Step(m.Optimizer, metric)
	}
}

func selectRows(x *mat.Dense, rows []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, x.At(r, j))
		}
	}
	return out
}

func scatterRows(x *mat.Dense, rows []int, totalRows int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(totalRows, c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(r, j, x.At(i, j))
		}
	}
	return out
}

// scatterLastTimestep expands a [B,E] gradient into the [B*T,E] layout the
// encoder's stacked blocks expect, placing each batch row's gradient at
// its last timestep and zero elsewhere.
func scatterLastTimestep(g *mat.Dense, b, t, e int) *mat.Dense {
	out := mat.NewDense(b*t, e, nil)
	for bi := 0; bi < b; bi++ {
		row := bi*t + (t - 1)
		for c := 0; c < e; c++ {
			out.Set(row, c, g.At(bi, c))
		}
	}
	return out
}

func collectGrads(enc *Encoder, proj *Projector) ([]*mat.Dense, []*mat.Dense) {
	var params, grads []*mat.Dense
	for _, l := range enc.Layers() {
		p, g := l.Params()
		params = append(params, p...)
		grads = append(grads, g...)
	}
	for _, l := range proj.Layers {
		p, g := l.Params()
		params = append(params, p...)
		grads = append(grads, g...)
	}
	return params, grads
}
