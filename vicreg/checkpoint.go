package vicreg

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/internal/logx"
)

// layerBlob is the gob-serializable form of one Layer's weights.
type layerBlob struct {
	WRows, WCols int
	WData        []float64
	BData        []float64
}

func blobFromLayer(l *Layer) layerBlob {
	rows, cols := l.W.Dims()
	return layerBlob{WRows: rows, WCols: cols, WData: denseRaw(l.W), BData: denseRaw(l.B)}
}

func denseRaw(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, m.At(r, c))
		}
	}
	return out
}

func layerFromBlob(b layerBlob, actName string) *Layer {
	w := mat.NewDense(b.WRows, b.WCols, b.WData)
	bias := mat.NewDense(1, b.WCols, b.BData)
	act, actGrad := activationByName(actName)
	l := &Layer{W: w, B: bias, actFn: act, actGradFn: actGrad}
	l.Zero()
	return l
}

func encoderBlob(e *Encoder) []layerBlob {
	out := make([]layerBlob, 0, 2+len(e.Blocks))
	out = append(out, blobFromLayer(e.Expansion), blobFromLayer(e.Fusion))
	for _, l := range e.Blocks {
		out = append(out, blobFromLayer(l))
	}
	return out
}

func encoderFromBlob(blobs []layerBlob) *Encoder {
	e := &Encoder{
		Expansion: layerFromBlob(blobs[0], "ReLU"),
		Fusion:    layerFromBlob(blobs[1], "ReLU"),
	}
	for _, b := range blobs[2:] {
		e.Blocks = append(e.Blocks, layerFromBlob(b, "ReLU"))
	}
	e.D, e.Ce = e.Expansion.W.Dims()
	_, e.Ff = e.Fusion.W.Dims()
	if len(e.Blocks) > 0 {
		_, e.E = e.Blocks[len(e.Blocks)-1].W.Dims()
	} else {
		e.E = e.Ff
	}
	return e
}

func projectorBlob(p *Projector) []layerBlob {
	out := make([]layerBlob, 0, len(p.Layers))
	for _, l := range p.Layers {
		out = append(out, blobFromLayer(l))
	}
	return out
}

func projectorFromBlob(blobs []layerBlob, norm, activation string) *Projector {
	p := &Projector{Norm: norm}
	for i, b := range blobs {
		act := activation
		if i == len(blobs)-1 {
			act = ""
		}
		p.Layers = append(p.Layers, layerFromBlob(b, act))
	}
	return p
}

// AdamWState is the exported, gob-serializable snapshot of an AdamW
// optimizer's first/second moment buffers.
type AdamWState struct {
	T    int
	M, V []layerBlob
}

func adamWStateOf(opt Optimizer) (AdamWState, bool) {
	a, ok := opt.(*adamLike)
	if !ok || !a.decoupledDecay {
		return AdamWState{}, false
	}
	st := AdamWState{T: a.t}
	for i := range a.m {
		if a.m[i] == nil {
			continue
		}
		rows, cols := a.m[i].Dims()
		st.M = append(st.M, layerBlob{WRows: rows, WCols: cols, WData: denseRaw(a.m[i])})
		st.V = append(st.V, layerBlob{WRows: rows, WCols: cols, WData: denseRaw(a.v[i])})
	}
	return st, true
}

// archive is the on-disk checkpoint's gob-encoded payload, matching the
// named nested-blob layout: encoder_base, encoder_swa, projector, adamw,
// and meta/* scalars.
type archive struct {
	EncoderBase []layerBlob
	EncoderSWA  []layerBlob
	HasSWA      bool
	Projector   []layerBlob
	HasAdamW    bool
	AdamW       AdamWState

	MetaC, MetaT, MetaD              int64
	MetaEncodingDims                 int64
	MetaChannelExpansionDim          int64
	MetaFusedFeatureDim              int64
	MetaEncoderHiddenDims            []int64
	MetaEncoderDepth                 int64
	MetaOptimizerThresholdReset      bool
	MetaEnableBufferAveraging        bool
	MetaProjectorMLPSpec             string
	MetaDtype                        string
	MetaDevice                       string
	MetaJKComponentName              string
	MetaProjectorNorm                string
	MetaProjectorActivation          string
}

// Save persists the model to path: encoder, SWA encoder (if enabled),
// projector, optimizer state, and constructor-relevant meta, gob-encoded
// then zstd-compressed and written atomically via a temp file + rename.
func (m *Model) Save(path string) error {
	a := archive{
		EncoderBase:              encoderBlob(m.Encoder),
		Projector:                projectorBlob(m.Projector),
		MetaC:                    int64(m.C),
		MetaT:                    int64(m.T),
		MetaD:                    int64(m.D),
		MetaChannelExpansionDim:  int64(m.Encoder.Ce),
		MetaFusedFeatureDim:      int64(m.Encoder.Ff),
		MetaEncoderHiddenDims:    m.Spec.Encoder.HiddenDims,
		MetaEncoderDepth:         m.Spec.Encoder.Depth,
		MetaEncodingDims:          int64(m.Encoder.E),
		MetaEnableBufferAveraging: m.Spec.Encoder.EnableBufferAvg,
		MetaProjectorMLPSpec:      m.Spec.Projector.WidthSpec,
		MetaProjectorNorm:        m.Spec.Projector.Norm,
		MetaProjectorActivation:  m.Spec.Projector.Activation,
		MetaDtype:                m.Spec.Encoder.Dtype,
		MetaDevice:               "cpu",
		MetaJKComponentName:      m.ComponentName,
	}
	if m.SWA != nil {
		a.HasSWA = true
		a.EncoderSWA = encoderBlob(m.SWA.Average)
	}
	if st, ok := adamWStateOf(m.Optimizer); ok {
		a.HasAdamW = true
		a.AdamW = st
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return errctx.Wrap(errctx.CodeIO, err, "encoding checkpoint archive")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return errctx.Wrap(errctx.CodeIO, err, "creating checkpoint temp file")
	}
	tmpPath := tmp.Name()
	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errctx.Wrap(errctx.CodeIO, err, "opening zstd writer")
	}
	if _, err := zw.Write(buf.Bytes()); err != nil {
		zw.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return errctx.Wrap(errctx.CodeIO, err, "writing compressed checkpoint")
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errctx.Wrap(errctx.CodeIO, err, "closing zstd writer")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errctx.Wrap(errctx.CodeIO, err, "closing checkpoint temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errctx.Wrap(errctx.CodeIO, err, "renaming checkpoint into place")
	}
	return nil
}

// Load reconstructs a Model from path with identical shape to what Save
// wrote. Missing or incompatible optimizer state is degraded to a warning
// logged via log (when log is non-nil) and training continues with a
// freshly initialized optimizer of the same spec.
func Load(path string, spec *Spec, log logx.Logger) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "opening checkpoint %q", path)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "opening zstd reader")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading checkpoint payload")
	}

	var a archive
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&a); err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "decoding checkpoint archive")
	}

	enc := encoderFromBlob(a.EncoderBase)
	enc.C = int(a.MetaC)
	proj := projectorFromBlob(a.Projector, a.MetaProjectorNorm, a.MetaProjectorActivation)

	loss, err := BuildLoss(spec.Loss)
	if err != nil {
		return nil, err
	}
	opt, err := BuildOptimizer(spec.Optimizer)
	if err != nil {
		return nil, err
	}
	if a.HasAdamW {
		if al, ok := opt.(*adamLike); ok && al.decoupledDecay {
			restoreAdamWState(al, a.AdamW)
		} else if log != nil {
			log.Warn("checkpoint optimizer state is AdamW but configured optimizer is not; discarding saved state")
		}
	} else if log != nil {
		log.Warn("checkpoint carries no optimizer state; continuing with a freshly initialized optimizer")
	}
	var sched Scheduler
	if spec.Scheduler.Type != "" {
		sched, err = BuildScheduler(spec.Scheduler)
		if err != nil {
			return nil, err
		}
	}

	m := &Model{
		ComponentName: a.MetaJKComponentName,
		Spec:          spec,
		C:             int(a.MetaC), T: int(a.MetaT), D: int(a.MetaD),
		Encoder:   enc,
		Projector: proj,
		Loss:      loss,
		Optimizer: opt,
		Scheduler: sched,
	}
	if a.HasSWA {
		swaEnc := encoderFromBlob(a.EncoderSWA)
		swaEnc.C = int(a.MetaC)
		m.SWA = &SWA{Base: enc, Average: swaEnc}
	}
	return m, nil
}

func restoreAdamWState(a *adamLike, st AdamWState) {
	a.t = st.T
	a.m = make([]*mat.Dense, len(st.M))
	a.v = make([]*mat.Dense, len(st.V))
	for i := range st.M {
		a.m[i] = mat.NewDense(st.M[i].WRows, st.M[i].WCols, st.M[i].WData)
		a.v[i] = mat.NewDense(st.V[i].WRows, st.V[i].WCols, st.V[i].WData)
	}
}
