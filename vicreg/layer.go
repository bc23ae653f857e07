package vicreg

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation is a pointwise nonlinearity plus its derivative, applied to a
// layer's pre-activation output.
type Activation func(x float64) float64

func reluAct(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func reluGrad(x float64) float64 {
	if x < 0 {
		return 0
	}
	return 1
}

func siluAct(x float64) float64 {
	return x / (1 + math.Exp(-x))
}

func siluGrad(x float64) float64 {
	s := 1 / (1 + math.Exp(-x))
	return s + x*s*(1-s)
}

func activationByName(name string) (Activation, Activation) {
	switch name {
	case "SiLU":
		return siluAct, siluGrad
	default:
		return reluAct, reluGrad
	}
}

// LayerCtx holds one Forward call's intermediates, so the same shared-weight
// Layer can be run forward for multiple independent views (e.g. VICReg's
// two augmented views) before any of them is backpropagated.
type LayerCtx struct {
	in     *mat.Dense
	preAct *mat.Dense
}

// Layer is a dense affine map y = x@W + b followed by a pointwise
// activation, with a manual backward pass used by the training step since
// no autodiff framework is wired in. Gradients accumulate across calls to
// Backward until Zero is called, so gradients from multiple views of the
// same batch sum correctly before an optimizer step.
type Layer struct {
	W, B         *mat.Dense // W: [in,out], B: [1,out]
	actFn        Activation
	actGradFn    Activation
	GradW, GradB *mat.Dense
}

// NewLayer builds a layer with small random weights, grounded on the
// standard fan-in scaled initialization; rng is the caller's seeded source.
func NewLayer(in, out int, actName string, rng *rand.Rand) *Layer {
	w := mat.NewDense(in, out, nil)
	scale := 1.0 / math.Sqrt(float64(in))
	w.Apply(func(_, _ int, _ float64) float64 { return (rng.Float64()*2 - 1) * scale }, w)
	b := mat.NewDense(1, out, nil)
	act, actGrad := activationByName(actName)
	l := &Layer{W: w, B: b, actFn: act, actGradFn: actGrad}
	l.Zero()
	return l
}

// Zero resets accumulated gradients to zero ahead of a fresh training step.
func (l *Layer) Zero() {
	in, out := l.W.Dims()
	l.GradW = mat.NewDense(in, out, nil)
	l.GradB = mat.NewDense(1, out, nil)
}

// Forward computes y = act(x@W + b broadcast), returning a context Backward
// needs for this specific call.
func (l *Layer) Forward(x *mat.Dense) (*mat.Dense, *LayerCtx) {
	n, _ := x.Dims()
	_, out := l.W.Dims()
	pre := mat.NewDense(n, out, nil)
	pre.Mul(x, l.W)
	for r := 0; r < n; r++ {
		for c := 0; c < out; c++ {
			pre.Set(r, c, pre.At(r, c)+l.B.At(0, c))
		}
	}
	y := mat.NewDense(n, out, nil)
	y.Apply(func(r, c int, v float64) float64 { return l.actFn(v) }, pre)
	return y, &LayerCtx{in: x, preAct: pre}
}

// Backward propagates gradOut (dL/dy) back to dL/dx for the call that
// produced ctx, accumulating dL/dW and dL/dB onto the layer's running
// gradients.
func (l *Layer) Backward(gradOut *mat.Dense, ctx *LayerCtx) *mat.Dense {
	n, out := gradOut.Dims()
	dPre := mat.NewDense(n, out, nil)
	dPre.Apply(func(r, c int, v float64) float64 {
		return v * l.actGradFn(ctx.preAct.At(r, c))
	}, gradOut)

	in, _ := l.W.Dims()
	gradW := mat.NewDense(in, out, nil)
	gradW.Mul(ctx.in.T(), dPre)
	l.GradW.Add(l.GradW, gradW)

	for c := 0; c < out; c++ {
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += dPre.At(r, c)
		}
		l.GradB.Set(0, c, l.GradB.At(0, c)+sum)
	}

	gradIn := mat.NewDense(n, in, nil)
	gradIn.Mul(dPre, l.W.T())
	return gradIn
}

// Params returns the layer's trainable matrices paired with their
// corresponding gradients, for handing to an Optimizer.
func (l *Layer) Params() ([]*mat.Dense, []*mat.Dense) {
	return []*mat.Dense{l.W, l.B}, []*mat.Dense{l.GradW, l.GradB}
}
