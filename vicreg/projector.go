package vicreg

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Projector is the MLP described by a hyphen-separated width spec, with a
// configurable norm applied once to the input rows before the first layer;
// no norm is applied between layers.
type Projector struct {
	Layers []*Layer
	Norm   string
}

// NewProjector builds a projector whose first width must equal the
// encoder's embedding dimension E; later widths are the MLP's hidden and
// output dims. The last layer has no activation (linear projection head).
func NewProjector(spec ProjectorSpec, rng *rand.Rand) *Projector {
	p := &Projector{Norm: spec.Norm}
	for i := 0; i+1 < len(spec.Widths); i++ {
		act := spec.Activation
		if i == len(spec.Widths)-2 {
			act = "" // linear head, no activation on the last layer
		}
		p.Layers = append(p.Layers, NewLayer(int(spec.Widths[i]), int(spec.Widths[i+1]), act, rng))
	}
	return p
}

// applyNorm normalizes each row of x, per Norm. This is a parameter-free
// transform with no learnable affine; Backward treats it as a
// straight-through identity (the encoder still receives gradient, just not
// one that accounts for the normalization's own Jacobian).
func (p *Projector) applyNorm(x *mat.Dense) *mat.Dense {
	if p.Norm == "" || p.Norm == "None" {
		return x
	}
	n, e := x.Dims()
	out := mat.NewDense(n, e, nil)
	switch p.Norm {
	case "LayerNorm":
		for r := 0; r < n; r++ {
			mean, variance := rowMoments(x, r, e)
			std := math.Sqrt(variance + 1e-5)
			for c := 0; c < e; c++ {
				out.Set(r, c, (x.At(r, c)-mean)/std)
			}
		}
	case "BatchNorm1d":
		for c := 0; c < e; c++ {
			mean, variance := colMoments(x, c, n)
			std := math.Sqrt(variance + 1e-5)
			for r := 0; r < n; r++ {
				out.Set(r, c, (x.At(r, c)-mean)/std)
			}
		}
	default:
		return x
	}
	return out
}

func rowMoments(x *mat.Dense, r, e int) (float64, float64) {
	sum := 0.0
	for c := 0; c < e; c++ {
		sum += x.At(r, c)
	}
	mean := sum / float64(e)
	varSum := 0.0
	for c := 0; c < e; c++ {
		d := x.At(r, c) - mean
		varSum += d * d
	}
	return mean, varSum / float64(e)
}

func colMoments(x *mat.Dense, c, n int) (float64, float64) {
	sum := 0.0
	for r := 0; r < n; r++ {
		sum += x.At(r, c)
	}
	mean := sum / float64(n)
	varSum := 0.0
	for r := 0; r < n; r++ {
		d := x.At(r, c) - mean
		varSum += d * d
	}
	return mean, varSum / float64(n)
}

// ProjectorCtx holds one Forward call's intermediates, so both augmented
// views can run forward before either is backpropagated.
type ProjectorCtx struct {
	layerCtx []*LayerCtx
}

// Forward runs x (shape [N,E]) through the MLP.
func (p *Projector) Forward(x *mat.Dense) (*mat.Dense, *ProjectorCtx) {
	h := p.applyNorm(x)
	ctx := &ProjectorCtx{}
	for _, l := range p.Layers {
		var lc *LayerCtx
		h, lc = l.Forward(h)
		ctx.layerCtx = append(ctx.layerCtx, lc)
	}
	return h, ctx
}

// Backward propagates dL/dOut back through the MLP layers for the call that
// produced ctx, straight through applyNorm (see its doc comment), returning
// dL/dx.
func (p *Projector) Backward(gradOut *mat.Dense, ctx *ProjectorCtx) *mat.Dense {
	g := gradOut
	for i := len(p.Layers) - 1; i >= 0; i-- {
		g = p.Layers[i].Backward(g, ctx.layerCtx[i])
	}
	return g
}

// ZeroGrad resets every layer's accumulated gradient to zero.
func (p *Projector) ZeroGrad() {
	for _, l := range p.Layers {
		l.Zero()
	}
}
