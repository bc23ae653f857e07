package vicreg

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Encoder maps [B,C,T,D] with a [B,C,T] validity mask to [B,T,E]: a shared
// per-channel expansion, a per-timestep fusion across channels, and a
// stacked block with one dense layer per EncoderHiddenDims entry, at those
// widths (EncoderSpec.Depth does not change the layer count).
type Encoder struct {
	C, D, Ce, Ff, E int
	Expansion       *Layer
	Fusion          *Layer
	Blocks          []*Layer
}

// EncoderCtx holds one Forward call's intermediates, so the same
// shared-weight encoder can run forward for both augmented views before
// either is backpropagated.
type EncoderCtx struct {
	b, t           int
	expansionCtx   *LayerCtx
	fusionCtx      *LayerCtx
	blockCtx       []*LayerCtx
}

// NewEncoder builds an encoder for a fixed channel count C and feature
// width D, per the resolved EncoderSpec.
func NewEncoder(spec EncoderSpec, c, d int, rng *rand.Rand) (*Encoder, error) {
	if len(spec.HiddenDims) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "encoder spec requires at least one hidden dim")
	}
	ce := int(spec.ChannelExpansionDim)
	ff := int(spec.FusedFeatureDim)
	enc := &Encoder{
		C: c, D: d, Ce: ce, Ff: ff,
		Expansion: NewLayer(d, ce, "ReLU", rng),
		Fusion:    NewLayer(c*ce, ff, "ReLU", rng),
	}
	prev := ff
	for _, h := range spec.HiddenDims {
		enc.Blocks = append(enc.Blocks, NewLayer(prev, int(h), "ReLU", rng))
		prev = int(h)
	}
	enc.E = prev
	return enc, nil
}

// Forward runs the encoder over a batch, returning the [B*T,E] stacked
// representation (row-major, b outer / t inner), a [B*T] validity mask,
// and the context Backward needs for this specific call.
func (e *Encoder) Forward(x [][][][]float64, mask [][][]bool) (*mat.Dense, []bool, *EncoderCtx) {
	b := len(x)
	t := len(mask[0][0])
	ctx := &EncoderCtx{b: b, t: t}

	// Expansion: flatten every (batch,channel,time) feature vector into one
	// [B*C*T, D] matrix, run through the shared expansion layer once.
	rows := b * e.C * t
	flat := mat.NewDense(rows, e.D, nil)
	idx := func(bi, ci, ti int) int { return (bi*e.C+ci)*t + ti }
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < e.C; ci++ {
			for ti := 0; ti < t; ti++ {
				row := x[bi][ci][ti]
				for j := 0; j < e.D && j < len(row); j++ {
					flat.Set(idx(bi, ci, ti), j, row[j])
				}
			}
		}
	}
	expanded, expCtx := e.Expansion.Forward(flat) // [B*C*T, Ce]
	ctx.expansionCtx = expCtx

	// Zero out masked-off channel positions before fusion so they don't
	// contribute, matching "prevent contaminated positions from
	// contributing" in the architecture description.
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < e.C; ci++ {
			for ti := 0; ti < t; ti++ {
				if mask[bi][ci][ti] {
					continue
				}
				r := idx(bi, ci, ti)
				for j := 0; j < e.Ce; j++ {
					expanded.Set(r, j, 0)
				}
			}
		}
	}

	// Fusion: concatenate the C channel vectors at each (b,t) into one
	// [B*T, C*Ce] row.
	fuseIn := mat.NewDense(b*t, e.C*e.Ce, nil)
	chanValid := make([][]bool, b)
	for bi := 0; bi < b; bi++ {
		chanValid[bi] = make([]bool, t)
		for ti := 0; ti < t; ti++ {
			any := false
			for ci := 0; ci < e.C; ci++ {
				r := idx(bi, ci, ti)
				for j := 0; j < e.Ce; j++ {
					fuseIn.Set(bi*t+ti, ci*e.Ce+j, expanded.At(r, j))
				}
				if mask[bi][ci][ti] {
					any = true
				}
			}
			chanValid[bi][ti] = any
		}
	}

	fused, fusionCtx := e.Fusion.Forward(fuseIn) // [B*T, Ff]
	ctx.fusionCtx = fusionCtx

	h := fused
	for _, blk := range e.Blocks {
		var blkCtx *LayerCtx
		h, blkCtx = blk.Forward(h)
		ctx.blockCtx = append(ctx.blockCtx, blkCtx)
	}

	outMask := make([]bool, b*t)
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < t; ti++ {
			outMask[bi*t+ti] = chanValid[bi][ti]
		}
	}
	return h, outMask, ctx
}

// Backward propagates dL/dOut (shape [B*T,E]) through the stacked blocks,
// fusion, and expansion layers for the call that produced ctx, accumulating
// onto each Layer's running gradients.
func (e *Encoder) Backward(gradOut *mat.Dense, ctx *EncoderCtx) {
	g := gradOut
	for i := len(e.Blocks) - 1; i >= 0; i-- {
		g = e.Blocks[i].Backward(g, ctx.blockCtx[i])
	}
	g = e.Fusion.Backward(g, ctx.fusionCtx)
	// Expand the fusion's input gradient [B*T, C*Ce] back into the
	// expansion layer's flat [B*C*T, Ce] gradient layout.
	b, t := ctx.b, ctx.t
	gradExp := mat.NewDense(b*e.C*t, e.Ce, nil)
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < t; ti++ {
			for ci := 0; ci < e.C; ci++ {
				r := (bi*e.C+ci)*t + ti
				for j := 0; j < e.Ce; j++ {
					gradExp.Set(r, j, g.At(bi*t+ti, ci*e.Ce+j))
				}
			}
		}
	}
	e.Expansion.Backward(gradExp, ctx.expansionCtx)
}

// Layers returns every trainable layer in forward order, used to assemble
// the flat parameter/gradient lists handed to an Optimizer.
func (e *Encoder) Layers() []*Layer {
	out := []*Layer{e.Expansion, e.Fusion}
	return append(out, e.Blocks...)
}

// ZeroGrad resets every layer's accumulated gradient to zero.
func (e *Encoder) ZeroGrad() {
	for _, l := range e.Layers() {
		l.Zero()
	}
}
