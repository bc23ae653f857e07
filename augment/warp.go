package augment

import (
	"math"
	"math/rand"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// CurveKind selects the shape of a warp map's base curve.
type CurveKind int

const (
	Linear CurveKind = iota
	MarketFade
	PulseCentered
	FrontLoaded
	FadeLate
	ChaoticDrift
)

func (k CurveKind) String() string {
	switch k {
	case Linear:
		return "Linear"
	case MarketFade:
		return "MarketFade"
	case PulseCentered:
		return "PulseCentered"
	case FrontLoaded:
		return "FrontLoaded"
	case FadeLate:
		return "FadeLate"
	case ChaoticDrift:
		return "ChaoticDrift"
	default:
		return "Unknown"
	}
}

// ParseCurveKind maps a JKSPEC curve keyword to its CurveKind.
func ParseCurveKind(name string) (CurveKind, bool) {
	switch name {
	case "Linear":
		return Linear, true
	case "MarketFade":
		return MarketFade, true
	case "PulseCentered":
		return PulseCentered, true
	case "FrontLoaded":
		return FrontLoaded, true
	case "FadeLate":
		return FadeLate, true
	case "ChaoticDrift":
		return ChaoticDrift, true
	default:
		return 0, false
	}
}

// WarpParams configures one warp-map build.
type WarpParams struct {
	Curve               CurveKind
	CurveParam          float64
	NoiseScale          float64
	SmoothingKernelSize int
}

// minSlope is the floor applied to rectified derivatives so the integrated
// warp map is strictly increasing even where the raw curve is locally flat.
const minSlope = 1e-3

// BuildWarpMap constructs a strictly increasing warp map φ over T points
// with φ(0)=0 and φ(T-1)=T-1, following the curve shape and noise/smoothing
// parameters in params.
func BuildWarpMap(params WarpParams, tLen int, rng *rand.Rand) ([]float64, error) {
	if tLen < 2 {
		return nil, errctx.New(errctx.CodeSchema, "BuildWarpMap requires at least 2 points, got %d", tLen)
	}
	if params.SmoothingKernelSize < 1 {
		return nil, errctx.New(errctx.CodeSchema, "smoothing kernel size must be >= 1, got %d", params.SmoothingKernelSize)
	}

	phi := make([]float64, tLen)
	for i := 0; i < tLen; i++ {
		tau := float64(i) / float64(tLen-1)
		phi[i] = baseCurve(params.Curve, tau, params.CurveParam, rng)
	}

	// Rescale to [0, T-1].
	for i := range phi {
		phi[i] *= float64(tLen - 1)
	}

	// Add Gaussian noise, broadcast across the batch at call sites; the
	// noise vector itself is per-T, not per-batch-element. ChaoticDrift
	// already folded its noise into baseCurve.
	if params.Curve != ChaoticDrift && params.NoiseScale > 0 {
		for i := range phi {
			phi[i] += rng.NormFloat64() * params.NoiseScale
		}
	}

	if params.SmoothingKernelSize > 1 {
		phi = boxSmooth(phi, params.SmoothingKernelSize)
	}

	return monotoneify(phi, tLen), nil
}

func baseCurve(curve CurveKind, tau, param float64, rng *rand.Rand) float64 {
	switch curve {
	case Linear:
		return tau
	case MarketFade:
		p := param
		if p <= 0 {
			p = 1
		}
		return 1 - math.Pow(1-tau, p)
	case PulseCentered:
		return tau + param*math.Sin(math.Pi*tau)
	case FrontLoaded:
		p := param
		if p <= 0 {
			p = 1
		}
		return math.Pow(tau, 1/p)
	case FadeLate:
		p := param
		if p <= 0 {
			p = 1
		}
		return math.Pow(tau, p)
	case ChaoticDrift:
		return tau + param*rng.NormFloat64()
	default:
		return tau
	}
}

// boxSmooth applies a zero-padded moving-average filter of the given odd
// kernel size.
func boxSmooth(x []float64, kernel int) []float64 {
	if kernel%2 == 0 {
		kernel++
	}
	half := kernel / 2
	out := make([]float64, len(x))
	for i := range x {
		sum := 0.0
		for k := -half; k <= half; k++ {
			j := i + k
			if j < 0 || j >= len(x) {
				continue
			}
			sum += x[j]
		}
		out[i] = sum / float64(kernel)
	}
	return out
}

// monotoneify converts an arbitrary sequence into a strictly increasing
// one anchored at φ(0)=0 and φ(T-1)=T-1: differentiate, rectify to
// ReLU+ε, integrate, then rescale.
func monotoneify(phi []float64, tLen int) []float64 {
	diffs := make([]float64, tLen)
	diffs[0] = phi[0]
	for i := 1; i < tLen; i++ {
		d := phi[i] - phi[i-1]
		if d < 0 {
			d = 0
		}
		diffs[i] = d + minSlope
	}

	cum := make([]float64, tLen)
	running := 0.0
	for i, d := range diffs {
		running += d
		cum[i] = running
	}

	out := make([]float64, tLen)
	base := cum[0]
	span := cum[tLen-1] - base
	if span <= 0 {
		span = 1
	}
	for i := range out {
		out[i] = (cum[i] - base) / span * float64(tLen-1)
	}
	out[0] = 0
	out[tLen-1] = float64(tLen - 1)
	return out
}
