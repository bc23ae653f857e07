package augment

import (
	"math/rand"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Preset is one fully-resolved augmentation configuration: a warp-map
// curve plus the independent per-position corruption layers applied after
// warping.
type Preset struct {
	Name               string
	Warp               WarpParams
	ValueJitterStd     float64
	TimeMaskBandFrac   float64
	ChannelDropoutProb float64
	PointDropProb      float64
}

// SamplePreset chooses one preset uniformly at random using rng, matching
// the "sampled uniformly at random using the [seeded] RNG" training rule:
// the caller's rng must be seeded once per run for reproducibility.
func SamplePreset(presets []Preset, rng *rand.Rand) (Preset, error) {
	if len(presets) == 0 {
		return Preset{}, errctx.New(errctx.CodeSchema, "SamplePreset requires at least one preset")
	}
	return presets[rng.Intn(len(presets))], nil
}

// Apply runs the full augmentation pipeline on a batch (x: [B,C,T,D],
// mask: [B,C,T]): one warp map is built and shared across the whole
// batch, then the independent corruption layers are applied per batch
// element with their own draws.
func Apply(preset Preset, x [][][][]float64, mask [][][]bool, rng *rand.Rand) ([][][][]float64, [][][]bool, error) {
	if len(x) == 0 {
		return x, mask, nil
	}
	tLen := len(mask[0][0])
	phi, err := BuildWarpMap(preset.Warp, tLen, rng)
	if err != nil {
		return nil, nil, err
	}

	outX := make([][][][]float64, len(x))
	outMask := make([][][]bool, len(x))
	for b := range x {
		wx, wm := CausalTimeWarp(x[b], mask[b], phi)
		ValueJitter(wx, wm, preset.ValueJitterStd, rng)
		BandMask(wx, wm, preset.TimeMaskBandFrac, rng)
		ChannelDropout(wx, wm, preset.ChannelDropoutProb, rng)
		PointDrop(wx, wm, preset.PointDropProb, rng)
		outX[b] = wx
		outMask[b] = wm
	}
	return outX, outMask, nil
}
