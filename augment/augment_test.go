package augment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/augment"
)

func TestBuildWarpMapIsStrictlyIncreasingAndAnchored(t *testing.T) {
	for _, curve := range []augment.CurveKind{
		augment.Linear, augment.MarketFade, augment.PulseCentered,
		augment.FrontLoaded, augment.FadeLate, augment.ChaoticDrift,
	} {
		rng := augment.NewSource(42)
		phi, err := augment.BuildWarpMap(augment.WarpParams{
			Curve:               curve,
			CurveParam:          1.5,
			NoiseScale:          0.1,
			SmoothingKernelSize: 3,
		}, 16, rng)
		require.NoError(t, err, curve.String())
		require.InDelta(t, 0, phi[0], 1e-9, curve.String())
		require.InDelta(t, 15, phi[15], 1e-9, curve.String())
		for i := 1; i < len(phi); i++ {
			require.Greater(t, phi[i], phi[i-1], "%s at index %d", curve.String(), i)
		}
	}
}

func TestBuildWarpMapDeterministicForSameSeed(t *testing.T) {
	params := augment.WarpParams{Curve: augment.ChaoticDrift, CurveParam: 0.5, NoiseScale: 0.2, SmoothingKernelSize: 1}
	a, err := augment.BuildWarpMap(params, 10, augment.NewSource(7))
	require.NoError(t, err)
	b, err := augment.BuildWarpMap(params, 10, augment.NewSource(7))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestParseCurveKindRoundTrip(t *testing.T) {
	for _, name := range []string{"Linear", "MarketFade", "PulseCentered", "FrontLoaded", "FadeLate", "ChaoticDrift"} {
		k, ok := augment.ParseCurveKind(name)
		require.True(t, ok)
		require.Equal(t, name, k.String())
	}
	_, ok := augment.ParseCurveKind("Unknown")
	require.False(t, ok)
}

func sampleBatch(b, c, tLen, d int) ([][][][]float64, [][][]bool) {
	x := make([][][][]float64, b)
	m := make([][][]bool, b)
	for bi := range x {
		x[bi] = make([][][]float64, c)
		m[bi] = make([][]bool, c)
		for ci := range x[bi] {
			x[bi][ci] = make([][]float64, tLen)
			m[bi][ci] = make([]bool, tLen)
			for ti := range x[bi][ci] {
				row := make([]float64, d)
				for j := range row {
					row[j] = float64(ti + 1)
				}
				x[bi][ci][ti] = row
				m[bi][ci][ti] = true
			}
		}
	}
	return x, m
}

func TestCausalTimeWarpPreservesShapeAndValidity(t *testing.T) {
	x, m := sampleBatch(1, 2, 8, 3)
	rng := augment.NewSource(1)
	phi, err := augment.BuildWarpMap(augment.WarpParams{Curve: augment.Linear, SmoothingKernelSize: 1}, 8, rng)
	require.NoError(t, err)

	wx, wm := augment.CausalTimeWarp(x[0], m[0], phi)
	require.Len(t, wx, 2)
	require.Len(t, wx[0], 8)
	require.Len(t, wm[0], 8)
	for t := range wm[0] {
		require.True(t, wm[0][t])
	}
}

func TestApplyProducesSameShapeBatch(t *testing.T) {
	x, m := sampleBatch(3, 2, 12, 4)
	preset := augment.Preset{
		Warp:               augment.WarpParams{Curve: augment.MarketFade, CurveParam: 1.2, NoiseScale: 0.05, SmoothingKernelSize: 3},
		ValueJitterStd:     0.1,
		TimeMaskBandFrac:   0.1,
		ChannelDropoutProb: 0.0,
		PointDropProb:      0.05,
	}
	rng := augment.NewSource(99)
	outX, outM, err := augment.Apply(preset, x, m, rng)
	require.NoError(t, err)
	require.Len(t, outX, 3)
	require.Len(t, outX[0], 2)
	require.Len(t, outX[0][0], 12)
	require.Len(t, outM, 3)
}

func TestSamplePresetRejectsEmptySet(t *testing.T) {
	_, err := augment.SamplePreset(nil, augment.NewSource(1))
	require.Error(t, err)
}

func TestSamplePresetIsDeterministicForSameSeed(t *testing.T) {
	presets := []augment.Preset{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	p1, err := augment.SamplePreset(presets, augment.NewSource(5))
	require.NoError(t, err)
	p2, err := augment.SamplePreset(presets, augment.NewSource(5))
	require.NoError(t, err)
	require.Equal(t, p1.Name, p2.Name)
}

func TestChannelDropoutZeroesWholeChannel(t *testing.T) {
	x, m := sampleBatch(1, 1, 4, 2)
	rng := augment.NewSource(1)
	augment.ChannelDropout(x[0], m[0], 1.0, rng)
	for _, v := range m[0][0] {
		require.False(t, v)
	}
}

func TestBandMaskZeroesContiguousWindow(t *testing.T) {
	x, m := sampleBatch(1, 1, 10, 1)
	rng := augment.NewSource(3)
	augment.BandMask(x[0], m[0], 0.3, rng)
	count := 0
	for _, v := range m[0][0] {
		if !v {
			count++
		}
	}
	require.Equal(t, 3, count)
}
