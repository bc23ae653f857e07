package board

import (
	"github.com/cuwacunu/tsiemene/augment"
	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/jkspec"
)

// presetsFromAugmentationRows turns one component's named augmentation-set
// rows into the augment.Preset list SamplePreset draws from.
func presetsFromAugmentationRows(rows []jkspec.AugmentationRow) ([]augment.Preset, error) {
	if len(rows) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "augmentation set has no curves")
	}
	out := make([]augment.Preset, 0, len(rows))
	for _, r := range rows {
		curve, ok := augment.ParseCurveKind(r.Kind)
		if !ok {
			return nil, errctx.New(errctx.CodeSchema, "unknown augmentation curve kind %q", r.Kind)
		}
		out = append(out, augment.Preset{
			Name: r.Kind,
			Warp: augment.WarpParams{
				Curve:               curve,
				CurveParam:          r.Fields.OptionFloat("curve_param", 0),
				NoiseScale:          r.Fields.OptionFloat("noise_scale", 0),
				SmoothingKernelSize: int(r.Fields.OptionInt("smoothing_kernel_size", 1)),
			},
			ValueJitterStd:     r.Fields.OptionFloat("value_jitter_std", 0),
			TimeMaskBandFrac:   r.Fields.OptionFloat("time_mask_band_frac", 0),
			ChannelDropoutProb: r.Fields.OptionFloat("channel_dropout_prob", 0),
			PointDropProb:      r.Fields.OptionFloat("point_drop_prob", 0),
		})
	}
	return out, nil
}
