// Package vicreg builds and trains the encoder/projector/VICReg-loss stack
// from JKSPEC component rows: a two-stage split of a pure Spec value object
// populated from the decoded tables, and an Instantiate free function that
// turns a Spec plus runtime shape (C,T,D) into a live Model. Constructors
// stay dumb; all JKSPEC reading happens in FromComponent.
package vicreg

import (
	"strconv"
	"strings"

	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/jkspec"
)

// EncoderSpec is the pure specification for the per-channel expansion,
// fusion, and stacked encoder block.
type EncoderSpec struct {
	HiddenDims          []int64
	Depth               int64
	ChannelExpansionDim int64
	FusedFeatureDim     int64
	Dtype               string
	EnableBufferAvg     bool
}

// ProjectorSpec is the pure specification for the projector MLP: a
// hyphen-separated width string (e.g. "128-256-218") plus norm/activation.
type ProjectorSpec struct {
	WidthSpec  string
	Widths     []int64
	Norm       string // None | BatchNorm1d | LayerNorm
	Activation string // ReLU | SiLU
}

// ParseProjectorWidths splits a hyphen-separated MLP spec into layer widths.
func ParseProjectorWidths(spec string) ([]int64, error) {
	parts := strings.Split(spec, "-")
	if len(parts) < 2 {
		return nil, errctx.New(errctx.CodeSchema, "projector_mlp_spec %q must declare at least two widths", spec)
	}
	out := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n <= 0 {
			return nil, errctx.New(errctx.CodeSchema, "projector_mlp_spec %q has an invalid width %q", spec, p)
		}
		out[i] = n
	}
	return out, nil
}

// Spec is the fully-resolved, pure specification for one VICReg component,
// built from a jkspec.Tables row and its active profile's builder rows.
type Spec struct {
	ComponentID string
	Encoder     EncoderSpec
	Projector   ProjectorSpec
	Optimizer   BuilderSpec
	Scheduler   BuilderSpec
	Loss        BuilderSpec
	AugmentSet  string
}

// BuilderSpec is a named builder row (optimizer/scheduler/loss) carried as
// its type name plus a copy of the row so the instantiate step can read
// whichever options it needs, without FromComponent hard-coding every key.
type BuilderSpec struct {
	Type string
	Row  jkspec.Row
}

// FromComponent resolves a component's active profile into a Spec, reading
// component params plus the optimizer/scheduler/loss rows it references.
func FromComponent(t *jkspec.Tables, componentID string) (*Spec, error) {
	comp, ok := t.ComponentByID(componentID)
	if !ok {
		return nil, errctx.New(errctx.CodeSchema, "unknown component %q", componentID)
	}

	hidden := comp.Params.OptionIntList("encoder_hidden_dims")
	if len(hidden) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "component %q missing encoder_hidden_dims", componentID)
	}
	widthSpec := comp.Params.OptionString("projector_mlp_spec", "")
	widths, err := ParseProjectorWidths(widthSpec)
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		ComponentID: componentID,
		Encoder: EncoderSpec{
			HiddenDims:          hidden,
			Depth:               comp.Params.OptionInt("encoder_depth", int64(len(hidden))),
			ChannelExpansionDim: comp.Params.OptionInt("channel_expansion_dim", hidden[0]),
			FusedFeatureDim:     comp.Params.OptionInt("fused_feature_dim", hidden[0]),
			Dtype:               comp.Params.OptionString("dtype", "f32"),
			EnableBufferAvg:     comp.Params.OptionBool("enable_buffer_averaging", false),
		},
		Projector: ProjectorSpec{
			WidthSpec:  widthSpec,
			Widths:     widths,
			Norm:       comp.Params.OptionString("projector_norm", "None"),
			Activation: comp.Params.OptionString("projector_activation", "ReLU"),
		},
		AugmentSet: comp.Params.OptionString("augmentation_set", "default"),
	}

	if comp.Optimizer != "" {
		b, err := lookupBuilder(t.Optimizers, comp.Optimizer)
		if err != nil {
			return nil, err
		}
		spec.Optimizer = b
	}
	if comp.LRScheduler != "" {
		b, err := lookupBuilder(t.LRSchedulers, comp.LRScheduler)
		if err != nil {
			return nil, err
		}
		spec.Scheduler = b
	}
	if comp.LossFunction != "" {
		b, err := lookupBuilder(t.LossFunctions, comp.LossFunction)
		if err != nil {
			return nil, err
		}
		spec.Loss = b
	}

	return spec, nil
}

func lookupBuilder(rows []jkspec.BuilderRow, rowID string) (BuilderSpec, error) {
	for _, r := range rows {
		if r.RowID == rowID {
			return BuilderSpec{Type: r.Type, Row: r.Options}, nil
		}
	}
	return BuilderSpec{}, errctx.New(errctx.CodeSchema, "builder row %q not found", rowID)
}
