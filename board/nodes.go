package board

import (
	"fmt"
	"math/rand"

	"github.com/cuwacunu/tsiemene/augment"
	"github.com/cuwacunu/tsiemene/internal/boardmetrics"
	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/internal/logx"
	"github.com/cuwacunu/tsiemene/typeregistry"
	"github.com/cuwacunu/tsiemene/vicreg"
)

// sourceNode wraps a SourceDataloader and emits one payload:tensor signal
// per ingress event.
type sourceNode struct {
	alias  string
	loader *SourceDataloader
	typ    typeregistry.NodeType
}

func (n *sourceNode) TypeName() string                        { return n.typ.CanonicalPath }
func (n *sourceNode) InstanceName() string                     { return n.alias }
func (n *sourceNode) ID() string                               { return n.alias }
func (n *sourceNode) Directives() []typeregistry.Directive     { return n.typ.Directives }

func (n *sourceNode) Step(in Event) ([]OutSignal, error) {
	batch, sig, err := n.loader.NextBatch()
	if err != nil {
		return nil, err
	}
	if sig.Done && batch == nil {
		return []OutSignal{{Directive: "payload", Signal: sig}}, nil
	}
	sig.Kind = typeregistry.KindTensor
	sig.Batch = batch
	return []OutSignal{{Directive: "payload", Signal: sig}}, nil
}

// wikimyeiNode wraps a live vicreg.Model, advancing it by one training step
// per incoming payload batch when train is true, and otherwise only
// forwarding the batch downstream.
type wikimyeiNode struct {
	alias   string
	model   *vicreg.Model
	presets []augment.Preset
	rng     *rand.Rand
	train   bool
	log     logx.Logger
	typ     typeregistry.NodeType
}

func (n *wikimyeiNode) TypeName() string                    { return n.typ.CanonicalPath }
func (n *wikimyeiNode) InstanceName() string                 { return n.alias }
func (n *wikimyeiNode) ID() string                            { return n.model.ComponentName }
func (n *wikimyeiNode) Directives() []typeregistry.Directive { return n.typ.Directives }

// AdvanceEpoch relays an epoch-boundary metric into the model's scheduler;
// the executor calls this once the node's meta metric for an end-of-epoch
// batch has been delivered downstream, whatever the scheduler's mode. The
// model then steps PerEpoch and PerEpochWithMetric schedulers and ignores
// PerBatch ones.
func (n *wikimyeiNode) AdvanceEpoch(metric float64) { n.model.AdvanceEpoch(metric) }

func (n *wikimyeiNode) Step(in Event) ([]OutSignal, error) {
	if in.Directive != "payload" || in.Signal.Batch == nil {
		return nil, nil
	}
	out := []OutSignal{{Directive: "payload", Signal: Signal{
		Kind: typeregistry.KindTensor, Batch: in.Signal.Batch,
		EndOfBatch: in.Signal.EndOfBatch, EndOfEpoch: in.Signal.EndOfEpoch, Done: in.Signal.Done,
	}}}
	if !n.train {
		return out, nil
	}

	presetA, err := augment.SamplePreset(n.presets, n.rng)
	if err != nil {
		return nil, err
	}
	presetB, err := augment.SamplePreset(n.presets, n.rng)
	if err != nil {
		return nil, err
	}
	xa, ma, err := augment.Apply(presetA, in.Signal.Batch.Features, in.Signal.Batch.Mask, n.rng)
	if err != nil {
		return nil, err
	}
	xb, mb, err := augment.Apply(presetB, in.Signal.Batch.Features, in.Signal.Batch.Mask, n.rng)
	if err != nil {
		return nil, err
	}
	value, err := n.model.TrainStep(xa, xb, ma, mb)
	if err != nil {
		return nil, err
	}
	if n.log != nil {
		n.log.Debug("vicreg train step")
	}
	out = append(out,
		OutSignal{Directive: "loss", Signal: Signal{Kind: typeregistry.KindTensor, Loss: value}},
		OutSignal{Directive: "meta", Signal: Signal{Kind: typeregistry.KindString, Text: fmt.Sprintf("metric=%g", value)}},
	)
	return out, nil
}

// sinkKind distinguishes TsiSinkNull from TsiSinkLogSys.
type sinkKind int

const (
	sinkNull sinkKind = iota
	sinkLogSys
)

// sinkNode is a terminal node: it consumes whatever directives its type
// declares and produces nothing further.
type sinkNode struct {
	alias string
	kind  sinkKind
	log   logx.Logger
	loss  boardmetrics.Averager
	typ   typeregistry.NodeType
}

func (n *sinkNode) TypeName() string                    { return n.typ.CanonicalPath }
func (n *sinkNode) InstanceName() string                 { return n.alias }
func (n *sinkNode) ID() string                            { return n.alias }
func (n *sinkNode) Directives() []typeregistry.Directive { return n.typ.Directives }

func (n *sinkNode) Step(in Event) ([]OutSignal, error) {
	switch in.Directive {
	case "loss":
		if n.loss != nil {
			n.loss.Observe(in.Signal.Loss)
		}
		if n.kind == sinkLogSys && n.log != nil {
			n.log.Info("loss")
		}
	case "meta":
		if n.kind == sinkLogSys && n.log != nil {
			n.log.Info(in.Signal.Text)
		}
	case "payload":
		// TsiSinkNull/TsiSinkLogSys both discard the tensor payload itself;
		// only loss/meta are surfaced.
	default:
		return nil, errctx.New(errctx.CodeCompatibility, "sink %q received unknown directive %q", n.alias, in.Directive)
	}
	return nil, nil
}
