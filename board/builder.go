package board

import (
	"strings"

	"github.com/cuwacunu/tsiemene/circuit"
	"github.com/cuwacunu/tsiemene/contract"
	"github.com/cuwacunu/tsiemene/internal/boardmetrics"
	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/jkspec"
	"github.com/cuwacunu/tsiemene/path"
	"github.com/cuwacunu/tsiemene/typeregistry"
	"github.com/cuwacunu/tsiemene/vicreg"
	"github.com/cuwacunu/tsiemene/wave"
)

// ResolvedHop is one typed, directive-checked hop between two aliases.
type ResolvedHop struct {
	FromAlias     string
	FromDirective string
	ToAlias       string
	ToDirective   string
	Kind          typeregistry.Kind
}

// BoardContract is one runtime-instantiated circuit: the typed nodes, the
// resolved hop topology, and the bookkeeping the executor advances.
type BoardContract struct {
	Name string

	Nodes    map[string]Node
	Order    []string // declaration order, the executor's round-robin sequence
	HopsFrom map[string][]ResolvedHop

	SeedWave    WaveCursor
	SeedIngress Ingress

	DSLSegments contract.Bundle
	WaveText    string

	rootAlias string
}

func baseOf(ctx *Ctx) func(string) string {
	return func(tsiType string) string {
		d := path.Decode(ctx.RC, tsiType)
		return d.BaseWithoutHashimyei()
	}
}

func hashimyeiOf(ctx *Ctx, tsiType string) string {
	return path.Decode(ctx.RC, tsiType).Hashimyei()
}

// Instantiate builds a BoardContract from spec, following §4.7's six-step
// algorithm: validate the circuit, resolve and cross-check the wave,
// construct each declared instance as a typed node in declaration order,
// resolve hops, seed the wave cursor/ingress, and snapshot the DSL bundle.
func Instantiate(spec *Spec, ctx *Ctx) (*BoardContract, error) {
	c := spec.Circuit

	// Step 1: validate the circuit.
	if err := circuit.Validate(c, ctx.Reg, baseOf(ctx)); err != nil {
		return nil, err
	}

	// Step 2: resolve the wave's path-set against the circuit.
	if err := wave.Validate(spec.Wave); err != nil {
		return nil, err
	}
	circuitPaths := map[string]bool{}
	for _, in := range c.Instances {
		circuitPaths[in.TsiType] = true
	}
	if err := wave.ValidateAgainstCircuit(spec.Wave, circuitPaths); err != nil {
		return nil, err
	}

	bc := &BoardContract{
		Name:     c.Name,
		Nodes:    make(map[string]Node),
		HopsFrom: make(map[string][]ResolvedHop),
	}

	sourceCount := 0
	var sourceAliasForBatch string

	// Step 3: construct each typed node in declaration order.
	for _, in := range c.Instances {
		base := baseOf(ctx)(in.TsiType)
		nt, ok := ctx.Reg.Lookup(base)
		if !ok {
			return nil, errctx.New(errctx.CodeCompatibility, "unknown node type %q for alias %q", base, in.Alias)
		}
		bc.Order = append(bc.Order, in.Alias)

		switch nt.Domain {
		case typeregistry.DomainSource:
			sourceCount++
			if sourceCount > 1 {
				return nil, errctx.New(errctx.CodeTopology, "circuit %q declares more than one source instance", c.Name)
			}
			entry, ok := findSourceEntry(spec.Wave, in.TsiType)
			if !ok {
				return nil, errctx.New(errctx.CodeSchema, "wave %q has no SOURCE entry for path %q", spec.Wave.Name, in.TsiType)
			}
			loader, err := OpenSourceDataloader(spec.Observation, entry, spec.Wave, spec.SeqLen, ctx.Rng)
			if err != nil {
				return nil, err
			}
			bc.Nodes[in.Alias] = &sourceNode{alias: in.Alias, loader: loader, typ: nt}
			bc.SeedWave.SpanBegin = entry.From
			bc.SeedWave.SpanEnd = entry.To
			invoke, err := wave.ParsePayload(c.InvokePayload)
			if err != nil {
				return nil, err
			}
			bc.SeedIngress = Ingress{Directive: "ingress", SourceCommand: invoke.SourceCommand}
			sourceAliasForBatch = in.Alias

		case typeregistry.DomainWikimyei:
			if sourceAliasForBatch == "" {
				return nil, errctx.New(errctx.CodeTopology, "wikimyei alias %q declared before any source", in.Alias)
			}
			node, err := buildWikimyeiNode(ctx, spec, bc, in, nt, sourceAliasForBatch)
			if err != nil {
				return nil, err
			}
			bc.Nodes[in.Alias] = node

		case typeregistry.DomainSink:
			bc.Nodes[in.Alias] = buildSinkNode(ctx, bc.Name, in.Alias, in.TsiType, nt)

		default:
			return nil, errctx.New(errctx.CodeCompatibility, "unhandled node domain for alias %q", in.Alias)
		}
	}

	// Step 4: resolve hops into typed endpoints.
	for _, h := range c.Hops {
		fromInst, _ := c.InstanceByAlias(h.From.Alias)
		toInst, _ := c.InstanceByAlias(h.To.Alias)
		fromBase := baseOf(ctx)(fromInst.TsiType)
		toBase := baseOf(ctx)(toInst.TsiType)
		fromType, _ := ctx.Reg.Lookup(fromBase)
		toType, _ := ctx.Reg.Lookup(toBase)
		kind, err := typeregistry.CompatibleHop(fromType, h.From.Directive, toType, h.To.Directive)
		if err != nil {
			return nil, err
		}
		bc.HopsFrom[h.From.Alias] = append(bc.HopsFrom[h.From.Alias], ResolvedHop{
			FromAlias: h.From.Alias, FromDirective: h.From.Directive,
			ToAlias: h.To.Alias, ToDirective: h.To.Directive, Kind: kind,
		})
	}

	bc.rootAlias = sourceAliasForBatch

	// Step 6: snapshot the DSL bundle.
	if spec.Contract != nil {
		bc.DSLSegments = spec.Contract.Bundle
	}
	bc.WaveText = spec.WaveText

	return bc, nil
}

func findSourceEntry(w *wave.Wave, tsiType string) (wave.SourceEntry, bool) {
	for _, e := range w.SourceEntries {
		if e.Path == tsiType {
			return e, true
		}
	}
	return wave.SourceEntry{}, false
}

func findWikimyeiEntry(w *wave.Wave, tsiType string) (wave.WikimyeiEntry, bool) {
	for _, e := range w.WikimyeiEntries {
		if e.Path == tsiType {
			return e, true
		}
	}
	return wave.WikimyeiEntry{}, false
}

// buildWikimyeiNode resolves the JKSPEC component for alias (matching its
// lookup name, possibly suffixed by .hashimyei/_hashimyei), records any
// wave-supplied profile override, and constructs the live VICReg model
// bound to a contract-scoped runtime component name.
func buildWikimyeiNode(ctx *Ctx, spec *Spec, bc *BoardContract, in circuit.Instance, nt typeregistry.NodeType, sourceAlias string) (Node, error) {
	entry, hasEntry := findWikimyeiEntry(spec.Wave, in.TsiType)
	hashimyei := hashimyeiOf(ctx, in.TsiType)

	componentID, ok := resolveComponentID(spec.Tables, in.Alias, hashimyei)
	if !ok {
		return nil, errctx.New(errctx.CodeSchema, "no JKSPEC component matches alias %q (hashimyei %q)", in.Alias, hashimyei)
	}

	runtimeComponentName := componentID + "@" + spec.Circuit.Name + "." + in.Alias

	if hasEntry && entry.ProfileID != "" && spec.Contract != nil {
		contract.SetProfileOverride(ctx.RC, spec.Contract, componentID, entry.ProfileID)
	}

	vspec, err := vicreg.FromComponent(spec.Tables, componentID)
	if err != nil {
		return nil, err
	}

	dl, ok := bc.Nodes[sourceAlias].(*sourceNode)
	if !ok {
		return nil, errctx.New(errctx.CodeTopology, "no source feeds wikimyei alias %q", in.Alias)
	}
	model, err := vicreg.Instantiate(vspec, runtimeComponentName, dl.loader.C(), spec.SeqLen, dl.loader.D(), ctx.Rng)
	if err != nil {
		return nil, err
	}

	rows := spec.Tables.AugmentationsBySet(componentID, vspec.AugmentSet)
	presets, err := presetsFromAugmentationRows(rows)
	if err != nil {
		return nil, err
	}

	return &wikimyeiNode{
		alias: in.Alias, model: model, presets: presets, rng: ctx.Rng,
		train: hasEntry && entry.Train, log: ctx.Log, typ: nt,
	}, nil
}

func resolveComponentID(t *jkspec.Tables, alias, hashimyei string) (string, bool) {
	candidates := []string{alias}
	if hashimyei != "" {
		candidates = append(candidates, alias+"."+hashimyei, alias+"_"+hashimyei)
	}
	for _, cand := range candidates {
		if _, ok := t.ComponentByID(cand); ok {
			return cand, true
		}
	}
	return "", false
}

func buildSinkNode(ctx *Ctx, circuitName, alias, tsiType string, nt typeregistry.NodeType) Node {
	kind := sinkNull
	if strings.Contains(tsiType, "log.sys") {
		kind = sinkLogSys
	}
	var loss boardmetrics.Averager
	if ctx.Metrics != nil {
		loss = ctx.Metrics.Averager(circuitName+"_"+alias+"_loss", "VICReg loss observed at sink "+alias)
	}
	return &sinkNode{alias: alias, kind: kind, log: ctx.Log, loss: loss, typ: nt}
}
