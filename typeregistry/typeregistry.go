// Package typeregistry is the static manifest of node types, directives,
// and hop compatibility rules that every decoder and the board builder
// consult. It is a closed set, extended only by adding entries here — the
// same "var XFactory Factory = xFactory{}" closed-registry idiom the
// teacher uses for its wave kinds.
package typeregistry

import "github.com/cuwacunu/tsiemene/internal/errctx"

// Domain groups node types by role.
type Domain int

const (
	DomainSource Domain = iota
	DomainWikimyei
	DomainSink
)

// Direction of a directive.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Kind of payload a directive carries.
type Kind int

const (
	KindTensor Kind = iota
	KindString
)

func (k Kind) String() string {
	if k == KindTensor {
		return "tensor"
	}
	return "str"
}

// Directive is one named port on a node type.
type Directive struct {
	Name      string
	Direction Direction
	Kind      Kind
}

// NodeType is one entry in the manifest: a canonical path base, its
// domain, a uniqueness constraint, and its directive table.
type NodeType struct {
	CanonicalPath string
	Domain        Domain
	UniquePerCircuit bool
	Directives    []Directive
}

// InDirective returns the in-directive named name, if declared.
func (t NodeType) InDirective(name string) (Directive, bool) {
	for _, d := range t.Directives {
		if d.Direction == DirectionIn && d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// OutDirective returns the out-directive named name, if declared.
func (t NodeType) OutDirective(name string) (Directive, bool) {
	for _, d := range t.Directives {
		if d.Direction == DirectionOut && d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// Registry is the closed manifest of node types.
type Registry struct {
	byPath map[string]NodeType
}

// Default builds the standard manifest: dataloader sources, the VICReg
// wikimyei, and the two sink kinds named in §4.6/§6.
func Default() *Registry {
	r := &Registry{byPath: make(map[string]NodeType)}
	r.register(NodeType{
		CanonicalPath:    "tsi.source.dataloader",
		Domain:           DomainSource,
		UniquePerCircuit: true,
		Directives: []Directive{
			{Name: "payload", Direction: DirectionOut, Kind: KindTensor},
		},
	})
	r.register(NodeType{
		CanonicalPath: "tsi.wikimyei.representation.vicreg",
		Domain:        DomainWikimyei,
		Directives: []Directive{
			{Name: "payload", Direction: DirectionIn, Kind: KindTensor},
			{Name: "payload", Direction: DirectionOut, Kind: KindTensor},
			{Name: "loss", Direction: DirectionOut, Kind: KindTensor},
			{Name: "meta", Direction: DirectionOut, Kind: KindString},
		},
	})
	r.register(NodeType{
		CanonicalPath: "tsi.sink.null",
		Domain:        DomainSink,
		Directives: []Directive{
			{Name: "payload", Direction: DirectionIn, Kind: KindTensor},
			{Name: "loss", Direction: DirectionIn, Kind: KindTensor},
			{Name: "meta", Direction: DirectionIn, Kind: KindString},
		},
	})
	r.register(NodeType{
		CanonicalPath: "tsi.sink.log.sys",
		Domain:        DomainSink,
		Directives: []Directive{
			{Name: "payload", Direction: DirectionIn, Kind: KindTensor},
			{Name: "loss", Direction: DirectionIn, Kind: KindTensor},
			{Name: "meta", Direction: DirectionIn, Kind: KindString},
		},
	})
	return r
}

func (r *Registry) register(t NodeType) { r.byPath[t.CanonicalPath] = t }

// Lookup returns the node type registered at base, the
// tsi.<domain>.<family>...<model> path without the hashimyei/facet suffix.
func (r *Registry) Lookup(base string) (NodeType, bool) {
	t, ok := r.byPath[base]
	return t, ok
}

// CompatibleHop reports whether an out-directive on type `from` named
// fromDirective is compatible with an in-directive on type `to` named
// toDirective: the kinds must match and the target's kind must not be
// independently re-specified, per §3.2.
func CompatibleHop(from NodeType, fromDirective string, to NodeType, toDirective string) (Kind, error) {
	out, ok := from.OutDirective(fromDirective)
	if !ok {
		return 0, errctx.New(errctx.CodeCompatibility, "type %s has no out-directive %q", from.CanonicalPath, fromDirective)
	}
	in, ok := to.InDirective(toDirective)
	if !ok {
		return 0, errctx.New(errctx.CodeCompatibility, "type %s has no in-directive %q", to.CanonicalPath, toDirective)
	}
	if out.Kind != in.Kind {
		return 0, errctx.New(errctx.CodeCompatibility, "kind mismatch on hop %s@%s -> %s@%s: %s vs %s",
			from.CanonicalPath, fromDirective, to.CanonicalPath, toDirective, out.Kind, in.Kind)
	}
	return out.Kind, nil
}
