// Package path implements the canonical path decoder: parsing and
// normalizing hierarchical node/endpoint identifiers, and allocating
// stable mnemonic hash names for the literal "default" hashimyei slot.
package path

import (
	"hash/fnv"
	"strings"

	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/runtimectx"
)

// Root domains.
const (
	RootTsi    = "tsi"
	RootIinuji = "iinuji"
)

// Directive names and payload kinds for the endpoint suffix.
const (
	DirectivePayload = "payload"
	DirectiveLoss    = "loss"
	DirectiveMeta    = "meta"

	KindStr    = "str"
	KindTensor = "tensor"
)

var validDirectives = map[string]bool{DirectivePayload: true, DirectiveLoss: true, DirectiveMeta: true}
var validKinds = map[string]bool{KindStr: true, KindTensor: true}

// trainableBases lists the tsi.wikimyei.<family>.<model> bases on which the
// jkimyei facet is permitted.
var trainableBases = map[string]bool{
	"tsi.wikimyei.representation.vicreg": true,
}

// Arg is a single call-argument, key or key=value.
type Arg struct {
	Key   string
	Value string
	HasValue bool
}

// Decoded is the normalized result of decoding a canonical path text.
type Decoded struct {
	OK                bool
	Err               error
	CanonicalIdentity string
	CanonicalEndpoint string
	Canonical         string
	Segments          []string
	Args              []Arg
	HasCall           bool
	Facet             string
	HasFacet          bool
	Directive         string
	Kind              string
	HasEndpoint       bool
	IdentityHashName  string
	EndpointHashName  string
}

// qualia is the fixed 64-word mnemonic pool used to build "<family>_<qualia>"
// hashimyei names and generic hash names, per the 64-slot design note.
var qualia = [64]string{
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta",
	"iota", "kappa", "lambda", "mu", "nu", "xi", "omicron", "pi",
	"rho", "sigma", "tau", "upsilon", "phi", "chi", "psi", "omega",
	"aster", "bract", "cirrus", "drift", "ember", "flux", "grove", "helix",
	"ibis", "jalo", "karst", "lumen", "mirth", "nadir", "opal", "plume",
	"quill", "ridge", "solace", "terra", "umbra", "vireo", "wisp", "xenon",
	"yarrow", "zephyr", "amber", "basin", "cedar", "delve", "ensign", "frond",
	"glade", "haven", "isle", "jade", "knoll", "loam", "myra", "nettle",
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// assignMnemonic deterministically allocates a "<prefix>_<qualia>" mnemonic
// for seed, probing the 64-slot pool linearly from the FNV-1a-derived start
// slot. Identical seeds always return the same name (memoized in rc).
func assignMnemonic(rc *runtimectx.RuntimeContext, prefix, seed string) string {
	if existing, ok := rc.LookupName(seed); ok {
		return existing
	}
	start := int(fnv32a(seed) % 64)
	for offset := 0; offset < 64; offset++ {
		slot := (start + offset) % 64
		name := prefix + "_" + qualia[slot]
		if !rc.NameTaken(name) {
			return rc.AssignName(seed, name)
		}
	}
	// Pool exhausted: fall back to appending one or more 'x' characters
	// until the name is free.
	name := prefix + "_" + qualia[start]
	for n := 1; ; n++ {
		candidate := name + strings.Repeat("x", n)
		if !rc.NameTaken(candidate) {
			return rc.AssignName(seed, candidate)
		}
	}
}

func isAtomStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isAtomByte(b byte) bool {
	return isAtomStart(b) || (b >= '0' && b <= '9')
}

func validateAtom(s string) bool {
	if s == "" {
		return false
	}
	if !isAtomStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isAtomByte(s[i]) {
			return false
		}
	}
	return true
}

// splitTopLevel splits s on sep at paren-depth 0.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// findTopLevel returns the index of the first occurrence of b at paren
// depth 0, or -1.
func findTopLevel(s string, b byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case b:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Decode parses text into a Decoded canonical path, allocating a mnemonic
// hashimyei name through rc if the input uses the literal "default" tag.
func Decode(rc *runtimectx.RuntimeContext, text string) *Decoded {
	d := &Decoded{}
	core := strings.TrimSpace(text)

	// Step 1: locate the first top-level '@' -> endpoint suffix.
	var endpointText string
	if at := findTopLevel(core, '@'); at >= 0 {
		endpointText = core[at+1:]
		core = core[:at]
		d.HasEndpoint = true
	}

	// Step 2: split core into path_text / args_text at a balanced '(' pair.
	pathText := core
	var argsText string
	hasCall := false
	if open := strings.IndexByte(core, '('); open >= 0 {
		if !strings.HasSuffix(core, ")") {
			d.Err = errctx.New(errctx.CodeParse, "unbalanced call arguments in %q", text)
			return d
		}
		pathText = core[:open]
		argsText = core[open+1 : len(core)-1]
		if strings.ContainsAny(argsText, "()") {
			d.Err = errctx.New(errctx.CodeParse, "nested parentheses not allowed in call args %q", text)
			return d
		}
		hasCall = true
	}
	d.HasCall = hasCall

	// Step 3: split path_text on '.'; validate each segment as an atom.
	segments := strings.Split(pathText, ".")
	for _, seg := range segments {
		if !validateAtom(seg) {
			d.Err = errctx.New(errctx.CodeParse, "invalid path segment %q in %q", seg, text)
			return d
		}
	}
	if len(segments) < 2 {
		d.Err = errctx.New(errctx.CodeParse, "path requires at least two segments: %q", text)
		return d
	}

	// Step 4: require root in {tsi, iinuji}; reject tsi.iinuji.*
	if segments[0] != RootTsi && segments[0] != RootIinuji {
		d.Err = errctx.New(errctx.CodeParse, "invalid root %q, expected tsi or iinuji", segments[0])
		return d
	}
	if segments[0] == RootTsi && len(segments) > 1 && segments[1] == RootIinuji {
		d.Err = errctx.New(errctx.CodeParse, "tsi.iinuji.* is not a valid path: %q", text)
		return d
	}

	// Step 5: if last segment is "jkimyei", pop it into facet.
	if segments[len(segments)-1] == "jkimyei" {
		d.Facet = "jkimyei"
		d.HasFacet = true
		segments = segments[:len(segments)-1]
	}

	// Step 6: for tsi.wikimyei.*, require 4 or 5 segments; resolve default hashimyei.
	if segments[0] == RootTsi && len(segments) >= 2 && segments[1] == "wikimyei" {
		if len(segments) != 4 && len(segments) != 5 {
			d.Err = errctx.New(errctx.CodeParse, "tsi.wikimyei paths require 4 or 5 segments, got %d in %q", len(segments), text)
			return d
		}
		if len(segments) == 4 {
			segments = append(segments, "default")
		}
		family := segments[2]
		hashimyei := segments[4]
		if hashimyei == "default" {
			base := strings.Join(segments[:4], ".")
			seed := base + ".self"
			segments[4] = assignMnemonic(rc, family, seed)
		}
	}

	// Step 7: facet only allowed on trainable bases.
	if d.HasFacet {
		base := strings.Join(segments, ".")
		trainableKey := base
		if segments[0] == RootTsi && segments[1] == "wikimyei" && len(segments) >= 4 {
			trainableKey = strings.Join(segments[:4], ".")
		}
		if !trainableBases[trainableKey] {
			d.Err = errctx.New(errctx.CodeCompatibility, "jkimyei facet not valid on %q", base)
			return d
		}
	}
	d.Segments = segments

	// Step 8: parse args.
	if hasCall {
		var args []Arg
		seen := map[string]bool{}
		if strings.TrimSpace(argsText) != "" {
			for _, item := range splitTopLevel(argsText, ',') {
				item = strings.TrimSpace(item)
				if item == "" {
					d.Err = errctx.New(errctx.CodeParse, "empty call argument in %q", text)
					return d
				}
				if eq := strings.IndexByte(item, '='); eq >= 0 {
					k, v := item[:eq], item[eq+1:]
					if !validateAtom(k) {
						d.Err = errctx.New(errctx.CodeParse, "invalid call arg key %q", k)
						return d
					}
					args = append(args, Arg{Key: k, Value: v, HasValue: true})
					seen[k] = true
				} else {
					if !validateAtom(item) {
						d.Err = errctx.New(errctx.CodeParse, "invalid call arg key %q", item)
						return d
					}
					args = append(args, Arg{Key: item})
					seen[item] = true
				}
			}
		}
		d.Args = args
	}

	// Step 9: parse endpoint suffix @D:K.
	if d.HasEndpoint {
		colon := strings.IndexByte(endpointText, ':')
		if colon < 0 {
			d.Err = errctx.New(errctx.CodeParse, "malformed endpoint suffix %q", endpointText)
			return d
		}
		directive, kind := endpointText[:colon], endpointText[colon+1:]
		if !validDirectives[directive] {
			d.Err = errctx.New(errctx.CodeCompatibility, "invalid directive %q in endpoint suffix", directive)
			return d
		}
		if !validKinds[kind] {
			d.Err = errctx.New(errctx.CodeCompatibility, "invalid kind %q in endpoint suffix", kind)
			return d
		}
		d.Directive = directive
		d.Kind = kind
	}

	// Step 10/11: build canonical forms.
	identity := strings.Join(segments, ".")
	if hasCall {
		identity += "(" + canonicalArgs(d.Args) + ")"
	}
	d.CanonicalIdentity = identity
	d.Canonical = identity
	if d.HasEndpoint {
		d.CanonicalEndpoint = identity + "@" + d.Directive + ":" + d.Kind
		d.Canonical = d.CanonicalEndpoint
	}

	// Step 12: hash names.
	d.IdentityHashName = assignMnemonic(rc, "id", d.CanonicalIdentity+".self")
	if d.HasEndpoint {
		d.EndpointHashName = assignMnemonic(rc, "ep", d.CanonicalEndpoint+".self")
	}

	d.OK = true
	return d
}

func canonicalArgs(args []Arg) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a.HasValue {
			parts = append(parts, a.Key+"="+a.Value)
		} else {
			parts = append(parts, a.Key)
		}
	}
	return strings.Join(parts, ",")
}

// Validate decodes path and reports only (ok, error), for callers that do
// not need the full decoded structure.
func Validate(rc *runtimectx.RuntimeContext, text string) (bool, error) {
	d := Decode(rc, text)
	return d.OK, d.Err
}

// BaseWithoutHashimyei returns the tsi.wikimyei.<family>.<model> prefix of
// a decoded path's segments, used by the board builder to look up a
// matching JKSPEC component.
func (d *Decoded) BaseWithoutHashimyei() string {
	if len(d.Segments) < 2 || d.Segments[1] != "wikimyei" {
		return strings.Join(d.Segments, ".")
	}
	n := len(d.Segments)
	if n >= 5 {
		n = 4
	}
	return strings.Join(d.Segments[:n], ".")
}

// Hashimyei returns the resolved alias tag segment for a wikimyei path.
func (d *Decoded) Hashimyei() string {
	if len(d.Segments) >= 5 && d.Segments[1] == "wikimyei" {
		return d.Segments[4]
	}
	return ""
}
