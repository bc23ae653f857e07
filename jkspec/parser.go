package jkspec

import (
	"strings"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// namedBlockKeywords lists every keyword a PROFILE body may contain.
var namedBlockKeywords = map[string]bool{
	"OPTIMIZER": true, "LR_SCHEDULER": true, "LOSS": true,
	"COMPONENT_PARAMS": true, "REPRODUCIBILITY": true, "NUMERICS": true,
	"GRADIENT": true, "CHECKPOINT": true, "METRICS": true, "DATA_REF": true,
}

// typedBlockKeywords are the blocks that carry a type token before their body.
var typedBlockKeywords = map[string]bool{"OPTIMIZER": true, "LR_SCHEDULER": true, "LOSS": true}

// Parser is a recursive-descent parser over a Lexer, consuming exactly the
// JKSPEC grammar.
type Parser struct {
	lex *Lexer
}

// NewParser builds a Parser over src.
func NewParser(src string) *Parser {
	return &Parser{lex: NewLexer(src)}
}

func (p *Parser) next() (Token, error)  { return p.lex.Next() }
func (p *Parser) peek() (Token, error)  { return p.lex.Peek() }

func (p *Parser) expectIdent(want string) (Token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.Kind != TokIdent || !strings.EqualFold(t.Text, want) {
		return t, errctx.Newf(errctx.CodeParse, loc(t), "expected %q, got %q", want, t.Text)
	}
	return t, nil
}

func (p *Parser) expectKind(k TokenKind, what string) (Token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.Kind != k {
		return t, errctx.Newf(errctx.CodeParse, loc(t), "expected %s, got %q", what, t.Text)
	}
	return t, nil
}

func loc(t Token) string { return itoa(t.Line) + ":" + itoa(t.Column) }

// Parse consumes the whole document.
func (p *Parser) Parse() (*Document, error) {
	if _, err := p.expectIdent("JKSPEC"); err != nil {
		return nil, err
	}
	ver, err := p.next()
	if err != nil {
		return nil, err
	}
	doc := &Document{Version: ver.Text}

	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.Kind == TokIdent && strings.EqualFold(t.Text, "SELECTORS") {
		if _, err := p.next(); err != nil {
			return nil, err
		}
		kv, err := p.parseKVBlock()
		if err != nil {
			return nil, err
		}
		doc.Selectors = kv
	}

	seenRowIDs := map[string]bool{}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokEOF {
			break
		}
		if t.Kind != TokIdent || !strings.EqualFold(t.Text, "COMPONENT") {
			return nil, errctx.Newf(errctx.CodeParse, loc(t), "expected COMPONENT, got %q", t.Text)
		}
		comp, err := p.parseComponent()
		if err != nil {
			return nil, err
		}
		if seenRowIDs[comp.RowID] {
			return nil, errctx.New(errctx.CodeSchema, "duplicate component row_id %q", comp.RowID)
		}
		seenRowIDs[comp.RowID] = true
		doc.Components = append(doc.Components, comp)
	}
	if len(doc.Components) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "JKSPEC document must contain at least one COMPONENT block")
	}
	return doc, nil
}

func (p *Parser) parseComponent() (*ComponentNode, error) {
	kw, _ := p.next()
	rowID, err := p.expectKind(TokString, "component row_id string")
	if err != nil {
		return nil, err
	}
	compType, err := p.expectKind(TokString, "component type string")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(TokLBrace, "{"); err != nil {
		return nil, err
	}
	c := &ComponentNode{RowID: rowID.Text, ComponentType: compType.Text, Line: kw.Line}
	seenProfiles := map[string]bool{}
	seenAug := map[string]bool{}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokRBrace {
			p.next()
			break
		}
		if t.Kind != TokIdent {
			return nil, errctx.Newf(errctx.CodeParse, loc(t), "unexpected token %q in COMPONENT body", t.Text)
		}
		switch strings.ToUpper(t.Text) {
		case "ACTIVE_PROFILE":
			p.next()
			if _, err := p.expectKind(TokColon, ":"); err != nil {
				return nil, err
			}
			v, err := p.next()
			if err != nil {
				return nil, err
			}
			if c.ActiveProfileSet {
				return nil, errctx.New(errctx.CodeSchema, "duplicate ACTIVE_PROFILE in component %q", c.RowID)
			}
			c.ActiveProfile = v.Text
			c.ActiveProfileSet = true
		case "PROFILE":
			prof, err := p.parseProfile()
			if err != nil {
				return nil, err
			}
			if seenProfiles[prof.Name] {
				return nil, errctx.New(errctx.CodeSchema, "duplicate profile name %q in component %q", prof.Name, c.RowID)
			}
			seenProfiles[prof.Name] = true
			c.Profiles = append(c.Profiles, prof)
		case "AUGMENTATIONS":
			aug, err := p.parseAugmentations()
			if err != nil {
				return nil, err
			}
			if seenAug[aug.Name] {
				return nil, errctx.New(errctx.CodeSchema, "duplicate augmentations set %q in component %q", aug.Name, c.RowID)
			}
			seenAug[aug.Name] = true
			c.Augmentations = append(c.Augmentations, aug)
		default:
			return nil, errctx.Newf(errctx.CodeParse, loc(t), "unexpected keyword %q in COMPONENT body", t.Text)
		}
	}
	if !c.ActiveProfileSet {
		return nil, errctx.New(errctx.CodeSchema, "component %q is missing ACTIVE_PROFILE", c.RowID)
	}
	return c, nil
}

func (p *Parser) parseProfile() (*ProfileNode, error) {
	kw, _ := p.next()
	name, err := p.expectKind(TokString, "profile name string")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(TokLBrace, "{"); err != nil {
		return nil, err
	}
	prof := &ProfileNode{Name: name.Text, Line: kw.Line}
	seen := map[string]bool{}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokRBrace {
			p.next()
			break
		}
		if t.Kind != TokIdent || !namedBlockKeywords[strings.ToUpper(t.Text)] {
			return nil, errctx.Newf(errctx.CodeParse, loc(t), "unexpected token %q in PROFILE body", t.Text)
		}
		keyword := strings.ToUpper(t.Text)
		block, err := p.parseNamedBlock(keyword)
		if err != nil {
			return nil, err
		}
		if seen[keyword] {
			return nil, errctx.New(errctx.CodeSchema, "duplicate %s block in profile %q", keyword, prof.Name)
		}
		seen[keyword] = true
		prof.Blocks = append(prof.Blocks, block)
	}
	return prof, nil
}

func (p *Parser) parseNamedBlock(keyword string) (NamedBlock, error) {
	kwTok, _ := p.next()
	nb := NamedBlock{Keyword: keyword, Line: kwTok.Line}
	if typedBlockKeywords[keyword] {
		typeTok, err := p.next()
		if err != nil {
			return nb, err
		}
		nb.Type = typeTok.Text
	}
	kv, err := p.parseKVBlock()
	if err != nil {
		return nb, err
	}
	nb.Body = kv
	return nb, nil
}

func (p *Parser) parseAugmentations() (*AugmentationSet, error) {
	kw, _ := p.next()
	name, err := p.expectKind(TokString, "augmentations name string")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(TokLBrace, "{"); err != nil {
		return nil, err
	}
	set := &AugmentationSet{Name: name.Text, Line: kw.Line}
	seen := map[string]bool{}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokRBrace {
			p.next()
			break
		}
		if t.Kind != TokIdent {
			return nil, errctx.Newf(errctx.CodeParse, loc(t), "unexpected token %q in AUGMENTATIONS body", t.Text)
		}
		curveKw, _ := p.next()
		if seen[strings.ToUpper(curveKw.Text)] {
			return nil, errctx.New(errctx.CodeSchema, "duplicate curve kind %q in augmentations %q", curveKw.Text, set.Name)
		}
		seen[strings.ToUpper(curveKw.Text)] = true
		kv, err := p.parseKVBlock()
		if err != nil {
			return nil, err
		}
		set.Curves = append(set.Curves, CurveRow{Kind: curveKw.Text, Body: kv, Line: curveKw.Line})
	}
	return set, nil
}

func (p *Parser) parseKVBlock() (*KVBlock, error) {
	if _, err := p.expectKind(TokLBrace, "{"); err != nil {
		return nil, err
	}
	kv := newKVBlock()
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokRBrace {
			p.next()
			break
		}
		keyTok, err := p.expectKind(TokIdent, "key identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(TokColon, ":"); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if !kv.set(keyTok.Text, val, keyTok.Line) {
			return nil, errctx.New(errctx.CodeSchema, "duplicate key %q in block", keyTok.Text)
		}
	}
	return kv, nil
}

func (p *Parser) parseValue() (RawValue, error) {
	t, err := p.peek()
	if err != nil {
		return RawValue{}, err
	}
	if t.Kind == TokLBracket {
		p.next()
		var scalars []RawScalar
		first := true
		for {
			pk, err := p.peek()
			if err != nil {
				return RawValue{}, err
			}
			if pk.Kind == TokRBracket {
				p.next()
				break
			}
			if !first {
				if _, err := p.expectKind(TokComma, ","); err != nil {
					return RawValue{}, err
				}
			}
			s, err := p.parseScalar()
			if err != nil {
				return RawValue{}, err
			}
			scalars = append(scalars, s)
			first = false
		}
		return RawValue{IsList: true, Scalars: scalars}, nil
	}
	s, err := p.parseScalar()
	if err != nil {
		return RawValue{}, err
	}
	return RawValue{Scalars: []RawScalar{s}}, nil
}

func (p *Parser) parseScalar() (RawScalar, error) {
	t, err := p.next()
	if err != nil {
		return RawScalar{}, err
	}
	if t.Kind != TokString && t.Kind != TokIdent {
		return RawScalar{}, errctx.Newf(errctx.CodeParse, loc(t), "expected scalar value, got %q", t.Text)
	}
	return RawScalar{Text: t.Text, Quoted: t.Kind == TokString}, nil
}
