package circuit

import (
	"strings"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Parser parses a circuit DSL text into a Document of named circuits. It
// reads the whole token stream upfront (circuit texts are small) so it can
// use true lookahead to distinguish a circuit declaration ("name = {")
// from an invoke statement ("name (...)").
type Parser struct {
	toks []tok
	pos  int
}

// NewParser builds a Parser over src.
func NewParser(src string) (*Parser, error) {
	lex := newLexer(src)
	var toks []tok
	for {
		t, err := lex.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	return &Parser{toks: toks}, nil
}

func (p *Parser) at(offset int) tok {
	i := p.pos + offset
	if i >= len(p.toks) {
		return tok{kind: tokEOF}
	}
	return p.toks[i]
}

func (p *Parser) cur() tok { return p.at(0) }

func (p *Parser) advance() tok {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k tokKind, what string) (tok, error) {
	t := p.cur()
	if t.kind != k {
		return t, errctx.Newf(errctx.CodeParse, itoa(t.line), "expected %s, got %q", what, t.text)
	}
	return p.advance(), nil
}

// Parse consumes the whole document.
func (p *Parser) Parse() (*Document, error) {
	doc := &Document{}
	byName := map[string]*Circuit{}
	for p.cur().kind != tokEOF {
		if p.cur().kind != tokWord {
			return nil, errctx.Newf(errctx.CodeParse, itoa(p.cur().line), "unexpected token %q at top level", p.cur().text)
		}
		if p.at(1).kind == tokEq {
			c, err := p.parseCircuit()
			if err != nil {
				return nil, err
			}
			if byName[c.Name] != nil {
				return nil, errctx.New(errctx.CodeSchema, "duplicate circuit name %q", c.Name)
			}
			byName[c.Name] = c
			doc.Circuits = append(doc.Circuits, c)
			continue
		}
		name, payload, err := p.parseInvoke()
		if err != nil {
			return nil, err
		}
		target, ok := byName[name]
		if !ok {
			return nil, errctx.New(errctx.CodeTopology, "invoke %q does not match any declared circuit", name)
		}
		target.InvokeName = name
		target.InvokePayload = payload
	}
	return doc, nil
}

func (p *Parser) parseCircuit() (*Circuit, error) {
	name := p.advance().text
	if _, err := p.expect(tokEq, "'='"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	c := &Circuit{Name: name}
	seenAlias := map[string]bool{}
	for p.cur().kind != tokRBrace {
		if p.cur().kind != tokWord {
			return nil, errctx.Newf(errctx.CodeParse, itoa(p.cur().line), "unexpected token %q in circuit body", p.cur().text)
		}
		word := p.advance()
		if strings.Contains(word.text, "@") {
			from, err := parseEndpoint(word.text, true)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokArrow, "'->'"); err != nil {
				return nil, err
			}
			if p.cur().kind != tokWord {
				return nil, errctx.Newf(errctx.CodeParse, itoa(p.cur().line), "expected hop target after '->'")
			}
			toWord := p.advance()
			to, err := parseEndpoint(toWord.text, false)
			if err != nil {
				return nil, err
			}
			c.Hops = append(c.Hops, Hop{From: from, To: to, Line: word.line})
			continue
		}
		if _, err := p.expect(tokEq, "'='"); err != nil {
			return nil, err
		}
		if p.cur().kind != tokWord {
			return nil, errctx.Newf(errctx.CodeParse, itoa(p.cur().line), "expected tsi type path")
		}
		tsiType := p.advance()
		if seenAlias[word.text] {
			return nil, errctx.New(errctx.CodeTopology, "duplicate alias %q in circuit %q", word.text, name)
		}
		seenAlias[word.text] = true
		c.Instances = append(c.Instances, Instance{Alias: word.text, TsiType: tsiType.text, Line: word.line})
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Parser) parseInvoke() (string, string, error) {
	name := p.advance().text
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return "", "", err
	}
	var sb strings.Builder
	first := true
	for p.cur().kind != tokRParen {
		if p.cur().kind == tokEOF {
			return "", "", errctx.New(errctx.CodeParse, "unterminated invoke payload")
		}
		if !first {
			sb.WriteString(" ")
		}
		sb.WriteString(p.advance().text)
		first = false
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return "", "", err
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return "", "", err
	}
	return name, sb.String(), nil
}

// parseEndpoint splits "alias@directive:kind" (withKind) or "alias@directive".
func parseEndpoint(word string, withKind bool) (Endpoint, error) {
	at := strings.IndexByte(word, '@')
	if at < 0 {
		return Endpoint{}, errctx.New(errctx.CodeParse, "expected alias@directive in %q", word)
	}
	alias := word[:at]
	rest := word[at+1:]
	if !withKind {
		return Endpoint{Alias: alias, Directive: rest}, nil
	}
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Endpoint{}, errctx.New(errctx.CodeParse, "expected directive:kind in %q", word)
	}
	return Endpoint{Alias: alias, Directive: rest[:colon], Kind: rest[colon+1:]}, nil
}
