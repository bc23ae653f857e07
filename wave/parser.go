package wave

import (
	"strconv"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Parser parses a wave DSL text into a Document of named waves.
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

func (p *Parser) cur() tok {
	if p.pos >= len(p.toks) {
		return tok{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() tok {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expectWord(want string) (tok, error) {
	t := p.cur()
	if t.kind != tokWord || t.text != want {
		return t, errctx.Newf(errctx.CodeParse, itoa(t.line), "expected %q, got %q", want, t.text)
	}
	return p.advance(), nil
}

func (p *Parser) expectKind(k tokKind, what string) (tok, error) {
	t := p.cur()
	if t.kind != k {
		return t, errctx.Newf(errctx.CodeParse, itoa(t.line), "expected %s, got %q", what, t.text)
	}
	return p.advance(), nil
}

// Parse consumes the whole document.
func (p *Parser) Parse() (*Document, error) {
	doc := &Document{}
	seen := map[string]bool{}
	for p.cur().kind != tokEOF {
		w, err := p.parseWave()
		if err != nil {
			return nil, err
		}
		if seen[w.Name] {
			return nil, errctx.New(errctx.CodeSchema, "duplicate wave name %q", w.Name)
		}
		seen[w.Name] = true
		doc.Waves = append(doc.Waves, w)
	}
	return doc, nil
}

var reservedTopWords = map[string]bool{
	"MODE": true, "SAMPLER": true, "EPOCHS": true, "BATCH_SIZE": true,
	"MAX_BATCHES_PER_EPOCH": true, "WIKIMYEI": true, "SOURCE": true,
}

func (p *Parser) parseWave() (*Wave, error) {
	if _, err := p.expectWord("WAVE"); err != nil {
		return nil, err
	}
	nameTok, err := p.expectKind(tokWord, "wave name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	w := &Wave{Name: nameTok.text, Line: nameTok.line}
	for p.cur().kind != tokRBrace {
		if p.cur().kind != tokWord {
			return nil, errctx.Newf(errctx.CodeParse, itoa(p.cur().line), "unexpected token %q in wave body", p.cur().text)
		}
		keyword := p.advance()
		switch keyword.text {
		case "MODE":
			v, err := p.expectKind(tokWord, "run|train")
			if err != nil {
				return nil, err
			}
			switch v.text {
			case "train":
				w.Mode = ModeTrain
			case "run":
				w.Mode = ModeRun
			default:
				return nil, errctx.Newf(errctx.CodeSchema, itoa(v.line), "invalid MODE %q, want run or train", v.text)
			}
		case "SAMPLER":
			v, err := p.expectKind(tokWord, "sequential|random")
			if err != nil {
				return nil, err
			}
			switch v.text {
			case "random":
				w.Sampler = SamplerRandom
			case "sequential":
				w.Sampler = SamplerSequential
			default:
				return nil, errctx.Newf(errctx.CodeSchema, itoa(v.line), "invalid SAMPLER %q, want sequential or random", v.text)
			}
		case "EPOCHS":
			n, err := p.parseIntWord()
			if err != nil {
				return nil, err
			}
			w.Epochs = n
		case "BATCH_SIZE":
			n, err := p.parseIntWord()
			if err != nil {
				return nil, err
			}
			w.BatchSize = n
		case "MAX_BATCHES_PER_EPOCH":
			n, err := p.parseIntWord()
			if err != nil {
				return nil, err
			}
			w.MaxBatchesPerEpoch = n
		case "WIKIMYEI":
			e, err := p.parseWikimyeiEntry(keyword.line)
			if err != nil {
				return nil, err
			}
			w.WikimyeiEntries = append(w.WikimyeiEntries, e)
		case "SOURCE":
			e, err := p.parseSourceEntry(keyword.line)
			if err != nil {
				return nil, err
			}
			w.SourceEntries = append(w.SourceEntries, e)
		default:
			return nil, errctx.Newf(errctx.CodeParse, itoa(keyword.line), "unrecognized wave keyword %q", keyword.text)
		}
	}
	if _, err := p.expectKind(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return w, nil
}

func (p *Parser) parseIntWord() (int64, error) {
	t, err := p.expectKind(tokWord, "integer")
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(t.text, 10, 64)
	if perr != nil {
		return 0, errctx.Newf(errctx.CodeSchema, itoa(t.line), "expected integer, got %q", t.text)
	}
	return n, nil
}

func (p *Parser) atStop() bool {
	if p.cur().kind == tokRBrace || p.cur().kind == tokEOF {
		return true
	}
	return p.cur().kind == tokWord && reservedTopWords[p.cur().text]
}

func (p *Parser) parseWikimyeiEntry(line int) (WikimyeiEntry, error) {
	e := WikimyeiEntry{Line: line}
	havePath := false
	for !p.atStop() {
		key := p.advance()
		switch key.text {
		case "PATH":
			v, err := p.expectKind(tokWord, "canonical path")
			if err != nil {
				return e, err
			}
			e.Path = v.text
			havePath = true
		case "TRAIN":
			v, err := p.expectKind(tokWord, "true|false")
			if err != nil {
				return e, err
			}
			b, ok := parseBoolWord(v.text)
			if !ok {
				return e, errctx.Newf(errctx.CodeSchema, itoa(v.line), "invalid TRAIN value %q", v.text)
			}
			e.Train = b
		case "PROFILE_ID":
			v, err := p.expectKind(tokWord, "profile id")
			if err != nil {
				return e, err
			}
			e.ProfileID = v.text
		default:
			return e, errctx.Newf(errctx.CodeParse, itoa(key.line), "unrecognized WIKIMYEI field %q", key.text)
		}
	}
	if !havePath {
		return e, errctx.New(errctx.CodeSchema, "WIKIMYEI entry at line %d missing PATH", line)
	}
	return e, nil
}

func (p *Parser) parseSourceEntry(line int) (SourceEntry, error) {
	e := SourceEntry{Line: line}
	havePath, haveFrom, haveTo := false, false, false
	for !p.atStop() {
		key := p.advance()
		switch key.text {
		case "PATH":
			v, err := p.expectKind(tokWord, "canonical path")
			if err != nil {
				return e, err
			}
			e.Path = v.text
			havePath = true
		case "SYMBOL":
			v, err := p.expectKind(tokWord, "symbol")
			if err != nil {
				return e, err
			}
			e.Symbol = v.text
		case "FROM":
			v, err := p.expectKind(tokWord, "dd.mm.yyyy")
			if err != nil {
				return e, err
			}
			t, err := parseDayStart(v.text)
			if err != nil {
				return e, errctx.Wrap(errctx.CodeRange, err, "FROM at line %d", v.line)
			}
			e.From = t
			haveFrom = true
		case "TO":
			v, err := p.expectKind(tokWord, "dd.mm.yyyy")
			if err != nil {
				return e, err
			}
			t, err := parseDayEnd(v.text)
			if err != nil {
				return e, errctx.Wrap(errctx.CodeRange, err, "TO at line %d", v.line)
			}
			e.To = t
			haveTo = true
		default:
			return e, errctx.Newf(errctx.CodeParse, itoa(key.line), "unrecognized SOURCE field %q", key.text)
		}
	}
	if !havePath {
		return e, errctx.New(errctx.CodeSchema, "SOURCE entry at line %d missing PATH", line)
	}
	if haveFrom != haveTo {
		return e, errctx.New(errctx.CodeSchema, "SOURCE entry at line %d: FROM and TO must both be present or both absent", line)
	}
	if haveFrom && e.To.Before(e.From) {
		e.From, e.To = e.To, e.From
	}
	return e, nil
}

func parseBoolWord(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
