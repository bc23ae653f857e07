package circuit

import (
	"strconv"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

type tokKind int

const (
	tokWord tokKind = iota
	tokEq
	tokLBrace
	tokRBrace
	tokArrow
	tokLParen
	tokRParen
	tokSemi
	tokComma
	tokEOF
)

type tok struct {
	kind tokKind
	text string
	line int
}

type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer { return &lexer{src: src, line: 1} }

func isSp(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

func (l *lexer) skip() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isSp(c) {
			if c == '\n' {
				l.line++
			}
			l.pos++
			continue
		}
		if c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

func isSpecial(c byte) bool {
	switch c {
	case '=', '{', '}', '(', ')', ';', ',':
		return true
	}
	return false
}

func (l *lexer) next() (tok, error) {
	l.skip()
	if l.pos >= len(l.src) {
		return tok{kind: tokEOF, line: l.line}, nil
	}
	line := l.line
	c := l.src[l.pos]
	switch {
	case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>':
		l.pos += 2
		return tok{kind: tokArrow, text: "->", line: line}, nil
	case c == '=':
		l.pos++
		return tok{kind: tokEq, text: "=", line: line}, nil
	case c == '{':
		l.pos++
		return tok{kind: tokLBrace, text: "{", line: line}, nil
	case c == '}':
		l.pos++
		return tok{kind: tokRBrace, text: "}", line: line}, nil
	case c == '(':
		l.pos++
		return tok{kind: tokLParen, text: "(", line: line}, nil
	case c == ')':
		l.pos++
		return tok{kind: tokRParen, text: ")", line: line}, nil
	case c == ';':
		l.pos++
		return tok{kind: tokSemi, text: ";", line: line}, nil
	case c == ',':
		l.pos++
		return tok{kind: tokComma, text: ",", line: line}, nil
	default:
		start := l.pos
		for l.pos < len(l.src) {
			cc := l.src[l.pos]
			if isSp(cc) || isSpecial(cc) {
				break
			}
			if cc == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
				break
			}
			l.pos++
		}
		if l.pos == start {
			return tok{}, errctx.Newf(errctx.CodeParse, itoa(line), "unexpected character %q", string(c))
		}
		return tok{kind: tokWord, text: l.src[start:l.pos], line: line}, nil
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
