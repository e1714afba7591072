package orql

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TokenSource is the pull contract between the tokenizer and the parser.
// Next must keep returning EOF once the input is exhausted and must report
// lexical problems as ILLEGAL tokens rather than panicking.
type TokenSource interface {
	Next() Token
}

// Lexer tokenizes ORQL source text.
type Lexer struct {
	s   scanner.Scanner
	src string
	err string
}

var _ TokenSource = (*Lexer)(nil)

// NewLexer creates a lexer for the given source.
func NewLexer(src string) *Lexer {
	l := &Lexer{src: src}
	l.s.Init(strings.NewReader(src))
	l.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	l.s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || unicode.IsLetter(ch) ||
			(i > 0 && (unicode.IsDigit(ch) || unicode.IsMark(ch)))
	}
	l.s.Error = func(_ *scanner.Scanner, msg string) {
		if l.err == "" {
			l.err = msg
		}
	}
	return l
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	l.err = ""
	r := l.s.Scan()
	off := l.s.Position.Offset
	if l.err != "" {
		return Token{Kind: ILLEGAL, Text: l.err, Offset: off}
	}

	tok := func(kind TokenKind, text string) Token {
		return Token{Kind: kind, Text: text, Offset: off}
	}

	switch r {
	case scanner.EOF:
		return Token{Kind: EOF, Offset: len(l.src)}
	case scanner.Ident:
		text := norm.NFC.String(l.s.TokenText())
		if kind, ok := keywords[text]; ok {
			return tok(kind, text)
		}
		return tok(NAME, text)
	case scanner.Int:
		return tok(INT, l.s.TokenText())
	case scanner.Float:
		return tok(FLOAT, l.s.TokenText())
	case scanner.String:
		s, err := strconv.Unquote(l.s.TokenText())
		if err != nil {
			return tok(ILLEGAL, fmt.Sprintf("invalid string literal %s", l.s.TokenText()))
		}
		return tok(STRING, s)
	case '\'':
		return l.singleQuoted(off)
	case '$':
		if !isIdentStart(l.s.Peek()) {
			return tok(ILLEGAL, "expected parameter name after '$'")
		}
		if l.s.Scan() != scanner.Ident {
			return tok(ILLEGAL, "expected parameter name after '$'")
		}
		return tok(PARAM, norm.NFC.String(l.s.TokenText()))
	case '-':
		if next := l.s.Peek(); next < '0' || next > '9' {
			return tok(ILLEGAL, "unexpected character '-'")
		}
		switch l.s.Scan() {
		case scanner.Int:
			return tok(INT, "-"+l.s.TokenText())
		case scanner.Float:
			return tok(FLOAT, "-"+l.s.TokenText())
		}
		return tok(ILLEGAL, "malformed number")
	case '(':
		return tok(OPEN_PAREN, "(")
	case ')':
		return tok(CLOSE_PAREN, ")")
	case '{':
		return tok(OPEN_CURLY, "{")
	case '}':
		return tok(CLOSE_CURLY, "}")
	case '[':
		return tok(OPEN_BRACKET, "[")
	case ']':
		return tok(CLOSE_BRACKET, "]")
	case ':':
		return tok(COLON, ":")
	case ',':
		return tok(COMMA, ",")
	case '*':
		return tok(ALL, "*")
	case '=':
		return tok(EQ, "=")
	case '>':
		if l.s.Peek() == '=' {
			l.s.Next()
			return tok(GE, ">=")
		}
		return tok(GT, ">")
	case '<':
		switch l.s.Peek() {
		case '=':
			l.s.Next()
			return tok(LE, "<=")
		case '>':
			l.s.Next()
			return tok(NE, "<>")
		}
		return tok(LT, "<")
	case '!':
		if l.s.Peek() == '=' {
			l.s.Next()
			return tok(NE, "!=")
		}
		return tok(NOT, "!")
	case '&':
		if l.s.Peek() == '&' {
			l.s.Next()
			return tok(AND, "&&")
		}
		return tok(ILLEGAL, "unexpected character '&'")
	case '|':
		if l.s.Peek() == '|' {
			l.s.Next()
			return tok(OR, "||")
		}
		return tok(ILLEGAL, "unexpected character '|'")
	}

	return tok(ILLEGAL, fmt.Sprintf("unexpected character %q", r))
}

// singleQuoted reads a '...' string literal. A doubled quote ('') is an
// escaped quote.
func (l *Lexer) singleQuoted(off int) Token {
	var b strings.Builder
	for {
		ch := l.s.Next()
		switch ch {
		case scanner.EOF:
			return Token{Kind: ILLEGAL, Text: "unterminated string literal", Offset: off}
		case '\'':
			if l.s.Peek() == '\'' {
				l.s.Next()
				b.WriteRune('\'')
				continue
			}
			return Token{Kind: STRING, Text: b.String(), Offset: off}
		default:
			b.WriteRune(ch)
		}
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

// Tokenize returns every token up to and including EOF (or the first
// ILLEGAL token). Intended for diagnostics and tests.
func Tokenize(src string) []Token {
	l := NewLexer(src)
	var toks []Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Kind == EOF || t.Kind == ILLEGAL {
			return toks
		}
	}
}
