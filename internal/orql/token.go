package orql

import "fmt"

// TokenKind tags a lexical token.
type TokenKind int

const (
	ILLEGAL TokenKind = iota
	EOF

	NAME  // user, name, asc
	PARAM // $id
	INT
	FLOAT
	STRING
	BOOL
	NULL

	ORDER // order
	LIKE  // like

	OPEN_PAREN    // (
	CLOSE_PAREN   // )
	OPEN_CURLY    // {
	CLOSE_CURLY   // }
	OPEN_BRACKET  // [
	CLOSE_BRACKET // ]
	COLON         // :
	COMMA         // ,

	EQ // =
	GT // >
	GE // >=
	LT // <
	LE // <=
	NE // <>

	AND // &&
	OR  // ||
	ALL // *
	NOT // !
)

var tokenNames = map[TokenKind]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	NAME:          "NAME",
	PARAM:         "PARAM",
	INT:           "INT",
	FLOAT:         "FLOAT",
	STRING:        "STRING",
	BOOL:          "BOOL",
	NULL:          "NULL",
	ORDER:         "ORDER",
	LIKE:          "LIKE",
	OPEN_PAREN:    "OPEN_PAREN",
	CLOSE_PAREN:   "CLOSE_PAREN",
	OPEN_CURLY:    "OPEN_CURLY",
	CLOSE_CURLY:   "CLOSE_CURLY",
	OPEN_BRACKET:  "OPEN_BRACKET",
	CLOSE_BRACKET: "CLOSE_BRACKET",
	COLON:         "COLON",
	COMMA:         "COMMA",
	EQ:            "EQ",
	GT:            "GT",
	GE:            "GE",
	LT:            "LT",
	LE:            "LE",
	NE:            "NE",
	AND:           "AND",
	OR:            "OR",
	ALL:           "ALL",
	NOT:           "NOT",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexical unit. Text holds the literal source text, except
// for STRING (unquoted contents), PARAM (name without '$') and ILLEGAL (the
// lexical error message).
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int // byte offset in the source
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "EOF"
	case ILLEGAL:
		return fmt.Sprintf("ILLEGAL(%s)", t.Text)
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

// keywords are reserved names lexed into dedicated kinds.
// asc and desc stay NAME; the parser matches them by text.
var keywords = map[string]TokenKind{
	"order": ORDER,
	"like":  LIKE,
	"true":  BOOL,
	"false": BOOL,
	"null":  NULL,
}
