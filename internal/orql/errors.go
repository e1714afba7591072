package orql

import (
	"errors"
	"fmt"
)

// SyntaxError reports a grammar or semantic violation found while parsing.
// Parsing stops at the first error; no partial AST is ever returned.
type SyntaxError struct {
	Message string
	Offset  int // byte offset of the offending token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Message)
}

// IsSyntaxError returns true if err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}
