package querysql

import (
	"errors"
	"fmt"
)

// SQLGenerationError reports an AST that cannot be lowered.
//
// A tree returned by orql.Parse never triggers it; it guards hand-built or
// corrupted trees.
type SQLGenerationError struct {
	Path    string // path of the entity level being lowered, if known
	Message string
}

func (e *SQLGenerationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("sql generation error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("sql generation error: %s", e.Message)
}

// IsSQLGenerationError returns true if err is or wraps a SQLGenerationError.
func IsSQLGenerationError(err error) bool {
	var ge *SQLGenerationError
	return errors.As(err, &ge)
}

func genErrorf(path, format string, args ...any) *SQLGenerationError {
	return &SQLGenerationError{Path: path, Message: fmt.Sprintf(format, args...)}
}
