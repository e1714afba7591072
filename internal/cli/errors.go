package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/orql/internal/compiler"
	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/store"
)

// Error codes for CLI output. Schema loading codes (E001-E011) and schema
// validation codes (E1xx) come from the schema package.
const (
	ErrCodeWriteFailed    = "E008" // File write error
	ErrCodeInvalidDialect = "E009" // Unknown --dialect value

	ErrCodeSyntax       = "E201" // Query rejected by the parser
	ErrCodeGeneration   = "E202" // Query could not be lowered or rendered
	ErrCodeMissingParam = "E203" // Placeholder without a --param value
	ErrCodeInvalidParam = "E204" // Malformed --param flag

	ErrCodeDatabase = "E301" // Database open or execution error
)

// errorCode maps an error to its CLI error code.
func errorCode(err error) string {
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var validationErr schema.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code
	}
	var missing *store.MissingParamError
	switch {
	case orql.IsSyntaxError(err):
		return ErrCodeSyntax
	case querysql.IsSQLGenerationError(err):
		return ErrCodeGeneration
	case errors.As(err, &missing):
		return ErrCodeMissingParam
	}
	return schema.ErrCodeGeneric
}

// errorMessage is err's message without the code prefix load errors carry.
func errorMessage(err error) string {
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return err.Error()
}

// fail reports err through the formatter and returns an ExitError carrying
// exit so the command terminates with it.
func fail(formatter *OutputFormatter, exit int, code string, err error) error {
	message := errorMessage(err)
	_ = formatter.Error(code, message, nil)
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), nil)
}

// newLogger builds the text logger used by commands: info by default, debug
// under --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadCompiler loads the --schemas directory, stopping at the first error,
// and returns a Compiler over it.
func loadCompiler(opts *RootOptions, formatter *OutputFormatter, logger *slog.Logger) (*compiler.Compiler, error) {
	res, errs := schema.LoadDir(opts.Schemas, schema.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	formatter.VerboseLog("Loaded %d entities from %d CUE file(s) in %s", len(res.Entities), res.FileCount, opts.Schemas)
	return compiler.New(res.Registry, compiler.WithLogger(logger)), nil
}

// parseDialect validates the --dialect flag.
func parseDialect(opts *RootOptions) (querysql.Dialect, error) {
	if opts.Dialect == "" {
		return querysql.SQLite, nil
	}
	d, err := querysql.ParseDialect(opts.Dialect)
	if err != nil {
		return "", fmt.Errorf("invalid dialect: %w", err)
	}
	return d, nil
}
