package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/orql/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Entities []string          `json:"entities,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one problem found in a schema directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
	Field   string `json:"field,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schemas-dir]",
		Short: "Validate entity schemas",
		Long: `Validate the CUE entity schemas without compiling a query.

Every entity is compiled and cross-checked (id columns, reference keys,
association targets, many-to-many middle tables). All problems are reported,
not just the first. The directory defaults to --schemas.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Schemas
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, issues, err := ValidateSchemasDir(dir)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err)
	}
	formatter.VerboseLog("Validated %d entities in %s", len(result.Entities), dir)

	if len(issues) > 0 {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateSchemasDir validates every entity in dir.
//
// The returned error is set only when the directory itself could not be
// loaded (missing, no CUE files, CUE build failure); problems with individual
// entities are returned as issues.
func ValidateSchemasDir(dir string) (*ValidationResult, []ValidationIssue, error) {
	loaded, errs := schema.LoadDir(dir, schema.LoadModeCollectAll)
	if loaded == nil {
		return nil, nil, errs[0]
	}

	result := &ValidationResult{Valid: len(errs) == 0}
	for _, def := range loaded.Entities {
		result.Entities = append(result.Entities, def.Name)
	}
	sort.Strings(result.Entities)

	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issues = append(issues, toIssue(err))
	}
	result.Errors = issues
	return result, issues, nil
}

// toIssue converts a load or validation error into a ValidationIssue.
func toIssue(err error) ValidationIssue {
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.File = loadErr.Pos.Filename()
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	var validationErr schema.ValidationError
	if errors.As(err, &validationErr) {
		return ValidationIssue{
			Code:    validationErr.Code,
			Message: validationErr.Message,
			Entity:  validationErr.Entity,
			Field:   validationErr.Field,
		}
	}
	return ValidationIssue{Code: schema.ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All schemas valid (%d entities)\n", len(result.Entities))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	issues := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
