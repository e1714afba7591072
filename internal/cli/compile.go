package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/sqlast"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Limit  int    // 0 means no limit
	Offset int    // rows to skip
	Output string // output file path
}

// CompilationResult is one query compiled for one dialect.
type CompilationResult struct {
	Query   string   `json:"query"`
	Op      string   `json:"op"`
	Dialect string   `json:"dialect"`
	SQL     string   `json:"sql"`
	Params  []string `json:"params"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Compile an ORQL query to SQL",
		Long: `Compile an ORQL query against the entity schemas and print the SQL
statement for the selected dialect, followed by the parameter names bound
to its placeholders in order.

Examples:
  orql compile --schemas ./schemas 'get user(id = $id): {name, posts: [title]}'
  orql compile --dialect postgres --limit 10 'get post(order id): [title]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of root rows (0 = unlimited)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of root rows to skip")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Limit < 0 || opts.Offset < 0 {
		return fail(formatter, ExitCommandError, schema.ErrCodeGeneric, fmt.Errorf("--limit and --offset must be non-negative"))
	}
	dialect, err := parseDialect(opts.RootOptions)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInvalidDialect, err)
	}

	c, err := loadCompiler(opts.RootOptions, formatter, newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err)
	}

	compiled, err := c.Compile(src, pageFlags(opts.Limit, opts.Offset))
	if err != nil {
		return fail(formatter, ExitFailure, errorCode(err), err)
	}
	formatter.VerboseLog("Compiled %s on %s to %T", compiled.Query.Op, compiled.Query.Root.Name, compiled.Statement)

	rendered, err := c.Render(compiled, dialect)
	if err != nil {
		return fail(formatter, ExitFailure, errorCode(err), err)
	}

	result := &CompilationResult{
		Query:   src,
		Op:      compiled.Query.Op.String(),
		Dialect: string(dialect),
		SQL:     rendered.SQL,
		Params:  rendered.Params,
	}
	if result.Params == nil {
		result.Params = []string{}
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return fail(formatter, ExitCommandError, ErrCodeWriteFailed, fmt.Errorf("writing output file: %w", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// pageFlags converts --limit/--offset into a page, nil when neither is set.
func pageFlags(limit, offset int) *sqlast.Page {
	if limit == 0 && offset == 0 {
		return nil
	}
	return &sqlast.Page{Offset: offset, Limit: limit}
}

// outputCompileSuccess outputs the compiled statement.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "-- %s (%s)\n", result.Op, result.Dialect)
	fmt.Fprintln(formatter.Writer, result.SQL)
	if len(result.Params) > 0 {
		fmt.Fprintf(formatter.Writer, "-- params: %s\n", strings.Join(result.Params, ", "))
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled query to %s\n", outputFile)
	}

	return nil
}

// writeResultToFile writes the compilation result to a file as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
