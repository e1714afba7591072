package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Params   []string // k=v pairs
	Limit    int
	Offset   int
}

// RunResult is the outcome of executing one query.
type RunResult struct {
	Query        string `json:"query"`
	Op           string `json:"op"`
	SQL          string `json:"sql"`
	Data         any    `json:"data,omitempty"`
	Count        *int64 `json:"count,omitempty"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
	LastInsertID int64  `json:"last_insert_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Execute an ORQL query against a database",
		Long: `Compile an ORQL query and execute it against a database.

Query results are nested into the shape the query asked for: an object for
{...} and an array for [...]. Counts print the number of matching root rows
and writes print the number of affected rows.

Parameter values are decoded as YAML scalars, so 1 is an integer, true a
boolean and null a NULL.

Example:
  orql run --db ./blog.db 'get user(id = $id): {name, posts: [title]}' --param id=1
  orql run --dialect postgres --db 'postgres://localhost/blog' 'count post'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database DSN, a file path for sqlite (required)")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "query parameter as name=value (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of root rows (0 = unlimited)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of root rows to skip")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *RunOptions, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	dialect, err := parseDialect(opts.RootOptions)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInvalidDialect, err)
	}
	params, err := ParseParams(opts.Params)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInvalidParam, err)
	}

	c, err := loadCompiler(opts.RootOptions, formatter, logger)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err)
	}
	compiled, err := c.Compile(src, pageFlags(opts.Limit, opts.Offset))
	if err != nil {
		return fail(formatter, ExitFailure, errorCode(err), err)
	}

	logger.Debug("opening database", "dialect", dialect, "dsn", opts.Database)
	st, err := store.Open(dialect, opts.Database, store.WithLogger(logger))
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDatabase, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling query", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := st.Run(ctx, compiled.Query, compiled.Statement, params)
	if err != nil {
		code := errorCode(err)
		if code == schema.ErrCodeGeneric {
			code = ErrCodeDatabase
		}
		return fail(formatter, ExitFailure, code, err)
	}

	return outputRunSuccess(formatter, &RunResult{
		Query:        src,
		Op:           compiled.Query.Op.String(),
		SQL:          res.SQL,
		Data:         res.Data,
		Count:        res.Count,
		RowsAffected: res.RowsAffected,
		LastInsertID: res.LastInsertID,
	}, logger)
}

// ParseParams decodes name=value pairs. Values are YAML scalars; a value
// YAML cannot parse is kept as a string.
func ParseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: want name=value", pair)
		}
		name = strings.TrimPrefix(name, "$")

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			// Not a YAML scalar (e.g. a LIKE pattern starting with %): take it verbatim.
			value = raw
		}
		switch value.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("invalid value for parameter %q: want a scalar", name)
		}
		params[name] = value
	}
	return params, nil
}

// outputRunSuccess outputs an execution result.
func outputRunSuccess(formatter *OutputFormatter, result *RunResult, logger *slog.Logger) error {
	logger.Debug("query finished", "op", result.Op, "sql", result.SQL)

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	switch {
	case result.Count != nil:
		fmt.Fprintf(formatter.Writer, "count: %d\n", *result.Count)
	case result.Op == "query":
		data, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling data: %w", err)
		}
		fmt.Fprintln(formatter.Writer, string(data))
	default:
		fmt.Fprintf(formatter.Writer, "rows affected: %d\n", result.RowsAffected)
		if result.LastInsertID != 0 {
			fmt.Fprintf(formatter.Writer, "last insert id: %d\n", result.LastInsertID)
		}
	}
	return nil
}
