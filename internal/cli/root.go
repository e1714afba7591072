package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/orql/internal/querysql"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Schemas string // CUE schema directory
	Dialect string // "sqlite" | "postgres" | "mysql"

	// TraceIDs allows overriding the trace id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TraceIDs TraceIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the orql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "orql",
		Short: "ORQL - object-relational query language",
		Long:  "Compile ORQL queries against CUE entity schemas into SQL, and run them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := querysql.ParseDialect(opts.Dialect); err != nil {
				return err
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Schemas, "schemas", "schemas", "directory of CUE entity schemas")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", string(querysql.SQLite), "SQL dialect (sqlite|postgres|mysql)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) traceIDs() TraceIDGenerator {
	if o.TraceIDs == nil {
		return UUIDv7Generator{}
	}
	return o.TraceIDs
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
