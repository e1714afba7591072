package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/orql/internal/schema"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [schemas-dir]",
		Short: "Re-validate schemas whenever they change",
		Long: `Validate the CUE entity schemas, then validate again every time a .cue
file in the directory is written, created, renamed or removed. Runs until
interrupted.

Example:
  orql watch ./schemas
  orql watch --format json ./schemas`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Schemas
			if len(args) == 1 {
				dir = args[0]
			}
			return runWatch(opts, dir, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "quiet period before re-validating")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fail(formatter, ExitCommandError, schema.ErrCodeNotFound, fmt.Errorf("schemas directory not found: %s", dir))
	}

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
			logger.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("watching schemas", "dir", dir)
	err = watchSchemas(ctx, dir, opts.Debounce, func() {
		reportValidation(formatter, dir)
	})
	if err != nil {
		return fail(formatter, ExitCommandError, schema.ErrCodeGeneric, err)
	}
	logger.Info("watch stopped")
	return nil
}

// reportValidation validates dir and prints the outcome. Failures are
// printed, not returned, so the watch keeps running.
func reportValidation(formatter *OutputFormatter, dir string) {
	if formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "[%s] validating %s\n", time.Now().Format(time.TimeOnly), dir)
	}

	result, issues, err := ValidateSchemasDir(dir)
	switch {
	case err != nil:
		_ = formatter.Error(errorCode(err), errorMessage(err), nil)
	case len(issues) > 0:
		_ = outputValidationErrors(formatter, result)
	default:
		_ = outputValidateSuccess(formatter, result)
	}
}

// watchSchemas calls validate once, then again after every burst of .cue
// file changes under dir, until ctx is done. Changes closer together than
// debounce are coalesced into one call.
func watchSchemas(ctx context.Context, dir string, debounce time.Duration, validate func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	validate()

	// Armed only while a burst of changes is pending.
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSchemaChange(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		case <-timer.C:
			validate()
		}
	}
}

// isSchemaChange reports whether event touches a .cue file (or creates a
// directory that may hold some).
func isSchemaChange(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Ext(event.Name) == ".cue" {
		return true
	}
	return event.Has(fsnotify.Create) && filepath.Ext(event.Name) == ""
}
