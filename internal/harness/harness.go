package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/orql/internal/compiler"
	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/sqlast"
	"github.com/roach88/orql/internal/store"
)

// Harness is the test execution engine.
// It compiles flow steps with a shared Compiler and executes them against a
// private SQLite store.
type Harness struct {
	store    *store.Store
	compiler *compiler.Compiler
	dialects []querysql.Dialect
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the CUE schema directory
// 2. Create a fresh in-memory database and run the setup scripts
// 3. Compile, render and execute each flow step, checking its expect clause
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	loaded, errs := schema.LoadDir(scenario.Schemas, schema.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load schemas: %w", errs[0])
	}

	dialects := []querysql.Dialect{querysql.SQLite}
	if len(scenario.Dialects) > 0 {
		dialects = dialects[:0]
		for _, name := range scenario.Dialects {
			d, err := querysql.ParseDialect(name)
			if err != nil {
				return nil, err
			}
			dialects = append(dialects, d)
		}
	}

	st, err := store.Open(querysql.SQLite, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for i, script := range scenario.Setup {
		if err := st.ExecScript(ctx, script); err != nil {
			return nil, fmt.Errorf("failed to execute setup[%d]: %w", i, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:    st,
		compiler: compiler.New(loaded.Registry, compiler.WithLogger(logger)),
		dialects: dialects,
		logger:   logger,
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeFlow runs all flow steps in order. A failing step is recorded in
// the trace and the flow continues.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		event := TraceEvent{
			Step:  i + 1,
			Name:  step.Name,
			Query: step.Query,
		}

		runErr := h.executeStep(ctx, step, &event)
		if runErr != nil {
			event.Error = runErr.Error()
		}
		h.logger.Debug("flow step", "step", event.Step, "op", event.Op, "error", event.Error)
		result.AddTrace(event)

		for _, msg := range checkExpect(step.Expect, event, runErr) {
			result.AddError(fmt.Sprintf("flow[%d]: %s", i, msg))
		}
	}
}

// executeStep compiles step, renders it for every dialect and runs it.
func (h *Harness) executeStep(ctx context.Context, step FlowStep, event *TraceEvent) error {
	var page *sqlast.Page
	if step.Page != nil {
		page = &sqlast.Page{Offset: step.Page.Offset, Limit: step.Page.Limit}
	}

	compiled, err := h.compiler.Compile(step.Query, page)
	if err != nil {
		return err
	}
	event.Op = compiled.Query.Op.String()

	event.SQL = make(map[string]string, len(h.dialects))
	for _, d := range h.dialects {
		r, err := h.compiler.Render(compiled, d)
		if err != nil {
			return err
		}
		event.SQL[string(d)] = r.SQL
	}

	r, err := h.compiler.Render(compiled, querysql.SQLite)
	if err != nil {
		return err
	}
	event.Params = r.Params

	res, err := h.store.Run(ctx, compiled.Query, compiled.Statement, step.Params)
	if err != nil {
		return err
	}
	event.Data = res.Data
	event.Count = res.Count
	event.RowsAffected = res.RowsAffected
	if compiled.Query.Op == orql.OpAdd {
		event.LastInsertID = res.LastInsertID
	}
	return nil
}

// checkExpect compares a step outcome with its expect clause and returns
// one message per mismatch.
func checkExpect(expect *ExpectClause, event TraceEvent, runErr error) []string {
	if expect == nil || expect.Error == "" {
		if runErr != nil {
			return []string{fmt.Sprintf("unexpected error: %v", runErr)}
		}
	}
	if expect == nil {
		return nil
	}

	if expect.Error != "" {
		if runErr == nil {
			return []string{fmt.Sprintf("expected error containing %q, got success", expect.Error)}
		}
		if !strings.Contains(runErr.Error(), expect.Error) {
			return []string{fmt.Sprintf("expected error containing %q, got %q", expect.Error, runErr.Error())}
		}
		return nil
	}

	var msgs []string
	if expect.Data != nil && !matchData(event.Data, expect.Data) {
		msgs = append(msgs, fmt.Sprintf("data mismatch: expected %v, got %v", expect.Data, event.Data))
	}
	if expect.Count != nil {
		if event.Count == nil {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got none", *expect.Count))
		} else if *event.Count != *expect.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *expect.Count, *event.Count))
		}
	}
	if expect.RowsAffected != nil && event.RowsAffected != *expect.RowsAffected {
		msgs = append(msgs, fmt.Sprintf("expected %d rows affected, got %d", *expect.RowsAffected, event.RowsAffected))
	}
	return msgs
}
