package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/orql/internal/querysql"
)

// Scenario defines a conformance test scenario.
// A scenario loads a schema directory, prepares a fresh SQLite database,
// compiles and runs a flow of ORQL statements and asserts on the resulting
// trace and the final database state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas is the directory of CUE entity definitions.
	// Relative paths are resolved against the scenario file location.
	Schemas string `yaml:"schemas"`

	// Dialects lists the dialects every statement is rendered for.
	// Statements always execute against SQLite; defaults to [sqlite].
	Dialects []string `yaml:"dialects,omitempty"`

	// Setup contains SQL scripts run before the flow (DDL and seed data).
	Setup []string `yaml:"setup,omitempty"`

	// Flow contains the ORQL statements to compile and execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep is one ORQL statement of the flow.
type FlowStep struct {
	// Name labels the step in the trace; optional.
	Name string `yaml:"name,omitempty"`

	// Query is the ORQL source text.
	Query string `yaml:"query"`

	// Page is an optional offset/limit applied at lowering.
	Page *PageSpec `yaml:"page,omitempty"`

	// Params binds named placeholders.
	Params map[string]any `yaml:"params,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must simply succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// PageSpec mirrors sqlast.Page in YAML.
type PageSpec struct {
	Offset int `yaml:"offset,omitempty"`
	Limit  int `yaml:"limit,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Error is a substring of the expected error. A step with Error set must fail.
	Error string `yaml:"error,omitempty"`

	// Data is matched against the shaped query result.
	// Objects use subset semantics; arrays must have the same length.
	Data any `yaml:"data,omitempty"`

	// Count is the expected result of a count statement.
	Count *int64 `yaml:"count,omitempty"`

	// RowsAffected is the expected row count of a write.
	RowsAffected *int64 `yaml:"rows_affected,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step rendered SQL containing SQL for Dialect
	// - "trace_count": exactly Count steps of operation Op ran
	// - "final_state": query Table and verify expected values
	Type string `yaml:"type"`

	// Dialect selects the rendered SQL (used by trace_contains, default sqlite).
	Dialect string `yaml:"dialect,omitempty"`

	// SQL is the expected substring (used by trace_contains).
	SQL string `yaml:"sql,omitempty"`

	// Op is the operation name, e.g. "query" or "add" (used by trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of steps (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// The schemas directory is resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schemas directory relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schemas != "" && !filepath.IsAbs(scenario.Schemas) && basePath != "" {
		scenario.Schemas = filepath.Join(basePath, scenario.Schemas)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Schemas); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: schemas directory not found: %s", scenario.Schemas)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML with strict field checking.
// Paths are left as written; validation of required fields is done by
// the Load functions.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schemas == "" {
		return fmt.Errorf("schemas directory is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, name := range s.Dialects {
		if _, err := querysql.ParseDialect(name); err != nil {
			return fmt.Errorf("dialects[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if step.Query == "" {
			return fmt.Errorf("flow[%d]: query is required", i)
		}
		if step.Page != nil && (step.Page.Offset < 0 || step.Page.Limit < 0) {
			return fmt.Errorf("flow[%d].page: offset and limit must be non-negative", i)
		}
		if e := step.Expect; e != nil && e.Error != "" {
			if e.Data != nil || e.Count != nil || e.RowsAffected != nil {
				return fmt.Errorf("flow[%d].expect: error cannot be combined with result fields", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for trace_contains", index)
		}
		if a.Dialect != "" {
			if _, err := querysql.ParseDialect(a.Dialect); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
