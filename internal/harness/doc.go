// Package harness provides scenario-driven conformance testing for ORQL.
//
// The harness loads a CUE schema directory, prepares a fresh in-memory
// SQLite database, then compiles, renders and executes a flow of ORQL
// statements, checking each step and the final database state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schemas: schemas            # CUE directory, relative to this file
//	dialects: [sqlite, postgres]
//	setup:
//	  - |
//	    CREATE TABLE role (id INTEGER PRIMARY KEY, name TEXT);
//	flow:
//	  - name: find user
//	    query: "get user(id = $id): {name, role: {name}}"
//	    params: { id: 1 }
//	    expect:
//	      data: { name: alice, role: { name: admin } }
//	  - query: "count user"
//	    expect: { count: 3 }
//	  - query: "get user: {nope}"
//	    expect: { error: "has no column" }
//	assertions:
//	  - type: trace_contains
//	    dialect: postgres
//	    sql: 'WHERE "user"."id" = $1'
//	  - type: final_state
//	    table: user
//	    where: { id: 1 }
//	    expect: { name: alice }
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies a step rendered SQL containing a fragment
//   - trace_count: Verifies an operation ran successfully exactly N times
//   - final_state: Queries a table and verifies expected values
//
// # Golden Files
//
// RunWithGolden snapshots the trace (rendered SQL, parameter names and
// shaped results for every step) as JSON under testdata/golden.
package harness
