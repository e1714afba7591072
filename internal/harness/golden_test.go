package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_BlogFlow(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/blog_flow.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_BlogFlow -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Len(t, result.Trace, 7)
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/blog_flow.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, "blog_flow", result))
}

func TestMarshalSnapshot(t *testing.T) {
	count := int64(2)
	out, err := MarshalSnapshot(TraceSnapshot{
		ScenarioName: "snap",
		Trace: []TraceEvent{
			{
				Step:  1,
				Op:    "count",
				Query: "count user(name like $q)",
				SQL:   map[string]string{"sqlite": `SELECT 1 WHERE a <> b`},
				Count: &count,
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `{
  "scenario_name": "snap",
  "trace": [
    {
      "step": 1,
      "op": "count",
      "query": "count user(name like $q)",
      "sql": {
        "sqlite": "SELECT 1 WHERE a <> b"
      },
      "count": 2
    }
  ]
}
`, string(out))
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "maps",
		Trace: []TraceEvent{{
			Step: 1,
			Data: map[string]any{"z": 1, "a": map[string]any{"y": true, "b": nil}, "m": []any{"x"}},
		}},
	}

	first, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalSnapshot(snap)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, string(first), `"a": {
          "b": null,
          "y": true
        },`)
}
