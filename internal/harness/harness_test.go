package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScenario(t *testing.T, s *Scenario) *Result {
	t.Helper()
	result, err := Run(context.Background(), s, t.TempDir())
	require.NoError(t, err)
	return result
}

func TestRun_TestdataScenariosPass(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		t.Run(filepath.Base(p), func(t *testing.T) {
			s, err := LoadScenario(p)
			require.NoError(t, err)

			result := runScenario(t, s)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Trace, len(s.Setup)+len(s.Flow))
		})
	}
}

func TestRun_TraceRecordsPhasesAndScrubsTimestamps(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "phases",
		Description: "d",
		Setup:       []Step{{Op: "customer.create", Args: map[string]any{"firstName": "Ana"}}},
		Flow:        []Step{{Op: "customer.get", Args: map[string]any{"id": 1}}},
	})
	require.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)

	assert.Equal(t, 1, result.Trace[0].Seq)
	assert.Equal(t, "setup", result.Trace[0].Phase)
	assert.Equal(t, 2, result.Trace[1].Seq)
	assert.Equal(t, "flow", result.Trace[1].Phase)

	got, ok := result.Trace[1].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ana", got["firstName"])
	assert.Equal(t, float64(1), got["id"])
	assert.NotContains(t, got, "createdAt")
	assert.NotContains(t, got, "updatedAt")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	result, err := Run(context.Background(), &Scenario{
		Name:        "bad setup",
		Description: "d",
		Setup:       []Step{{Op: "customer.get", Args: map[string]any{"id": 7}}},
		Flow:        []Step{{Op: "customer.search"}},
	}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (customer.get)")
	require.NotNil(t, result)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "NOT_FOUND", result.Trace[0].Error)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	zero, two := 0, 2
	result := runScenario(t, &Scenario{
		Name:        "failures",
		Description: "d",
		Setup:       []Step{{Op: "customer.create", Args: map[string]any{"firstName": "Ana"}}},
		Flow: []Step{
			{Op: "customer.get", Args: map[string]any{"id": 1}, Expect: &Expect{Error: "NOT_FOUND"}},
			{Op: "customer.get", Args: map[string]any{"id": 5}},
			{Op: "customer.get", Args: map[string]any{"id": 1}, Expect: &Expect{Result: map[string]any{"firstName": "Bo"}}},
			{Op: "customer.search", Expect: &Expect{Len: &two}},
			{Op: "customer.get", Args: map[string]any{"id": 1}, Expect: &Expect{Len: &zero}},
			{Op: "customer.get", Args: map[string]any{"id": 5}, Expect: &Expect{Error: "VALIDATION"}},
		},
	})

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "expected error NOT_FOUND, got success")
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "result mismatch")
	assert.Contains(t, result.Errors[3], "expected 2 results, got 1")
	assert.Contains(t, result.Errors[4], "expected a list result")
	assert.Contains(t, result.Errors[5], "expected error VALIDATION, got NOT_FOUND")
}

func TestRun_UnknownOpIsAFailure(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "unknown",
		Description: "d",
		Flow:        []Step{{Op: "customer.teleport"}},
	})
	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "ERROR", result.Trace[0].Error)
}

func TestRun_EarlySchemaSkipsRecoveryStructures(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:          "early schema",
		Description:   "d",
		SchemaVersion: 3,
		Setup:         []Step{{Op: "customer.create", Args: map[string]any{"firstName": "Ana"}}},
		Flow: []Step{
			{Op: "customer.search", Args: map[string]any{"query": "ana"}},
			{Op: "notes.reconcile"},
		},
	})
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestSubsetDiff(t *testing.T) {
	got := map[string]any{"id": float64(1), "firstName": "Ana", "lastName": "Lee"}

	assert.Empty(t, subsetDiff(map[string]any{"id": float64(1)}, got))
	assert.NotEmpty(t, subsetDiff(map[string]any{"id": float64(2)}, got))
	assert.NotEmpty(t, subsetDiff(map[string]any{"missing": "x"}, got))
	assert.Contains(t, subsetDiff(map[string]any{"id": float64(1)}, []any{}), "expected an object result")
}

func TestScrub_RemovesVolatileFieldsRecursively(t *testing.T) {
	v := map[string]any{
		"id":        float64(1),
		"createdAt": "x",
		"runId":     "run-001",
		"items": []any{
			map[string]any{"savedAt": "y", "svg": "<svg/>"},
		},
	}
	scrub(v)
	assert.Equal(t, map[string]any{
		"id":    float64(1),
		"items": []any{map[string]any{"svg": "<svg/>"}},
	}, v)
}
