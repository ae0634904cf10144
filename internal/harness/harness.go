package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/roach88/clientbook/internal/engine"
	"github.com/roach88/clientbook/internal/ids"
	"github.com/roach88/clientbook/internal/store"
	"github.com/roach88/clientbook/internal/testutil"
)

// runIDs is how many ids a scenario may draw for exports and reconcile runs.
const runIDs = 256

// volatile names result fields that vary between runs or depend on the
// clock. They are dropped from traces.
var volatile = map[string]bool{
	"createdAt":  true,
	"updatedAt":  true,
	"editedDate": true,
	"restoredAt": true,
	"savedAt":    true,
	"startedAt":  true,
	"finishedAt": true,
	"runId":      true,
}

// Run executes scenario against a fresh store created under dir. It returns
// an error only when the harness itself cannot run (store failed to open, a
// setup step failed); expectation and assertion failures are reported in
// Result.Errors.
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	runs := make([]string, runIDs)
	for i := range runs {
		runs[i] = fmt.Sprintf("run-%03d", i+1)
	}

	eng, err := engine.Open(ctx, engine.Options{
		DBPath:              filepath.Join(dir, "clientbook.db"),
		FallbackPath:        filepath.Join(dir, "notes.json"),
		BackupDir:           filepath.Join(dir, "backups"),
		SchemaVersion:       scenario.SchemaVersion,
		MaxNotesPerCustomer: 50,
		Logger:              zerolog.Nop(),
		Now:                 clock.Now,
		IDs:                 ids.NewFixedGenerator(runs...),
	})
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	result := &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
	seq := 0

	for i, step := range scenario.Setup {
		seq++
		event, err := execute(ctx, eng, "setup", seq, step)
		result.Trace = append(result.Trace, event)
		if err != nil {
			return result, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}

	for i, step := range scenario.Flow {
		seq++
		event, err := execute(ctx, eng, "flow", seq, step)
		result.Trace = append(result.Trace, event)
		for _, msg := range checkExpect(step, event, err) {
			result.fail(fmt.Sprintf("flow step %d (%s): %s", i, step.Op, msg))
		}
	}

	for i, a := range scenario.Assertions {
		if err := checkAssertion(ctx, eng, result.Trace, a); err != nil {
			result.fail(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

func (r *Result) fail(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// execute runs one step and records it. The returned error is the op's.
func execute(ctx context.Context, eng *engine.Engine, phase string, seq int, step Step) (TraceEvent, error) {
	event := TraceEvent{Seq: seq, Phase: phase, Op: step.Op}
	if len(step.Args) > 0 {
		args, err := normalize(step.Args)
		if err != nil {
			return event, err
		}
		event.Args = args
	}

	op, ok := ops[step.Op]
	if !ok {
		event.Error = "ERROR"
		return event, fmt.Errorf("unknown op %q", step.Op)
	}
	out, err := op(ctx, eng, step.Args)
	if err != nil {
		event.Error = errorKind(err)
		return event, err
	}
	res, err := normalize(out)
	if err != nil {
		return event, err
	}
	event.Result = scrub(res)
	return event, nil
}

func errorKind(err error) string {
	var se *store.Error
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "ERROR"
}

// checkExpect compares a flow step's outcome with its expect clause.
func checkExpect(step Step, event TraceEvent, err error) []string {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
		}
		if event.Error != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s: %v", exp.Error, event.Error, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	if exp.Len != nil {
		list, ok := event.Result.([]any)
		switch {
		case !ok:
			msgs = append(msgs, fmt.Sprintf("expected a list result, got %T", event.Result))
		case len(list) != *exp.Len:
			msgs = append(msgs, fmt.Sprintf("expected %d results, got %d", *exp.Len, len(list)))
		}
	}
	if exp.Result != nil {
		want, nerr := normalize(exp.Result)
		if nerr != nil {
			return append(msgs, nerr.Error())
		}
		if diff := subsetDiff(want.(map[string]any), event.Result); diff != "" {
			msgs = append(msgs, "result mismatch (-want +got):\n"+diff)
		}
	}
	return msgs
}

// subsetDiff reports the keys of want whose values differ in got.
func subsetDiff(want map[string]any, got any) string {
	gotMap, ok := got.(map[string]any)
	if !ok {
		return fmt.Sprintf("expected an object result, got %T", got)
	}
	picked := make(map[string]any, len(want))
	for k := range want {
		if v, ok := gotMap[k]; ok {
			picked[k] = v
		}
	}
	return cmp.Diff(want, picked)
}

// normalize converts v to its generic JSON form so YAML args, op results
// and expectations compare on equal terms.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if volatile[k] {
				delete(t, k)
				continue
			}
			t[k] = scrub(val)
		}
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
	}
	return v
}
