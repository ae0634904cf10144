package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/engine"
	"github.com/roach88/clientbook/internal/testutil"
)

// healthySVG is long enough to count as real note content.
var healthySVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="60">` +
	strings.Repeat(`<path d="M0 0 L10 10"/>`, 4) + `</svg>`

// cliEnv runs commands against a store in its own temp directory, which is
// also the working directory so relative paths (.env, backups/) stay inside.
type cliEnv struct {
	dir   string
	db    string
	fb    string
	clock *testutil.DeterministicClock
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return &cliEnv{
		dir:   dir,
		db:    filepath.Join(dir, "clientbook.db"),
		fb:    filepath.Join(dir, "notes.json"),
		clock: testutil.NewDeterministicClock(time.Time{}, time.Second),
	}
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// run executes args with --format json against the env's store.
func (e *cliEnv) run(t *testing.T, args ...string) cliResult {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

func (e *cliEnv) runContext(t *testing.T, ctx context.Context, args ...string) cliResult {
	t.Helper()
	full := append([]string{"--db", e.db, "--fallback", e.fb, "--format", "json"}, args...)
	var stdout, stderr bytes.Buffer
	opts := &RootOptions{engineOptions: func(o *engine.Options) { o.Now = e.clock.Now }}
	code := execute(ctx, opts, full, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// ok asserts success and decodes the response data into v.
func (r cliResult) ok(t *testing.T, v any) {
	t.Helper()
	require.Equal(t, ExitSuccess, r.code, "stdout: %s\nstderr: %s", r.stdout, r.stderr)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	require.Equal(t, "ok", resp.Status)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
}

// failed asserts the exit code and returns the JSON error.
func (r cliResult) failed(t *testing.T, code int) CLIError {
	t.Helper()
	require.Equal(t, code, r.code, "stdout: %s\nstderr: %s", r.stdout, r.stderr)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error
}
