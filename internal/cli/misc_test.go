package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/clientbook/internal/store"
)

func TestMigrate(t *testing.T) {
	env := newCLIEnv(t)

	var res MigrateResult
	env.run(t, "migrate", "--version", "3").ok(t, &res)
	assert.Equal(t, 3, res.SchemaVersion)
	assert.Equal(t, env.db, res.Path)

	env.run(t, "migrate").ok(t, &res)
	assert.Equal(t, store.CurrentSchemaVersion, res.SchemaVersion)

	e := env.run(t, "migrate", "--version", "2").failed(t, ExitCommandError)
	assert.Equal(t, CodeOpen, e.Code, "no downgrade")

	env.run(t, "migrate", "--version", "-1").failed(t, ExitCommandError)
}

func TestWipe_RequiresConfirmation(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)

	e := env.run(t, "wipe").failed(t, ExitCommandError)
	assert.Contains(t, e.Message, "--yes")
	env.run(t, "customer", "get", "1").ok(t, nil)
}

func TestRun_StopsWithContext(t *testing.T) {
	env := newCLIEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var msg string
	env.runContext(t, ctx, "run").ok(t, &msg)
	assert.Equal(t, "scheduler stopped", msg)
}

func TestRun_Disabled(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("CLIENTBOOK_SCHEDULE_ENABLED", "false")

	e := env.run(t, "run").failed(t, ExitCommandError)
	assert.Contains(t, e.Message, "scheduling is disabled")
}
