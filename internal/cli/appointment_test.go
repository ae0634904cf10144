package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/store"
)

func TestAppointment_AddAndList(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)

	var a store.Appointment
	env.run(t, "appointment", "add", "--customer", "1", "--title", "Cut",
		"--start", "2025-01-10T09:00:00Z", "--end", "2025-01-10T10:00:00Z").ok(t, &a)
	assert.Equal(t, int64(1), a.CustomerID)
	assert.Equal(t, "Cut", a.Title)

	var b store.Appointment
	env.run(t, "appointment", "add", "--customer", "1", "--start", "2025-02-01T09:00:00Z",
		"--duration", "30m").ok(t, &b)
	assert.Equal(t, 30*time.Minute, b.End.Sub(b.Start))

	var byCustomer []store.Appointment
	env.run(t, "appointment", "list", "--customer", "1").ok(t, &byCustomer)
	assert.Len(t, byCustomer, 2)

	var inRange []store.Appointment
	env.run(t, "appointment", "list", "--from", "2025-01-15T00:00:00Z").ok(t, &inRange)
	require.Len(t, inRange, 1)
	assert.Equal(t, b.ID, inRange[0].ID)
}

func TestAppointment_Errors(t *testing.T) {
	env := newCLIEnv(t)

	env.run(t, "appointment", "add", "--customer", "1", "--start", "tomorrow").failed(t, ExitCommandError)

	e := env.run(t, "appointment", "add", "--customer", "99", "--start", "2025-01-10T09:00:00Z").
		failed(t, ExitFailure)
	assert.NotEqual(t, CodeUsage, e.Code)

	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)
	e = env.run(t, "appointment", "add", "--customer", "1",
		"--start", "2025-01-10T10:00:00Z", "--end", "2025-01-10T09:00:00Z").failed(t, ExitFailure)
	assert.Equal(t, CodeValidation, e.Code)
}
