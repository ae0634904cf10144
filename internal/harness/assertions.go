package harness

import (
	"context"
	"fmt"

	"github.com/roach88/clientbook/internal/engine"
)

// counter counts a collection's records, all of them when customerID is 0.
type counter func(ctx context.Context, eng *engine.Engine, customerID int64) (int, error)

var counters = map[string]counter{
	"customers":      countCustomers,
	"appointments":   countAppointments,
	"images":         countImages,
	"notes":          countNotes,
	"fallback_notes": countFallbackNotes,
}

func checkAssertion(ctx context.Context, eng *engine.Engine, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertCount:
		count, ok := counters[a.Collection]
		if !ok {
			return fmt.Errorf("unknown collection %q", a.Collection)
		}
		n, err := count(ctx, eng, a.CustomerID)
		if err != nil {
			return fmt.Errorf("count %s: %w", a.Collection, err)
		}
		if n != a.Count {
			return fmt.Errorf("expected %d %s, got %d", a.Count, a.Collection, n)
		}
		return nil
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Op == a.Op {
			n++
		}
	}
	if n != a.Count {
		return fmt.Errorf("expected %s to run %d times, ran %d", a.Op, a.Count, n)
	}
	return nil
}

// assertTraceOrder checks that a.Ops ran in order. Other ops may run in
// between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Ops) && e.Op == a.Ops[next] {
			next++
		}
	}
	if next < len(a.Ops) {
		return fmt.Errorf("expected order %v, %s not found after %v", a.Ops, a.Ops[next], a.Ops[:next])
	}
	return nil
}

func countCustomers(ctx context.Context, eng *engine.Engine, customerID int64) (int, error) {
	list, err := eng.Store().ListCustomers(ctx)
	if err != nil {
		return 0, err
	}
	if customerID == 0 {
		return len(list), nil
	}
	n := 0
	for _, c := range list {
		if c.ID == customerID {
			n++
		}
	}
	return n, nil
}

func countAppointments(ctx context.Context, eng *engine.Engine, customerID int64) (int, error) {
	if customerID != 0 {
		list, err := eng.Store().AppointmentsByCustomer(ctx, customerID)
		return len(list), err
	}
	list, err := eng.Store().ListAppointments(ctx)
	return len(list), err
}

func countImages(ctx context.Context, eng *engine.Engine, customerID int64) (int, error) {
	if customerID != 0 {
		list, err := eng.Store().ImagesByCustomer(ctx, customerID)
		return len(list), err
	}
	return eng.Store().CountImages(ctx)
}

func countNotes(ctx context.Context, eng *engine.Engine, customerID int64) (int, error) {
	if customerID != 0 {
		list, err := eng.Store().NotesByCustomer(ctx, customerID)
		return len(list), err
	}
	list, err := eng.Store().ListNotes(ctx)
	return len(list), err
}

func countFallbackNotes(_ context.Context, eng *engine.Engine, customerID int64) (int, error) {
	if customerID != 0 {
		list, err := eng.Fallback().CustomerNotes(customerID)
		return len(list), err
	}
	all, err := eng.Fallback().All()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, list := range all {
		n += len(list)
	}
	return n, nil
}
