package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario drives one engine through setup and flow steps and checks the
// resulting trace and store contents.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SchemaVersion opens the store at an older schema. Zero means current.
	SchemaVersion int `yaml:"schema_version,omitempty"`

	// Setup steps establish initial state and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the sequence under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and store.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one registered op.
type Step struct {
	// Op names the operation, e.g. "customer.create".
	Op string `yaml:"op"`

	// Args are decoded into the op's input.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect validates the outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a flow step.
type Expect struct {
	// Error is the expected store error kind, e.g. "NOT_FOUND".
	Error string `yaml:"error,omitempty"`

	// Result is matched as a subset of an object result.
	Result map[string]any `yaml:"result,omitempty"`

	// Len is the expected length of a list result.
	Len *int `yaml:"len,omitempty"`
}

// Assertion validates the trace or the final store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the op counted by trace_count.
	Op string `yaml:"op,omitempty"`

	// Ops is the expected order for trace_order.
	Ops []string `yaml:"ops,omitempty"`

	// Collection is counted by count.
	Collection string `yaml:"collection,omitempty"`

	// CustomerID narrows count to one customer's records.
	CustomerID int64 `yaml:"customer_id,omitempty"`

	// Count is the expected number for count and trace_count.
	Count int `yaml:"count"`
}

// Assertion types.
const (
	AssertCount      = "count"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if _, ok := ops[step.Op]; !ok {
			return fmt.Errorf("setup step %d: unknown op %q", i, step.Op)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup step %d: expect is only allowed in flow", i)
		}
	}
	for i, step := range s.Flow {
		if _, ok := ops[step.Op]; !ok {
			return fmt.Errorf("flow step %d: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertCount:
			if _, ok := counters[a.Collection]; !ok {
				return fmt.Errorf("assertion %d: unknown collection %q", i, a.Collection)
			}
		case AssertTraceCount:
			if a.Op == "" {
				return fmt.Errorf("assertion %d: op is required", i)
			}
		case AssertTraceOrder:
			if len(a.Ops) < 2 {
				return fmt.Errorf("assertion %d: ops needs at least two entries", i)
			}
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
