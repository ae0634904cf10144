package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	// Seq is the 1-based position of the step across setup and flow.
	Seq int `json:"seq"`

	// Phase is "setup" or "flow".
	Phase string `json:"phase"`

	Op   string `json:"op"`
	Args any    `json:"args,omitempty"`

	// Result is the op's output as generic JSON, volatile fields removed.
	Result any `json:"result,omitempty"`

	// Error is the store error kind, or "ERROR" for any other failure.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	// Trace lists every executed step in order.
	Trace []TraceEvent

	// Errors describes each failed expectation or assertion.
	Errors []string
}
