// Package harness runs clientbook scenarios: YAML files that drive an engine
// through a sequence of operations and check the outcome.
//
// # Scenario Format
//
//	name: customer_lifecycle
//	description: "Deleting a customer removes their appointments"
//	schema_version: 5
//	setup:
//	  - op: customer.create
//	    args: { firstName: Ana }
//	flow:
//	  - op: customer.delete
//	    args: { id: 1 }
//	  - op: customer.get
//	    args: { id: 1 }
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: count
//	    collection: appointments
//	    customer_id: 1
//	    count: 0
//
// Setup steps must succeed. Flow steps may carry an expect clause naming an
// error kind, a subset of the result object, or the length of a result list.
//
// # Assertion Types
//
//   - count: number of records in a collection, optionally for one customer
//   - trace_count: number of times an op ran
//   - trace_order: ops ran in the given order, not necessarily adjacent
//
// # Determinism
//
// Every run opens a fresh store in its own directory with a stepping clock
// and fixed run ids, so traces can be compared against golden files with
// timestamps and run ids removed.
package harness
