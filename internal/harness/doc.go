// Package harness dry-runs test plans on a simulated bench and checks the
// outcome against scenario assertions.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: bench_sweep
//	description: "What this scenario validates"
//	plan: ../plans/bench.yaml
//	run_id: run-bench
//	rows:
//	  - {T: 85, V: 2}
//	assertions:
//	  - type: trace_contains
//	    op: run
//	    name: IV
//	    stage: MAIN
//	    conditions: {T: 25}
//	  - type: trace_order
//	    names: [Calibrate, IV]
//	  - type: trace_count
//	    name: IV
//	    count: 4
//	  - type: final_results
//	    variable: T_actual
//	    at: {T: 25, V: 1}
//	    expect: 25.5
//	  - type: run_error
//	    contains: "simulated failure"
//
// The plan path is relative to the scenario file. Rows, when given,
// replace the plan's own rows.
//
// # Assertion Types
//
//   - trace_contains: an operation with the given op, name, stage and
//     conditions (subset match) was executed
//   - trace_order: the first occurrences of the names appear in order
//   - trace_count: name was executed exactly count times
//   - final_results: the aggregate variable holds expect at the pinned
//     coordinates
//   - run_error: the run failed with a message containing the text
//
// A run that fails without a run_error assertion fails the scenario.
//
// # Deterministic Testing
//
// Every condition is driven by a testutil.FakeDriver registered as an
// instrument resource. The run ID is fixed (scenario.run_id or
// "test-run-default") and run timing uses a stepping clock, so traces are
// identical across runs and suit golden file comparison.
package harness
