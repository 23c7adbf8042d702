// Package manager orchestrates a test sequence: it constructs the
// conditions and measurements of a Definition, builds the run order,
// executes it and aggregates every measurement's results into one store.
//
// RUN LIFECYCLE:
//
//  1. Every component store is cleared
//  2. The run order is built and validated
//  3. PreRun hook, then each operation in order, then PostRun hook
//  4. On failure: every ERROR-stage measurement runs best-effort with the
//     conditions set so far (skipped when the run order itself is invalid)
//  5. Always: enabled measurement stores are merged in declaration order
//     and the information entries (run ID included) are added
//
// Run returns the joined errors of steps 3 to 5. The same error is kept
// as LastError.
//
// Persistence:
// Save writes the aggregate store; Load reads it back and hands each
// component the variables tagged with its kind, so a fresh manager of the
// same Definition ends up with the component stores of the saved run.
package manager
