// Package schedule turns declared conditions and per-measurement stage
// rules into a RunOrder: the total, deterministic sequence of
// SetCondition and RunMeasurement operations a test run executes.
//
// ORDERING:
//
// Condition table:
// The Cartesian product of every condition's values, first declared
// condition varying slowest. An explicit list of rows may replace it.
//
// Per run:
//  1. STARTUP measurements, empty conditions
//  2. For each row, for each condition in declared order whose value
//     changed: SetCondition, then the SETUP measurements whose rule on that
//     condition matches, carrying the conditions accumulated so far
//  3. MAIN measurements with the full row
//  4. AFTER measurements whose rule matches any condition of the row
//  5. After the last row, TEARDOWN measurements, empty conditions
//
// Within a stage, measurements keep declaration order.
//
// INVARIANTS:
//   - Build is a pure function of its inputs.
//   - FIRST_TIME and LAST_TIME refer to the first and last row, over the
//     whole table, at which a condition holds a given value.
//   - Execute stops at the first failing operation.
package schedule
