// Package component defines the two kinds of test components a manager
// sequences: Conditions (swept setpoints delegated to a Driver) and
// Measurements (units of test logic with stage rules).
//
// Both embed Base, which owns the component's results store, config,
// logger and its view of the shared resources and service registry.
//
// Measurement.Run never panics and never propagates a failure out of the
// sequence: it records the error and reports it as a *RunError. Data
// written before a failure stays in the store.
package component
