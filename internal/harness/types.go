package harness

import (
	"fmt"

	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/schedule"
	"github.com/roach88/labseq/internal/value"
)

// Trace event operations.
const (
	OpSet = "set"
	OpRun = "run"
)

// TraceEvent is one executed operation.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	Op         string `json:"op"` // "set" or "run"
	Name       string `json:"name"`
	Stage      string `json:"stage,omitempty"`
	Value      string `json:"value,omitempty"`
	Conditions string `json:"conditions,omitempty"`
	Failed     bool   `json:"failed,omitempty"`

	// Error is the operation's failure message. It stays out of golden
	// snapshots; Failed records the outcome there.
	Error string `json:"-"`

	conds value.Assignments
}

// Assignments returns the conditions a run event executed under, or the
// single assignment of a set event.
func (e TraceEvent) Assignments() value.Assignments {
	return e.conds.Clone()
}

// String renders the event as "SET name=value" or "RUN name [STAGE] {..}",
// suffixed with the failure message when the operation failed.
func (e TraceEvent) String() string {
	var s string
	if e.Op == OpSet {
		s = fmt.Sprintf("SET %s=%s", e.Name, e.Value)
	} else {
		s = fmt.Sprintf("RUN %s [%s] %s", e.Name, e.Stage, e.conds)
	}
	if e.Failed {
		s += " FAILED: " + e.Error
	}
	return s
}

// Result is the outcome of a dry run.
type Result struct {
	// Pass is true when the run behaved as the assertions expect.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	// Trace holds every executed operation in order, error-stage runs
	// included.
	Trace []TraceEvent `json:"trace"`

	// RunError is the run's error message, empty on success.
	RunError string `json:"run_error,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Results is the aggregate store of the run.
	Results *dataset.Store `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddOperation appends op and its outcome to the trace.
func (r *Result) AddOperation(op schedule.Operation, err error) {
	ev := TraceEvent{Seq: int64(len(r.Trace) + 1), Name: op.Label()}
	switch o := op.(type) {
	case *schedule.SetCondition:
		ev.Op = OpSet
		ev.Value = o.Value.String()
		ev.conds = value.Assignments{}.With(o.Name, o.Value)
	case *schedule.RunMeasurement:
		ev.Op = OpRun
		ev.Stage = o.Stage.String()
		ev.conds = o.Conditions.Clone()
		if len(o.Conditions) > 0 {
			ev.Conditions = o.Conditions.String()
		}
	}
	if err != nil {
		ev.Failed = true
		ev.Error = err.Error()
	}
	r.Trace = append(r.Trace, ev)
}
