package plan

import "fmt"

// OpStatus is the terminal state of one executed operation.
type OpStatus string

const (
	StatusDone         OpStatus = "done"
	StatusFailed       OpStatus = "failed"
	StatusNotAttempted OpStatus = "not_attempted"
)

// OpResult records how a single operation ended.
type OpResult struct {
	Op     Op       `json:"op"`
	Status OpStatus `json:"status"`
	Error  string   `json:"error,omitempty"`
}

// Outcome is the structured result of executing a plan. Execution is
// operation-at-a-time: the first failure aborts the remainder, so an
// Outcome always accounts for every operation as done, failed, or not
// attempted. Partial application is visible and safe to re-run; a re-plan
// after partial application produces a smaller corrective plan.
type Outcome struct {
	Uploaded int        `json:"uploaded"`
	Deleted  int        `json:"deleted"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Results  []OpResult `json:"results,omitempty"`
}

// Record appends one operation result and updates the counters.
func (o *Outcome) Record(op Op, status OpStatus, err error) {
	res := OpResult{Op: op, Status: status}
	if err != nil {
		res.Error = err.Error()
	}
	switch status {
	case StatusDone:
		if op.Type == OpDelete {
			o.Deleted++
		} else {
			o.Uploaded++
		}
	case StatusFailed:
		o.Failed++
	}
	o.Results = append(o.Results, res)
}

// Ok reports whether every attempted operation succeeded.
func (o *Outcome) Ok() bool {
	return o.Failed == 0
}

// NotAttempted returns the number of operations skipped after a failure.
func (o *Outcome) NotAttempted() int {
	n := 0
	for _, r := range o.Results {
		if r.Status == StatusNotAttempted {
			n++
		}
	}
	return n
}

// Summary returns a one-line human description of the outcome.
func (o *Outcome) Summary() string {
	return fmt.Sprintf("uploaded=%d deleted=%d skipped=%d failed=%d", o.Uploaded, o.Deleted, o.Skipped, o.Failed)
}
