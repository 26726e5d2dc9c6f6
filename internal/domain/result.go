package domain

import "time"

// Outcome is the terminal state of a day task.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeNoData    Outcome = "no_data"
	OutcomeFailed    Outcome = "failed"
)

// TaskResult reports how one day's export ended.
type TaskResult struct {
	Day      string
	Outcome  Outcome
	Key      string
	Records  int64
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Failed reports whether the task ended in a typed failure.
func (r TaskResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}
