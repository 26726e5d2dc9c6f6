package domain

import "time"

// RunStatus is a point-in-time view of an export run.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished,omitzero"`
	Running    bool      `json:"running"`
	DaysTotal  int       `json:"days_total"`
	DaysDone   int       `json:"days_done"`
	CurrentDay string    `json:"current_day,omitempty"`
	Records    int64     `json:"records"`
	Bytes      int64     `json:"bytes"`
	Failed     string    `json:"failed,omitempty"`
	Error      string    `json:"error,omitempty"`
}
