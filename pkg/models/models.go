package models

import "time"

// WorkflowRun represents a GitHub Actions workflow run as returned by the REST API
type WorkflowRun struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	HeadBranch   string    `json:"head_branch"`
	Event        string    `json:"event"`
	Status       RunStatus `json:"status"`
	Conclusion   string    `json:"conclusion"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	RunStartedAt time.Time `json:"run_started_at"`
}

// Duration is the wall time between the run starting and its last update
func (r *WorkflowRun) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.RunStartedAt)
}

// WorkflowRunList is one page of the runs listing endpoint
type WorkflowRunList struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// DispatchRequest is the body of a workflow_dispatch request
type DispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}
