package models

import (
	"encoding/json"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// RunStatus is the status field of a workflow run
type RunStatus string

const (
	RunStatusUnknown    RunStatus = ""
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusRequested  RunStatus = "requested"
	RunStatusWaiting    RunStatus = "waiting"
	RunStatusPending    RunStatus = "pending"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusActionReq  RunStatus = "action_required"
	RunStatusCancelled  RunStatus = "cancelled"
	RunStatusFailure    RunStatus = "failure"
	RunStatusNeutral    RunStatus = "neutral"
	RunStatusSkipped    RunStatus = "skipped"
	RunStatusStale      RunStatus = "stale"
	RunStatusSuccess    RunStatus = "success"
	RunStatusTimedOut   RunStatus = "timed_out"
)

var knownStatuses = sets.New(
	RunStatusQueued,
	RunStatusInProgress,
	RunStatusRequested,
	RunStatusWaiting,
	RunStatusPending,
	RunStatusCompleted,
	RunStatusActionReq,
	RunStatusCancelled,
	RunStatusFailure,
	RunStatusNeutral,
	RunStatusSkipped,
	RunStatusStale,
	RunStatusSuccess,
	RunStatusTimedOut,
)

// Only these count as a build still running. Anything else, including
// statuses GitHub adds later, is treated as terminal.
var nonTerminalStatuses = sets.New(
	RunStatusQueued,
	RunStatusInProgress,
	RunStatusRequested,
	RunStatusWaiting,
)

// ParseRunStatus matches raw case-insensitively against the known statuses.
// Unrecognized values map to RunStatusUnknown and false.
func ParseRunStatus(raw string) (RunStatus, bool) {
	s := RunStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !knownStatuses.Has(s) {
		return RunStatusUnknown, false
	}
	return s, true
}

// IsRunning reports whether the status is one of the non-terminal states
func (s RunStatus) IsRunning() bool {
	parsed, _ := ParseRunStatus(string(s))
	return nonTerminalStatuses.Has(parsed)
}

// UnmarshalJSON never fails: a null, missing or non-string status decodes
// to RunStatusUnknown so one odd record cannot abort the whole listing.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = RunStatusUnknown
		return nil
	}
	*s = RunStatus(raw)
	return nil
}
