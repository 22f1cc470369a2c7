// Package model defines the Torc domain entities: their fields, the
// JobStatus enum and its predicates, and the numeric parsing helpers
// (memory strings, ISO-8601 durations) used throughout the core.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobStatus is the total-ordered status a Job moves through. The int
// value is the stable wire encoding used in storage; the lowercase
// string is the stable encoding used on the HTTP/JSON surface.
type JobStatus int

const (
	JobStatusUninitialized JobStatus = iota
	JobStatusBlocked
	JobStatusReady
	JobStatusPending
	JobStatusSubmittedPending
	JobStatusSubmitted
	JobStatusRunning
	JobStatusCompleted
	JobStatusFailed
	JobStatusCanceled
	JobStatusTerminated
	JobStatusDisabled
)

var jobStatusNames = [...]string{
	"uninitialized",
	"blocked",
	"ready",
	"pending",
	"submitted_pending",
	"submitted",
	"running",
	"completed",
	"failed",
	"canceled",
	"terminated",
	"disabled",
}

// ToInt returns the stable storage encoding for the status.
func (s JobStatus) ToInt() int {
	return int(s)
}

// JobStatusFromInt decodes the stable storage encoding back to a JobStatus.
func JobStatusFromInt(v int) (JobStatus, error) {
	if v < 0 || v >= len(jobStatusNames) {
		return 0, fmt.Errorf("model: invalid job status code %d", v)
	}
	return JobStatus(v), nil
}

// JobStatusFromString decodes the lowercase wire form.
func JobStatusFromString(s string) (JobStatus, error) {
	for i, name := range jobStatusNames {
		if name == s {
			return JobStatus(i), nil
		}
	}
	return 0, fmt.Errorf("model: invalid job status %q", s)
}

func (s JobStatus) String() string {
	if int(s) < 0 || int(s) >= len(jobStatusNames) {
		return "unknown"
	}
	return jobStatusNames[s]
}

// IsComplete reports whether the status is one of the terminal
// outcomes of job execution (not counting Disabled).
func (s JobStatus) IsComplete() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled, JobStatusTerminated:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job will never again be scheduled
// without explicit operator intervention: IsComplete() plus Disabled.
func (s JobStatus) IsTerminal() bool {
	return s.IsComplete() || s == JobStatusDisabled
}

// IsActive reports whether the job currently holds or is approaching
// an active claim on compute resources.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusUninitialized, JobStatusBlocked, JobStatusReady,
		JobStatusPending, JobStatusSubmittedPending, JobStatusSubmitted, JobStatusRunning:
		return true
	default:
		return false
	}
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v, err := JobStatusFromString(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Value implements driver.Valuer so gorm stores the int encoding.
func (s JobStatus) Value() (interface{}, error) {
	return int64(s), nil
}

// Scan implements sql.Scanner so gorm reads back the int encoding.
func (s *JobStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		parsed, err := JobStatusFromInt(int(v))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		parsed, err := JobStatusFromInt(atoiOrPanic(v))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case nil:
		*s = JobStatusUninitialized
		return nil
	default:
		return fmt.Errorf("model: cannot scan %T into JobStatus", value)
	}
}

func atoiOrPanic(b []byte) int {
	n := 0
	for _, c := range bytes.TrimSpace(b) {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// ActionTriggerType enumerates the WorkflowAction trigger kinds.
type ActionTriggerType string

const (
	TriggerOnWorkflowStart    ActionTriggerType = "on_workflow_start"
	TriggerOnWorkflowComplete ActionTriggerType = "on_workflow_complete"
	TriggerOnWorkerStart      ActionTriggerType = "on_worker_start"
	TriggerOnWorkerComplete   ActionTriggerType = "on_worker_complete"
	TriggerOnJobsReady        ActionTriggerType = "on_jobs_ready"
	TriggerOnJobsComplete     ActionTriggerType = "on_jobs_complete"
)

// ActionType enumerates the WorkflowAction payload kinds.
type ActionType string

const (
	ActionRunCommands    ActionType = "run_commands"
	ActionScheduleNodes  ActionType = "schedule_nodes"
)

// ComputeNodeType enumerates where a ComputeNode executes.
type ComputeNodeType string

const (
	ComputeNodeLocal ComputeNodeType = "local"
	ComputeNodeSlurm ComputeNodeType = "slurm"
)

// ScheduledComputeNodeStatus tracks a requested allocation's lifecycle.
type ScheduledComputeNodeStatus string

const (
	ScheduledNodePending   ScheduledComputeNodeStatus = "pending"
	ScheduledNodeSubmitted ScheduledComputeNodeStatus = "submitted"
	ScheduledNodeActive    ScheduledComputeNodeStatus = "active"
	ScheduledNodeComplete  ScheduledComputeNodeStatus = "complete"
)

// ClaimReason enumerates the documented empty-result reasons for the
// claim engine (spec.md §4.4).
type ClaimReason string

const (
	ReasonNoReadyJobs       ClaimReason = "no ready jobs"
	ReasonNoJobsFitResources ClaimReason = "no jobs fit resources"
	ReasonSchedulerMismatch ClaimReason = "scheduler mismatch"
)
