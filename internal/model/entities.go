package model

import (
	"database/sql"
	"time"
)

// Workflow is a DAG of jobs sharing configuration, owned by a user.
type Workflow struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	UserName    string `gorm:"column:user_name;not null" json:"user_name"`
	Description string `json:"description"`
	IsArchived  bool   `gorm:"not null;default:false" json:"is_archived"`
	// Status is not a stored column and is not written by clients; no
	// code path fills it, so it is omitted from responses.
	Status    string    `gorm:"-" json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is a single DAG node. The five relation sets (DependsOn,
// InputFiles, OutputFiles, InputUserData, OutputUserData) are
// immutable after creation except as noted in spec.md §4.5.
type Job struct {
	ID                        int64     `gorm:"primaryKey" json:"id"`
	WorkflowID                int64     `gorm:"not null;index" json:"workflow_id"`
	Name                      string    `gorm:"not null" json:"name"`
	Command                   string    `gorm:"not null" json:"command"`
	InvocationScript          *string   `json:"invocation_script,omitempty"`
	ResourceRequirementsID    *int64    `json:"resource_requirements_id,omitempty"`
	CancelOnBlockingJobFailure bool     `gorm:"column:cancel_on_blocking_job_failure;not null;default:false" json:"cancel_on_blocking_job_failure"`
	SupportsTermination       bool      `gorm:"not null;default:false" json:"supports_termination"`
	SchedulerID               *int64    `json:"scheduler_id,omitempty"`
	Status                    JobStatus `gorm:"not null;default:0" json:"status"`
	ActiveComputeNodeID       *int64    `json:"active_compute_node_id,omitempty"`
	RunID                     int64     `gorm:"not null;default:0" json:"run_id"`
	RetryCount                int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// JobDependsOn is the edge table backing Job.depends_on.
type JobDependsOn struct {
	JobID       int64 `gorm:"primaryKey;column:job_id"`
	DependsOnID int64 `gorm:"primaryKey;column:depends_on_job_id"`
}

func (JobDependsOn) TableName() string { return "job_depends_on" }

// JobInputFile / JobOutputFile link jobs to files.
type JobInputFile struct {
	JobID  int64 `gorm:"primaryKey;column:job_id"`
	FileID int64 `gorm:"primaryKey;column:file_id"`
}

func (JobInputFile) TableName() string { return "job_input_file" }

type JobOutputFile struct {
	JobID  int64 `gorm:"primaryKey;column:job_id"`
	FileID int64 `gorm:"primaryKey;column:file_id"`
}

func (JobOutputFile) TableName() string { return "job_output_file" }

// JobInputUserData / JobOutputUserData link jobs to user data records.
type JobInputUserData struct {
	JobID      int64 `gorm:"primaryKey;column:job_id"`
	UserDataID int64 `gorm:"primaryKey;column:user_data_id"`
}

func (JobInputUserData) TableName() string { return "job_input_user_data" }

type JobOutputUserData struct {
	JobID      int64 `gorm:"primaryKey;column:job_id"`
	UserDataID int64 `gorm:"primaryKey;column:user_data_id"`
}

func (JobOutputUserData) TableName() string { return "job_output_user_data" }

// JobInternal is the companion per-job record carrying the input hash,
// recomputed by the graph engine. The currently-active compute node is
// kept on Job.ActiveComputeNodeID.
type JobInternal struct {
	JobID      int64   `gorm:"primaryKey;column:job_id"`
	InputHash  *string `json:"input_hash,omitempty"`
}

func (JobInternal) TableName() string { return "job_internal" }

// File is a logical, path-addressed artifact linked to jobs as input
// or output.
type File struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	WorkflowID int64      `gorm:"not null;index" json:"workflow_id"`
	Name       string     `gorm:"not null" json:"name"`
	Path       string     `gorm:"not null" json:"path"`
	Mtime      *time.Time `json:"mtime,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// UserData is a named, optionally-ephemeral JSON blob linked to jobs
// as input or output.
type UserData struct {
	ID          int64   `gorm:"primaryKey" json:"id"`
	WorkflowID  int64   `gorm:"not null;index" json:"workflow_id"`
	Name        string  `gorm:"not null" json:"name"`
	IsEphemeral bool    `gorm:"not null;default:false" json:"is_ephemeral"`
	Data        *string `gorm:"type:text" json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResourceRequirements describes the compute footprint a job (or
// ComputeNode claim request) needs.
type ResourceRequirements struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	WorkflowID   int64  `gorm:"not null;index" json:"workflow_id"`
	Name         string `gorm:"not null" json:"name"`
	NumCPUs      int    `gorm:"not null" json:"num_cpus"`
	NumGPUs      int    `gorm:"not null;default:0" json:"num_gpus"`
	NumNodes     int    `gorm:"not null;default:1" json:"num_nodes"`
	Memory       string `gorm:"not null" json:"memory"`
	MemoryBytes  int64  `gorm:"not null" json:"memory_bytes"`
	Runtime      string `gorm:"not null" json:"runtime"`
	RuntimeSeconds int64 `gorm:"column:runtime_seconds;not null" json:"runtime_seconds"`
}

// ComputeNode is a registered worker process, local or slurm-backed.
type ComputeNode struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	WorkflowID    int64           `gorm:"not null;index" json:"workflow_id"`
	Hostname      string          `gorm:"not null" json:"hostname"`
	PID           int             `gorm:"not null" json:"pid"`
	StartTime     time.Time       `json:"start_time"`
	DurationSec   *int64          `json:"duration_seconds,omitempty"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	NumCPUs       int             `json:"num_cpus"`
	NumGPUs       int             `json:"num_gpus"`
	MemoryBytes   int64           `json:"memory_bytes"`
	NumNodes      int             `json:"num_nodes"`
	TimeLimitSec  *int64          `json:"time_limit_seconds,omitempty"`
	NodeType      ComputeNodeType `gorm:"column:node_type;not null" json:"node_type"`
	SchedulerJSON *string         `gorm:"column:scheduler_json;type:text" json:"scheduler_json,omitempty"`
}

// LocalScheduler is a scheduler record for local-host execution.
type LocalScheduler struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	WorkflowID int64  `gorm:"not null;index" json:"workflow_id"`
	Name       string `gorm:"not null" json:"name"`
	MemoryGB   float64 `json:"memory_gb"`
	NumCPUs    int    `json:"num_cpus"`
}

// SlurmScheduler is a scheduler record for Slurm-backed execution.
type SlurmScheduler struct {
	ID          int64   `gorm:"primaryKey" json:"id"`
	WorkflowID  int64   `gorm:"not null;index" json:"workflow_id"`
	Name        string  `gorm:"not null" json:"name"`
	Account     string  `json:"account"`
	Gres        *string `json:"gres,omitempty"`
	Mem         *string `json:"mem,omitempty"`
	Nodes       int     `json:"nodes"`
	Partition   string  `json:"partition"`
	Qos         *string `json:"qos,omitempty"`
	Walltime    string  `json:"walltime"`
	Extra       *string `gorm:"type:text" json:"extra,omitempty"`
}

// ScheduledComputeNode tracks the lifecycle of a requested allocation
// from submission through activation and completion.
type ScheduledComputeNode struct {
	ID          int64                      `gorm:"primaryKey" json:"id"`
	WorkflowID  int64                      `gorm:"not null;index" json:"workflow_id"`
	SchedulerID int64                      `gorm:"not null" json:"scheduler_id"`
	Status      ScheduledComputeNodeStatus `gorm:"not null" json:"status"`
	SlurmJobID  *string                    `json:"slurm_job_id,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// Result is one append-only record of a single job run's outcome.
type Result struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	JobID            int64     `gorm:"not null;index" json:"job_id"`
	WorkflowID       int64     `gorm:"not null;index" json:"workflow_id"`
	RunID            int64     `gorm:"not null" json:"run_id"`
	ComputeNodeID    *int64    `json:"compute_node_id,omitempty"`
	ReturnCode       *int      `json:"return_code,omitempty"`
	ExecTimeMinutes  *float64  `json:"exec_time_minutes,omitempty"`
	CompletionTime   time.Time `json:"completion_time"`
	Status           JobStatus `gorm:"not null" json:"status"`
	PeakMemoryBytes  *int64    `json:"peak_memory_bytes,omitempty"`
	AvgMemoryBytes   *int64    `json:"avg_memory_bytes,omitempty"`
	PeakCPUPercent   *float64  `json:"peak_cpu_percent,omitempty"`
	AvgCPUPercent    *float64  `json:"avg_cpu_percent,omitempty"`
}

// WorkflowResult is the "latest result per job" pointer maintained by
// complete_job (spec.md I8).
type WorkflowResult struct {
	WorkflowID int64 `gorm:"primaryKey;column:workflow_id"`
	JobID      int64 `gorm:"primaryKey;column:job_id"`
	ResultID   int64 `gorm:"column:result_id;not null"`
}

func (WorkflowResult) TableName() string { return "workflow_result" }

// Event is an append-only opaque-payload workflow event.
type Event struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	WorkflowID int64     `gorm:"not null;index" json:"workflow_id"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    string    `gorm:"type:text" json:"payload"`
}

// WorkflowAction is a declarative trigger/payload rule.
type WorkflowAction struct {
	ID               int64                  `gorm:"primaryKey" json:"id"`
	WorkflowID       int64                  `gorm:"not null;index" json:"workflow_id"`
	TriggerType      ActionTriggerType      `gorm:"column:trigger_type;not null" json:"trigger_type"`
	ActionType       ActionType             `gorm:"column:action_type;not null" json:"action_type"`
	ActionConfig     string                 `gorm:"column:action_config;type:text;not null" json:"action_config"`
	JobIDs           *string                `gorm:"column:job_ids;type:text" json:"job_ids_raw,omitempty"`
	TriggerCount     int                    `gorm:"column:trigger_count;not null;default:0" json:"trigger_count"`
	RequiredTriggers int                    `gorm:"column:required_triggers;not null" json:"required_triggers"`
	Executed         bool                   `gorm:"not null;default:false" json:"executed"`
	ExecutedAt       *time.Time             `json:"executed_at,omitempty"`
	ExecutedBy       *int64                 `json:"executed_by,omitempty"`
	Persistent       bool                   `gorm:"not null;default:false" json:"persistent"`
	IsRecovery       bool                   `gorm:"column:is_recovery;not null;default:false" json:"is_recovery"`
}

// RemoteWorker is a (worker_id, workflow_id) registration pair.
type RemoteWorker struct {
	WorkerID   string `gorm:"primaryKey;column:worker_id"`
	WorkflowID int64  `gorm:"primaryKey;column:workflow_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (RemoteWorker) TableName() string { return "remote_worker" }

// FailureHandler is an opaque-rules named handler attached to a workflow.
type FailureHandler struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	WorkflowID int64  `gorm:"not null;index" json:"workflow_id"`
	Name       string `gorm:"not null" json:"name"`
	Rules      string `gorm:"type:text;not null" json:"rules"`
}

// AccessGroup, UserGroupMembership and WorkflowAccessGroup back
// check_workflow_access: a thin join-table wrapper per spec.md §1.
type AccessGroup struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null;unique" json:"name"`
}

type UserGroupMembership struct {
	UserName string `gorm:"primaryKey;column:user_name"`
	GroupID  int64  `gorm:"primaryKey;column:group_id"`
}

func (UserGroupMembership) TableName() string { return "user_group_membership" }

type WorkflowAccessGroup struct {
	WorkflowID int64 `gorm:"primaryKey;column:workflow_id"`
	GroupID    int64 `gorm:"primaryKey;column:group_id"`
}

func (WorkflowAccessGroup) TableName() string { return "workflow_access_group" }

// AllModels lists every entity for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Workflow{}, &Job{}, &JobDependsOn{}, &JobInputFile{}, &JobOutputFile{},
		&JobInputUserData{}, &JobOutputUserData{}, &JobInternal{},
		&File{}, &UserData{}, &ResourceRequirements{}, &ComputeNode{},
		&LocalScheduler{}, &SlurmScheduler{}, &ScheduledComputeNode{},
		&Result{}, &WorkflowResult{}, &Event{}, &WorkflowAction{},
		&RemoteWorker{}, &FailureHandler{},
		&AccessGroup{}, &UserGroupMembership{}, &WorkflowAccessGroup{},
	}
}

// NullString mirrors the teacher's dbutils.NullString convenience
// constructor for sql.NullString-backed optional text columns.
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
