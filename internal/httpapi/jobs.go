package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/claim"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
)

// maxBulkJobsPerCall is spec.md §6.1's "≤ 10,000 per call" cap on
// POST .../jobs:bulk.
const maxBulkJobsPerCall = 10000

type jobCreateReq struct {
	Name                       string  `json:"name"`
	Command                    string  `json:"command"`
	InvocationScript           *string `json:"invocation_script,omitempty"`
	ResourceRequirementsID     *int64  `json:"resource_requirements_id,omitempty"`
	CancelOnBlockingJobFailure bool    `json:"cancel_on_blocking_job_failure"`
	SupportsTermination        bool    `json:"supports_termination"`
	SchedulerID                *int64  `json:"scheduler_id,omitempty"`
	DependsOnJobIDs            []int64 `json:"depends_on_job_ids"`
	InputFileIDs               []int64 `json:"input_file_ids"`
	OutputFileIDs              []int64 `json:"output_file_ids"`
	InputUserDataIDs           []int64 `json:"input_user_data_ids"`
	OutputUserDataIDs          []int64 `json:"output_user_data_ids"`
}

func (req jobCreateReq) toSpec(workflowID int64) store.JobSpec {
	return store.JobSpec{
		Job: model.Job{
			WorkflowID:                 workflowID,
			Name:                       req.Name,
			Command:                   req.Command,
			InvocationScript:           req.InvocationScript,
			ResourceRequirementsID:     req.ResourceRequirementsID,
			CancelOnBlockingJobFailure: req.CancelOnBlockingJobFailure,
			SupportsTermination:        req.SupportsTermination,
			SchedulerID:                req.SchedulerID,
		},
		DependsOnIDs:      req.DependsOnJobIDs,
		InputFileIDs:      req.InputFileIDs,
		OutputFileIDs:     req.OutputFileIDs,
		InputUserDataIDs:  req.InputUserDataIDs,
		OutputUserDataIDs: req.OutputUserDataIDs,
	}
}

func (s *Server) createJob(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req jobCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" || req.Command == "" {
		return nil, apperr.NewUnprocessableField("name and command are required", "name", req.Name)
	}
	created, err := s.jobs.CreateMany(c.Request.Context(), []store.JobSpec{req.toSpec(workflowID)})
	if err != nil {
		return nil, err
	}
	s.publish(workflowID, "job", "create", created[0].Name)
	c.Status(http.StatusCreated)
	return created[0], nil
}

func (s *Server) createJobsBulk(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var reqs []jobCreateReq
	if err := c.ShouldBindJSON(&reqs); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if len(reqs) == 0 {
		return nil, apperr.NewUnprocessableContent("at least one job is required")
	}
	if len(reqs) > maxBulkJobsPerCall {
		return nil, apperr.NewUnprocessableContent("bulk job creation is limited to 10000 per call")
	}
	specs := make([]store.JobSpec, len(reqs))
	for i, req := range reqs {
		if req.Name == "" || req.Command == "" {
			return nil, apperr.NewUnprocessableField("name and command are required", "name", req.Name)
		}
		specs[i] = req.toSpec(workflowID)
	}
	created, err := s.jobs.CreateMany(c.Request.Context(), specs)
	if err != nil {
		return nil, err
	}
	s.publish(workflowID, "job", "create_bulk", strconv.Itoa(len(created)))
	c.Status(http.StatusCreated)
	return gin.H{"items": created, "count": len(created)}, nil
}

// listJobs filters by status and active_compute_node_id only. The
// needs_file_id, upstream_job_id and include_relationships query
// parameters are not read: they do not narrow the result, and
// relation sets are never included in the list payload (GET
// /jobs/{id} returns the full detail including edges).
func (s *Server) listJobs(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	filters := map[string]interface{}{"workflow_id": workflowID}
	if statusStr := c.Query("status"); statusStr != "" {
		status, err := model.JobStatusFromString(statusStr)
		if err != nil {
			return nil, apperr.NewBadRequest("invalid status")
		}
		filters["status"] = status.ToInt()
	}
	if v := c.Query("active_compute_node_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, apperr.NewBadRequest("invalid active_compute_node_id")
		}
		filters["active_compute_node_id"] = n
	}
	return s.jobs.List(c.Request.Context(), parseListParams(c, filters))
}

func (s *Server) getJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	return s.jobs.GetByID(c.Request.Context(), nil, jobID)
}

// updateJob implements spec.md §4.5's update_job: scheduler_id and
// resource_requirements_id are mutable at any status; every other
// field (and depends_on) requires status=Uninitialized.
type jobUpdateReq struct {
	SchedulerID            *int64  `json:"scheduler_id,omitempty"`
	ResourceRequirementsID *int64  `json:"resource_requirements_id,omitempty"`
	Name                   *string `json:"name,omitempty"`
	Command                *string `json:"command,omitempty"`
	Status                 *string `json:"status,omitempty"`
	DependsOnJobIDs        []int64 `json:"depends_on_job_ids,omitempty"`
}

func (s *Server) updateJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	var req jobUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}

	patch := map[string]interface{}{}
	if req.SchedulerID != nil {
		patch["scheduler_id"] = *req.SchedulerID
	}
	if req.ResourceRequirementsID != nil {
		patch["resource_requirements_id"] = *req.ResourceRequirementsID
	}
	if req.Name != nil {
		patch["name"] = *req.Name
	}
	if req.Command != nil {
		patch["command"] = *req.Command
	}
	if req.Status != nil {
		status, err := model.JobStatusFromString(*req.Status)
		if err != nil {
			return nil, apperr.NewBadRequest("invalid status")
		}
		patch["status"] = status
	}

	var dependsOn []int64
	if req.DependsOnJobIDs != nil {
		dependsOn = req.DependsOnJobIDs
	}

	if err := s.lifecycle.UpdateJob(c.Request.Context(), jobID, patch, dependsOn); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(c.Request.Context(), nil, jobID)
}

func (s *Server) deleteJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Update(c.Request.Context(), jobID, map[string]interface{}{"status": model.JobStatusDisabled}); err != nil {
		return nil, err
	}
	s.publish(job.WorkflowID, "job", "delete", job.Name)
	c.Status(http.StatusNoContent)
	return gin.H{}, nil
}

func (s *Server) initializeJobs(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	onlyUninitialized := queryBool(c, "only_uninitialized")
	clearEphemeral := queryBool(c, "clear_ephemeral_user_data")
	if err := s.graph.InitializeJobs(c.Request.Context(), workflowID, onlyUninitialized, clearEphemeral); err != nil {
		return nil, err
	}
	if err := s.actions.ResetActionsForReinitialize(c.Request.Context(), workflowID); err != nil {
		return nil, err
	}
	s.publish(workflowID, "job", "initialize", "")
	return gin.H{}, nil
}

func (s *Server) resetJobs(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	failedOnly := queryBool(c, "failed_only")
	if err := s.graph.ResetJobStatus(c.Request.Context(), workflowID, failedOnly); err != nil {
		return nil, err
	}
	s.publish(workflowID, "job", "reset", "")
	return gin.H{}, nil
}

func (s *Server) processChangedJobInputs(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	dryRun := queryBool(c, "dry_run")
	changed, err := s.graph.ProcessChangedJobInputs(c.Request.Context(), workflowID, dryRun)
	if err != nil {
		return nil, err
	}
	return gin.H{"changed_jobs": changed}, nil
}

type claimResourcesReq struct {
	NumCPUs           int    `json:"num_cpus"`
	Memory            string `json:"memory"`
	NumGPUs           int    `json:"num_gpus"`
	NumNodes          int    `json:"num_nodes"`
	TimeLimitSeconds  *int64 `json:"time_limit_seconds,omitempty"`
	SchedulerConfigID *int64 `json:"scheduler_config_id,omitempty"`
}

func (s *Server) claimJobsBasedOnResources(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req claimResourcesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	memoryBytes, err := model.ParseMemoryString(req.Memory)
	if err != nil {
		return nil, apperr.NewUnprocessableField("invalid memory string", "memory", req.Memory)
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sortMethod := claim.SortMethod(c.DefaultQuery("sort_method", string(claim.SortNone)))
	strictSchedulerMatch := queryBool(c, "strict_scheduler_match")

	result, err := s.claim.ClaimJobsBasedOnResources(c.Request.Context(), workflowID, claim.Resources{
		NumCPUs:           req.NumCPUs,
		MemoryBytes:       memoryBytes,
		NumGPUs:           req.NumGPUs,
		NumNodes:          req.NumNodes,
		TimeLimitSeconds:  req.TimeLimitSeconds,
		SchedulerConfigID: req.SchedulerConfigID,
	}, limit, sortMethod, strictSchedulerMatch)
	if err != nil {
		return nil, err
	}
	if len(result.Jobs) > 0 {
		s.publish(workflowID, "job", "claim", strconv.Itoa(len(result.Jobs)))
	}
	return gin.H{"jobs": result.Jobs, "reason": result.Reason}, nil
}

func (s *Server) claimNextJobs(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	result, err := s.claim.ClaimNextJobs(c.Request.Context(), workflowID, limit)
	if err != nil {
		return nil, err
	}
	if len(result.Jobs) > 0 {
		s.publish(workflowID, "job", "claim", strconv.Itoa(len(result.Jobs)))
	}
	return gin.H{"jobs": result.Jobs, "reason": result.Reason}, nil
}

type startJobReq struct {
	RunID         int64 `json:"run_id"`
	ComputeNodeID int64 `json:"compute_node_id"`
}

func (s *Server) startJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	var req startJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if err := s.lifecycle.StartJob(c.Request.Context(), jobID, req.RunID, req.ComputeNodeID); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(c.Request.Context(), nil, jobID)
}

type completeJobReq struct {
	Status          string   `json:"status"`
	RunID           int64    `json:"run_id"`
	ComputeNodeID   *int64   `json:"compute_node_id,omitempty"`
	ReturnCode      *int     `json:"return_code,omitempty"`
	ExecTimeMinutes *float64 `json:"exec_time_minutes,omitempty"`
	PeakMemoryBytes *int64   `json:"peak_memory_bytes,omitempty"`
	AvgMemoryBytes  *int64   `json:"avg_memory_bytes,omitempty"`
	PeakCPUPercent  *float64 `json:"peak_cpu_percent,omitempty"`
	AvgCPUPercent   *float64 `json:"avg_cpu_percent,omitempty"`
}

func (s *Server) completeJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	var req completeJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	status, err := model.JobStatusFromString(req.Status)
	if err != nil {
		return nil, apperr.NewBadRequest("invalid status")
	}
	result := &model.Result{
		ComputeNodeID:   req.ComputeNodeID,
		ReturnCode:      req.ReturnCode,
		ExecTimeMinutes: req.ExecTimeMinutes,
		PeakMemoryBytes: req.PeakMemoryBytes,
		AvgMemoryBytes:  req.AvgMemoryBytes,
		PeakCPUPercent:  req.PeakCPUPercent,
		AvgCPUPercent:   req.AvgCPUPercent,
	}
	if err := s.lifecycle.CompleteJob(c.Request.Context(), jobID, status, req.RunID, result); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		return nil, err
	}
	s.publish(job.WorkflowID, "job", "complete", job.Name)
	return job, nil
}

type retryJobReq struct {
	RunID      int64 `json:"run_id"`
	MaxRetries int   `json:"max_retries"`
}

func (s *Server) retryJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	var req retryJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if err := s.lifecycle.RetryJob(c.Request.Context(), jobID, req.RunID, req.MaxRetries); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(c.Request.Context(), nil, jobID)
}

type statusChangeReq struct {
	Status string `json:"status"`
	RunID  int64  `json:"run_id"`
}

func (s *Server) manageStatusChange(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	var req statusChangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	status, err := model.JobStatusFromString(req.Status)
	if err != nil {
		return nil, apperr.NewBadRequest("invalid status")
	}
	if err := s.lifecycle.ManageStatusChange(c.Request.Context(), jobID, status, req.RunID); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(c.Request.Context(), nil, jobID)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return false
	}
	return v
}
