// Package lifecycle implements spec.md §4.5's job lifecycle
// operations: start_job, complete_job, retry_job,
// manage_status_change and update_job. Grounded algorithmically on
// original_source/src/server/api/jobs.rs's complete_job (the
// insert-result / upsert-pointer / cascade-cancel / fire-actions
// sequence) and written in the teacher's facade + apperr idiom.
package lifecycle

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/action"
	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/logging"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
)

// maxCascadeDepth bounds the cancel-on-blocking-job-failure cascade,
// the same safety net the graph engine's completion-reversal walk
// uses against cycles in the depends_on graph.
const maxCascadeDepth = 100

// Engine is the job lifecycle engine.
type Engine struct {
	db      *store.DB
	jobs    *store.JobFacade
	results *store.ResultFacade
	actions *action.Engine
}

func NewEngine(db *store.DB, jobs *store.JobFacade, results *store.ResultFacade, actions *action.Engine) *Engine {
	return &Engine{db: db, jobs: jobs, results: results, actions: actions}
}

// StartJob verifies the job is Pending, sets it Running, and records
// the claiming compute node and run id.
func (e *Engine) StartJob(ctx context.Context, jobID, runID, computeNodeID int64) error {
	job, err := e.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusPending {
		return apperr.NewUnprocessableContent("job is not pending")
	}
	err = e.jobs.Update(ctx, jobID, map[string]interface{}{
		"status":                 model.JobStatusRunning,
		"active_compute_node_id": computeNodeID,
		"run_id":                 runID,
	})
	if err != nil {
		return err
	}
	logging.Debugf("lifecycle: started job %d on compute node %d (run %d)", jobID, computeNodeID, runID)
	return nil
}

// CompleteJob is spec.md §4.5's complete_job: insert the Result,
// upsert the latest-result pointer, set the terminal status, clear
// the active compute node, cascade-cancel any
// cancel_on_blocking_job_failure downstream jobs on Failed, then fire
// on_jobs_complete.
func (e *Engine) CompleteJob(ctx context.Context, jobID int64, status model.JobStatus, runID int64, result *model.Result) error {
	switch status {
	case model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCanceled, model.JobStatusTerminated:
	default:
		return apperr.NewUnprocessableContent("complete_job requires a terminal status")
	}

	job, err := e.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}

	err = e.db.WithinTransaction(func(tx *gorm.DB) error {
		result.JobID = jobID
		result.WorkflowID = job.WorkflowID
		result.RunID = runID
		result.Status = status
		if _, err := e.results.CreateAndPointLatest(ctx, tx, result); err != nil {
			return err
		}

		err := tx.WithContext(ctx).Model(&model.Job{}).Where("id = ?", jobID).
			Updates(map[string]interface{}{
				"status":                 status,
				"active_compute_node_id": nil,
			}).Error
		if err != nil {
			return apperr.NewDatabaseError(err)
		}

		if status == model.JobStatusFailed {
			if err := e.cascadeCancelBlocked(ctx, tx, jobID); err != nil {
				return err
			}
		}

		if err := e.actions.CheckAndTriggerActions(ctx, tx, job.WorkflowID, model.TriggerOnJobsComplete, []int64{jobID}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Infof("lifecycle: completed job %d with status %s (run %d)", jobID, status, runID)
	return nil
}

// cascadeCancelBlocked walks the dependents of jobID (breadth-first,
// bounded) and sets every job with cancel_on_blocking_job_failure=true
// to Canceled. Unlike the graph engine's completion-reversal (which
// resets every downstream job to Uninitialized for a re-run), this
// cascade only cancels jobs that opted in and is a single transitive
// pass, not a re-initialization.
func (e *Engine) cascadeCancelBlocked(ctx context.Context, tx *gorm.DB, jobID int64) error {
	visited := map[int64]bool{jobID: true}
	frontier := []int64{jobID}
	var toCancel []int64

	for depth := 0; depth < maxCascadeDepth && len(frontier) > 0; depth++ {
		var nextFrontier []int64
		for _, id := range frontier {
			var edges []model.JobDependsOn
			if err := tx.WithContext(ctx).Where("depends_on_job_id = ?", id).Find(&edges).Error; err != nil {
				return apperr.NewDatabaseError(err)
			}
			for _, edge := range edges {
				if visited[edge.JobID] {
					continue
				}
				visited[edge.JobID] = true
				nextFrontier = append(nextFrontier, edge.JobID)

				var dep model.Job
				if err := tx.WithContext(ctx).First(&dep, edge.JobID).Error; err != nil {
					return apperr.NewDatabaseError(err)
				}
				if dep.CancelOnBlockingJobFailure && !dep.Status.IsComplete() {
					toCancel = append(toCancel, dep.ID)
				}
			}
		}
		frontier = nextFrontier
	}

	if len(toCancel) == 0 {
		return nil
	}
	err := tx.WithContext(ctx).Model(&model.Job{}).Where("id IN ?", toCancel).
		Updates(map[string]interface{}{
			"status":                 model.JobStatusCanceled,
			"active_compute_node_id": nil,
		}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	logging.Debugf("lifecycle: failure of job %d cascaded to cancel %d downstream jobs", jobID, len(toCancel))
	return nil
}

// RetryJob increments the attempt counter and sets the job back to
// Ready if it is below max_retries; otherwise it is left Failed and
// the caller gets UnprocessableContent.
func (e *Engine) RetryJob(ctx context.Context, jobID, runID int64, maxRetries int) error {
	job, err := e.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if job.RetryCount >= maxRetries {
		return apperr.NewUnprocessableContent("job has exhausted its retry budget")
	}
	return e.jobs.Update(ctx, jobID, map[string]interface{}{
		"status":      model.JobStatusReady,
		"retry_count": job.RetryCount + 1,
		"run_id":      runID,
	})
}

// legalTransitions enumerates manage_status_change's allowed edges.
// Claiming (Ready->Pending) and start_job/complete_job are not
// reachable through this generic path; they use their own dedicated
// operations and the claim engine's conditional update.
var legalTransitions = map[model.JobStatus]map[model.JobStatus]bool{
	model.JobStatusUninitialized: {model.JobStatusBlocked: true, model.JobStatusReady: true, model.JobStatusDisabled: true},
	model.JobStatusBlocked:       {model.JobStatusReady: true, model.JobStatusDisabled: true},
	model.JobStatusReady:         {model.JobStatusDisabled: true},
	model.JobStatusPending:       {model.JobStatusSubmittedPending: true, model.JobStatusSubmitted: true, model.JobStatusRunning: true, model.JobStatusDisabled: true},
	model.JobStatusSubmittedPending: {model.JobStatusSubmitted: true, model.JobStatusRunning: true, model.JobStatusDisabled: true},
	model.JobStatusSubmitted:     {model.JobStatusRunning: true, model.JobStatusDisabled: true},
	model.JobStatusRunning:       {model.JobStatusCompleted: true, model.JobStatusFailed: true, model.JobStatusCanceled: true, model.JobStatusTerminated: true, model.JobStatusDisabled: true},
	model.JobStatusCompleted:     {model.JobStatusDisabled: true},
	model.JobStatusFailed:        {model.JobStatusReady: true, model.JobStatusDisabled: true},
	model.JobStatusCanceled:      {model.JobStatusDisabled: true},
	model.JobStatusTerminated:    {model.JobStatusDisabled: true},
	model.JobStatusDisabled:      {},
}

// ManageStatusChange is the lower-level generic transition used by
// the update endpoints. Illegal transitions return
// UnprocessableContent.
func (e *Engine) ManageStatusChange(ctx context.Context, jobID int64, newStatus model.JobStatus, runID int64) error {
	job, err := e.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if !legalTransitions[job.Status][newStatus] {
		return apperr.NewUnprocessableContent("illegal job status transition")
	}
	return e.jobs.Update(ctx, jobID, map[string]interface{}{
		"status": newStatus,
		"run_id": runID,
	})
}

// statusMutableFields are the Job columns update_job may change
// regardless of current status.
var statusMutableFields = map[string]bool{
	"scheduler_id":             true,
	"resource_requirements_id": true,
}

// UpdateJob implements spec.md §4.5's update_job: scheduler_id and
// resource_requirements_id are mutable at any status; every other
// field (including depends_on) requires status=Uninitialized; a
// direct status change is forbidden except to Disabled.
func (e *Engine) UpdateJob(ctx context.Context, jobID int64, patch map[string]interface{}, newDependsOnIDs []int64) error {
	job, err := e.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}

	always := map[string]interface{}{}
	gated := map[string]interface{}{}
	for k, v := range patch {
		if k == "status" {
			statusVal, ok := v.(model.JobStatus)
			if !ok || statusVal != model.JobStatusDisabled {
				return apperr.NewUnprocessableContent("status may only be set directly to disabled")
			}
			gated[k] = v
			continue
		}
		if statusMutableFields[k] {
			always[k] = v
		} else {
			gated[k] = v
		}
	}

	if len(gated) > 0 && job.Status != model.JobStatusUninitialized {
		return apperr.NewUnprocessableContent("this field may only be changed while the job is uninitialized")
	}
	if newDependsOnIDs != nil && job.Status != model.JobStatusUninitialized {
		return apperr.NewUnprocessableContent("depends_on may only be changed while the job is uninitialized")
	}

	return e.db.WithinTransaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{}
		for k, v := range always {
			fields[k] = v
		}
		for k, v := range gated {
			fields[k] = v
		}
		if len(fields) > 0 {
			res := tx.WithContext(ctx).Model(&model.Job{}).Where("id = ?", jobID).Updates(fields)
			if res.Error != nil {
				return apperr.NewDatabaseError(res.Error)
			}
		}

		if newDependsOnIDs != nil {
			if err := tx.WithContext(ctx).Where("job_id = ?", jobID).Delete(&model.JobDependsOn{}).Error; err != nil {
				return apperr.NewDatabaseError(err)
			}
			for _, depID := range newDependsOnIDs {
				edge := model.JobDependsOn{JobID: jobID, DependsOnID: depID}
				if err := tx.WithContext(ctx).Create(&edge).Error; err != nil {
					return apperr.NewDatabaseError(err)
				}
			}
		}
		return nil
	})
}
