package graph

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/logging"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
)

// maxReversalDepth bounds the completion-reversal BFS, the safety
// net spec.md §9 requires against cycles in the depends_on graph.
const maxReversalDepth = 100

// Engine is the job graph engine: initialize_jobs,
// process_changed_job_inputs, reset_job_status and the
// completion-reversal walk.
type Engine struct {
	db          *store.DB
	jobs        *store.JobFacade
	userData    *store.UserDataFacade
	workflows   *store.WorkflowFacade
}

func NewEngine(db *store.DB, jobs *store.JobFacade, userData *store.UserDataFacade, workflows *store.WorkflowFacade) *Engine {
	return &Engine{db: db, jobs: jobs, userData: userData, workflows: workflows}
}

// InitializeJobs is the idempotent bulk transition of spec.md §4.3:
// every job whose dependencies are all complete becomes Ready,
// everything else becomes Blocked, and every job's input_hash is
// recomputed and stored.
func (e *Engine) InitializeJobs(ctx context.Context, workflowID int64, onlyUninitialized, clearEphemeralUserData bool) error {
	return e.db.WithinTransaction(func(tx *gorm.DB) error {
		jobs, err := e.jobsToInitialize(ctx, tx, workflowID, onlyUninitialized)
		if err != nil {
			return err
		}

		statusCache := make(map[int64]model.JobStatus, len(jobs))
		for _, j := range jobs {
			statusCache[j.ID] = j.Status
		}

		for i := range jobs {
			job := &jobs[i]
			dependsOn, err := e.jobs.DependsOnIDs(ctx, tx, job.ID)
			if err != nil {
				return err
			}

			allComplete := true
			for _, depID := range dependsOn {
				depStatus, ok := statusCache[depID]
				if !ok {
					dep, err := e.jobs.GetByID(ctx, tx, depID)
					if err != nil {
						return err
					}
					depStatus = dep.Status
					statusCache[depID] = depStatus
				}
				if !depStatus.IsComplete() {
					allComplete = false
					break
				}
			}

			newStatus := model.JobStatusBlocked
			if allComplete {
				newStatus = model.JobStatusReady
			}
			if err := e.jobs.ForceUpdateStatus(ctx, tx, job.ID, newStatus); err != nil {
				return err
			}
			statusCache[job.ID] = newStatus

			hash, err := ComputeJobInputHash(ctx, tx, e.jobs, e.userData, job)
			if err != nil {
				return err
			}
			if err := e.jobs.SetInputHash(ctx, tx, job.ID, hash); err != nil {
				return err
			}
		}

		if clearEphemeralUserData {
			err := tx.WithContext(ctx).Model(&model.UserData{}).
				Where("workflow_id = ? AND is_ephemeral = ?", workflowID, true).
				Update("data", nil).Error
			if err != nil {
				return apperr.NewDatabaseError(err)
			}
		}

		logging.Infof("graph: initialized %d jobs in workflow %d (only_uninitialized=%v)", len(jobs), workflowID, onlyUninitialized)
		return nil
	})
}

func (e *Engine) jobsToInitialize(ctx context.Context, tx *gorm.DB, workflowID int64, onlyUninitialized bool) ([]model.Job, error) {
	var jobs []model.Job
	q := tx.WithContext(ctx).Where("workflow_id = ?", workflowID)
	if onlyUninitialized {
		q = q.Where("status = ?", model.JobStatusUninitialized.ToInt())
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return jobs, nil
}

// ProcessChangedJobInputs recomputes every job's input hash and
// compares it to the stored value; jobs whose hash differs are reset
// to Uninitialized unless dry_run is set. Returns the names of the
// affected jobs.
func (e *Engine) ProcessChangedJobInputs(ctx context.Context, workflowID int64, dryRun bool) ([]string, error) {
	var changed []string
	err := e.db.WithinTransaction(func(tx *gorm.DB) error {
		var jobs []model.Job
		if err := tx.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&jobs).Error; err != nil {
			return apperr.NewDatabaseError(err)
		}

		for i := range jobs {
			job := &jobs[i]
			newHash, err := ComputeJobInputHash(ctx, tx, e.jobs, e.userData, job)
			if err != nil {
				return err
			}
			internal, err := e.jobs.GetInternal(ctx, tx, job.ID)
			if err != nil {
				return err
			}
			if internal.InputHash != nil && *internal.InputHash == newHash {
				continue
			}
			changed = append(changed, job.Name)
			if !dryRun {
				if err := e.jobs.ForceUpdateStatus(ctx, tx, job.ID, model.JobStatusUninitialized); err != nil {
					return err
				}
				if err := e.jobs.SetInputHash(ctx, tx, job.ID, newHash); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// ResetJobStatus implements spec.md §4.3's reset_job_status. With
// failedOnly=false every job in the workflow becomes Uninitialized
// and active-compute-node pointers are cleared. With
// failedOnly=true, only jobs in a terminal failure status are reset,
// and those that were is_complete() trigger completion-reversal.
func (e *Engine) ResetJobStatus(ctx context.Context, workflowID int64, failedOnly bool) error {
	return e.db.WithinTransaction(func(tx *gorm.DB) error {
		if !failedOnly {
			err := tx.WithContext(ctx).Model(&model.Job{}).
				Where("workflow_id = ?", workflowID).
				Updates(map[string]interface{}{
					"status":                  model.JobStatusUninitialized,
					"active_compute_node_id": nil,
				}).Error
			if err != nil {
				return apperr.NewDatabaseError(err)
			}
			return nil
		}

		var jobs []model.Job
		err := tx.WithContext(ctx).Where(
			"workflow_id = ? AND status IN ?", workflowID,
			[]int{model.JobStatusFailed.ToInt(), model.JobStatusCanceled.ToInt(), model.JobStatusTerminated.ToInt()},
		).Find(&jobs).Error
		if err != nil {
			return apperr.NewDatabaseError(err)
		}

		for _, job := range jobs {
			preResetStatus := job.Status
			err := tx.WithContext(ctx).Model(&model.Job{}).Where("id = ?", job.ID).
				Updates(map[string]interface{}{
					"status":                  model.JobStatusUninitialized,
					"active_compute_node_id": nil,
				}).Error
			if err != nil {
				return apperr.NewDatabaseError(err)
			}
			if preResetStatus.IsComplete() {
				if err := e.completionReversal(ctx, tx, job.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// completionReversal performs the transitive breadth-first walk of
// spec.md §4.3.1: every job reachable from jobID along depends_on
// edges (i.e. every job that depends, directly or indirectly, on
// jobID) is set to Uninitialized with its active-compute-node
// pointer cleared. Bounded at maxReversalDepth.
func (e *Engine) completionReversal(ctx context.Context, tx *gorm.DB, jobID int64) error {
	visited := map[int64]bool{jobID: true}
	frontier := []int64{jobID}

	for depth := 0; depth < maxReversalDepth && len(frontier) > 0; depth++ {
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
			}
		}
		frontier = nextFrontier
	}

	reached := make([]int64, 0, len(visited)-1)
	for id := range visited {
		if id != jobID {
			reached = append(reached, id)
		}
	}
	if len(reached) == 0 {
		return nil
	}

	err := tx.WithContext(ctx).Model(&model.Job{}).Where("id IN ?", reached).
		Updates(map[string]interface{}{
			"status":                  model.JobStatusUninitialized,
			"active_compute_node_id": nil,
		}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	logging.Debugf("graph: completion reversal from job %d reached %d downstream jobs", jobID, len(reached))
	return nil
}

// CompletionReversal exposes the transitive downstream reset so
// ResetJobStatus's direct callers and tests can trigger it without
// going through reset_job_status. The lifecycle package's
// cancel-on-blocking-failure cascade is a related but distinct BFS
// (it targets Canceled and only cancel_on_blocking_job_failure jobs,
// not every downstream job); see lifecycle.cascadeCancelBlocked.
func (e *Engine) CompletionReversal(ctx context.Context, tx *gorm.DB, jobID int64) error {
	return e.completionReversal(ctx, tx, jobID)
}
