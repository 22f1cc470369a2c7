package action

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/logging"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
)

// Engine is the action engine.
type Engine struct {
	db      *store.DB
	actions *store.WorkflowActionFacade
	jobs    *store.JobFacade
}

func NewEngine(db *store.DB, actions *store.WorkflowActionFacade, jobs *store.JobFacade) *Engine {
	return &Engine{db: db, actions: actions, jobs: jobs}
}

// jobSatisfiedStatuses maps a job-based trigger type to the set of
// job statuses that count as "satisfied" for that trigger (spec.md
// §4.6 count_jobs_in_satisfied_state).
func jobSatisfiedStatuses(triggerType model.ActionTriggerType) []model.JobStatus {
	switch triggerType {
	case model.TriggerOnJobsReady:
		return []model.JobStatus{
			model.JobStatusReady, model.JobStatusCompleted, model.JobStatusFailed,
			model.JobStatusCanceled, model.JobStatusTerminated,
		}
	case model.TriggerOnJobsComplete:
		return []model.JobStatus{
			model.JobStatusCompleted, model.JobStatusFailed,
			model.JobStatusCanceled, model.JobStatusTerminated,
		}
	default:
		return nil
	}
}

// CountJobsInSatisfiedState counts how many of jobIDs currently
// satisfy triggerType's condition. Used both by
// CheckAndTriggerActions (when the caller didn't supply the changed
// job set) and by ResetActionsForReinitialize. tx may be nil to run
// against the base pool handle; pass the enclosing tx when called
// from inside a WithinTransaction block, since the pool is pinned to
// a single connection (store.Open).
func (e *Engine) CountJobsInSatisfiedState(ctx context.Context, tx *gorm.DB, jobIDs []int64, triggerType model.ActionTriggerType) (int, error) {
	satisfied := jobSatisfiedStatuses(triggerType)
	if len(satisfied) == 0 {
		return 0, nil
	}
	count := 0
	for _, jobID := range jobIDs {
		job, err := e.jobs.GetByID(ctx, tx, jobID)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return 0, err
		}
		for _, s := range satisfied {
			if job.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

// CheckAndTriggerActions is called by the graph/lifecycle engines
// after every state change that might satisfy an action's trigger
// (spec.md §4.6). jobIDs is the set of jobs that just changed state;
// nil means "re-derive from current state" (used after
// reinitialize-style bulk operations). tx may be nil to run outside
// any enclosing transaction, or the caller's tx to fold this check
// into the same atomic unit as the state change that triggered it.
func (e *Engine) CheckAndTriggerActions(ctx context.Context, tx *gorm.DB, workflowID int64, triggerType model.ActionTriggerType, jobIDs []int64) error {
	actions, err := e.actions.ListByTrigger(ctx, tx, workflowID, triggerType)
	if err != nil {
		return err
	}

	for _, a := range actions {
		if a.TriggerCount >= a.RequiredTriggers {
			continue
		}

		var delta int
		switch triggerType {
		case model.TriggerOnWorkflowStart, model.TriggerOnWorkflowComplete,
			model.TriggerOnWorkerStart, model.TriggerOnWorkerComplete:
			delta = 1
		case model.TriggerOnJobsReady, model.TriggerOnJobsComplete:
			actionJobIDs, err := decodeJobIDs(a.JobIDs)
			if err != nil {
				logging.Warnf("action: failed to decode job_ids for action %d: %v", a.ID, err)
				continue
			}
			if len(actionJobIDs) == 0 {
				continue
			}
			if jobIDs != nil {
				delta = overlapCount(actionJobIDs, jobIDs)
				if delta == 0 {
					continue
				}
			} else {
				satisfiedCount, err := e.CountJobsInSatisfiedState(ctx, tx, actionJobIDs, triggerType)
				if err != nil {
					return err
				}
				delta = satisfiedCount - a.TriggerCount
				if delta <= 0 {
					continue
				}
			}
		default:
			continue
		}

		if delta <= 0 {
			continue
		}
		if err := e.actions.IncrementTriggerCount(ctx, tx, a.ID, delta); err != nil {
			return err
		}
		logging.Debugf("action: incremented trigger_count by %d for action %d (trigger_type=%s) in workflow %d", delta, a.ID, triggerType, workflowID)
	}
	return nil
}

func decodeJobIDs(raw *string) ([]int64, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(*raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func overlapCount(actionJobIDs, changedJobIDs []int64) int {
	changed := make(map[int64]bool, len(changedJobIDs))
	for _, id := range changedJobIDs {
		changed[id] = true
	}
	count := 0
	for _, id := range actionJobIDs {
		if changed[id] {
			count++
		}
	}
	return count
}

// GetPendingActions returns actions with trigger_count >=
// required_triggers and executed=false, optionally filtered by
// trigger type.
func (e *Engine) GetPendingActions(ctx context.Context, workflowID int64, triggerTypes []model.ActionTriggerType) ([]model.WorkflowAction, error) {
	pending, err := e.actions.ListPending(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(triggerTypes) == 0 {
		return pending, nil
	}
	want := make(map[model.ActionTriggerType]bool, len(triggerTypes))
	for _, t := range triggerTypes {
		want[t] = true
	}
	filtered := pending[:0]
	for _, a := range pending {
		if want[a.TriggerType] {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// ClaimAction is spec.md §4.6's atomic claim. Persistent actions only
// advance ExecutedAt and remain claimable by other workers;
// non-persistent actions use the conditional UPDATE...WHERE
// executed=0 pattern, the same mutual-exclusion primitive the claim
// engine uses for jobs.
func (e *Engine) ClaimAction(ctx context.Context, workflowID, actionID int64, computeNodeID *int64) error {
	a, err := e.actions.GetByID(ctx, nil, actionID)
	if err != nil {
		return err
	}
	if a.WorkflowID != workflowID {
		return apperr.NewNotFound("action does not belong to this workflow")
	}

	if a.Persistent {
		if err := e.db.Gorm().WithContext(ctx).Model(&model.WorkflowAction{}).
			Where("id = ?", actionID).Update("executed_at", time.Now().UTC()).Error; err != nil {
			return apperr.NewDatabaseError(err)
		}
		return nil
	}

	if a.Executed {
		return apperr.NewConflict("action already claimed")
	}

	var executedBy int64
	if computeNodeID != nil {
		executedBy = *computeNodeID
	}
	ok, err := e.actions.ClaimForExecution(ctx, actionID, executedBy)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewConflict("action already claimed")
	}
	return nil
}

// ResetActionsForReinitialize implements spec.md §4.6: delete every
// is_recovery action, clear executed state on the rest, and
// recompute trigger_count for job-based trigger types from current
// job state.
func (e *Engine) ResetActionsForReinitialize(ctx context.Context, workflowID int64) error {
	return e.db.WithinTransaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).
			Where("workflow_id = ? AND is_recovery = ?", workflowID, true).
			Delete(&model.WorkflowAction{}).Error; err != nil {
			return apperr.NewDatabaseError(err)
		}

		if err := e.actions.ResetForReinitialize(ctx, tx, workflowID); err != nil {
			return err
		}

		var actions []model.WorkflowAction
		if err := tx.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&actions).Error; err != nil {
			return apperr.NewDatabaseError(err)
		}

		for _, a := range actions {
			switch a.TriggerType {
			case model.TriggerOnJobsReady, model.TriggerOnJobsComplete:
				jobIDs, err := decodeJobIDs(a.JobIDs)
				if err != nil {
					continue
				}
				count, err := e.CountJobsInSatisfiedState(ctx, tx, jobIDs, a.TriggerType)
				if err != nil {
					return err
				}
				if err := e.actions.SetTriggerCount(ctx, tx, a.ID, count); err != nil {
					return err
				}
			default:
				if err := e.actions.SetTriggerCount(ctx, tx, a.ID, 0); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
