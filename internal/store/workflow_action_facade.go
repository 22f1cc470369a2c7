package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// WorkflowActionFacade is the database access surface for
// WorkflowAction rules.
type WorkflowActionFacade struct {
	db *DB
}

func NewWorkflowActionFacade(db *DB) *WorkflowActionFacade {
	return &WorkflowActionFacade{db: db}
}

func (f *WorkflowActionFacade) Create(ctx context.Context, a *model.WorkflowAction) error {
	if err := f.db.gorm.WithContext(ctx).Create(a).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

// gormHandle returns tx if the caller is inside a WithinTransaction
// block, otherwise the facade's base pool handle (see
// JobFacade.gormHandle for why this distinction matters under the
// single-connection pool store.Open configures).
func (f *WorkflowActionFacade) gormHandle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return f.db.gorm
}

func (f *WorkflowActionFacade) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.WorkflowAction, error) {
	var a model.WorkflowAction
	err := f.gormHandle(tx).WithContext(ctx).First(&a, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("action not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &a, nil
}

func (f *WorkflowActionFacade) ListByTrigger(ctx context.Context, tx *gorm.DB, workflowID int64, trigger model.ActionTriggerType) ([]model.WorkflowAction, error) {
	var actions []model.WorkflowAction
	err := f.gormHandle(tx).WithContext(ctx).
		Where("workflow_id = ? AND trigger_type = ?", workflowID, trigger).
		Find(&actions).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return actions, nil
}

// ListPending returns actions that have met their trigger count but
// have not yet executed, or whose Persistent flag lets them fire
// again (spec.md §4.6).
func (f *WorkflowActionFacade) ListPending(ctx context.Context, workflowID int64) ([]model.WorkflowAction, error) {
	var actions []model.WorkflowAction
	err := f.db.gorm.WithContext(ctx).
		Where("workflow_id = ? AND trigger_count >= required_triggers AND (executed = ? OR persistent = ?)", workflowID, false, true).
		Find(&actions).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return actions, nil
}

// IncrementTriggerCount advances trigger_count by delta (spec.md
// §4.6: a single CheckAndTriggerActions call may observe more than
// one newly-satisfied job at once, so delta is not always 1).
func (f *WorkflowActionFacade) IncrementTriggerCount(ctx context.Context, tx *gorm.DB, id int64, delta int) error {
	res := f.gormHandle(tx).WithContext(ctx).Model(&model.WorkflowAction{}).Where("id = ?", id).
		Update("trigger_count", gorm.Expr("trigger_count + ?", delta))
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	return nil
}

// SetTriggerCount sets trigger_count to an absolute value, used when
// re-deriving it from current job state (spec.md §4.6
// reset_actions_for_reinitialize) rather than advancing it by a
// delta.
func (f *WorkflowActionFacade) SetTriggerCount(ctx context.Context, tx *gorm.DB, id int64, count int) error {
	res := f.gormHandle(tx).WithContext(ctx).Model(&model.WorkflowAction{}).Where("id = ?", id).
		Update("trigger_count", count)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	return nil
}

// ClaimForExecution conditionally marks a non-persistent action
// executed, mirroring the job claim's atomic-update pattern so two
// concurrent triggers cannot both fire the same one-shot action.
func (f *WorkflowActionFacade) ClaimForExecution(ctx context.Context, id int64, executedBy int64) (bool, error) {
	res := f.db.gorm.WithContext(ctx).Model(&model.WorkflowAction{}).
		Where("id = ? AND executed = ?", id, false).
		Updates(map[string]interface{}{"executed": true, "executed_by": executedBy})
	if res.Error != nil {
		return false, apperr.NewDatabaseError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ResetForReinitialize clears the Executed/TriggerCount state of
// every action in the workflow, called by reinitialize_jobs per
// spec.md §4.3 so actions can fire again across a fresh run.
func (f *WorkflowActionFacade) ResetForReinitialize(ctx context.Context, tx *gorm.DB, workflowID int64) error {
	gormDB := tx
	if gormDB == nil {
		gormDB = f.db.gorm
	}
	err := gormDB.WithContext(ctx).Model(&model.WorkflowAction{}).
		Where("workflow_id = ?", workflowID).
		Updates(map[string]interface{}{"executed": false, "trigger_count": 0, "executed_at": nil, "executed_by": nil}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *WorkflowActionFacade) List(ctx context.Context, p ListParams) (*ListResult[model.WorkflowAction], error) {
	result, err := Paginate[model.WorkflowAction](f.db, "workflow_actions", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}
