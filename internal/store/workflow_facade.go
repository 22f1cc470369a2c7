package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// WorkflowFacade is the database access surface for Workflow rows,
// following the teacher's one-facade-per-entity shape (NodeFacade)
// but talking to gorm directly instead of through a generated DAL.
type WorkflowFacade struct {
	db *DB
}

func NewWorkflowFacade(db *DB) *WorkflowFacade {
	return &WorkflowFacade{db: db}
}

func (f *WorkflowFacade) Create(ctx context.Context, w *model.Workflow) error {
	if err := f.db.gorm.WithContext(ctx).Create(w).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *WorkflowFacade) GetByID(ctx context.Context, id int64) (*model.Workflow, error) {
	var w model.Workflow
	err := f.db.gorm.WithContext(ctx).First(&w, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("workflow not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &w, nil
}

func (f *WorkflowFacade) Update(ctx context.Context, w *model.Workflow) error {
	res := f.db.gorm.WithContext(ctx).Model(&model.Workflow{}).Where("id = ?", w.ID).
		Updates(map[string]interface{}{
			"name":        w.Name,
			"description": w.Description,
			"is_archived": w.IsArchived,
		})
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("workflow not found")
	}
	return nil
}

func (f *WorkflowFacade) Delete(ctx context.Context, id int64) error {
	res := f.db.gorm.WithContext(ctx).Delete(&model.Workflow{}, id)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("workflow not found")
	}
	return nil
}

func (f *WorkflowFacade) List(ctx context.Context, p ListParams) (*ListResult[model.Workflow], error) {
	result, err := Paginate[model.Workflow](f.db, "workflows", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

// CountJobStatuses returns the count of jobs in each status for a
// workflow, used to satisfy is_workflow_complete (spec.md §4.2).
func (f *WorkflowFacade) CountJobStatuses(ctx context.Context, workflowID int64) (map[model.JobStatus]int64, error) {
	type row struct {
		Status model.JobStatus
		Count  int64
	}
	var rows []row
	err := f.db.gorm.WithContext(ctx).Model(&model.Job{}).
		Select("status, count(*) as count").
		Where("workflow_id = ?", workflowID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	out := make(map[model.JobStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
