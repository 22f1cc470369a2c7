package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// ResultFacade is the database access surface for the append-only
// Result table and the latest-per-job WorkflowResult pointer table.
type ResultFacade struct {
	db *DB
}

func NewResultFacade(db *DB) *ResultFacade {
	return &ResultFacade{db: db}
}

// CreateAndPointLatest inserts a Result row and upserts the
// corresponding WorkflowResult pointer through tx, so both writes
// share the caller's transaction (with tx nil they are two separate
// statements on the base handle),
// implementing spec.md I8 ("workflow_result always reflects the most
// recently completed run of each job").
func (f *ResultFacade) CreateAndPointLatest(ctx context.Context, tx *gorm.DB, result *model.Result) (*model.Result, error) {
	gormDB := tx
	if gormDB == nil {
		gormDB = f.db.gorm
	}
	if err := gormDB.WithContext(ctx).Create(result).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	ptr := &model.WorkflowResult{
		WorkflowID: result.WorkflowID,
		JobID:      result.JobID,
		ResultID:   result.ID,
	}
	err := gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workflow_id"}, {Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"result_id"}),
		}).
		Create(ptr).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *ResultFacade) GetLatestForJob(ctx context.Context, workflowID, jobID int64) (*model.Result, error) {
	var ptr model.WorkflowResult
	err := f.db.gorm.WithContext(ctx).
		Where("workflow_id = ? AND job_id = ?", workflowID, jobID).First(&ptr).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("no result recorded for job")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	var result model.Result
	if err := f.db.gorm.WithContext(ctx).First(&result, ptr.ResultID).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &result, nil
}

func (f *ResultFacade) ListForJob(ctx context.Context, jobID int64, p ListParams) (*ListResult[model.Result], error) {
	if p.Filters == nil {
		p.Filters = map[string]interface{}{}
	}
	p.Filters["job_id"] = jobID
	result, err := Paginate[model.Result](f.db, "results", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *ResultFacade) ListForWorkflow(ctx context.Context, workflowID int64, p ListParams) (*ListResult[model.Result], error) {
	if p.Filters == nil {
		p.Filters = map[string]interface{}{}
	}
	p.Filters["workflow_id"] = workflowID
	result, err := Paginate[model.Result](f.db, "results", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}
