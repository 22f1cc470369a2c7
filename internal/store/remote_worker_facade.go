package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// RemoteWorkerFacade is the database access surface for the
// worker-id/workflow-id registration pair.
type RemoteWorkerFacade struct {
	db *DB
}

func NewRemoteWorkerFacade(db *DB) *RemoteWorkerFacade {
	return &RemoteWorkerFacade{db: db}
}

func (f *RemoteWorkerFacade) Register(ctx context.Context, rw *model.RemoteWorker) error {
	err := f.db.gorm.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rw).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *RemoteWorkerFacade) Deregister(ctx context.Context, workerID string, workflowID int64) error {
	err := f.db.gorm.WithContext(ctx).
		Where("worker_id = ? AND workflow_id = ?", workerID, workflowID).
		Delete(&model.RemoteWorker{}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *RemoteWorkerFacade) ListByWorkflow(ctx context.Context, workflowID int64) ([]model.RemoteWorker, error) {
	var workers []model.RemoteWorker
	err := f.db.gorm.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&workers).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return workers, nil
}
