package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// SchedulerFacade is the database access surface for the two
// scheduler kinds and the ScheduledComputeNode allocation-request
// records they produce.
type SchedulerFacade struct {
	db *DB
}

func NewSchedulerFacade(db *DB) *SchedulerFacade {
	return &SchedulerFacade{db: db}
}

func (f *SchedulerFacade) CreateLocal(ctx context.Context, s *model.LocalScheduler) error {
	if err := f.db.gorm.WithContext(ctx).Create(s).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *SchedulerFacade) CreateSlurm(ctx context.Context, s *model.SlurmScheduler) error {
	if err := f.db.gorm.WithContext(ctx).Create(s).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *SchedulerFacade) GetLocalByID(ctx context.Context, id int64) (*model.LocalScheduler, error) {
	var s model.LocalScheduler
	err := f.db.gorm.WithContext(ctx).First(&s, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("local scheduler not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &s, nil
}

func (f *SchedulerFacade) GetSlurmByID(ctx context.Context, id int64) (*model.SlurmScheduler, error) {
	var s model.SlurmScheduler
	err := f.db.gorm.WithContext(ctx).First(&s, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("slurm scheduler not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &s, nil
}

func (f *SchedulerFacade) ListLocal(ctx context.Context, p ListParams) (*ListResult[model.LocalScheduler], error) {
	result, err := Paginate[model.LocalScheduler](f.db, "local_schedulers", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *SchedulerFacade) ListSlurm(ctx context.Context, p ListParams) (*ListResult[model.SlurmScheduler], error) {
	result, err := Paginate[model.SlurmScheduler](f.db, "slurm_schedulers", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *SchedulerFacade) CreateScheduledNode(ctx context.Context, s *model.ScheduledComputeNode) error {
	if err := f.db.gorm.WithContext(ctx).Create(s).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *SchedulerFacade) UpdateScheduledNodeStatus(ctx context.Context, id int64, status model.ScheduledComputeNodeStatus) error {
	res := f.db.gorm.WithContext(ctx).Model(&model.ScheduledComputeNode{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("scheduled compute node not found")
	}
	return nil
}

func (f *SchedulerFacade) ListScheduledNodes(ctx context.Context, p ListParams) (*ListResult[model.ScheduledComputeNode], error) {
	result, err := Paginate[model.ScheduledComputeNode](f.db, "scheduled_compute_nodes", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}
