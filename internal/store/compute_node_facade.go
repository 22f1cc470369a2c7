package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// ComputeNodeFacade is the database access surface for ComputeNode
// registrations.
type ComputeNodeFacade struct {
	db *DB
}

func NewComputeNodeFacade(db *DB) *ComputeNodeFacade {
	return &ComputeNodeFacade{db: db}
}

func (f *ComputeNodeFacade) Create(ctx context.Context, cn *model.ComputeNode) error {
	if err := f.db.gorm.WithContext(ctx).Create(cn).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *ComputeNodeFacade) GetByID(ctx context.Context, id int64) (*model.ComputeNode, error) {
	var cn model.ComputeNode
	err := f.db.gorm.WithContext(ctx).First(&cn, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("compute node not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &cn, nil
}

func (f *ComputeNodeFacade) ListActive(ctx context.Context, workflowID int64) ([]model.ComputeNode, error) {
	var nodes []model.ComputeNode
	err := f.db.gorm.WithContext(ctx).
		Where("workflow_id = ? AND is_active = ?", workflowID, true).
		Find(&nodes).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return nodes, nil
}

func (f *ComputeNodeFacade) List(ctx context.Context, p ListParams) (*ListResult[model.ComputeNode], error) {
	result, err := Paginate[model.ComputeNode](f.db, "compute_nodes", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *ComputeNodeFacade) MarkInactive(ctx context.Context, id int64, durationSec int64) error {
	res := f.db.gorm.WithContext(ctx).Model(&model.ComputeNode{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "duration_sec": durationSec})
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("compute node not found")
	}
	return nil
}
