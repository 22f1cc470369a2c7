package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// ResourceRequirementsFacade is the database access surface for
// ResourceRequirements rows.
type ResourceRequirementsFacade struct {
	db *DB
}

func NewResourceRequirementsFacade(db *DB) *ResourceRequirementsFacade {
	return &ResourceRequirementsFacade{db: db}
}

func (f *ResourceRequirementsFacade) Create(ctx context.Context, rr *model.ResourceRequirements) error {
	if err := f.db.gorm.WithContext(ctx).Create(rr).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *ResourceRequirementsFacade) GetByID(ctx context.Context, id int64) (*model.ResourceRequirements, error) {
	var rr model.ResourceRequirements
	err := f.db.gorm.WithContext(ctx).First(&rr, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("resource requirements not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &rr, nil
}

func (f *ResourceRequirementsFacade) List(ctx context.Context, p ListParams) (*ListResult[model.ResourceRequirements], error) {
	result, err := Paginate[model.ResourceRequirements](f.db, "resource_requirements", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}
