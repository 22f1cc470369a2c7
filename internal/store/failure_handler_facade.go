package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// FailureHandlerFacade is the database access surface for named
// failure-handling rule sets attached to a workflow.
type FailureHandlerFacade struct {
	db *DB
}

func NewFailureHandlerFacade(db *DB) *FailureHandlerFacade {
	return &FailureHandlerFacade{db: db}
}

func (f *FailureHandlerFacade) Create(ctx context.Context, h *model.FailureHandler) error {
	if err := f.db.gorm.WithContext(ctx).Create(h).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *FailureHandlerFacade) GetByID(ctx context.Context, id int64) (*model.FailureHandler, error) {
	var h model.FailureHandler
	err := f.db.gorm.WithContext(ctx).First(&h, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("failure handler not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &h, nil
}

func (f *FailureHandlerFacade) ListByWorkflow(ctx context.Context, workflowID int64) ([]model.FailureHandler, error) {
	var handlers []model.FailureHandler
	err := f.db.gorm.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&handlers).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return handlers, nil
}
