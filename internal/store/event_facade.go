package store

import (
	"context"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// EventFacade is the database access surface for the append-only
// Event log.
type EventFacade struct {
	db *DB
}

func NewEventFacade(db *DB) *EventFacade {
	return &EventFacade{db: db}
}

func (f *EventFacade) Create(ctx context.Context, e *model.Event) error {
	if err := f.db.gorm.WithContext(ctx).Create(e).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *EventFacade) ListForWorkflow(ctx context.Context, workflowID int64, p ListParams) (*ListResult[model.Event], error) {
	if p.Filters == nil {
		p.Filters = map[string]interface{}{}
	}
	p.Filters["workflow_id"] = workflowID
	if p.OrderBy == "" {
		p.OrderBy = "id"
		p.Desc = true
	}
	result, err := Paginate[model.Event](f.db, "events", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}
