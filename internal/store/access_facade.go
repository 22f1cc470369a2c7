package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// AccessFacade is the database access surface backing
// check_workflow_access: a thin join-table wrapper, not a full
// authorization system (spec.md §1 Non-goals).
type AccessFacade struct {
	db *DB
}

func NewAccessFacade(db *DB) *AccessFacade {
	return &AccessFacade{db: db}
}

func (f *AccessFacade) CreateGroup(ctx context.Context, g *model.AccessGroup) error {
	if err := f.db.gorm.WithContext(ctx).Create(g).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *AccessFacade) AddMember(ctx context.Context, userName string, groupID int64) error {
	err := f.db.gorm.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserGroupMembership{UserName: userName, GroupID: groupID}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *AccessFacade) GrantWorkflowAccess(ctx context.Context, workflowID, groupID int64) error {
	err := f.db.gorm.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WorkflowAccessGroup{WorkflowID: workflowID, GroupID: groupID}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

// UserCanAccess reports whether userName belongs to any group
// granted access to workflowID, or whether the workflow has no
// access groups at all (the default-open posture spec.md §1 documents
// for a workflow nobody has scoped).
func (f *AccessFacade) UserCanAccess(ctx context.Context, userName string, workflowID int64) (bool, error) {
	var groupCount int64
	if err := f.db.gorm.WithContext(ctx).Model(&model.WorkflowAccessGroup{}).
		Where("workflow_id = ?", workflowID).Count(&groupCount).Error; err != nil {
		return false, apperr.NewDatabaseError(err)
	}
	if groupCount == 0 {
		return true, nil
	}

	var matchCount int64
	err := f.db.gorm.WithContext(ctx).
		Table("workflow_access_group AS wag").
		Joins("JOIN user_group_membership AS ugm ON ugm.group_id = wag.group_id").
		Where("wag.workflow_id = ? AND ugm.user_name = ?", workflowID, userName).
		Count(&matchCount).Error
	if err != nil {
		return false, apperr.NewDatabaseError(err)
	}
	return matchCount > 0, nil
}
