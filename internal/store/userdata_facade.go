package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// UserDataFacade is the database access surface for UserData rows.
type UserDataFacade struct {
	db *DB
}

func NewUserDataFacade(db *DB) *UserDataFacade {
	return &UserDataFacade{db: db}
}

func (f *UserDataFacade) Create(ctx context.Context, ud *model.UserData) error {
	if err := f.db.gorm.WithContext(ctx).Create(ud).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

// GetByID looks up a user_data row. tx may be nil to run against the
// base pool handle; pass the enclosing tx when called from inside a
// WithinTransaction block (see JobFacade.gormHandle's doc comment for
// why this matters under the single-connection pool).
func (f *UserDataFacade) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.UserData, error) {
	gormDB := tx
	if gormDB == nil {
		gormDB = f.db.gorm
	}
	var ud model.UserData
	err := gormDB.WithContext(ctx).First(&ud, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("user data not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &ud, nil
}

func (f *UserDataFacade) List(ctx context.Context, p ListParams) (*ListResult[model.UserData], error) {
	result, err := Paginate[model.UserData](f.db, "user_data", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *UserDataFacade) UpdateData(ctx context.Context, id int64, data *string) error {
	res := f.db.gorm.WithContext(ctx).Model(&model.UserData{}).Where("id = ?", id).Update("data", data)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("user data not found")
	}
	return nil
}

// DeleteEphemeral deletes the rows among ids that are marked
// ephemeral. It does not check whether any job still references them,
// and nothing in the server calls it.
func (f *UserDataFacade) DeleteEphemeral(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := f.db.gorm.WithContext(ctx).
		Where("id IN ? AND is_ephemeral = ?", ids, true).
		Delete(&model.UserData{}).Error
	if err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}
