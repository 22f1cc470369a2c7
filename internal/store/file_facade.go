package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// FileFacade is the database access surface for File rows.
type FileFacade struct {
	db *DB
}

func NewFileFacade(db *DB) *FileFacade {
	return &FileFacade{db: db}
}

func (f *FileFacade) Create(ctx context.Context, file *model.File) error {
	if err := f.db.gorm.WithContext(ctx).Create(file).Error; err != nil {
		return apperr.NewDatabaseError(err)
	}
	return nil
}

func (f *FileFacade) GetByID(ctx context.Context, id int64) (*model.File, error) {
	var file model.File
	err := f.db.gorm.WithContext(ctx).First(&file, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("file not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &file, nil
}

func (f *FileFacade) List(ctx context.Context, p ListParams) (*ListResult[model.File], error) {
	result, err := Paginate[model.File](f.db, "files", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

func (f *FileFacade) UpdateMtime(ctx context.Context, id int64, mtime *string) error {
	res := f.db.gorm.WithContext(ctx).Model(&model.File{}).Where("id = ?", id).Update("mtime", mtime)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("file not found")
	}
	return nil
}
