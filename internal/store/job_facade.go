package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// JobFacade is the database access surface for Job rows and their
// edge tables (depends_on, input/output files, input/output user
// data, the companion job_internal record).
type JobFacade struct {
	db *DB
}

func NewJobFacade(db *DB) *JobFacade {
	return &JobFacade{db: db}
}

// JobSpec is the create-time payload: the job row plus the edges
// that must land atomically with it.
type JobSpec struct {
	Job             model.Job
	DependsOnIDs    []int64
	InputFileIDs    []int64
	OutputFileIDs   []int64
	InputUserDataIDs  []int64
	OutputUserDataIDs []int64
}

// CreateMany inserts a batch of jobs and their edges in a single
// transaction, following the teacher's pattern of doing multi-table
// writes inside one gorm.Transaction rather than issuing them loose.
func (f *JobFacade) CreateMany(ctx context.Context, specs []JobSpec) ([]model.Job, error) {
	created := make([]model.Job, 0, len(specs))
	err := f.db.WithinTransaction(func(tx *gorm.DB) error {
		for i := range specs {
			spec := &specs[i]
			if err := tx.WithContext(ctx).Create(&spec.Job).Error; err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Create(&model.JobInternal{JobID: spec.Job.ID}).Error; err != nil {
				return err
			}
			if err := insertEdges(tx, "job_depends_on", "job_id", "depends_on_job_id", spec.Job.ID, spec.DependsOnIDs); err != nil {
				return err
			}
			if err := insertEdges(tx, "job_input_file", "job_id", "file_id", spec.Job.ID, spec.InputFileIDs); err != nil {
				return err
			}
			if err := insertEdges(tx, "job_output_file", "job_id", "file_id", spec.Job.ID, spec.OutputFileIDs); err != nil {
				return err
			}
			if err := insertEdges(tx, "job_input_user_data", "job_id", "user_data_id", spec.Job.ID, spec.InputUserDataIDs); err != nil {
				return err
			}
			if err := insertEdges(tx, "job_output_user_data", "job_id", "user_data_id", spec.Job.ID, spec.OutputUserDataIDs); err != nil {
				return err
			}
			created = append(created, spec.Job)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return created, nil
}

func insertEdges(tx *gorm.DB, table, leftCol, rightCol string, leftID int64, rightIDs []int64) error {
	for _, rightID := range rightIDs {
		if err := tx.Table(table).Clauses(clause.OnConflict{DoNothing: true}).
			Create(map[string]interface{}{leftCol: leftID, rightCol: rightID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// gormHandle returns tx if the caller is inside a WithinTransaction
// block, otherwise the facade's base pool handle. Every facade read
// that might run inside another method's transaction takes an
// optional tx for this reason: store.Open pins the pool to a single
// connection, so a read against the base handle while tx holds that
// connection would block forever waiting for a second one.
func (f *JobFacade) gormHandle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return f.db.gorm
}

func (f *JobFacade) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Job, error) {
	var j model.Job
	err := f.gormHandle(tx).WithContext(ctx).First(&j, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("job not found")
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &j, nil
}

func (f *JobFacade) DependsOnIDs(ctx context.Context, tx *gorm.DB, jobID int64) ([]int64, error) {
	var edges []model.JobDependsOn
	if err := f.gormHandle(tx).WithContext(ctx).Where("job_id = ?", jobID).Find(&edges).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.DependsOnID
	}
	return ids, nil
}

// DependentIDs returns the jobs that list jobID as a dependency
// (the reverse edge). The graph engine's completion-reversal walk
// queries the edge table itself and does not call this.
func (f *JobFacade) DependentIDs(ctx context.Context, tx *gorm.DB, jobID int64) ([]int64, error) {
	var edges []model.JobDependsOn
	if err := f.gormHandle(tx).WithContext(ctx).Where("depends_on_job_id = ?", jobID).Find(&edges).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.JobID
	}
	return ids, nil
}

func (f *JobFacade) ListByWorkflow(ctx context.Context, workflowID int64) ([]model.Job, error) {
	var jobs []model.Job
	if err := f.db.gorm.WithContext(ctx).Where("workflow_id = ?", workflowID).Find(&jobs).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return jobs, nil
}

func (f *JobFacade) ListByWorkflowAndStatus(ctx context.Context, workflowID int64, statuses ...model.JobStatus) ([]model.Job, error) {
	var jobs []model.Job
	q := f.db.gorm.WithContext(ctx).Where("workflow_id = ?", workflowID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", toIntSlice(statuses))
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return jobs, nil
}

func toIntSlice(statuses []model.JobStatus) []int {
	out := make([]int, len(statuses))
	for i, s := range statuses {
		out[i] = s.ToInt()
	}
	return out
}

func (f *JobFacade) List(ctx context.Context, p ListParams) (*ListResult[model.Job], error) {
	result, err := Paginate[model.Job](f.db, "jobs", p, f.db.maxRecordTransferCount, f.db.defaultPageLimit)
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return result, nil
}

// UpdateStatus performs the conditional update that is the mutual
// exclusion primitive for claiming (spec.md I3): it only succeeds
// when the row's current status still matches expectedCurrent. tx
// may be nil to run against the base pool handle; callers inside a
// WithinTransaction block must pass the tx they were handed, since
// the pool is pinned to a single connection (store.Open) and a
// second request for a connection while tx holds the only one would
// block forever.
func (f *JobFacade) UpdateStatus(ctx context.Context, tx *gorm.DB, jobID int64, expectedCurrent, newStatus model.JobStatus) (bool, error) {
	gormDB := tx
	if gormDB == nil {
		gormDB = f.db.gorm
	}
	res := gormDB.WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", jobID, expectedCurrent.ToInt()).
		Update("status", newStatus)
	if res.Error != nil {
		return false, apperr.NewDatabaseError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ForceUpdateStatus sets the status unconditionally, used by the graph
// engine's InitializeJobs and ProcessChangedJobInputs passes, which
// compute the new status themselves inside their transaction.
func (f *JobFacade) ForceUpdateStatus(ctx context.Context, tx *gorm.DB, jobID int64, newStatus model.JobStatus) error {
	gormDB := tx
	if gormDB == nil {
		gormDB = f.db.gorm
	}
	res := gormDB.WithContext(ctx).Model(&model.Job{}).Where("id = ?", jobID).Update("status", newStatus)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	return nil
}

func (f *JobFacade) Update(ctx context.Context, jobID int64, fields map[string]interface{}) error {
	res := f.db.gorm.WithContext(ctx).Model(&model.Job{}).Where("id = ?", jobID).Updates(fields)
	if res.Error != nil {
		return apperr.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("job not found")
	}
	return nil
}

func (f *JobFacade) GetInternal(ctx context.Context, tx *gorm.DB, jobID int64) (*model.JobInternal, error) {
	var ji model.JobInternal
	err := f.gormHandle(tx).WithContext(ctx).Where("job_id = ?", jobID).First(&ji).Error
	if err == gorm.ErrRecordNotFound {
		return &model.JobInternal{JobID: jobID}, nil
	}
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}
	return &ji, nil
}

func (f *JobFacade) SetInputHash(ctx context.Context, tx *gorm.DB, jobID int64, hash string) error {
	gormDB := tx
	if gormDB == nil {
		gormDB = f.db.gorm
	}
	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"input_hash"}),
		}).
		Create(&model.JobInternal{JobID: jobID, InputHash: &hash}).Error
}
