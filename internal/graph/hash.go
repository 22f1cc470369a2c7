// Package graph implements the job graph engine: initialize_jobs,
// process_changed_job_inputs, reset_job_status, and the
// completion-reversal walk of spec.md §4.3, grounded algorithmically
// on original_source/src/server/api/jobs.rs (compute_job_input_hash,
// update_jobs_from_completion_reversal) and written in the teacher's
// facade + apperr + klog idiom since the teacher has no direct
// analogue for a DAG scheduling engine.
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
)

// inputHashDoc is the fixed-key-order JSON object whose SHA-256 is a
// job's input hash (spec.md §4.3.1). Struct field order is what
// encoding/json preserves on Marshal, so the field order below IS the
// canonical key order.
type inputHashDoc struct {
	Command                string               `json:"command"`
	InvocationScript       *string              `json:"invocation_script"`
	DependsOnJobIDs        []int64              `json:"depends_on_job_ids"`
	InputFileIDs           []int64              `json:"input_file_ids"`
	OutputFileIDs          []int64              `json:"output_file_ids"`
	InputUserDataIDs       []int64              `json:"input_user_data_ids"`
	OutputUserDataIDs      []int64              `json:"output_user_data_ids"`
	InputUserDataContents  []userDataContent    `json:"input_user_data_contents"`
}

type userDataContent struct {
	ID   int64   `json:"id"`
	Data *string `json:"data"`
}

// ComputeJobInputHash builds the canonical input document for jobID
// and returns its hex-encoded SHA-256 digest. tx must be the
// enclosing transaction handle when called from inside a
// WithinTransaction block (both call sites in engine.go are); the
// pool is pinned to a single connection by store.Open, so reading
// against the base handle while tx holds that connection would block
// forever.
func ComputeJobInputHash(ctx context.Context, tx *gorm.DB, jobFacade *store.JobFacade, udFacade *store.UserDataFacade, job *model.Job) (string, error) {
	jobID := job.ID
	dependsOn, err := jobFacade.DependsOnIDs(ctx, tx, jobID)
	if err != nil {
		return "", err
	}
	inputFiles, outputFiles, err := jobFileIDs(ctx, tx, jobID)
	if err != nil {
		return "", err
	}
	inputUD, outputUD, err := jobUserDataIDs(ctx, tx, jobID)
	if err != nil {
		return "", err
	}

	sortInt64s(dependsOn)
	sortInt64s(inputFiles)
	sortInt64s(outputFiles)
	sortInt64s(inputUD)
	sortInt64s(outputUD)

	contents := make([]userDataContent, 0, len(inputUD))
	for _, id := range inputUD {
		ud, err := udFacade.GetByID(ctx, tx, id)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return "", err
		}
		contents = append(contents, userDataContent{ID: ud.ID, Data: ud.Data})
	}
	sort.Slice(contents, func(i, j int) bool { return contents[i].ID < contents[j].ID })

	doc := inputHashDoc{
		Command:               job.Command,
		InvocationScript:      job.InvocationScript,
		DependsOnJobIDs:       nonNil(dependsOn),
		InputFileIDs:          nonNil(inputFiles),
		OutputFileIDs:         nonNil(outputFiles),
		InputUserDataIDs:      nonNil(inputUD),
		OutputUserDataIDs:     nonNil(outputUD),
		InputUserDataContents: contents,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", apperr.New(apperr.CodeInternal, fmt.Sprintf("failed to serialize input hash document for job %d: %v", jobID, err))
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum), nil
}

func nonNil(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}
	return s
}

func sortInt64s(s []int64) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

func jobFileIDs(ctx context.Context, tx *gorm.DB, jobID int64) (input, output []int64, err error) {
	var inRows []struct{ FileID int64 }
	if err := tx.WithContext(ctx).Table("job_input_file").
		Select("file_id").Where("job_id = ?", jobID).Scan(&inRows).Error; err != nil {
		return nil, nil, apperr.NewDatabaseError(err)
	}
	var outRows []struct{ FileID int64 }
	if err := tx.WithContext(ctx).Table("job_output_file").
		Select("file_id").Where("job_id = ?", jobID).Scan(&outRows).Error; err != nil {
		return nil, nil, apperr.NewDatabaseError(err)
	}
	for _, r := range inRows {
		input = append(input, r.FileID)
	}
	for _, r := range outRows {
		output = append(output, r.FileID)
	}
	return input, output, nil
}

func jobUserDataIDs(ctx context.Context, tx *gorm.DB, jobID int64) (input, output []int64, err error) {
	var inRows []struct{ UserDataID int64 }
	if err := tx.WithContext(ctx).Table("job_input_user_data").
		Select("user_data_id").Where("job_id = ?", jobID).Scan(&inRows).Error; err != nil {
		return nil, nil, apperr.NewDatabaseError(err)
	}
	var outRows []struct{ UserDataID int64 }
	if err := tx.WithContext(ctx).Table("job_output_user_data").
		Select("user_data_id").Where("job_id = ?", jobID).Scan(&outRows).Error; err != nil {
		return nil, nil, apperr.NewDatabaseError(err)
	}
	for _, r := range inRows {
		input = append(input, r.UserDataID)
	}
	for _, r := range outRows {
		output = append(output, r.UserDataID)
	}
	return input, output, nil
}
