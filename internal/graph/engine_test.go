package graph

import (
	"context"
	"testing"

	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
	"github.com/NREL/torc/internal/testutil"
)

func setup(t *testing.T) (*store.DB, *Engine, *store.JobFacade, int64) {
	t.Helper()
	db := testutil.OpenDB(t)
	workflows := store.NewWorkflowFacade(db)
	jobs := store.NewJobFacade(db)
	userData := store.NewUserDataFacade(db)
	engine := NewEngine(db, jobs, userData, workflows)

	ctx := context.Background()
	wf := &model.Workflow{Name: "wf", UserName: "tester"}
	if err := workflows.Create(ctx, wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return db, engine, jobs, wf.ID
}

func TestInitializeJobsRootReadyDependentBlocked(t *testing.T) {
	ctx := context.Background()
	db, engine, jobs, workflowID := setup(t)

	created, err := jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "root", Command: "echo root"}},
	})
	if err != nil {
		t.Fatalf("create root job: %v", err)
	}
	rootID := created[0].ID

	created, err = jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "child", Command: "echo child"}, DependsOnIDs: []int64{rootID}},
	})
	if err != nil {
		t.Fatalf("create child job: %v", err)
	}
	childID := created[0].ID

	if err := engine.InitializeJobs(ctx, workflowID, false, false); err != nil {
		t.Fatalf("InitializeJobs: %v", err)
	}

	root, err := jobs.GetByID(ctx, nil, rootID)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if root.Status != model.JobStatusReady {
		t.Errorf("root status = %v, want Ready", root.Status)
	}

	child, err := jobs.GetByID(ctx, nil, childID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if child.Status != model.JobStatusBlocked {
		t.Errorf("child status = %v, want Blocked", child.Status)
	}

	internal, err := jobs.GetInternal(ctx, nil, rootID)
	if err != nil {
		t.Fatalf("get internal: %v", err)
	}
	if internal.InputHash == nil || *internal.InputHash == "" {
		t.Error("expected root job to have a non-empty input hash after initialize")
	}

	_ = db
}

func TestProcessChangedJobInputsDetectsCommandChange(t *testing.T) {
	ctx := context.Background()
	_, engine, jobs, workflowID := setup(t)

	created, err := jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "job1", Command: "echo one"}},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	jobID := created[0].ID

	if err := engine.InitializeJobs(ctx, workflowID, false, false); err != nil {
		t.Fatalf("InitializeJobs: %v", err)
	}

	changed, err := engine.ProcessChangedJobInputs(ctx, workflowID, true)
	if err != nil {
		t.Fatalf("ProcessChangedJobInputs (dry run, unchanged): %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("expected no changed jobs before any mutation, got %v", changed)
	}

	if err := jobs.Update(ctx, jobID, map[string]interface{}{"command": "echo two"}); err != nil {
		t.Fatalf("update job command: %v", err)
	}

	changed, err = engine.ProcessChangedJobInputs(ctx, workflowID, false)
	if err != nil {
		t.Fatalf("ProcessChangedJobInputs: %v", err)
	}
	if len(changed) != 1 || changed[0] != "job1" {
		t.Errorf("changed = %v, want [job1]", changed)
	}

	job, err := jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != model.JobStatusUninitialized {
		t.Errorf("job status after input change = %v, want Uninitialized", job.Status)
	}
}

func TestResetJobStatusFailedOnlyTriggersCompletionReversal(t *testing.T) {
	ctx := context.Background()
	_, engine, jobs, workflowID := setup(t)

	created, err := jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "root", Command: "echo root"}},
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	rootID := created[0].ID

	created, err = jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "child", Command: "echo child"}, DependsOnIDs: []int64{rootID}},
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	childID := created[0].ID

	if err := jobs.ForceUpdateStatus(ctx, nil, rootID, model.JobStatusFailed); err != nil {
		t.Fatalf("force root to failed: %v", err)
	}
	if err := jobs.ForceUpdateStatus(ctx, nil, childID, model.JobStatusReady); err != nil {
		t.Fatalf("force child to ready: %v", err)
	}

	if err := engine.ResetJobStatus(ctx, workflowID, true); err != nil {
		t.Fatalf("ResetJobStatus(failedOnly=true): %v", err)
	}

	root, err := jobs.GetByID(ctx, nil, rootID)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if root.Status != model.JobStatusUninitialized {
		t.Errorf("root status = %v, want Uninitialized", root.Status)
	}

	child, err := jobs.GetByID(ctx, nil, childID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if child.Status != model.JobStatusUninitialized {
		t.Errorf("child status after completion reversal = %v, want Uninitialized", child.Status)
	}
}
