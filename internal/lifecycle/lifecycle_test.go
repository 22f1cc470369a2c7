package lifecycle

import (
	"context"
	"testing"

	"github.com/NREL/torc/internal/action"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
	"github.com/NREL/torc/internal/testutil"
)

func setup(t *testing.T) (context.Context, *Engine, *store.JobFacade, int64) {
	t.Helper()
	db := testutil.OpenDB(t)
	workflows := store.NewWorkflowFacade(db)
	jobs := store.NewJobFacade(db)
	results := store.NewResultFacade(db)
	workflowActions := store.NewWorkflowActionFacade(db)
	actionEngine := action.NewEngine(db, workflowActions, jobs)
	engine := NewEngine(db, jobs, results, actionEngine)

	ctx := context.Background()
	wf := &model.Workflow{Name: "wf", UserName: "tester"}
	if err := workflows.Create(ctx, wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return ctx, engine, jobs, wf.ID
}

func mkJob(t *testing.T, ctx context.Context, jobs *store.JobFacade, workflowID int64, spec store.JobSpec) int64 {
	t.Helper()
	created, err := jobs.CreateMany(ctx, []store.JobSpec{spec})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return created[0].ID
}

func TestStartJobRequiresPending(t *testing.T) {
	ctx, engine, jobs, workflowID := setup(t)
	jobID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{Job: model.Job{WorkflowID: workflowID, Name: "j", Command: "echo"}})

	if err := engine.StartJob(ctx, jobID, 1, 7); err == nil {
		t.Error("expected StartJob to fail on an Uninitialized job")
	}

	if err := jobs.ForceUpdateStatus(ctx, nil, jobID, model.JobStatusPending); err != nil {
		t.Fatalf("force pending: %v", err)
	}
	if err := engine.StartJob(ctx, jobID, 1, 7); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	job, err := jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != model.JobStatusRunning {
		t.Errorf("status = %v, want Running", job.Status)
	}
	if job.ActiveComputeNodeID == nil || *job.ActiveComputeNodeID != 7 {
		t.Errorf("active_compute_node_id = %v, want 7", job.ActiveComputeNodeID)
	}
}

func TestCompleteJobRejectsNonTerminalStatus(t *testing.T) {
	ctx, engine, jobs, workflowID := setup(t)
	jobID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{Job: model.Job{WorkflowID: workflowID, Name: "j", Command: "echo"}})

	err := engine.CompleteJob(ctx, jobID, model.JobStatusRunning, 1, &model.Result{})
	if err == nil {
		t.Error("expected CompleteJob to reject a non-terminal status")
	}
}

func TestCompleteJobCascadesCancelOnBlockingFailure(t *testing.T) {
	ctx, engine, jobs, workflowID := setup(t)

	rootID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{Job: model.Job{WorkflowID: workflowID, Name: "root", Command: "echo root"}})
	childID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{
		Job:          model.Job{WorkflowID: workflowID, Name: "child", Command: "echo child", CancelOnBlockingJobFailure: true},
		DependsOnIDs: []int64{rootID},
	})
	grandchildID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{
		Job:          model.Job{WorkflowID: workflowID, Name: "grandchild", Command: "echo gc"},
		DependsOnIDs: []int64{childID},
	})

	if err := jobs.ForceUpdateStatus(ctx, nil, rootID, model.JobStatusRunning); err != nil {
		t.Fatalf("force root running: %v", err)
	}

	if err := engine.CompleteJob(ctx, rootID, model.JobStatusFailed, 1, &model.Result{}); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	root, err := jobs.GetByID(ctx, nil, rootID)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if root.Status != model.JobStatusFailed {
		t.Errorf("root status = %v, want Failed", root.Status)
	}

	child, err := jobs.GetByID(ctx, nil, childID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if child.Status != model.JobStatusCanceled {
		t.Errorf("child status = %v, want Canceled (opted into cascade cancel)", child.Status)
	}

	grandchild, err := jobs.GetByID(ctx, nil, grandchildID)
	if err != nil {
		t.Fatalf("get grandchild: %v", err)
	}
	if grandchild.Status == model.JobStatusCanceled {
		t.Error("grandchild did not opt into cascade cancel and should not be canceled")
	}
}

func TestRetryJobExhaustsBudget(t *testing.T) {
	ctx, engine, jobs, workflowID := setup(t)
	jobID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{Job: model.Job{WorkflowID: workflowID, Name: "j", Command: "echo"}})

	if err := engine.RetryJob(ctx, jobID, 2, 1); err != nil {
		t.Fatalf("first retry: %v", err)
	}
	job, err := jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != model.JobStatusReady || job.RetryCount != 1 {
		t.Errorf("job after first retry = status %v retry_count %d, want Ready/1", job.Status, job.RetryCount)
	}

	if err := engine.RetryJob(ctx, jobID, 3, 1); err == nil {
		t.Error("expected RetryJob to fail once retry_count reaches max_retries")
	}
}

func TestManageStatusChangeLegalAndIllegalTransitions(t *testing.T) {
	ctx, engine, jobs, workflowID := setup(t)
	jobID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{Job: model.Job{WorkflowID: workflowID, Name: "j", Command: "echo"}})

	if err := engine.ManageStatusChange(ctx, jobID, model.JobStatusReady, 1); err != nil {
		t.Fatalf("Uninitialized -> Ready should be legal: %v", err)
	}
	if err := engine.ManageStatusChange(ctx, jobID, model.JobStatusCompleted, 1); err == nil {
		t.Error("Ready -> Completed should be illegal through manage_status_change")
	}
}

func TestUpdateJobGatesFieldsOnUninitialized(t *testing.T) {
	ctx, engine, jobs, workflowID := setup(t)
	jobID := mkJob(t, ctx, jobs, workflowID, store.JobSpec{Job: model.Job{WorkflowID: workflowID, Name: "j", Command: "echo"}})

	if err := engine.UpdateJob(ctx, jobID, map[string]interface{}{"scheduler_id": int64(5)}, nil); err != nil {
		t.Fatalf("always-mutable field update: %v", err)
	}

	if err := jobs.ForceUpdateStatus(ctx, nil, jobID, model.JobStatusReady); err != nil {
		t.Fatalf("force ready: %v", err)
	}

	if err := engine.UpdateJob(ctx, jobID, map[string]interface{}{"command": "echo changed"}, nil); err == nil {
		t.Error("expected gated field update to fail once job is no longer Uninitialized")
	}

	if err := engine.UpdateJob(ctx, jobID, map[string]interface{}{"scheduler_id": int64(9)}, nil); err != nil {
		t.Fatalf("always-mutable field should still be updatable while Ready: %v", err)
	}
}
