package action

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
	"github.com/NREL/torc/internal/testutil"
)

func setup(t *testing.T) (context.Context, *Engine, *store.WorkflowActionFacade, *store.JobFacade, int64) {
	t.Helper()
	db := testutil.OpenDB(t)
	workflows := store.NewWorkflowFacade(db)
	jobs := store.NewJobFacade(db)
	actions := store.NewWorkflowActionFacade(db)
	engine := NewEngine(db, actions, jobs)

	ctx := context.Background()
	wf := &model.Workflow{Name: "wf", UserName: "tester"}
	if err := workflows.Create(ctx, wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return ctx, engine, actions, jobs, wf.ID
}

func marshalJobIDs(t *testing.T, ids []int64) *string {
	t.Helper()
	raw, err := json.Marshal(ids)
	if err != nil {
		t.Fatalf("marshal job ids: %v", err)
	}
	s := string(raw)
	return &s
}

func TestCheckAndTriggerActionsJobsComplete(t *testing.T) {
	ctx, engine, actions, jobs, workflowID := setup(t)

	created, err := jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "j1", Command: "echo 1"}},
		{Job: model.Job{WorkflowID: workflowID, Name: "j2", Command: "echo 2"}},
	})
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	j1, j2 := created[0].ID, created[1].ID

	a := &model.WorkflowAction{
		WorkflowID:       workflowID,
		TriggerType:      model.TriggerOnJobsComplete,
		ActionType:       model.ActionRunCommands,
		ActionConfig:     `{}`,
		JobIDs:           marshalJobIDs(t, []int64{j1, j2}),
		RequiredTriggers: 2,
	}
	if err := actions.Create(ctx, a); err != nil {
		t.Fatalf("create action: %v", err)
	}

	if err := jobs.ForceUpdateStatus(ctx, nil, j1, model.JobStatusCompleted); err != nil {
		t.Fatalf("complete j1: %v", err)
	}
	if err := engine.CheckAndTriggerActions(ctx, nil, workflowID, model.TriggerOnJobsComplete, []int64{j1}); err != nil {
		t.Fatalf("CheckAndTriggerActions (first): %v", err)
	}

	got, err := actions.GetByID(ctx, nil, a.ID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.TriggerCount != 1 {
		t.Errorf("trigger_count after j1 complete = %d, want 1", got.TriggerCount)
	}
	if got.Executed {
		t.Error("action should not be executed yet")
	}

	if err := jobs.ForceUpdateStatus(ctx, nil, j2, model.JobStatusCompleted); err != nil {
		t.Fatalf("complete j2: %v", err)
	}
	if err := engine.CheckAndTriggerActions(ctx, nil, workflowID, model.TriggerOnJobsComplete, []int64{j2}); err != nil {
		t.Fatalf("CheckAndTriggerActions (second): %v", err)
	}

	got, err = actions.GetByID(ctx, nil, a.ID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.TriggerCount != 2 {
		t.Errorf("trigger_count after both complete = %d, want 2", got.TriggerCount)
	}

	pending, err := engine.GetPendingActions(ctx, workflowID, nil)
	if err != nil {
		t.Fatalf("GetPendingActions: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Errorf("pending actions = %+v, want [action %d]", pending, a.ID)
	}
}

func TestClaimActionNonPersistentIsExclusive(t *testing.T) {
	ctx, engine, actions, _, workflowID := setup(t)

	a := &model.WorkflowAction{
		WorkflowID:       workflowID,
		TriggerType:      model.TriggerOnWorkflowStart,
		ActionType:       model.ActionRunCommands,
		ActionConfig:     `{}`,
		RequiredTriggers: 1,
		TriggerCount:     1,
	}
	if err := actions.Create(ctx, a); err != nil {
		t.Fatalf("create action: %v", err)
	}

	if err := engine.ClaimAction(ctx, workflowID, a.ID, nil); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	if err := engine.ClaimAction(ctx, workflowID, a.ID, nil); err == nil {
		t.Error("expected second claim of a non-persistent action to fail")
	}
}

func TestClaimActionPersistentIsReclaimable(t *testing.T) {
	ctx, engine, actions, _, workflowID := setup(t)

	a := &model.WorkflowAction{
		WorkflowID:       workflowID,
		TriggerType:      model.TriggerOnWorkerStart,
		ActionType:       model.ActionScheduleNodes,
		ActionConfig:     `{}`,
		RequiredTriggers: 1,
		TriggerCount:     1,
		Persistent:       true,
	}
	if err := actions.Create(ctx, a); err != nil {
		t.Fatalf("create action: %v", err)
	}

	if err := engine.ClaimAction(ctx, workflowID, a.ID, nil); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := engine.ClaimAction(ctx, workflowID, a.ID, nil); err != nil {
		t.Fatalf("second claim of a persistent action should succeed: %v", err)
	}
}

func TestResetActionsForReinitializeRecomputesTriggerCount(t *testing.T) {
	ctx, engine, actions, jobs, workflowID := setup(t)

	created, err := jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: "j1", Command: "echo 1"}},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	j1 := created[0].ID
	if err := jobs.ForceUpdateStatus(ctx, nil, j1, model.JobStatusCompleted); err != nil {
		t.Fatalf("complete j1: %v", err)
	}

	a := &model.WorkflowAction{
		WorkflowID:       workflowID,
		TriggerType:      model.TriggerOnJobsComplete,
		ActionType:       model.ActionRunCommands,
		ActionConfig:     `{}`,
		JobIDs:           marshalJobIDs(t, []int64{j1}),
		RequiredTriggers: 1,
		Executed:         true,
	}
	if err := actions.Create(ctx, a); err != nil {
		t.Fatalf("create action: %v", err)
	}

	recovery := &model.WorkflowAction{
		WorkflowID:       workflowID,
		TriggerType:      model.TriggerOnWorkflowComplete,
		ActionType:       model.ActionRunCommands,
		ActionConfig:     `{}`,
		RequiredTriggers: 1,
		IsRecovery:       true,
	}
	if err := actions.Create(ctx, recovery); err != nil {
		t.Fatalf("create recovery action: %v", err)
	}

	if err := engine.ResetActionsForReinitialize(ctx, workflowID); err != nil {
		t.Fatalf("ResetActionsForReinitialize: %v", err)
	}

	got, err := actions.GetByID(ctx, nil, a.ID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.Executed {
		t.Error("action should no longer be marked executed")
	}
	if got.TriggerCount != 1 {
		t.Errorf("trigger_count recomputed = %d, want 1 (j1 already completed)", got.TriggerCount)
	}

	if _, err := actions.GetByID(ctx, nil, recovery.ID); err == nil {
		t.Error("is_recovery action should have been deleted")
	}
}
