package claim

import (
	"context"
	"sync"
	"testing"

	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
	"github.com/NREL/torc/internal/testutil"
)

func setup(t *testing.T) (context.Context, *Engine, *store.JobFacade, *store.ResourceRequirementsFacade, int64) {
	t.Helper()
	db := testutil.OpenDB(t)
	workflows := store.NewWorkflowFacade(db)
	jobs := store.NewJobFacade(db)
	resourceReqs := store.NewResourceRequirementsFacade(db)
	engine := NewEngine(db, jobs)

	ctx := context.Background()
	wf := &model.Workflow{Name: "wf", UserName: "tester"}
	if err := workflows.Create(ctx, wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return ctx, engine, jobs, resourceReqs, wf.ID
}

func mkReadyJob(t *testing.T, ctx context.Context, jobs *store.JobFacade, workflowID int64, name string, rrID *int64) int64 {
	t.Helper()
	created, err := jobs.CreateMany(ctx, []store.JobSpec{
		{Job: model.Job{WorkflowID: workflowID, Name: name, Command: "echo " + name, ResourceRequirementsID: rrID}},
	})
	if err != nil {
		t.Fatalf("create job %s: %v", name, err)
	}
	if err := jobs.ForceUpdateStatus(ctx, nil, created[0].ID, model.JobStatusReady); err != nil {
		t.Fatalf("mark job %s ready: %v", name, err)
	}
	return created[0].ID
}

func TestClaimJobsBasedOnResourcesNoReadyJobs(t *testing.T) {
	ctx, engine, _, _, workflowID := setup(t)
	result, err := engine.ClaimJobsBasedOnResources(ctx, workflowID, Resources{NumCPUs: 4, NumGPUs: 0, NumNodes: 1, MemoryBytes: 1 << 30}, 10, SortNone, false)
	if err != nil {
		t.Fatalf("ClaimJobsBasedOnResources: %v", err)
	}
	if len(result.Jobs) != 0 || result.Reason != model.ReasonNoReadyJobs {
		t.Errorf("result = %+v, want empty with ReasonNoReadyJobs", result)
	}
}

func TestClaimJobsBasedOnResourcesBudgetWalk(t *testing.T) {
	ctx, engine, jobs, resourceReqs, workflowID := setup(t)

	smallRR := &model.ResourceRequirements{WorkflowID: workflowID, Name: "small", NumCPUs: 1, NumNodes: 1, Memory: "1g", MemoryBytes: 1 << 30, Runtime: "PT1H", RuntimeSeconds: 3600}
	if err := resourceReqs.Create(ctx, smallRR); err != nil {
		t.Fatalf("create small RR: %v", err)
	}
	bigRR := &model.ResourceRequirements{WorkflowID: workflowID, Name: "big", NumCPUs: 8, NumNodes: 1, Memory: "1g", MemoryBytes: 1 << 30, Runtime: "PT1H", RuntimeSeconds: 3600}
	if err := resourceReqs.Create(ctx, bigRR); err != nil {
		t.Fatalf("create big RR: %v", err)
	}

	mkReadyJob(t, ctx, jobs, workflowID, "small-job", &smallRR.ID)
	mkReadyJob(t, ctx, jobs, workflowID, "big-job", &bigRR.ID)

	result, err := engine.ClaimJobsBasedOnResources(ctx, workflowID, Resources{NumCPUs: 2, NumGPUs: 0, NumNodes: 10, MemoryBytes: 1 << 31}, 10, SortNone, false)
	if err != nil {
		t.Fatalf("ClaimJobsBasedOnResources: %v", err)
	}
	if len(result.Jobs) != 1 || result.Jobs[0].Name != "small-job" {
		t.Fatalf("result.Jobs = %+v, want only small-job claimed", result.Jobs)
	}
	if result.Jobs[0].Status != model.JobStatusPending {
		t.Errorf("claimed job status = %v, want Pending", result.Jobs[0].Status)
	}
}

func TestClaimJobsBasedOnResourcesNoneFit(t *testing.T) {
	ctx, engine, jobs, resourceReqs, workflowID := setup(t)

	bigRR := &model.ResourceRequirements{WorkflowID: workflowID, Name: "big", NumCPUs: 64, NumNodes: 1, Memory: "1g", MemoryBytes: 1 << 30, Runtime: "PT1H", RuntimeSeconds: 3600}
	if err := resourceReqs.Create(ctx, bigRR); err != nil {
		t.Fatalf("create big RR: %v", err)
	}
	mkReadyJob(t, ctx, jobs, workflowID, "big-job", &bigRR.ID)

	result, err := engine.ClaimJobsBasedOnResources(ctx, workflowID, Resources{NumCPUs: 1, NumGPUs: 0, NumNodes: 1, MemoryBytes: 1 << 30}, 10, SortNone, false)
	if err != nil {
		t.Fatalf("ClaimJobsBasedOnResources: %v", err)
	}
	if len(result.Jobs) != 0 || result.Reason != model.ReasonNoJobsFitResources {
		t.Errorf("result = %+v, want empty with ReasonNoJobsFitResources", result)
	}
}

func TestClaimNextJobsClaimsAllReady(t *testing.T) {
	ctx, engine, jobs, _, workflowID := setup(t)
	mkReadyJob(t, ctx, jobs, workflowID, "a", nil)
	mkReadyJob(t, ctx, jobs, workflowID, "b", nil)

	result, err := engine.ClaimNextJobs(ctx, workflowID, 10)
	if err != nil {
		t.Fatalf("ClaimNextJobs: %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Errorf("claimed %d jobs, want 2", len(result.Jobs))
	}
}

func TestClaimJobsBasedOnResourcesRespectsLimit(t *testing.T) {
	ctx, engine, jobs, _, workflowID := setup(t)
	mkReadyJob(t, ctx, jobs, workflowID, "a", nil)
	mkReadyJob(t, ctx, jobs, workflowID, "b", nil)
	mkReadyJob(t, ctx, jobs, workflowID, "c", nil)

	result, err := engine.ClaimJobsBasedOnResources(ctx, workflowID, Resources{NumCPUs: 100, NumGPUs: 100, NumNodes: 100, MemoryBytes: 1 << 40}, 2, SortNone, false)
	if err != nil {
		t.Fatalf("ClaimJobsBasedOnResources: %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Errorf("claimed %d jobs, want limit of 2", len(result.Jobs))
	}
}

// TestConcurrentClaimersNeverDoubleClaim exercises invariant I3: two
// callers racing to claim the same ready jobs must never both succeed
// on the same job, since UpdateStatus's conditional UPDATE is the
// mutual-exclusion primitive guarding it.
func TestConcurrentClaimersNeverDoubleClaim(t *testing.T) {
	ctx, engine, jobs, _, workflowID := setup(t)

	const numJobs = 20
	for i := 0; i < numJobs; i++ {
		mkReadyJob(t, ctx, jobs, workflowID, "job", nil)
	}

	const numClaimers = 5
	var wg sync.WaitGroup
	claimed := make([][]model.Job, numClaimers)
	for i := 0; i < numClaimers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := engine.ClaimJobsBasedOnResources(ctx, workflowID,
				Resources{NumCPUs: 1 << 30, NumGPUs: 1 << 30, NumNodes: 1 << 30, MemoryBytes: 1 << 62},
				numJobs, SortNone, false)
			if err != nil {
				t.Errorf("claimer %d: %v", idx, err)
				return
			}
			claimed[idx] = result.Jobs
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]int)
	for _, jobsClaimed := range claimed {
		for _, j := range jobsClaimed {
			seen[j.ID]++
		}
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("job %d was claimed %d times, want exactly 1", id, count)
		}
	}
	if len(seen) != numJobs {
		t.Errorf("total distinct jobs claimed = %d, want %d", len(seen), numJobs)
	}
}
