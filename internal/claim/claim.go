// Package claim implements the claim engine of spec.md §4.4:
// claim_next_jobs and claim_jobs_based_on_resources, the
// conditional-update-per-row mutual exclusion primitive that
// satisfies invariant I3, and the resource-budget walk. Grounded
// algorithmically on original_source/tests/test_claim_jobs_based_on_resources.rs
// for the exact observable ordering/budget behavior; written in the
// teacher's facade + apperr idiom since the teacher has no scheduler
// of its own.
package claim

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
	"github.com/NREL/torc/internal/store"
)

// SortMethod selects the ordering candidates are walked in when
// budget-fitting (spec.md §4.4).
type SortMethod string

const (
	SortGpusRuntimeMemory SortMethod = "gpus_runtime_memory"
	SortGpusMemoryRuntime SortMethod = "gpus_memory_runtime"
	SortNone              SortMethod = "none"
)

// Resources is the caller-supplied resource budget
// (ComputeNodesResources in spec.md §4.4).
type Resources struct {
	NumCPUs          int
	MemoryBytes      int64
	NumGPUs          int
	NumNodes         int
	TimeLimitSeconds *int64
	SchedulerConfigID *int64
}

// Engine is the claim engine.
type Engine struct {
	db   *store.DB
	jobs *store.JobFacade
}

func NewEngine(db *store.DB, jobs *store.JobFacade) *Engine {
	return &Engine{db: db, jobs: jobs}
}

// Result is the outcome of a claim call: either a non-empty set of
// now-Pending jobs, or an empty set with a documented reason.
type Result struct {
	Jobs   []model.Job
	Reason model.ClaimReason
}

type candidate struct {
	job     model.Job
	numCPUs int
	numGPUs int
	numNodes int
	memoryBytes int64
	runtimeSeconds int64
}

// ClaimNextJobs is the legal degenerate case documented in spec.md §9
// for the unimplemented-upstream endpoint: no sort, an effectively
// infinite budget, limit taken from the argument.
func (e *Engine) ClaimNextJobs(ctx context.Context, workflowID int64, limit int) (*Result, error) {
	return e.claim(ctx, workflowID, Resources{
		NumCPUs:  1 << 30,
		MemoryBytes: 1 << 62,
		NumGPUs:  1 << 30,
		NumNodes: 1 << 30,
	}, limit, SortNone, false)
}

// ClaimJobsBasedOnResources is spec.md §4.4's primary entry point.
func (e *Engine) ClaimJobsBasedOnResources(ctx context.Context, workflowID int64, resources Resources, limit int, sortMethod SortMethod, strictSchedulerMatch bool) (*Result, error) {
	return e.claim(ctx, workflowID, resources, limit, sortMethod, strictSchedulerMatch)
}

func (e *Engine) claim(ctx context.Context, workflowID int64, resources Resources, limit int, sortMethod SortMethod, strictSchedulerMatch bool) (*Result, error) {
	var claimed []model.Job
	var reason model.ClaimReason

	err := e.db.WithinTransaction(func(tx *gorm.DB) error {
		candidates, err := e.readyCandidates(ctx, tx, workflowID, sortMethod, strictSchedulerMatch, resources.SchedulerConfigID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			reason = model.ReasonNoReadyJobs
			return nil
		}

		claimSet := budgetWalk(candidates, resources, limit)
		if len(claimSet) == 0 {
			if strictSchedulerMatch && resources.SchedulerConfigID != nil {
				reason = model.ReasonSchedulerMismatch
			} else {
				reason = model.ReasonNoJobsFitResources
			}
			return nil
		}

		for _, c := range claimSet {
			ok, err := e.jobs.UpdateStatus(ctx, tx, c.job.ID, model.JobStatusReady, model.JobStatusPending)
			if err != nil {
				return err
			}
			if !ok {
				// A concurrent claimer already took this row; drop it
				// from the result per spec.md §4.4 step 3.
				continue
			}
			c.job.Status = model.JobStatusPending
			claimed = append(claimed, c.job)
		}

		if len(claimed) == 0 {
			reason = model.ReasonNoJobsFitResources
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*apperr.Error); ok {
			return nil, err
		}
		return nil, apperr.NewDatabaseError(err)
	}

	return &Result{Jobs: claimed, Reason: reason}, nil
}

// readyCandidates loads every Ready job in the workflow joined with
// its resource requirements, applies strict_scheduler_match, and
// sorts per sortMethod.
func (e *Engine) readyCandidates(ctx context.Context, tx *gorm.DB, workflowID int64, sortMethod SortMethod, strictSchedulerMatch bool, schedulerConfigID *int64) ([]candidate, error) {
	type row struct {
		model.Job
		RRNumCPUs        int
		RRNumGPUs        int
		RRNumNodes       int
		RRMemoryBytes    int64
		RRRuntimeSeconds int64
	}
	var rows []row
	err := tx.WithContext(ctx).Table("jobs AS j").
		Select("j.*, COALESCE(rr.num_cpus,0) AS rr_num_cpus, COALESCE(rr.num_gpus,0) AS rr_num_gpus, "+
			"COALESCE(rr.num_nodes,1) AS rr_num_nodes, COALESCE(rr.memory_bytes,0) AS rr_memory_bytes, "+
			"COALESCE(rr.runtime_seconds,0) AS rr_runtime_seconds").
		Joins("LEFT JOIN resource_requirements AS rr ON rr.id = j.resource_requirements_id").
		Where("j.workflow_id = ? AND j.status = ?", workflowID, model.JobStatusReady.ToInt()).
		Order("j.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.NewDatabaseError(err)
	}

	candidates := make([]candidate, 0, len(rows))
	for _, r := range rows {
		if strictSchedulerMatch && schedulerConfigID != nil {
			if r.Job.SchedulerID == nil || *r.Job.SchedulerID != *schedulerConfigID {
				continue
			}
		}
		candidates = append(candidates, candidate{
			job:            r.Job,
			numCPUs:        r.RRNumCPUs,
			numGPUs:        r.RRNumGPUs,
			numNodes:       r.RRNumNodes,
			memoryBytes:    r.RRMemoryBytes,
			runtimeSeconds: r.RRRuntimeSeconds,
		})
	}

	switch sortMethod {
	case SortGpusRuntimeMemory:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.numGPUs != b.numGPUs {
				return a.numGPUs > b.numGPUs
			}
			if a.runtimeSeconds != b.runtimeSeconds {
				return a.runtimeSeconds > b.runtimeSeconds
			}
			if a.memoryBytes != b.memoryBytes {
				return a.memoryBytes > b.memoryBytes
			}
			return a.job.ID < b.job.ID
		})
	case SortGpusMemoryRuntime:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.numGPUs != b.numGPUs {
				return a.numGPUs > b.numGPUs
			}
			if a.memoryBytes != b.memoryBytes {
				return a.memoryBytes > b.memoryBytes
			}
			if a.runtimeSeconds != b.runtimeSeconds {
				return a.runtimeSeconds > b.runtimeSeconds
			}
			return a.job.ID < b.job.ID
		})
	case SortNone:
		// Candidates are already loaded in id-ascending order.
	}

	return candidates, nil
}

// budgetWalk walks candidates in their given order, greedily
// appending any whose requirements still fit the remaining budget,
// until limit candidates are claimed or the budget/candidate set is
// exhausted (spec.md §4.4 step 2).
func budgetWalk(candidates []candidate, resources Resources, limit int) []candidate {
	remainingCPUs := resources.NumCPUs
	remainingMemory := resources.MemoryBytes
	remainingGPUs := resources.NumGPUs
	remainingNodes := resources.NumNodes
	var remainingTime *int64
	if resources.TimeLimitSeconds != nil {
		t := *resources.TimeLimitSeconds
		remainingTime = &t
	}

	claimed := make([]candidate, 0, limit)
	for _, c := range candidates {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		if c.numCPUs > remainingCPUs || c.memoryBytes > remainingMemory ||
			c.numGPUs > remainingGPUs || c.numNodes > remainingNodes {
			continue
		}
		if remainingTime != nil && c.runtimeSeconds > *remainingTime {
			continue
		}
		claimed = append(claimed, c)
		remainingCPUs -= c.numCPUs
		remainingMemory -= c.memoryBytes
		remainingGPUs -= c.numGPUs
		remainingNodes -= c.numNodes
		if remainingTime != nil {
			*remainingTime -= c.runtimeSeconds
		}
	}
	return claimed
}
