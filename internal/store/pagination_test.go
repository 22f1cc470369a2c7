package store

import (
	"context"
	"testing"

	"github.com/NREL/torc/internal/model"
)

// openTestDB opens an in-memory database directly rather than via
// internal/testutil, since that package imports store and a package
// store_test helper here would otherwise create an import cycle.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", 10000, 10000)
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func TestWorkflowFacadeListPaginationAndFilter(t *testing.T) {
	db := openTestDB(t)
	workflows := NewWorkflowFacade(db)
	ctx := context.Background()

	names := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, n := range names {
		wf := &model.Workflow{Name: n, UserName: "tester"}
		if err := workflows.Create(ctx, wf); err != nil {
			t.Fatalf("create workflow %s: %v", n, err)
		}
	}

	page, err := workflows.List(ctx, ListParams{OrderBy: "name", Limit: 2})
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if page.TotalCount != 5 {
		t.Errorf("total_count = %d, want 5", page.TotalCount)
	}
	if len(page.Items) != 2 {
		t.Fatalf("page 1 items = %d, want 2", len(page.Items))
	}
	if page.Items[0].Name != "alpha" || page.Items[1].Name != "bravo" {
		t.Errorf("page 1 = %+v, want alpha,bravo in ascending order", page.Items)
	}
	if !page.HasMore {
		t.Error("expected has_more true on page 1 of 5 with limit 2")
	}

	page2, err := workflows.List(ctx, ListParams{OrderBy: "name", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2.Items) != 2 || page2.Items[0].Name != "charlie" {
		t.Errorf("page 2 = %+v, want charlie,delta", page2.Items)
	}

	page3, err := workflows.List(ctx, ListParams{OrderBy: "name", Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3.Items) != 1 || page3.Items[0].Name != "echo" {
		t.Errorf("page 3 = %+v, want echo", page3.Items)
	}
	if page3.HasMore {
		t.Error("expected has_more false on the final page")
	}

	desc, err := workflows.List(ctx, ListParams{OrderBy: "name", Desc: true, Limit: 1})
	if err != nil {
		t.Fatalf("List desc: %v", err)
	}
	if len(desc.Items) != 1 || desc.Items[0].Name != "echo" {
		t.Errorf("desc first item = %+v, want echo", desc.Items)
	}

	filtered, err := workflows.List(ctx, ListParams{Filters: map[string]interface{}{"name": "charlie"}})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(filtered.Items) != 1 || filtered.Items[0].Name != "charlie" {
		t.Errorf("filtered = %+v, want only charlie", filtered.Items)
	}
	if filtered.TotalCount != 1 {
		t.Errorf("filtered total_count = %d, want 1", filtered.TotalCount)
	}
}

func TestWorkflowFacadeListClampsLimitToMax(t *testing.T) {
	db := openTestDB(t)
	workflows := NewWorkflowFacade(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		wf := &model.Workflow{Name: "wf", UserName: "tester"}
		if err := workflows.Create(ctx, wf); err != nil {
			t.Fatalf("create workflow: %v", err)
		}
	}

	page, err := workflows.List(ctx, ListParams{Limit: 1000000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.MaxLimit != db.maxRecordTransferCount {
		t.Errorf("max_limit = %d, want %d", page.MaxLimit, db.maxRecordTransferCount)
	}
	if len(page.Items) != 3 {
		t.Errorf("items = %d, want 3 (clamped limit still satisfied by the 3 rows present)", len(page.Items))
	}
}

func TestWorkflowFacadeListDefaultsLimitWhenUnset(t *testing.T) {
	db := openTestDB(t)
	workflows := NewWorkflowFacade(db)
	ctx := context.Background()

	wf := &model.Workflow{Name: "solo", UserName: "tester"}
	if err := workflows.Create(ctx, wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	page, err := workflows.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Offset != 0 {
		t.Errorf("offset = %d, want 0", page.Offset)
	}
	if len(page.Items) != 1 {
		t.Errorf("items = %d, want 1", len(page.Items))
	}
}
