package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NREL/torc/internal/action"
	"github.com/NREL/torc/internal/broadcast"
	"github.com/NREL/torc/internal/claim"
	"github.com/NREL/torc/internal/graph"
	"github.com/NREL/torc/internal/lifecycle"
	"github.com/NREL/torc/internal/store"
	"github.com/NREL/torc/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.OpenDB(t)

	workflows := store.NewWorkflowFacade(db)
	jobs := store.NewJobFacade(db)
	files := store.NewFileFacade(db)
	userData := store.NewUserDataFacade(db)
	resourceReqs := store.NewResourceRequirementsFacade(db)
	computeNodes := store.NewComputeNodeFacade(db)
	schedulers := store.NewSchedulerFacade(db)
	results := store.NewResultFacade(db)
	events := store.NewEventFacade(db)
	workflowActions := store.NewWorkflowActionFacade(db)
	remoteWorkers := store.NewRemoteWorkerFacade(db)
	failureHandlers := store.NewFailureHandlerFacade(db)
	access := store.NewAccessFacade(db)

	graphEngine := graph.NewEngine(db, jobs, userData, workflows)
	claimEngine := claim.NewEngine(db, jobs)
	actionEngine := action.NewEngine(db, workflowActions, jobs)
	lifecycleEngine := lifecycle.NewEngine(db, jobs, results, actionEngine)

	bus := broadcast.New(16)

	return New(
		db, bus, graphEngine, claimEngine, actionEngine, lifecycleEngine,
		workflows, jobs, files, userData, resourceReqs, computeNodes,
		schedulers, results, events, workflowActions, remoteWorkers,
		failureHandlers, access, SSEConfig{},
	)
}

func TestPingAndVersion(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/torc-service/v1/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/ping status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/torc-service/v1/version", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/version status = %d, want 200", rec.Code)
	}
}

func TestCreateAndGetWorkflow(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body := `{"name":"test-wf","user_name":"tester"}`
	req := httptest.NewRequest(http.MethodPost, "/torc-service/v1/workflows", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK && rec.Code != http.StatusCreated {
		t.Fatalf("create workflow status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/torc-service/v1/workflows/999999", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing workflow status = %d, want 404", rec.Code)
	}
}
