// Package httpapi is the REST surface of spec.md §4.7/§6.1: a gin
// router mapping HTTP verbs/paths to component operations, pagination
// query-param parsing, error-to-status mapping, and the SSE event
// stream. Grounded on
// SaFE/apiserver/pkg/handlers/cd-handlers/handler.go's handle(c, fn)
// wrapper and Lens/modules/core/pkg/workflow/live_api.go's
// HandleLiveStream/sendSSEEvent.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/action"
	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/broadcast"
	"github.com/NREL/torc/internal/claim"
	"github.com/NREL/torc/internal/graph"
	"github.com/NREL/torc/internal/lifecycle"
	"github.com/NREL/torc/internal/logging"
	"github.com/NREL/torc/internal/store"
)

const jsonContentType = "application/json; charset=utf-8"

const version = "0.1.0"

// Server holds every component the REST surface delegates to.
type Server struct {
	db             *store.DB
	bus            *broadcast.Bus
	graph          *graph.Engine
	claim          *claim.Engine
	actions        *action.Engine
	lifecycle      *lifecycle.Engine
	workflows      *store.WorkflowFacade
	jobs           *store.JobFacade
	files          *store.FileFacade
	userData       *store.UserDataFacade
	resourceReqs   *store.ResourceRequirementsFacade
	computeNodes   *store.ComputeNodeFacade
	schedulers     *store.SchedulerFacade
	results        *store.ResultFacade
	events         *store.EventFacade
	workflowActions *store.WorkflowActionFacade
	remoteWorkers  *store.RemoteWorkerFacade
	failureHandlers *store.FailureHandlerFacade
	access         *store.AccessFacade
	sseConfig      SSEConfig
}

// SSEConfig configures the live event stream.
type SSEConfig struct {
	PingInterval time.Duration
}

// New wires a Server from its components. Every facade and engine is
// constructed by the caller (cmd/torc-server/main.go) and handed in
// here, following the teacher's NewHandler(deps...) shape.
func New(
	db *store.DB,
	bus *broadcast.Bus,
	graphEngine *graph.Engine,
	claimEngine *claim.Engine,
	actionEngine *action.Engine,
	lifecycleEngine *lifecycle.Engine,
	workflows *store.WorkflowFacade,
	jobs *store.JobFacade,
	files *store.FileFacade,
	userData *store.UserDataFacade,
	resourceReqs *store.ResourceRequirementsFacade,
	computeNodes *store.ComputeNodeFacade,
	schedulers *store.SchedulerFacade,
	results *store.ResultFacade,
	events *store.EventFacade,
	workflowActions *store.WorkflowActionFacade,
	remoteWorkers *store.RemoteWorkerFacade,
	failureHandlers *store.FailureHandlerFacade,
	access *store.AccessFacade,
	sseConfig SSEConfig,
) *Server {
	return &Server{
		db: db, bus: bus, graph: graphEngine, claim: claimEngine, actions: actionEngine,
		lifecycle: lifecycleEngine, workflows: workflows, jobs: jobs, files: files,
		userData: userData, resourceReqs: resourceReqs, computeNodes: computeNodes,
		schedulers: schedulers, results: results, events: events,
		workflowActions: workflowActions, remoteWorkers: remoteWorkers,
		failureHandlers: failureHandlers, access: access, sseConfig: sseConfig,
	}
}

// handleFunc is the per-route business-logic function; handle()
// translates its (response, error) pair into the gin response,
// mirroring the teacher's handle(c, fn) in cd-handlers/handler.go.
type handleFunc func(*gin.Context) (interface{}, error)

func handle(c *gin.Context, fn handleFunc) {
	response, err := fn(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	code := http.StatusOK
	if c.Writer.Status() > 0 && c.Writer.Status() != http.StatusOK {
		code = c.Writer.Status()
	}
	c.JSON(code, response)
}

func abortWithError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	logging.Debugf("httpapi: request failed with status %d: %v", status, err)
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

// Router builds the gin engine and registers every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	base := r.Group("/torc-service/v1")

	base.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	base.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version}) })
	base.GET("/events/stream", s.handleEventStream)

	base.POST("/workflows", func(c *gin.Context) { handle(c, s.createWorkflow) })
	base.GET("/workflows", func(c *gin.Context) { handle(c, s.listWorkflows) })
	base.GET("/workflows/:id", func(c *gin.Context) { handle(c, s.getWorkflow) })
	base.PUT("/workflows/:id", func(c *gin.Context) { handle(c, s.updateWorkflow) })
	base.DELETE("/workflows/:id", func(c *gin.Context) { handle(c, s.deleteWorkflow) })
	base.GET("/workflows/:id/is-complete", func(c *gin.Context) { handle(c, s.isWorkflowComplete) })

	base.POST("/workflows/:id/jobs", func(c *gin.Context) { handle(c, s.createJob) })
	base.POST("/workflows/:id/jobs:bulk", func(c *gin.Context) { handle(c, s.createJobsBulk) })
	base.GET("/workflows/:id/jobs", func(c *gin.Context) { handle(c, s.listJobs) })
	base.GET("/jobs/:jid", func(c *gin.Context) { handle(c, s.getJob) })
	base.PUT("/jobs/:jid", func(c *gin.Context) { handle(c, s.updateJob) })
	base.DELETE("/jobs/:jid", func(c *gin.Context) { handle(c, s.deleteJob) })

	base.POST("/workflows/:id/claim-jobs", func(c *gin.Context) { handle(c, s.claimJobsBasedOnResources) })
	base.POST("/workflows/:id/claim-next-jobs", func(c *gin.Context) { handle(c, s.claimNextJobs) })
	base.POST("/workflows/:id/initialize-jobs", func(c *gin.Context) { handle(c, s.initializeJobs) })
	base.POST("/workflows/:id/reset-jobs", func(c *gin.Context) { handle(c, s.resetJobs) })
	base.POST("/workflows/:id/process-changed-job-inputs", func(c *gin.Context) { handle(c, s.processChangedJobInputs) })

	base.POST("/jobs/:jid/start", func(c *gin.Context) { handle(c, s.startJob) })
	base.POST("/jobs/:jid/complete", func(c *gin.Context) { handle(c, s.completeJob) })
	base.POST("/jobs/:jid/retry", func(c *gin.Context) { handle(c, s.retryJob) })
	base.POST("/jobs/:jid/status", func(c *gin.Context) { handle(c, s.manageStatusChange) })

	base.POST("/workflows/:id/actions", func(c *gin.Context) { handle(c, s.createAction) })
	base.GET("/workflows/:id/actions", func(c *gin.Context) { handle(c, s.listActions) })
	base.GET("/workflows/:id/actions/pending", func(c *gin.Context) { handle(c, s.pendingActions) })
	base.POST("/workflows/:id/actions/:aid/claim", func(c *gin.Context) { handle(c, s.claimAction) })

	base.POST("/workflows/:id/files", func(c *gin.Context) { handle(c, s.createFile) })
	base.GET("/workflows/:id/files", func(c *gin.Context) { handle(c, s.listFiles) })
	base.GET("/files/:fid", func(c *gin.Context) { handle(c, s.getFile) })

	base.POST("/workflows/:id/user-data", func(c *gin.Context) { handle(c, s.createUserData) })
	base.GET("/workflows/:id/user-data", func(c *gin.Context) { handle(c, s.listUserData) })
	base.GET("/user-data/:uid", func(c *gin.Context) { handle(c, s.getUserData) })

	base.POST("/workflows/:id/resource-requirements", func(c *gin.Context) { handle(c, s.createResourceRequirements) })
	base.GET("/workflows/:id/resource-requirements", func(c *gin.Context) { handle(c, s.listResourceRequirements) })

	base.POST("/workflows/:id/compute-nodes", func(c *gin.Context) { handle(c, s.createComputeNode) })
	base.GET("/workflows/:id/compute-nodes", func(c *gin.Context) { handle(c, s.listComputeNodes) })
	base.POST("/compute-nodes/:cid/deactivate", func(c *gin.Context) { handle(c, s.deactivateComputeNode) })

	base.GET("/workflows/:id/results", func(c *gin.Context) { handle(c, s.listResultsForWorkflow) })
	base.GET("/jobs/:jid/results", func(c *gin.Context) { handle(c, s.listResultsForJob) })

	base.POST("/workflows/:id/remote-workers", func(c *gin.Context) { handle(c, s.registerRemoteWorker) })
	base.GET("/workflows/:id/remote-workers", func(c *gin.Context) { handle(c, s.listRemoteWorkers) })

	base.POST("/workflows/:id/failure-handlers", func(c *gin.Context) { handle(c, s.createFailureHandler) })
	base.GET("/workflows/:id/failure-handlers", func(c *gin.Context) { handle(c, s.listFailureHandlers) })

	base.POST("/access-groups", func(c *gin.Context) { handle(c, s.createAccessGroup) })
	base.POST("/access-groups/:gid/members", func(c *gin.Context) { handle(c, s.addAccessGroupMember) })
	base.POST("/workflows/:id/access-groups/:gid", func(c *gin.Context) { handle(c, s.grantWorkflowAccess) })

	return r
}

// parseID extracts an int64 path parameter, returning a typed
// BadRequest error on malformed input.
func parseID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.NewBadRequest("invalid " + name)
	}
	return id, nil
}

func (s *Server) publish(workflowID int64, entityKind, operation, summary string) {
	s.bus.Publish(broadcast.Event{
		WorkflowID: workflowID,
		EntityKind: entityKind,
		Operation:  operation,
		Summary:    summary,
		Timestamp:  time.Now().UTC(),
	})
}
