// Command torc-server boots the Torc workflow orchestration core: it
// opens the sqlite store, wires the graph/claim/action/lifecycle
// engines and the broadcast hub, and serves the REST API over HTTP.
// Grounded on SaFE/apiserver/cmd/main.go's thin-main/NewServer/Start
// shape, adapted to a single-binary server with no external tracer.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/NREL/torc/internal/action"
	"github.com/NREL/torc/internal/broadcast"
	"github.com/NREL/torc/internal/claim"
	"github.com/NREL/torc/internal/config"
	"github.com/NREL/torc/internal/graph"
	"github.com/NREL/torc/internal/httpapi"
	"github.com/NREL/torc/internal/lifecycle"
	"github.com/NREL/torc/internal/logging"
	"github.com/NREL/torc/internal/store"
)

func main() {
	klog.InitFlags(nil)
	defer logging.Flush()

	cfg, err := config.FromEnv()
	if err != nil {
		klog.Fatalf("torc-server: failed to load config: %v", err)
	}
	if err := flag.Set("v", strconv.Itoa(cfg.LogVerbosity)); err != nil {
		klog.Fatalf("torc-server: failed to apply log verbosity: %v", err)
	}
	klog.V(0).Infof("torc-server: log verbosity %d", cfg.LogVerbosity)

	if err := run(cfg); err != nil {
		klog.Fatalf("torc-server: %v", err)
	}
}

func run(cfg *config.Config) error {
	db, err := store.Open(cfg.DatabasePath, cfg.MaxRecordTransferCount, cfg.DefaultPageLimit)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Errorf("torc-server: error closing database: %v", err)
		}
	}()

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

	bus := broadcast.New(cfg.EventBufferSize)

	server := httpapi.New(
		db, bus, graphEngine, claimEngine, actionEngine, lifecycleEngine,
		workflows, jobs, files, userData, resourceReqs, computeNodes,
		schedulers, results, events, workflowActions, remoteWorkers,
		failureHandlers, access,
		httpapi.SSEConfig{PingInterval: cfg.SSEPingInterval},
	)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Infof("torc-server: listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		logging.Infof("torc-server: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Errorf("torc-server: graceful shutdown failed: %v", err)
		return err
	}
	return <-serveErr
}
