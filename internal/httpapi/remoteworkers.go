package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type registerRemoteWorkerReq struct {
	WorkerID string `json:"worker_id"`
}

func (s *Server) registerRemoteWorker(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req registerRemoteWorkerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.WorkerID == "" {
		return nil, apperr.NewUnprocessableField("worker_id is required", "worker_id", req.WorkerID)
	}
	rw := &model.RemoteWorker{WorkerID: req.WorkerID, WorkflowID: workflowID, CreatedAt: time.Now().UTC()}
	if err := s.remoteWorkers.Register(c.Request.Context(), rw); err != nil {
		return nil, err
	}
	s.publish(workflowID, "remote_worker", "register", req.WorkerID)
	c.Status(http.StatusCreated)
	return rw, nil
}

func (s *Server) listRemoteWorkers(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	workers, err := s.remoteWorkers.ListByWorkflow(c.Request.Context(), workflowID)
	if err != nil {
		return nil, err
	}
	return gin.H{"items": workers}, nil
}
