package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createComputeNodeReq struct {
	Hostname      string  `json:"hostname"`
	PID           int     `json:"pid"`
	NumCPUs       int     `json:"num_cpus"`
	NumGPUs       int     `json:"num_gpus"`
	MemoryBytes   int64   `json:"memory_bytes"`
	NumNodes      int     `json:"num_nodes"`
	TimeLimitSec  *int64  `json:"time_limit_seconds,omitempty"`
	NodeType      string  `json:"node_type"`
	SchedulerJSON *string `json:"scheduler_json,omitempty"`
}

func (s *Server) createComputeNode(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req createComputeNodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Hostname == "" {
		return nil, apperr.NewUnprocessableField("hostname is required", "hostname", req.Hostname)
	}
	nodeType := model.ComputeNodeType(req.NodeType)
	if nodeType != model.ComputeNodeLocal && nodeType != model.ComputeNodeSlurm {
		return nil, apperr.NewUnprocessableField("node_type must be local or slurm", "node_type", req.NodeType)
	}
	cn := &model.ComputeNode{
		WorkflowID:    workflowID,
		Hostname:      req.Hostname,
		PID:           req.PID,
		StartTime:     time.Now().UTC(),
		IsActive:      true,
		NumCPUs:       req.NumCPUs,
		NumGPUs:       req.NumGPUs,
		MemoryBytes:   req.MemoryBytes,
		NumNodes:      req.NumNodes,
		TimeLimitSec:  req.TimeLimitSec,
		NodeType:      nodeType,
		SchedulerJSON: req.SchedulerJSON,
	}
	if err := s.computeNodes.Create(c.Request.Context(), cn); err != nil {
		return nil, err
	}
	s.publish(workflowID, "compute_node", "create", cn.Hostname)
	c.Status(http.StatusCreated)
	return cn, nil
}

func (s *Server) listComputeNodes(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	if c.Query("active_only") == "true" {
		nodes, err := s.computeNodes.ListActive(c.Request.Context(), workflowID)
		if err != nil {
			return nil, err
		}
		return gin.H{"items": nodes}, nil
	}
	return s.computeNodes.List(c.Request.Context(), parseListParams(c, map[string]interface{}{"workflow_id": workflowID}))
}

type deactivateComputeNodeReq struct {
	DurationSeconds int64 `json:"duration_seconds"`
}

func (s *Server) deactivateComputeNode(c *gin.Context) (interface{}, error) {
	id, err := parseID(c, "cid")
	if err != nil {
		return nil, err
	}
	var req deactivateComputeNodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if err := s.computeNodes.MarkInactive(c.Request.Context(), id, req.DurationSeconds); err != nil {
		return nil, err
	}
	return s.computeNodes.GetByID(c.Request.Context(), id)
}
