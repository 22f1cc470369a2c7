package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createResourceRequirementsReq struct {
	Name     string `json:"name"`
	NumCPUs  int    `json:"num_cpus"`
	NumGPUs  int    `json:"num_gpus"`
	NumNodes int    `json:"num_nodes"`
	Memory   string `json:"memory"`
	Runtime  string `json:"runtime"`
}

func (s *Server) createResourceRequirements(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req createResourceRequirementsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" || req.NumCPUs <= 0 {
		return nil, apperr.NewUnprocessableField("name and a positive num_cpus are required", "num_cpus", req.NumCPUs)
	}
	if req.NumNodes <= 0 {
		req.NumNodes = 1
	}

	memoryBytes, err := model.ParseMemoryString(req.Memory)
	if err != nil {
		return nil, apperr.NewUnprocessableField("invalid memory string", "memory", req.Memory)
	}
	runtimeSeconds, err := model.ParseISO8601Duration(req.Runtime)
	if err != nil {
		return nil, apperr.NewUnprocessableField("invalid runtime duration", "runtime", req.Runtime)
	}

	rr := &model.ResourceRequirements{
		WorkflowID:     workflowID,
		Name:           req.Name,
		NumCPUs:        req.NumCPUs,
		NumGPUs:        req.NumGPUs,
		NumNodes:       req.NumNodes,
		Memory:         req.Memory,
		MemoryBytes:    memoryBytes,
		Runtime:        req.Runtime,
		RuntimeSeconds: runtimeSeconds,
	}
	if err := s.resourceReqs.Create(c.Request.Context(), rr); err != nil {
		return nil, err
	}
	s.publish(workflowID, "resource_requirements", "create", rr.Name)
	c.Status(http.StatusCreated)
	return rr, nil
}

func (s *Server) listResourceRequirements(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.resourceReqs.List(c.Request.Context(), parseListParams(c, map[string]interface{}{"workflow_id": workflowID}))
}
