package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createFileReq struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) createFile(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req createFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" || req.Path == "" {
		return nil, apperr.NewUnprocessableField("name and path are required", "name", req.Name)
	}
	f := &model.File{WorkflowID: workflowID, Name: req.Name, Path: req.Path}
	if err := s.files.Create(c.Request.Context(), f); err != nil {
		return nil, err
	}
	s.publish(workflowID, "file", "create", f.Name)
	c.Status(http.StatusCreated)
	return f, nil
}

func (s *Server) listFiles(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.files.List(c.Request.Context(), parseListParams(c, map[string]interface{}{"workflow_id": workflowID}))
}

func (s *Server) getFile(c *gin.Context) (interface{}, error) {
	fileID, err := parseID(c, "fid")
	if err != nil {
		return nil, err
	}
	return s.files.GetByID(c.Request.Context(), fileID)
}
