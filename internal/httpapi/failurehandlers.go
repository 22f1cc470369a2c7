package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createFailureHandlerReq struct {
	Name  string `json:"name"`
	Rules string `json:"rules"`
}

func (s *Server) createFailureHandler(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req createFailureHandlerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" || req.Rules == "" {
		return nil, apperr.NewUnprocessableField("name and rules are required", "name", req.Name)
	}
	h := &model.FailureHandler{WorkflowID: workflowID, Name: req.Name, Rules: req.Rules}
	if err := s.failureHandlers.Create(c.Request.Context(), h); err != nil {
		return nil, err
	}
	s.publish(workflowID, "failure_handler", "create", h.Name)
	c.Status(http.StatusCreated)
	return h, nil
}

func (s *Server) listFailureHandlers(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	handlers, err := s.failureHandlers.ListByWorkflow(c.Request.Context(), workflowID)
	if err != nil {
		return nil, err
	}
	return gin.H{"items": handlers}, nil
}
