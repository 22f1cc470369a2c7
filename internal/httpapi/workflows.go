package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createWorkflowReq struct {
	Name        string `json:"name"`
	UserName    string `json:"user_name"`
	Description string `json:"description"`
}

func (s *Server) createWorkflow(c *gin.Context) (interface{}, error) {
	var req createWorkflowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" || req.UserName == "" {
		return nil, apperr.NewUnprocessableField("name and user_name are required", "name", req.Name)
	}
	w := &model.Workflow{Name: req.Name, UserName: req.UserName, Description: req.Description}
	if err := s.workflows.Create(c.Request.Context(), w); err != nil {
		return nil, err
	}
	s.publish(w.ID, "workflow", "create", w.Name)
	c.Status(http.StatusCreated)
	return w, nil
}

func (s *Server) listWorkflows(c *gin.Context) (interface{}, error) {
	filters := map[string]interface{}{}
	if userName := c.Query("user_name"); userName != "" {
		filters["user_name"] = userName
	}
	return s.workflows.List(c.Request.Context(), parseListParams(c, filters))
}

func (s *Server) getWorkflow(c *gin.Context) (interface{}, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.workflows.GetByID(c.Request.Context(), id)
}

type updateWorkflowReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsArchived  bool   `json:"is_archived"`
}

func (s *Server) updateWorkflow(c *gin.Context) (interface{}, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req updateWorkflowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	w := &model.Workflow{ID: id, Name: req.Name, Description: req.Description, IsArchived: req.IsArchived}
	if err := s.workflows.Update(c.Request.Context(), w); err != nil {
		return nil, err
	}
	s.publish(id, "workflow", "update", w.Name)
	return w, nil
}

func (s *Server) deleteWorkflow(c *gin.Context) (interface{}, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	if err := s.workflows.Delete(c.Request.Context(), id); err != nil {
		return nil, err
	}
	s.publish(id, "workflow", "delete", "")
	c.Status(http.StatusNoContent)
	return gin.H{}, nil
}

// isWorkflowComplete implements spec.md §4.2's is_workflow_complete:
// a workflow is complete when every job has reached a terminal
// status (Completed, Failed, Canceled, Terminated or Disabled).
func (s *Server) isWorkflowComplete(c *gin.Context) (interface{}, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	counts, err := s.workflows.CountJobStatuses(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	complete := true
	for status, n := range counts {
		if n > 0 && !status.IsTerminal() {
			complete = false
			break
		}
	}
	return gin.H{"is_complete": complete}, nil
}
