package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createUserDataReq struct {
	Name        string  `json:"name"`
	IsEphemeral bool    `json:"is_ephemeral"`
	Data        *string `json:"data,omitempty"`
}

func (s *Server) createUserData(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req createUserDataReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" {
		return nil, apperr.NewUnprocessableField("name is required", "name", req.Name)
	}
	ud := &model.UserData{WorkflowID: workflowID, Name: req.Name, IsEphemeral: req.IsEphemeral, Data: req.Data}
	if err := s.userData.Create(c.Request.Context(), ud); err != nil {
		return nil, err
	}
	s.publish(workflowID, "user_data", "create", ud.Name)
	c.Status(http.StatusCreated)
	return ud, nil
}

func (s *Server) listUserData(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.userData.List(c.Request.Context(), parseListParams(c, map[string]interface{}{"workflow_id": workflowID}))
}

func (s *Server) getUserData(c *gin.Context) (interface{}, error) {
	id, err := parseID(c, "uid")
	if err != nil {
		return nil, err
	}
	return s.userData.GetByID(c.Request.Context(), nil, id)
}
