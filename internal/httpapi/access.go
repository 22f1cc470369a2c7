package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createAccessGroupReq struct {
	Name string `json:"name"`
}

func (s *Server) createAccessGroup(c *gin.Context) (interface{}, error) {
	var req createAccessGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.Name == "" {
		return nil, apperr.NewUnprocessableField("name is required", "name", req.Name)
	}
	g := &model.AccessGroup{Name: req.Name}
	if err := s.access.CreateGroup(c.Request.Context(), g); err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return g, nil
}

type addAccessGroupMemberReq struct {
	UserName string `json:"user_name"`
}

func (s *Server) addAccessGroupMember(c *gin.Context) (interface{}, error) {
	groupID, err := parseID(c, "gid")
	if err != nil {
		return nil, err
	}
	var req addAccessGroupMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.UserName == "" {
		return nil, apperr.NewUnprocessableField("user_name is required", "user_name", req.UserName)
	}
	if err := s.access.AddMember(c.Request.Context(), req.UserName, groupID); err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return gin.H{"group_id": groupID, "user_name": req.UserName}, nil
}

type grantWorkflowAccessReq struct {
	GroupID int64 `json:"group_id"`
}

func (s *Server) grantWorkflowAccess(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req grantWorkflowAccessReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if req.GroupID == 0 {
		return nil, apperr.NewUnprocessableField("group_id is required", "group_id", req.GroupID)
	}
	if err := s.access.GrantWorkflowAccess(c.Request.Context(), workflowID, req.GroupID); err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return gin.H{"workflow_id": workflowID, "group_id": req.GroupID}, nil
}
