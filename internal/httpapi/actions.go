package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/action"
	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

type createActionReq struct {
	TriggerType  string                 `json:"trigger_type"`
	ActionType   string                 `json:"action_type"`
	ActionConfig map[string]interface{} `json:"action_config"`
	JobIDs       []int64                `json:"job_ids,omitempty"`
	Persistent   bool                   `json:"persistent"`
	IsRecovery   bool                   `json:"is_recovery"`
}

func (s *Server) createAction(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var req createActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperr.NewBadRequest(err.Error())
	}

	triggerType := model.ActionTriggerType(req.TriggerType)
	actionType := model.ActionType(req.ActionType)

	if err := action.ValidateConfig(actionType, req.ActionConfig); err != nil {
		return nil, err
	}

	configRaw, err := json.Marshal(req.ActionConfig)
	if err != nil {
		return nil, apperr.NewBadRequest("invalid action_config")
	}

	var jobIDsRaw *string
	if len(req.JobIDs) > 0 {
		b, err := json.Marshal(req.JobIDs)
		if err != nil {
			return nil, apperr.NewBadRequest("invalid job_ids")
		}
		s := string(b)
		jobIDsRaw = &s
	}

	a := &model.WorkflowAction{
		WorkflowID:       workflowID,
		TriggerType:      triggerType,
		ActionType:       actionType,
		ActionConfig:     string(configRaw),
		JobIDs:           jobIDsRaw,
		RequiredTriggers: action.RequiredTriggers(triggerType, req.JobIDs),
		Persistent:       req.Persistent,
		IsRecovery:       req.IsRecovery,
	}
	if err := s.workflowActions.Create(c.Request.Context(), a); err != nil {
		return nil, err
	}
	s.publish(workflowID, "workflow_action", "create", string(triggerType))
	c.Status(http.StatusCreated)
	return a, nil
}

func (s *Server) listActions(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	filters := map[string]interface{}{"workflow_id": workflowID}
	return s.workflowActions.List(c.Request.Context(), parseListParams(c, filters))
}

func (s *Server) pendingActions(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var triggerTypes []model.ActionTriggerType
	if raw := c.Query("trigger_types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			triggerTypes = append(triggerTypes, model.ActionTriggerType(strings.TrimSpace(t)))
		}
	}
	pending, err := s.actions.GetPendingActions(c.Request.Context(), workflowID, triggerTypes)
	if err != nil {
		return nil, err
	}
	return gin.H{"items": pending}, nil
}

type claimActionReq struct {
	ComputeNodeID *int64 `json:"compute_node_id,omitempty"`
}

func (s *Server) claimAction(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	actionID, err := parseID(c, "aid")
	if err != nil {
		return nil, err
	}
	var req claimActionReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength != 0 {
		return nil, apperr.NewBadRequest(err.Error())
	}
	if err := s.actions.ClaimAction(c.Request.Context(), workflowID, actionID, req.ComputeNodeID); err != nil {
		return nil, err
	}
	s.publish(workflowID, "workflow_action", "claim", "")
	return gin.H{}, nil
}
