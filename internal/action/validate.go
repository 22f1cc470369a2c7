// Package action implements the action engine of spec.md §4.6:
// config validation, required-triggers computation,
// check_and_trigger_actions, count_jobs_in_satisfied_state,
// get_pending_actions, claim_action, and
// reset_actions_for_reinitialize. Grounded on
// original_source/src/server/api/workflow_actions.rs's
// validate_action_config/check_and_trigger_actions/claim_action, in
// the teacher's facade + apperr idiom.
package action

import (
	"encoding/json"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

// ValidateConfig checks an action_config payload against the schema
// documented for actionType (spec.md §4.6). config must already be
// decoded into a generic map.
func ValidateConfig(actionType model.ActionType, config map[string]interface{}) error {
	switch actionType {
	case model.ActionRunCommands:
		return validateRunCommands(config)
	case model.ActionScheduleNodes:
		return validateScheduleNodes(config)
	default:
		return apperr.NewUnprocessableContent("unknown action_type")
	}
}

func validateRunCommands(config map[string]interface{}) error {
	if len(config) != 1 {
		return apperr.NewUnprocessableField("run_commands config must contain exactly the \"commands\" key", "action_config", config)
	}
	raw, ok := config["commands"]
	if !ok {
		return apperr.NewUnprocessableField("run_commands config must contain \"commands\"", "action_config", config)
	}
	arr, ok := raw.([]interface{})
	if !ok || len(arr) == 0 {
		return apperr.NewUnprocessableField("commands must be a non-empty array of strings", "commands", raw)
	}
	for _, c := range arr {
		if _, ok := c.(string); !ok {
			return apperr.NewUnprocessableField("commands must be an array of strings", "commands", raw)
		}
	}
	return nil
}

var scheduleNodesAllowedKeys = map[string]string{
	"scheduler_id":              "number",
	"scheduler_type":            "string",
	"num_allocations":           "number",
	"start_one_worker_per_node": "bool",
	"max_parallel_jobs":         "number",
}

func validateScheduleNodes(config map[string]interface{}) error {
	for key, val := range config {
		kind, allowed := scheduleNodesAllowedKeys[key]
		if !allowed {
			return apperr.NewUnprocessableField("unknown key in schedule_nodes config", key, val)
		}
		if !matchesKind(val, kind) {
			return apperr.NewUnprocessableField("wrong type for schedule_nodes config key", key, val)
		}
	}
	return nil
}

func matchesKind(val interface{}, kind string) bool {
	switch kind {
	case "number":
		_, ok := val.(float64)
		return ok
	case "string":
		_, ok := val.(string)
		return ok
	case "bool":
		_, ok := val.(bool)
		return ok
	default:
		return false
	}
}

// RequiredTriggers computes required_triggers at action-creation time
// (spec.md §4.6): |job_ids| for job-based trigger types when job IDs
// are supplied, else 1.
func RequiredTriggers(triggerType model.ActionTriggerType, jobIDs []int64) int {
	switch triggerType {
	case model.TriggerOnJobsReady, model.TriggerOnJobsComplete:
		if len(jobIDs) > 0 {
			return len(jobIDs)
		}
		return 1
	default:
		return 1
	}
}

// DecodeConfig is a small helper so callers can pass a raw JSON
// action_config string through ValidateConfig.
func DecodeConfig(raw string) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, apperr.NewBadRequest("action_config must be a JSON object")
	}
	return m, nil
}
