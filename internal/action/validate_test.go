package action

import (
	"testing"

	"github.com/NREL/torc/internal/apperr"
	"github.com/NREL/torc/internal/model"
)

func TestValidateConfigRunCommands(t *testing.T) {
	ok := map[string]interface{}{"commands": []interface{}{"echo hi", "echo bye"}}
	if err := ValidateConfig(model.ActionRunCommands, ok); err != nil {
		t.Errorf("expected valid run_commands config to pass, got %v", err)
	}

	bad := map[string]interface{}{"commands": []interface{}{}}
	if err := ValidateConfig(model.ActionRunCommands, bad); err == nil {
		t.Error("expected empty commands array to be rejected")
	}

	extraKey := map[string]interface{}{"commands": []interface{}{"echo hi"}, "extra": "nope"}
	if err := ValidateConfig(model.ActionRunCommands, extraKey); err == nil {
		t.Error("expected unknown extra key to be rejected")
	}

	wrongType := map[string]interface{}{"commands": []interface{}{1, 2}}
	if err := ValidateConfig(model.ActionRunCommands, wrongType); err == nil {
		t.Error("expected non-string commands entries to be rejected")
	}
}

func TestValidateConfigScheduleNodes(t *testing.T) {
	ok := map[string]interface{}{"scheduler_id": float64(1), "num_allocations": float64(3), "start_one_worker_per_node": true}
	if err := ValidateConfig(model.ActionScheduleNodes, ok); err != nil {
		t.Errorf("expected valid schedule_nodes config to pass, got %v", err)
	}

	unknownKey := map[string]interface{}{"bogus": "value"}
	if err := ValidateConfig(model.ActionScheduleNodes, unknownKey); err == nil {
		t.Error("expected unknown key to be rejected")
	}

	wrongType := map[string]interface{}{"scheduler_id": "not-a-number"}
	if err := ValidateConfig(model.ActionScheduleNodes, wrongType); err == nil {
		t.Error("expected wrong-typed value to be rejected")
	}
}

func TestValidateConfigUnknownActionType(t *testing.T) {
	err := ValidateConfig(model.ActionType("bogus"), map[string]interface{}{})
	if err == nil {
		t.Fatal("expected unknown action_type to be rejected")
	}
	if apperr.HTTPStatus(err) != 422 {
		t.Errorf("expected an UnprocessableContent (422) error, got %v", err)
	}
}

func TestRequiredTriggers(t *testing.T) {
	if got := RequiredTriggers(model.TriggerOnJobsComplete, []int64{1, 2, 3}); got != 3 {
		t.Errorf("RequiredTriggers with 3 job ids = %d, want 3", got)
	}
	if got := RequiredTriggers(model.TriggerOnJobsComplete, nil); got != 1 {
		t.Errorf("RequiredTriggers with no job ids = %d, want 1", got)
	}
	if got := RequiredTriggers(model.TriggerOnWorkflowStart, nil); got != 1 {
		t.Errorf("RequiredTriggers for workflow trigger = %d, want 1", got)
	}
}

func TestDecodeConfigRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodeConfig("not json"); err == nil {
		t.Error("expected invalid JSON to be rejected")
	}
	m, err := DecodeConfig(`{"commands":["echo hi"]}`)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if _, ok := m["commands"]; !ok {
		t.Error("expected decoded map to contain commands key")
	}
}
