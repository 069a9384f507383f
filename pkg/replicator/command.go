package replicator

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/quarry/pkg/statemachine"
	"github.com/cuemby/quarry/pkg/types"
)

// Command is the wire format of one replicated log entry. Op selects the
// payload variant; Data carries the variant's fields.
type Command struct {
	Op                    string                              `json:"op"`
	NewStateChanges       []types.StateChange                 `json:"new_state_changes,omitempty"`
	StateChangesProcessed []statemachine.StateChangeProcessed `json:"state_changes_processed,omitempty"`
	Data                  json.RawMessage                     `json:"data,omitempty"`
}

// EncodeRequest serializes a request into a log entry.
func EncodeRequest(req *statemachine.StateMachineUpdateRequest) ([]byte, error) {
	cmd := Command{
		Op:                    statemachine.PayloadKind(req.Payload),
		NewStateChanges:       req.NewStateChanges,
		StateChangesProcessed: req.StateChangesProcessed,
	}
	if req.Payload != nil {
		data, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		cmd.Data = data
	}
	return json.Marshal(cmd)
}

// DecodeRequest deserializes a log entry back into a request. Unknown
// ops decode with a nil payload, which the state machine treats as a
// no-op beyond the journal writes.
func DecodeRequest(data []byte) (*statemachine.StateMachineUpdateRequest, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}

	req := &statemachine.StateMachineUpdateRequest{
		NewStateChanges:       cmd.NewStateChanges,
		StateChangesProcessed: cmd.StateChangesProcessed,
	}

	payload, err := decodePayload(cmd.Op, cmd.Data)
	if err != nil {
		return nil, err
	}
	req.Payload = payload
	return req, nil
}

func decodePayload(op string, data json.RawMessage) (statemachine.RequestPayload, error) {
	if op == "" {
		return nil, nil
	}

	var payload statemachine.RequestPayload
	switch op {
	case "create_index":
		payload = &statemachine.CreateIndex{}
	case "create_tasks":
		payload = &statemachine.CreateTasks{}
	case "assign_task":
		payload = &statemachine.AssignTask{}
	case "update_task":
		payload = &statemachine.UpdateTask{}
	case "register_executor":
		payload = &statemachine.RegisterExecutor{}
	case "remove_executor":
		payload = &statemachine.RemoveExecutor{}
	case "create_content":
		payload = &statemachine.CreateContent{}
	case "create_extraction_policy":
		payload = &statemachine.CreateExtractionPolicy{}
	case "set_content_extraction_policy_mappings":
		payload = &statemachine.SetContentExtractionPolicyMappings{}
	case "mark_extraction_policy_applied_on_content":
		payload = &statemachine.MarkExtractionPolicyAppliedOnContent{}
	case "create_namespace":
		payload = &statemachine.CreateNamespace{}
	case "mark_state_changes_processed":
		payload = &statemachine.MarkStateChangesProcessed{}
	default:
		// Forward compatibility: an op added by a newer version applies
		// as a journal-only request on this replica.
		return nil, nil
	}

	if data == nil {
		return nil, fmt.Errorf("command %s missing data", op)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", op, err)
	}
	return deref(payload), nil
}

// deref converts the pointer used for unmarshaling back to the value
// form the state machine dispatches on.
func deref(payload statemachine.RequestPayload) statemachine.RequestPayload {
	switch p := payload.(type) {
	case *statemachine.CreateIndex:
		return *p
	case *statemachine.CreateTasks:
		return *p
	case *statemachine.AssignTask:
		return *p
	case *statemachine.UpdateTask:
		return *p
	case *statemachine.RegisterExecutor:
		return *p
	case *statemachine.RemoveExecutor:
		return *p
	case *statemachine.CreateContent:
		return *p
	case *statemachine.CreateExtractionPolicy:
		return *p
	case *statemachine.SetContentExtractionPolicyMappings:
		return *p
	case *statemachine.MarkExtractionPolicyAppliedOnContent:
		return *p
	case *statemachine.CreateNamespace:
		return *p
	case *statemachine.MarkStateChangesProcessed:
		return *p
	default:
		return payload
	}
}
