package statemachine

import (
	"github.com/cuemby/quarry/pkg/types"
)

// StateMachineUpdateRequest is one entry of the replicated log: the state
// changes it emits, the state changes it marks processed, and the payload
// describing the mutation itself.
type StateMachineUpdateRequest struct {
	NewStateChanges       []types.StateChange    `json:"new_state_changes"`
	StateChangesProcessed []StateChangeProcessed `json:"state_changes_processed"`
	Payload               RequestPayload         `json:"-"`
}

// StateChangeProcessed records that a consumer finished handling a change
type StateChangeProcessed struct {
	StateChangeID string `json:"state_change_id"`
	ProcessedAt   uint64 `json:"processed_at"`
}

// RequestPayload is implemented by every request variant the state
// machine recognizes.
type RequestPayload interface {
	payloadKind() string
}

// CreateIndex registers a derived index under an id
type CreateIndex struct {
	Index     types.Index `json:"index"`
	Namespace string      `json:"namespace"`
	ID        string      `json:"id"`
}

// CreateTasks persists a batch of new extraction tasks
type CreateTasks struct {
	Tasks []types.Task `json:"tasks"`
}

// AssignTask assigns tasks to executors; keys are task ids, values are
// executor ids. Assignments are additive per executor.
type AssignTask struct {
	Assignments map[string]string `json:"assignments"`
}

// UpdateTask rewrites a task record, optionally marking it finished and
// releasing it from its executor, and persists any content the task
// produced.
type UpdateTask struct {
	Task            types.Task              `json:"task"`
	MarkFinished    bool                    `json:"mark_finished"`
	ExecutorID      string                  `json:"executor_id,omitempty"`
	ContentMetadata []types.ContentMetadata `json:"content_metadata"`
}

// RegisterExecutor records a running executor and upserts its extractor
type RegisterExecutor struct {
	Addr       string                     `json:"addr"`
	ExecutorID string                     `json:"executor_id"`
	Extractor  types.ExtractorDescription `json:"extractor"`
	TsSecs     uint64                     `json:"ts_secs"`
}

// RemoveExecutor deletes an executor and frees its assigned tasks
type RemoveExecutor struct {
	ExecutorID string `json:"executor_id"`
}

// CreateContent persists a batch of content metadata
type CreateContent struct {
	ContentMetadata []types.ContentMetadata `json:"content_metadata"`
}

// CreateExtractionPolicy persists a policy together with the namespace
// schema it introduces, and optionally a schema it updates
type CreateExtractionPolicy struct {
	ExtractionPolicy            types.ExtractionPolicy      `json:"extraction_policy"`
	UpdatedStructuredDataSchema *types.StructuredDataSchema `json:"updated_structured_data_schema,omitempty"`
	NewStructuredDataSchema     types.StructuredDataSchema  `json:"new_structured_data_schema"`
}

// SetContentExtractionPolicyMappings merges policy mappings into the
// applied-policies records for the referenced content ids
type SetContentExtractionPolicyMappings struct {
	ContentExtractionPolicyMappings []types.ContentExtractionPolicyMapping `json:"content_extraction_policy_mappings"`
}

// MarkExtractionPolicyAppliedOnContent records when a registered policy
// finished running against a piece of content
type MarkExtractionPolicyAppliedOnContent struct {
	ContentID            string `json:"content_id"`
	ExtractionPolicyName string `json:"extraction_policy_name"`
	PolicyCompletionTime uint64 `json:"policy_completion_time"`
}

// CreateNamespace persists a namespace marker and its initial schema.
// Re-creating a namespace is an idempotent upsert.
type CreateNamespace struct {
	Name                 string                     `json:"name"`
	StructuredDataSchema types.StructuredDataSchema `json:"structured_data_schema"`
}

// MarkStateChangesProcessed stamps processed_at on journal entries
type MarkStateChangesProcessed struct {
	StateChanges []StateChangeProcessed `json:"state_changes"`
}

func (CreateIndex) payloadKind() string                          { return "create_index" }
func (CreateTasks) payloadKind() string                          { return "create_tasks" }
func (AssignTask) payloadKind() string                           { return "assign_task" }
func (UpdateTask) payloadKind() string                           { return "update_task" }
func (RegisterExecutor) payloadKind() string                     { return "register_executor" }
func (RemoveExecutor) payloadKind() string                       { return "remove_executor" }
func (CreateContent) payloadKind() string                        { return "create_content" }
func (CreateExtractionPolicy) payloadKind() string               { return "create_extraction_policy" }
func (SetContentExtractionPolicyMappings) payloadKind() string   { return "set_content_extraction_policy_mappings" }
func (MarkExtractionPolicyAppliedOnContent) payloadKind() string { return "mark_extraction_policy_applied_on_content" }
func (CreateNamespace) payloadKind() string                      { return "create_namespace" }
func (MarkStateChangesProcessed) payloadKind() string            { return "mark_state_changes_processed" }

// PayloadKind returns the wire name of a payload variant, or "" for nil.
func PayloadKind(p RequestPayload) string {
	if p == nil {
		return ""
	}
	return p.payloadKind()
}
