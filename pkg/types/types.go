package types

// TaskOutcome represents the recorded result of an extraction task
type TaskOutcome string

const (
	TaskOutcomeUnknown TaskOutcome = "unknown"
	TaskOutcomeSuccess TaskOutcome = "success"
	TaskOutcomeFailure TaskOutcome = "failure"
)

// Terminal reports whether the outcome marks the task as finished.
func (o TaskOutcome) Terminal() bool {
	return o == TaskOutcomeSuccess || o == TaskOutcomeFailure
}

// Task represents one unit of extraction work against a piece of content
type Task struct {
	ID                      string            `json:"id"`
	Extractor               string            `json:"extractor"`
	ExtractionPolicy        string            `json:"extraction_policy"`
	Namespace               string            `json:"namespace"`
	ContentID               string            `json:"content_id"`
	InputParams             map[string]string `json:"input_params,omitempty"`
	OutputIndexTableMapping map[string]string `json:"output_index_table_mapping,omitempty"`
	Outcome                 TaskOutcome       `json:"outcome"`
}

// ExtractorDescription describes a worker type: what content it accepts
// and what it produces
type ExtractorDescription struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	InputMimeTypes []string          `json:"input_mime_types"`
	InputParams    map[string]string `json:"input_params,omitempty"`
	Outputs        map[string]string `json:"outputs,omitempty"`
}

// ExecutorMetadata represents a running extractor instance
type ExecutorMetadata struct {
	ID        string               `json:"id"`
	LastSeen  uint64               `json:"last_seen"`
	Addr      string               `json:"addr"`
	Extractor ExtractorDescription `json:"extractor"`
}

// ContentMetadata describes a piece of content stored in a namespace.
// Payload bytes live in blob storage; only the metadata is tracked here.
type ContentMetadata struct {
	ID          string            `json:"id"`
	ParentID    string            `json:"parent_id,omitempty"`
	Namespace   string            `json:"namespace"`
	Name        string            `json:"name"`
	ContentType string            `json:"content_type"`
	Labels      map[string]string `json:"labels,omitempty"`
	StorageURL  string            `json:"storage_url"`
	Source      string            `json:"source,omitempty"`
	Size        uint64            `json:"size"`
	CreatedAt   uint64            `json:"created_at"`
}

// ExtractionPolicy binds an extractor to a namespace, optionally filtered
type ExtractionPolicy struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Namespace     string            `json:"namespace"`
	Extractor     string            `json:"extractor"`
	Filters       map[string]string `json:"filters,omitempty"`
	InputParams   map[string]string `json:"input_params,omitempty"`
	ContentSource string            `json:"content_source,omitempty"`
}

// StructuredDataSchema is the shape of structured records an extractor
// emits into a namespace
type StructuredDataSchema struct {
	ID        string            `json:"id"`
	Namespace string            `json:"namespace"`
	Columns   map[string]string `json:"columns"`
}

// Index describes a derived index populated from extracted content
type Index struct {
	Name             string `json:"name"`
	Namespace        string `json:"namespace"`
	TableName        string `json:"table_name"`
	Schema           string `json:"schema"`
	Extractor        string `json:"extractor"`
	ExtractionPolicy string `json:"extraction_policy"`
}

// ChangeType identifies the kind of a state change
type ChangeType string

const (
	ChangeTypeNewContent          ChangeType = "content.created"
	ChangeTypeNewExtractionPolicy ChangeType = "policy.created"
	ChangeTypeExecutorAdded       ChangeType = "executor.added"
	ChangeTypeExecutorRemoved     ChangeType = "executor.removed"
	ChangeTypeTaskCreated         ChangeType = "task.created"
	ChangeTypeTaskCompleted       ChangeType = "task.completed"
)

// StateChange is a domain event recorded in the journal and consumed by
// downstream schedulers and watchers. ProcessedAt is nil until a consumer
// marks the change processed.
type StateChange struct {
	ID          string     `json:"id"`
	ObjectID    string     `json:"object_id"`
	ChangeType  ChangeType `json:"change_type"`
	CreatedAt   uint64     `json:"created_at"`
	ProcessedAt *uint64    `json:"processed_at,omitempty"`
}

// ContentExtractionPolicyMapping tracks which policies have been applied
// to a piece of content, and when each completed
type ContentExtractionPolicyMapping struct {
	ContentID              string            `json:"content_id"`
	ExtractionPolicyNames  StringSet         `json:"extraction_policy_names"`
	TimeOfPolicyCompletion map[string]uint64 `json:"time_of_policy_completion"`
}
