package statemachine

import (
	"github.com/cuemby/quarry/pkg/codec"
	"github.com/cuemby/quarry/pkg/storage"
	"github.com/cuemby/quarry/pkg/types"
)

// ReverseState holds the in-memory reverse indexes derived from the
// forward index. Only the apply thread mutates it, and only after a
// successful commit; readers must be coordinated by the hosting layer.
type ReverseState struct {
	// Tasks that are currently unassigned
	UnassignedTasks types.StringSet `json:"unassigned_tasks"`

	// State changes that have not been processed yet
	UnprocessedStateChanges types.StringSet `json:"unprocessed_state_changes"`

	// Namespace -> content ids
	ContentNamespaceTable map[string]types.StringSet `json:"content_namespace_table"`

	// Namespace -> extraction policy ids
	ExtractionPoliciesTable map[string]types.StringSet `json:"extraction_policies_table"`

	// Extractor name -> executor ids
	ExtractorExecutorsTable map[string]types.StringSet `json:"extractor_executors_table"`

	// Namespace -> index ids
	NamespaceIndexTable map[string]types.StringSet `json:"namespace_index_table"`

	// Extractor name -> unfinished task ids
	UnfinishedTasksByExtractor map[string]types.StringSet `json:"unfinished_tasks_by_extractor"`

	// Executor id -> number of running tasks
	ExecutorRunningTaskCount map[string]int `json:"executor_running_task_count"`

	// Namespace -> schema ids
	SchemasByNamespace map[string]types.StringSet `json:"schemas_by_namespace"`
}

// NewReverseState returns an empty reverse-index set.
func NewReverseState() *ReverseState {
	return &ReverseState{
		UnassignedTasks:            types.NewStringSet(),
		UnprocessedStateChanges:    types.NewStringSet(),
		ContentNamespaceTable:      map[string]types.StringSet{},
		ExtractionPoliciesTable:    map[string]types.StringSet{},
		ExtractorExecutorsTable:    map[string]types.StringSet{},
		NamespaceIndexTable:        map[string]types.StringSet{},
		UnfinishedTasksByExtractor: map[string]types.StringSet{},
		ExecutorRunningTaskCount:   map[string]int{},
		SchemasByNamespace:         map[string]types.StringSet{},
	}
}

// entry returns the set under key, creating it if absent. Removal paths
// use it too, so a drained set stays present as an empty entry.
func entry(m map[string]types.StringSet, key string) types.StringSet {
	s, ok := m[key]
	if !ok {
		s = types.NewStringSet()
		m[key] = s
	}
	return s
}

func incrementRunningTaskCount(counts map[string]int, executorID string) {
	counts[executorID]++
}

// decrementRunningTaskCount never drops below zero and never resurrects
// a removed executor's entry.
func decrementRunningTaskCount(counts map[string]int, executorID string) {
	if count, ok := counts[executorID]; ok && count > 0 {
		counts[executorID] = count - 1
	}
}

// apply mutates the reverse indexes for a committed request.
// newlyAssigned carries, per executor, the task ids the forward pass
// actually added to the persisted assignment set; re-assigning an
// already-assigned pair therefore does not inflate the running count.
func (r *ReverseState) apply(req *StateMachineUpdateRequest, newlyAssigned map[string]types.StringSet) {
	for _, change := range req.NewStateChanges {
		r.UnprocessedStateChanges.Add(change.ID)
	}
	for _, processed := range req.StateChangesProcessed {
		r.UnprocessedStateChanges.Remove(processed.StateChangeID)
	}

	switch payload := req.Payload.(type) {
	case RegisterExecutor:
		entry(r.ExtractorExecutorsTable, payload.Extractor.Name).Add(payload.ExecutorID)
		r.ExecutorRunningTaskCount[payload.ExecutorID] = 0

	case CreateTasks:
		for _, task := range payload.Tasks {
			r.UnassignedTasks.Add(task.ID)
			entry(r.UnfinishedTasksByExtractor, task.Extractor).Add(task.ID)
		}

	case AssignTask:
		for taskID := range payload.Assignments {
			r.UnassignedTasks.Remove(taskID)
		}
		for executorID, taskIDs := range newlyAssigned {
			for range taskIDs {
				incrementRunningTaskCount(r.ExecutorRunningTaskCount, executorID)
			}
		}

	case UpdateTask:
		if payload.MarkFinished {
			r.UnassignedTasks.Remove(payload.Task.ID)
			entry(r.UnfinishedTasksByExtractor, payload.Task.Extractor).Remove(payload.Task.ID)
			if payload.ExecutorID != "" {
				decrementRunningTaskCount(r.ExecutorRunningTaskCount, payload.ExecutorID)
			}
		}
		for _, content := range payload.ContentMetadata {
			entry(r.ContentNamespaceTable, content.Namespace).Add(content.ID)
		}

	case CreateContent:
		for _, content := range payload.ContentMetadata {
			entry(r.ContentNamespaceTable, content.Namespace).Add(content.ID)
		}

	case CreateExtractionPolicy:
		entry(r.ExtractionPoliciesTable, payload.ExtractionPolicy.Namespace).Add(payload.ExtractionPolicy.ID)
		if payload.UpdatedStructuredDataSchema != nil {
			r.addSchema(*payload.UpdatedStructuredDataSchema)
		}
		r.addSchema(payload.NewStructuredDataSchema)

	case CreateNamespace:
		r.addSchema(payload.StructuredDataSchema)

	case CreateIndex:
		entry(r.NamespaceIndexTable, payload.Namespace).Add(payload.ID)

	case MarkStateChangesProcessed:
		for _, processed := range payload.StateChanges {
			r.UnprocessedStateChanges.Remove(processed.StateChangeID)
		}
	}
}

// removeExecutor is the bespoke reverse step for RemoveExecutor, fed with
// the records the forward pass read before deleting them.
func (r *ReverseState) removeExecutor(meta types.ExecutorMetadata, freedTaskIDs []string) {
	entry(r.ExtractorExecutorsTable, meta.Extractor.Name).Remove(meta.ID)
	for _, taskID := range freedTaskIDs {
		r.UnassignedTasks.Add(taskID)
	}
	delete(r.ExecutorRunningTaskCount, meta.ID)
}

func (r *ReverseState) addSchema(schema types.StructuredDataSchema) {
	entry(r.SchemasByNamespace, schema.Namespace).Add(schema.ID)
}

// Rebuild derives a fresh reverse-index set from the persisted forward
// index. Replaying the live apply path over the same committed requests
// yields the same state, so a crash between commit and apply is repaired
// at startup by swapping in the rebuilt set.
func Rebuild(store *storage.Store) (*ReverseState, error) {
	r := NewReverseState()
	err := store.View(func(txn *storage.Txn) error {
		if err := txn.ForEach(storage.ColumnStateChanges, func(key string, value []byte) error {
			var change types.StateChange
			if err := codec.Decode(value, &change); err != nil {
				return err
			}
			if change.ProcessedAt == nil {
				r.UnprocessedStateChanges.Add(change.ID)
			}
			return nil
		}); err != nil {
			return err
		}

		// Known extractors seed empty entries so a drained table matches
		// the live apply path, which leaves empty sets behind on removal.
		if err := txn.ForEach(storage.ColumnExtractors, func(key string, value []byte) error {
			entry(r.ExtractorExecutorsTable, key)
			return nil
		}); err != nil {
			return err
		}

		if err := txn.ForEach(storage.ColumnExecutors, func(key string, value []byte) error {
			var meta types.ExecutorMetadata
			if err := codec.Decode(value, &meta); err != nil {
				return err
			}
			entry(r.ExtractorExecutorsTable, meta.Extractor.Name).Add(meta.ID)
			r.ExecutorRunningTaskCount[meta.ID] = 0
			return nil
		}); err != nil {
			return err
		}

		assigned := types.NewStringSet()
		if err := txn.ForEach(storage.ColumnTaskAssignments, func(key string, value []byte) error {
			var tasks types.StringSet
			if err := codec.Decode(value, &tasks); err != nil {
				return err
			}
			r.ExecutorRunningTaskCount[key] = tasks.Len()
			assigned.Union(tasks)
			return nil
		}); err != nil {
			return err
		}

		if err := txn.ForEach(storage.ColumnTasks, func(key string, value []byte) error {
			var task types.Task
			if err := codec.Decode(value, &task); err != nil {
				return err
			}
			unfinished := entry(r.UnfinishedTasksByExtractor, task.Extractor)
			if task.Outcome.Terminal() {
				return nil
			}
			unfinished.Add(task.ID)
			if !assigned.Contains(task.ID) {
				r.UnassignedTasks.Add(task.ID)
			}
			return nil
		}); err != nil {
			return err
		}

		if err := txn.ForEach(storage.ColumnContentTable, func(key string, value []byte) error {
			var content types.ContentMetadata
			if err := codec.Decode(value, &content); err != nil {
				return err
			}
			entry(r.ContentNamespaceTable, content.Namespace).Add(content.ID)
			return nil
		}); err != nil {
			return err
		}

		if err := txn.ForEach(storage.ColumnExtractionPolicies, func(key string, value []byte) error {
			var policy types.ExtractionPolicy
			if err := codec.Decode(value, &policy); err != nil {
				return err
			}
			entry(r.ExtractionPoliciesTable, policy.Namespace).Add(policy.ID)
			return nil
		}); err != nil {
			return err
		}

		if err := txn.ForEach(storage.ColumnIndexTable, func(key string, value []byte) error {
			var index types.Index
			if err := codec.Decode(value, &index); err != nil {
				return err
			}
			entry(r.NamespaceIndexTable, index.Namespace).Add(key)
			return nil
		}); err != nil {
			return err
		}

		return txn.ForEach(storage.ColumnStructuredDataSchemas, func(key string, value []byte) error {
			var schema types.StructuredDataSchema
			if err := codec.Decode(value, &schema); err != nil {
				return err
			}
			r.addSchema(schema)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
