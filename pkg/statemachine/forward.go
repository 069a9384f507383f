package statemachine

import (
	"sort"

	"github.com/cuemby/quarry/pkg/codec"
	"github.com/cuemby/quarry/pkg/storage"
	"github.com/cuemby/quarry/pkg/types"
)

// Forward-index writers. Each helper mutates an open transaction; nothing
// becomes visible until the dispatcher commits. A failed helper leaves
// partial writes in the transaction, which the dispatcher drops.

func (sm *StateMachine) setIndex(txn *storage.Txn, index types.Index, id string) error {
	data, err := codec.Encode(index)
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnIndexTable, id, data); err != nil {
		return dbErr(err, "writing index %s", id)
	}
	return nil
}

func (sm *StateMachine) setTasks(txn *storage.Txn, tasks []types.Task) error {
	for _, task := range tasks {
		data, err := codec.Encode(task)
		if err != nil {
			return err
		}
		if err := txn.Put(storage.ColumnTasks, task.ID, data); err != nil {
			return dbErr(err, "writing task %s", task.ID)
		}
	}
	return nil
}

// getTaskAssignmentsForExecutor returns the persisted assignment set for
// an executor, or an empty set if none exists yet.
func (sm *StateMachine) getTaskAssignmentsForExecutor(txn *storage.Txn, executorID string) (types.StringSet, error) {
	data, err := txn.Get(storage.ColumnTaskAssignments, executorID)
	if err != nil {
		return nil, dbErr(err, "reading task assignments for executor %s", executorID)
	}
	if data == nil {
		return types.NewStringSet(), nil
	}
	var tasks types.StringSet
	if err := codec.Decode(data, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// setTaskAssignments writes full assignment sets. Callers own the
// read-union-write cycle; this helper overwrites whatever is stored.
func (sm *StateMachine) setTaskAssignments(txn *storage.Txn, assignments map[string]types.StringSet) error {
	executorIDs := make([]string, 0, len(assignments))
	for executorID := range assignments {
		executorIDs = append(executorIDs, executorID)
	}
	sort.Strings(executorIDs)

	for _, executorID := range executorIDs {
		data, err := codec.Encode(assignments[executorID])
		if err != nil {
			return err
		}
		if err := txn.Put(storage.ColumnTaskAssignments, executorID, data); err != nil {
			return dbErr(err, "writing task assignments for executor %s", executorID)
		}
	}
	return nil
}

// deleteTaskAssignmentsForExecutor removes the executor's assignment set
// and returns the task ids it held.
func (sm *StateMachine) deleteTaskAssignmentsForExecutor(txn *storage.Txn, executorID string) ([]string, error) {
	data, err := txn.Get(storage.ColumnTaskAssignments, executorID)
	if err != nil {
		return nil, dbErr(err, "reading task assignments for executor %s", executorID)
	}

	var taskIDs []string
	if data != nil {
		var tasks types.StringSet
		if err := codec.Decode(data, &tasks); err != nil {
			return nil, err
		}
		taskIDs = tasks.Values()
	}

	if err := txn.Delete(storage.ColumnTaskAssignments, executorID); err != nil {
		return nil, dbErr(err, "deleting task assignments for executor %s", executorID)
	}
	return taskIDs, nil
}

func (sm *StateMachine) setContent(txn *storage.Txn, contents []types.ContentMetadata) error {
	for _, content := range contents {
		data, err := codec.Encode(content)
		if err != nil {
			return err
		}
		if err := txn.Put(storage.ColumnContentTable, content.ID, data); err != nil {
			return dbErr(err, "writing content %s", content.ID)
		}
	}
	return nil
}

func (sm *StateMachine) setExecutor(txn *storage.Txn, addr, executorID string, extractor types.ExtractorDescription, tsSecs uint64) error {
	data, err := codec.Encode(types.ExecutorMetadata{
		ID:        executorID,
		LastSeen:  tsSecs,
		Addr:      addr,
		Extractor: extractor,
	})
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnExecutors, executorID, data); err != nil {
		return dbErr(err, "writing executor %s", executorID)
	}
	return nil
}

// deleteExecutor reads the executor record out of the transaction before
// deleting it; the reverse step needs the extractor name it carries.
func (sm *StateMachine) deleteExecutor(txn *storage.Txn, executorID string) (types.ExecutorMetadata, error) {
	var meta types.ExecutorMetadata

	data, err := txn.Get(storage.ColumnExecutors, executorID)
	if err != nil {
		return meta, dbErr(err, "reading executor %s", executorID)
	}
	if data == nil {
		return meta, notFoundErr("executor %s", executorID)
	}
	if err := codec.Decode(data, &meta); err != nil {
		return meta, err
	}
	if err := txn.Delete(storage.ColumnExecutors, executorID); err != nil {
		return meta, dbErr(err, "deleting executor %s", executorID)
	}
	return meta, nil
}

func (sm *StateMachine) setExtractor(txn *storage.Txn, extractor types.ExtractorDescription) error {
	data, err := codec.Encode(extractor)
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnExtractors, extractor.Name, data); err != nil {
		return dbErr(err, "writing extractor %s", extractor.Name)
	}
	return nil
}

// setExtractionPolicy writes the policy, then upserts the schema it
// introduces and, if present, the schema it updates.
func (sm *StateMachine) setExtractionPolicy(txn *storage.Txn, policy types.ExtractionPolicy, updatedSchema *types.StructuredDataSchema, newSchema types.StructuredDataSchema) error {
	data, err := codec.Encode(policy)
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnExtractionPolicies, policy.ID, data); err != nil {
		return dbErr(err, "writing extraction policy %s", policy.ID)
	}
	if updatedSchema != nil {
		if err := sm.setSchema(txn, *updatedSchema); err != nil {
			return err
		}
	}
	return sm.setSchema(txn, newSchema)
}

func (sm *StateMachine) setNamespace(txn *storage.Txn, name string, schema types.StructuredDataSchema) error {
	data, err := codec.Encode(name)
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnNamespaces, name, data); err != nil {
		return dbErr(err, "writing namespace %s", name)
	}
	return sm.setSchema(txn, schema)
}

func (sm *StateMachine) setSchema(txn *storage.Txn, schema types.StructuredDataSchema) error {
	data, err := codec.Encode(schema)
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnStructuredDataSchemas, schema.ID, data); err != nil {
		return dbErr(err, "writing schema %s", schema.ID)
	}
	return nil
}

// setContentPoliciesAppliedOnContent merges incoming mappings into the
// stored applied-policies records: policy names are unioned, completion
// times are merged with later writes winning per key. Records for unseen
// content ids are synthesized empty before the merge.
func (sm *StateMachine) setContentPoliciesAppliedOnContent(txn *storage.Txn, mappings []types.ContentExtractionPolicyMapping) error {
	keys := make([]string, len(mappings))
	for i, m := range mappings {
		keys[i] = m.ContentID
	}
	values, err := txn.MultiGet(storage.ColumnExtractionPoliciesAppliedOnContent, keys)
	if err != nil {
		return dbErr(err, "reading applied policies for content")
	}

	updated := make([]types.ContentExtractionPolicyMapping, 0, len(mappings))
	for i, value := range values {
		existing := types.ContentExtractionPolicyMapping{
			ContentID:              keys[i],
			ExtractionPolicyNames:  types.NewStringSet(),
			TimeOfPolicyCompletion: map[string]uint64{},
		}
		if value != nil {
			if err := codec.Decode(value, &existing); err != nil {
				return err
			}
		}

		existing.ExtractionPolicyNames.Union(mappings[i].ExtractionPolicyNames)
		for name, ts := range mappings[i].TimeOfPolicyCompletion {
			existing.TimeOfPolicyCompletion[name] = ts
		}
		updated = append(updated, existing)
	}

	for _, mapping := range updated {
		data, err := codec.Encode(mapping)
		if err != nil {
			return err
		}
		if err := txn.Put(storage.ColumnExtractionPoliciesAppliedOnContent, mapping.ContentID, data); err != nil {
			return dbErr(err, "writing applied policies for content %s", mapping.ContentID)
		}
	}
	return nil
}

// markExtractionPolicyAppliedOnContent records the completion time of a
// policy that must already be registered against the content.
func (sm *StateMachine) markExtractionPolicyAppliedOnContent(txn *storage.Txn, contentID, policyName string, completionTime uint64) error {
	data, err := txn.Get(storage.ColumnExtractionPoliciesAppliedOnContent, contentID)
	if err != nil {
		return dbErr(err, "reading applied policies for content %s", contentID)
	}
	if data == nil {
		return notFoundErr("applied policies for content %s", contentID)
	}

	var mapping types.ContentExtractionPolicyMapping
	if err := codec.Decode(data, &mapping); err != nil {
		return err
	}
	if !mapping.ExtractionPolicyNames.Contains(policyName) {
		return ErrPolicyNotRegistered
	}

	if mapping.TimeOfPolicyCompletion == nil {
		mapping.TimeOfPolicyCompletion = map[string]uint64{}
	}
	mapping.TimeOfPolicyCompletion[policyName] = completionTime

	updated, err := codec.Encode(mapping)
	if err != nil {
		return err
	}
	if err := txn.Put(storage.ColumnExtractionPoliciesAppliedOnContent, contentID, updated); err != nil {
		return dbErr(err, "writing applied policies for content %s", contentID)
	}
	return nil
}
