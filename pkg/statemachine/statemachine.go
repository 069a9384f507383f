package statemachine

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/quarry/pkg/events"
	"github.com/cuemby/quarry/pkg/log"
	"github.com/cuemby/quarry/pkg/metrics"
	"github.com/cuemby/quarry/pkg/storage"
	"github.com/cuemby/quarry/pkg/types"
)

// StateMachine is the deterministic apply layer of the replicated log.
// Each request is persisted to the forward index in one transaction;
// the reverse indexes are mutated only after the commit succeeds.
//
// Apply is not safe for concurrent invocation: requests are applied
// sequentially in log order by one apply thread. Readers of the reverse
// state must be coordinated by the hosting replication layer.
type StateMachine struct {
	store   *storage.Store
	reverse *ReverseState
	broker  *events.Broker
	logger  zerolog.Logger
}

// New creates a state machine over an opened store. broker may be nil if
// no watchers need committed state changes.
func New(store *storage.Store, broker *events.Broker) *StateMachine {
	return &StateMachine{
		store:   store,
		reverse: NewReverseState(),
		broker:  broker,
		logger:  log.WithComponent("statemachine"),
	}
}

// Reverse returns the live reverse-index set.
func (sm *StateMachine) Reverse() *ReverseState {
	return sm.reverse
}

// Store returns the underlying column store.
func (sm *StateMachine) Store() *storage.Store {
	return sm.store
}

// Rebuild replaces the reverse indexes with a set derived from the
// persisted forward index. Called at startup, before the first Apply.
func (sm *StateMachine) Rebuild() error {
	reverse, err := Rebuild(sm.store)
	if err != nil {
		return err
	}
	sm.reverse = reverse
	sm.observeReverse()
	return nil
}

// Apply runs one request through the state machine: journal writes,
// payload writes, commit, then the in-memory reverse step. On any error
// the transaction is dropped and the reverse indexes are untouched.
func (sm *StateMachine) Apply(req *StateMachineUpdateRequest) error {
	err := sm.applyRequest(req)
	if err != nil {
		metrics.ApplyFailuresTotal.WithLabelValues(PayloadKind(req.Payload)).Inc()
		sm.logger.Error().
			Err(err).
			Str("payload", PayloadKind(req.Payload)).
			Msg("failed to apply request")
	}
	return err
}

func (sm *StateMachine) applyRequest(req *StateMachineUpdateRequest) error {
	timer := metrics.NewTimer()

	txn, err := sm.store.Begin()
	if err != nil {
		return dbErr(err, "beginning transaction")
	}
	defer txn.Rollback()

	if err := sm.setNewStateChanges(txn, req.NewStateChanges); err != nil {
		return err
	}
	if err := sm.setProcessedStateChanges(txn, req.StateChangesProcessed); err != nil {
		return err
	}

	var newlyAssigned map[string]types.StringSet

	switch payload := req.Payload.(type) {
	case CreateIndex:
		if err := sm.setIndex(txn, payload.Index, payload.ID); err != nil {
			return err
		}

	case CreateTasks:
		if err := sm.setTasks(txn, payload.Tasks); err != nil {
			return err
		}

	case AssignTask:
		newlyAssigned, err = sm.assignTasks(txn, payload.Assignments)
		if err != nil {
			return err
		}

	case UpdateTask:
		if err := sm.setTasks(txn, []types.Task{payload.Task}); err != nil {
			return err
		}
		if payload.MarkFinished && payload.ExecutorID != "" {
			existing, err := sm.getTaskAssignmentsForExecutor(txn, payload.ExecutorID)
			if err != nil {
				return err
			}
			existing.Remove(payload.Task.ID)
			if err := sm.setTaskAssignments(txn, map[string]types.StringSet{payload.ExecutorID: existing}); err != nil {
				return err
			}
		}
		if err := sm.setContent(txn, payload.ContentMetadata); err != nil {
			return err
		}

	case RegisterExecutor:
		if err := sm.setExecutor(txn, payload.Addr, payload.ExecutorID, payload.Extractor, payload.TsSecs); err != nil {
			return err
		}
		if err := sm.setExtractor(txn, payload.Extractor); err != nil {
			return err
		}

	case RemoveExecutor:
		// Compound case: the reverse step needs the extractor name read
		// out of the executor record and the freed task ids, so both
		// reads happen inside the transaction and the commit runs here.
		meta, err := sm.deleteExecutor(txn, payload.ExecutorID)
		if err != nil {
			return err
		}
		freedTaskIDs, err := sm.deleteTaskAssignmentsForExecutor(txn, payload.ExecutorID)
		if err != nil {
			return err
		}
		if err := txn.Commit(); err != nil {
			return &TransactionError{Msg: "committing remove executor", Err: err}
		}

		sm.reverse.apply(req, nil)
		sm.reverse.removeExecutor(meta, freedTaskIDs)
		sm.finishApply(req, timer)
		return nil

	case CreateContent:
		if err := sm.setContent(txn, payload.ContentMetadata); err != nil {
			return err
		}

	case CreateExtractionPolicy:
		if err := sm.setExtractionPolicy(txn, payload.ExtractionPolicy, payload.UpdatedStructuredDataSchema, payload.NewStructuredDataSchema); err != nil {
			return err
		}

	case SetContentExtractionPolicyMappings:
		if err := sm.setContentPoliciesAppliedOnContent(txn, payload.ContentExtractionPolicyMappings); err != nil {
			return err
		}

	case MarkExtractionPolicyAppliedOnContent:
		if err := sm.markExtractionPolicyAppliedOnContent(txn, payload.ContentID, payload.ExtractionPolicyName, payload.PolicyCompletionTime); err != nil {
			return err
		}

	case CreateNamespace:
		if err := sm.setNamespace(txn, payload.Name, payload.StructuredDataSchema); err != nil {
			return err
		}

	case MarkStateChangesProcessed:
		if err := sm.setProcessedStateChanges(txn, payload.StateChanges); err != nil {
			return err
		}

	default:
		// Unrecognized payloads are a no-op; the journal writes above
		// still commit.
	}

	if err := txn.Commit(); err != nil {
		return &TransactionError{Msg: "committing request", Err: err}
	}

	sm.reverse.apply(req, newlyAssigned)
	sm.finishApply(req, timer)
	return nil
}

// assignTasks performs the additive read-union-write per executor and
// returns the task ids that were actually new per executor, which is
// what the reverse step increments running counts by.
func (sm *StateMachine) assignTasks(txn *storage.Txn, assignments map[string]string) (map[string]types.StringSet, error) {
	grouped := map[string][]string{}
	for taskID, executorID := range assignments {
		grouped[executorID] = append(grouped[executorID], taskID)
	}

	executorIDs := make([]string, 0, len(grouped))
	for executorID := range grouped {
		executorIDs = append(executorIDs, executorID)
	}
	sort.Strings(executorIDs)

	newlyAssigned := make(map[string]types.StringSet, len(grouped))
	for _, executorID := range executorIDs {
		existing, err := sm.getTaskAssignmentsForExecutor(txn, executorID)
		if err != nil {
			return nil, err
		}
		newly := types.NewStringSet()
		for _, taskID := range grouped[executorID] {
			if !existing.Contains(taskID) {
				existing.Add(taskID)
				newly.Add(taskID)
			}
		}
		if err := sm.setTaskAssignments(txn, map[string]types.StringSet{executorID: existing}); err != nil {
			return nil, err
		}
		newlyAssigned[executorID] = newly
	}
	return newlyAssigned, nil
}

// finishApply publishes committed changes, refreshes gauges, and logs.
func (sm *StateMachine) finishApply(req *StateMachineUpdateRequest, timer *metrics.Timer) {
	if sm.broker != nil {
		for _, change := range req.NewStateChanges {
			sm.broker.Publish(change)
		}
	}
	sm.observeReverse()
	timer.ObserveDuration(metrics.ApplyDuration)

	sm.logger.Debug().
		Str("payload", PayloadKind(req.Payload)).
		Int("new_state_changes", len(req.NewStateChanges)).
		Int("state_changes_processed", len(req.StateChangesProcessed)).
		Msg("applied request")
}

func (sm *StateMachine) observeReverse() {
	metrics.UnassignedTasks.Set(float64(sm.reverse.UnassignedTasks.Len()))
	metrics.UnprocessedStateChanges.Set(float64(sm.reverse.UnprocessedStateChanges.Len()))
	metrics.RegisteredExecutors.Set(float64(len(sm.reverse.ExecutorRunningTaskCount)))

	running := 0
	for _, count := range sm.reverse.ExecutorRunningTaskCount {
		running += count
	}
	metrics.RunningTasks.Set(float64(running))
}
