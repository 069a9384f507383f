package replicator

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cuemby/quarry/pkg/metrics"
	"github.com/cuemby/quarry/pkg/statemachine"
	"github.com/cuemby/quarry/pkg/storage"
)

// FSM adapts the state machine to hashicorp/raft. Apply decodes one log
// entry into a StateMachineUpdateRequest and drives the dispatcher;
// Snapshot and Restore serialize the forward index, from which the
// reverse indexes are rebuilt.
type FSM struct {
	mu sync.RWMutex
	sm *statemachine.StateMachine
}

// NewFSM creates a new FSM over a state machine
func NewFSM(sm *statemachine.StateMachine) *FSM {
	return &FSM{sm: sm}
}

// Apply applies a committed Raft log entry to the state machine
func (f *FSM) Apply(entry *raft.Log) interface{} {
	req, err := DecodeRequest(entry.Data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.sm.Apply(req); err != nil {
		return err
	}
	metrics.RaftAppliedIndex.Set(float64(entry.Index))
	return nil
}

// Snapshot captures the forward index. The reverse indexes are derived
// state and are not persisted.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snapshot := &Snapshot{Columns: map[string]map[string]json.RawMessage{}}
	err := f.sm.Store().View(func(txn *storage.Txn) error {
		for _, col := range storage.Columns {
			records := map[string]json.RawMessage{}
			err := txn.ForEach(col, func(key string, value []byte) error {
				record := make(json.RawMessage, len(value))
				copy(record, value)
				records[key] = record
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to snapshot column %s: %w", col, err)
			}
			snapshot.Columns[string(col)] = records
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Restore replaces the forward index with a snapshot's contents and
// rebuilds the reverse indexes from it.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	txn, err := f.sm.Store().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin restore transaction: %w", err)
	}
	defer txn.Rollback()

	for _, col := range storage.Columns {
		var keys []string
		if err := txn.ForEach(col, func(key string, value []byte) error {
			keys = append(keys, key)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to scan column %s: %w", col, err)
		}
		for _, key := range keys {
			if err := txn.Delete(col, key); err != nil {
				return fmt.Errorf("failed to clear column %s: %w", col, err)
			}
		}

		for key, record := range snapshot.Columns[string(col)] {
			if err := txn.Put(col, key, record); err != nil {
				return fmt.Errorf("failed to restore column %s: %w", col, err)
			}
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore: %w", err)
	}

	return f.sm.Rebuild()
}

// Snapshot is a point-in-time copy of every forward-index column
type Snapshot struct {
	Columns map[string]map[string]json.RawMessage `json:"columns"`
}

// Persist writes the snapshot to the given SnapshotSink
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases the snapshot resources
func (s *Snapshot) Release() {}
