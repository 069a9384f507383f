package statemachine

import (
	"github.com/google/uuid"

	"github.com/cuemby/quarry/pkg/codec"
	"github.com/cuemby/quarry/pkg/storage"
	"github.com/cuemby/quarry/pkg/types"
)

// NewStateChange builds a pending journal entry with a fresh id.
func NewStateChange(objectID string, changeType types.ChangeType, createdAt uint64) types.StateChange {
	return types.StateChange{
		ID:         uuid.New().String(),
		ObjectID:   objectID,
		ChangeType: changeType,
		CreatedAt:  createdAt,
	}
}

// setNewStateChanges inserts journal entries as unprocessed.
func (sm *StateMachine) setNewStateChanges(txn *storage.Txn, changes []types.StateChange) error {
	for _, change := range changes {
		change.ProcessedAt = nil
		data, err := codec.Encode(change)
		if err != nil {
			return err
		}
		if err := txn.Put(storage.ColumnStateChanges, change.ID, data); err != nil {
			return dbErr(err, "writing state change %s", change.ID)
		}
	}
	return nil
}

// setProcessedStateChanges stamps processed_at on existing journal
// entries via read-modify-write. Re-marking an already processed change
// overwrites the timestamp.
func (sm *StateMachine) setProcessedStateChanges(txn *storage.Txn, changes []StateChangeProcessed) error {
	for _, processed := range changes {
		data, err := txn.Get(storage.ColumnStateChanges, processed.StateChangeID)
		if err != nil {
			return dbErr(err, "reading state change %s", processed.StateChangeID)
		}
		if data == nil {
			return notFoundErr("state change %s", processed.StateChangeID)
		}

		var change types.StateChange
		if err := codec.Decode(data, &change); err != nil {
			return err
		}
		processedAt := processed.ProcessedAt
		change.ProcessedAt = &processedAt

		updated, err := codec.Encode(change)
		if err != nil {
			return err
		}
		if err := txn.Put(storage.ColumnStateChanges, change.ID, updated); err != nil {
			return dbErr(err, "writing state change %s", change.ID)
		}
	}
	return nil
}
