package replicator

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/quarry/pkg/log"
	"github.com/cuemby/quarry/pkg/statemachine"
	"github.com/cuemby/quarry/pkg/storage"
	"github.com/cuemby/quarry/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

func newTestFSM(t *testing.T) *FSM {
	t.Helper()
	store, err := storage.Open(storage.Config{
		Path:            filepath.Join(t.TempDir(), "state.db"),
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewFSM(statemachine.New(store, nil))
}

func TestEncodeDecodeRequest(t *testing.T) {
	req := &statemachine.StateMachineUpdateRequest{
		NewStateChanges: []types.StateChange{
			{ID: "SC1", ObjectID: "E1", ChangeType: types.ChangeTypeExecutorAdded, CreatedAt: 100},
		},
		StateChangesProcessed: []statemachine.StateChangeProcessed{
			{StateChangeID: "SC0", ProcessedAt: 99},
		},
		Payload: statemachine.RegisterExecutor{
			Addr:       "1.2.3.4:9000",
			ExecutorID: "E1",
			Extractor:  types.ExtractorDescription{Name: "X"},
			TsSecs:     100,
		},
	}

	data, err := EncodeRequest(req)
	require.NoError(t, err)

	decoded, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestDecodeRequestUnknownOp(t *testing.T) {
	decoded, err := DecodeRequest([]byte(`{"op":"future_op","data":{}}`))
	require.NoError(t, err)
	assert.Nil(t, decoded.Payload)
}

func TestFSMApplyDrivesStateMachine(t *testing.T) {
	fsm := newTestFSM(t)

	data, err := EncodeRequest(&statemachine.StateMachineUpdateRequest{
		Payload: statemachine.RegisterExecutor{
			Addr:       "1.2.3.4:9000",
			ExecutorID: "E1",
			Extractor:  types.ExtractorDescription{Name: "X"},
			TsSecs:     100,
		},
	})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Index: 1, Data: data})
	assert.Nil(t, result)
	assert.Equal(t, 0, fsm.sm.Reverse().ExecutorRunningTaskCount["E1"])
}

func TestFSMApplyReturnsStateMachineError(t *testing.T) {
	fsm := newTestFSM(t)

	data, err := EncodeRequest(&statemachine.StateMachineUpdateRequest{
		Payload: statemachine.RemoveExecutor{ExecutorID: "ghost"},
	})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Index: 1, Data: data})
	applyErr, ok := result.(error)
	require.True(t, ok)
	assert.Error(t, applyErr)
}

type memorySink struct {
	bytes.Buffer
}

func (s *memorySink) ID() string    { return "test" }
func (s *memorySink) Cancel() error { return nil }
func (s *memorySink) Close() error  { return nil }

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	source := newTestFSM(t)

	requests := []*statemachine.StateMachineUpdateRequest{
		{
			NewStateChanges: []types.StateChange{
				{ID: "SC1", ObjectID: "E1", ChangeType: types.ChangeTypeExecutorAdded, CreatedAt: 100},
			},
			Payload: statemachine.RegisterExecutor{
				Addr: "1.2.3.4:9000", ExecutorID: "E1",
				Extractor: types.ExtractorDescription{Name: "X"}, TsSecs: 100,
			},
		},
		{
			Payload: statemachine.CreateTasks{Tasks: []types.Task{
				{ID: "T1", Extractor: "X", Namespace: "ns", Outcome: types.TaskOutcomeUnknown},
			}},
		},
		{
			Payload: statemachine.AssignTask{Assignments: map[string]string{"T1": "E1"}},
		},
	}
	for _, req := range requests {
		data, err := EncodeRequest(req)
		require.NoError(t, err)
		require.Nil(t, source.Apply(&raft.Log{Index: 1, Data: data}))
	}

	snapshot, err := source.Snapshot()
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, snapshot.Persist(sink))
	snapshot.Release()

	restored := newTestFSM(t)
	require.NoError(t, restored.Restore(io.NopCloser(bytes.NewReader(sink.Bytes()))))

	assert.Equal(t, source.sm.Reverse(), restored.sm.Reverse())
	assert.Equal(t, 1, restored.sm.Reverse().ExecutorRunningTaskCount["E1"])
	assert.True(t, restored.sm.Reverse().UnprocessedStateChanges.Contains("SC1"))
}
