package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/quarry/pkg/types"
)

func TestPublishReachesSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(types.StateChange{
		ID:         "SC1",
		ObjectID:   "C1",
		ChangeType: types.ChangeTypeNewContent,
		CreatedAt:  100,
	})

	select {
	case change := <-sub:
		assert.Equal(t, "SC1", change.ID)
		assert.Equal(t, types.ChangeTypeNewContent, change.ChangeType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state change")
	}
}

func TestSubscriberCount(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	require.Equal(t, 0, broker.SubscriberCount())

	a := broker.Subscribe()
	b := broker.Subscribe()
	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Unsubscribe(a)
	assert.Equal(t, 1, broker.SubscriberCount())
	broker.Unsubscribe(b)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	// Never drained; its buffer fills and further changes are skipped.
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for i := 0; i < 200; i++ {
		broker.Publish(types.StateChange{ID: "SC", CreatedAt: uint64(i)})
	}
	// Publishing 200 changes against a 50-slot buffer returns without
	// deadlock; that is the assertion.
}
