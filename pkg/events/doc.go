/*
Package events distributes committed state changes to watchers.

The state machine publishes every new state change after its transaction
commits; downstream components (schedulers, task dispatchers) subscribe
to react to control-plane mutations without polling the journal.

Delivery is best-effort per subscriber: a watcher that falls behind its
buffer misses changes and is expected to resynchronize from the
unprocessed set in the reverse indexes.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for change := range sub {
			// react to change.ChangeType / change.ObjectID
		}
	}()
*/
package events
