package events

import (
	"sync"

	"github.com/cuemby/quarry/pkg/types"
)

// Subscriber is a channel that receives committed state changes
type Subscriber chan types.StateChange

// Broker fans committed state changes out to watchers (schedulers, task
// dispatchers). Changes are published strictly after the forward-index
// commit and the reverse-index apply, so a watcher never observes a
// change the state machine could still roll back.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	changeCh    chan types.StateChange
	stopCh      chan struct{}
}

// NewBroker creates a new state-change broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		changeCh:    make(chan types.StateChange, 100), // Buffer up to 100 changes
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes a committed state change to all subscribers
func (b *Broker) Publish(change types.StateChange) {
	select {
	case b.changeCh <- change:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case change := <-b.changeCh:
			b.broadcast(change)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(change types.StateChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- change:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
