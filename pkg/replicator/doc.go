/*
Package replicator hosts the state machine behind a hashicorp/raft log.

The package is the boundary between consensus and the deterministic
apply layer: FSM decodes committed log entries into
StateMachineUpdateRequest values and drives pkg/statemachine, Node wires
the transport, snapshot store, and raft-boltdb log/stable stores
together, and Propose is how a leader feeds requests into the log.

Snapshots capture the forward index only; the reverse indexes are
derived state, rebuilt after Restore via the state machine's rebuild
routine.

# Usage

	store, _ := storage.Open(storage.Config{Path: dbPath, CreateIfMissing: true})
	sm := statemachine.New(store, broker)
	if err := sm.Rebuild(); err != nil {
		log.Fatal(err)
	}

	node, err := replicator.NewNode(replicator.Config{
		NodeID:   "node-1",
		BindAddr: "127.0.0.1:7000",
		DataDir:  dataDir,
	}, sm)
	if err != nil {
		log.Fatal(err)
	}
	node.Bootstrap("127.0.0.1:7000")

	err = node.Propose(&statemachine.StateMachineUpdateRequest{...}, 5*time.Second)
*/
package replicator
