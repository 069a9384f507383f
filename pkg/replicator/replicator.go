package replicator

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/cuemby/quarry/pkg/metrics"
	"github.com/cuemby/quarry/pkg/statemachine"
)

// Config holds configuration for creating a replication node
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Node hosts the state machine behind a Raft log. Requests submitted on
// the leader are replicated and applied in log order on every replica.
type Node struct {
	nodeID string
	raft   *raft.Raft
	fsm    *FSM
}

// NewNode wires the FSM, log store, stable store, snapshot store, and
// transport together. The caller bootstraps or joins afterwards.
func NewNode(cfg Config, sm *statemachine.StateMachine) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fsm := NewFSM(sm)

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(cfg.NodeID)

	// Tuned below the library defaults: the control plane runs on a LAN
	// and a scheduler stalled behind a slow election hurts more than the
	// extra heartbeat traffic.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}

	return &Node{nodeID: cfg.NodeID, raft: r, fsm: fsm}, nil
}

// Bootstrap initializes a new single-node cluster
func (n *Node) Bootstrap(bindAddr string) error {
	configuration := raft.Configuration{
		Servers: []raft.Server{
			{
				ID:      raft.ServerID(n.nodeID),
				Address: raft.ServerAddress(bindAddr),
			},
		},
	}
	future := n.raft.BootstrapCluster(configuration)
	return future.Error()
}

// AddVoter adds a replica to the cluster. Leader only.
func (n *Node) AddVoter(nodeID, address string) error {
	future := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes a replica from the cluster. Leader only.
func (n *Node) RemoveServer(nodeID string) error {
	future := n.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// Propose submits a request to the replicated log and waits for it to
// be applied locally. Returns the state machine's result.
func (n *Node) Propose(req *statemachine.StateMachineUpdateRequest, timeout time.Duration) error {
	data, err := EncodeRequest(req)
	if err != nil {
		return err
	}

	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to replicate request: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if applyErr, ok := resp.(error); ok {
			return applyErr
		}
	}
	return nil
}

// IsLeader reports whether this node currently leads the cluster
func (n *Node) IsLeader() bool {
	leader := n.raft.State() == raft.Leader
	if leader {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}
	return leader
}

// Shutdown stops the Raft node
func (n *Node) Shutdown() error {
	return n.raft.Shutdown().Error()
}
