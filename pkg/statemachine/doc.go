/*
Package statemachine implements the deterministic apply layer of Quarry's
replicated control plane.

The state machine durably records control-plane facts (tasks, executors,
extraction policies, content metadata, structured schemas, indexes) in
the forward index — eleven columns of the bbolt-backed store — and
maintains nine in-memory reverse indexes that make scheduling queries
constant time. Requests arrive from the replication layer in log order;
every replica applying the same sequence reaches byte-identical persisted
state and structurally equal reverse indexes.

# Apply Discipline

One request is processed as:

 1. Open a transaction on the column store.
 2. Persist new state changes into the journal (unprocessed).
 3. Stamp processed_at on the state changes the request marks processed.
 4. Dispatch on the payload variant and run its forward-index writers.
 5. Commit. A failure here, or in any earlier step, drops the
    transaction and returns a typed error; the reverse indexes are
    untouched and the caller may retry the exact request.
 6. Mutate the reverse indexes, publish the committed state changes to
    the watch broker, refresh gauges.

Persistent state always leads in-memory state: only the single apply
goroutine mutates the reverse indexes, and only after commit.

RemoveExecutor is the one compound case. Its reverse step needs the
extractor name stored in the executor record and the task ids in the
assignment set, so both are read inside the transaction before the
deletes, the commit runs early, and the bespoke reverse step consumes
the values read out.

# Assignments

Task assignment is additive: the forward pass reads the executor's
persisted assignment set, unions in the new task ids, and writes it
back. The running-task count increments only for task ids that were not
already in the set, so duplicate assignment of the same pair is
idempotent on both indexes.

# Recovery

Rebuild derives the reverse indexes from the forward index alone. A
crash between commit and the in-memory step is repaired at startup by
rebuilding; the result equals what the live apply path would have
produced over the same committed requests.

# Errors

CodecError (pkg/codec), DatabaseError, and TransactionError partition
the failure modes: serialization, store reads/writes and missing
records, and commit. ErrNotFound and ErrPolicyNotRegistered are
matchable with errors.Is.
*/
package statemachine
