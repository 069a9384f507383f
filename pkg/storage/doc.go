/*
Package storage provides the BoltDB-backed column store for Quarry's
forward index.

The store exposes eleven named keyspaces (columns) over a single bbolt
database file, one bucket per column. All values are canonically encoded
records (see pkg/codec); keys are raw string ids.

# Architecture

	┌──────────────────── BOLTDB STORAGE ────────────────────┐
	│                                                          │
	│  Store                                                   │
	│    - File: <path> (single bbolt file)                    │
	│    - Transactions: ACID, fsync on commit                 │
	│                                                          │
	│  Buckets (one per column)                                │
	│    state_changes                (change id)              │
	│    tasks                        (task id)                │
	│    task_assignments             (executor id)            │
	│    executors                    (executor id)            │
	│    extractors                   (extractor name)         │
	│    content_table                (content id)             │
	│    extraction_policies          (policy id)              │
	│    namespaces                   (namespace name)         │
	│    structured_data_schemas      (schema id)              │
	│    index_table                  (index id)               │
	│    extraction_policies_applied_on_content (content id)   │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

# Transaction Model

Begin opens a writable transaction; Get/MultiGet/Put/Delete operate on it
and Commit makes all writes durable atomically. Reads inside a transaction
observe the transaction's own pending writes, which the forward-index
writers rely on for their read-modify-write steps. bbolt serializes
writers, so the apply loop's single-writer discipline maps directly onto
the engine; View provides concurrent read-only snapshots for the rebuild
routine and the inspector.

# Usage

	store, err := storage.Open(storage.Config{
		Path:            "/var/lib/quarry/state.db",
		CreateIfMissing: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	txn, err := store.Begin()
	if err != nil {
		log.Fatal(err)
	}
	if err := txn.Put(storage.ColumnTasks, task.ID, encoded); err != nil {
		txn.Rollback()
		return err
	}
	return txn.Commit()

# See Also

  - pkg/statemachine for the apply layer built on this store
  - pkg/codec for the value encoding
*/
package storage
