package storage

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

// Store wraps a transactional KV engine with named keyspaces. Writes are
// grouped into transactions that commit atomically; reads inside a
// transaction observe that transaction's own pending writes.
type Store struct {
	db *bolt.DB
}

// Open opens the store at cfg.Path and ensures every column bucket
// exists. With CreateIfMissing unset, a missing database file is an error.
func Open(cfg Config) (*Store, error) {
	if !cfg.CreateIfMissing {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("database does not exist at %s: %w", cfg.Path, err)
		}
	}

	db, err := bolt.Open(cfg.Path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, col := range Columns {
			if _, err := tx.CreateBucketIfNotExists([]byte(col)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", col, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin opens a writable transaction. The caller must finish it with
// Commit or Rollback.
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Txn{tx: tx}, nil
}

// View runs fn inside a read-only transaction.
func (s *Store) View(fn func(*Txn) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Txn{tx: tx})
	})
}

// Txn is a transaction over the column buckets
type Txn struct {
	tx *bolt.Tx
}

func (t *Txn) bucket(col Column) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(col))
	if b == nil {
		return nil, fmt.Errorf("unknown column %s", col)
	}
	return b, nil
}

// Get returns the value under key, or nil if the key is absent. The
// returned bytes are copied out of the transaction's mmap window.
func (t *Txn) Get(col Column, key string) ([]byte, error) {
	b, err := t.bucket(col)
	if err != nil {
		return nil, err
	}
	data := b.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// MultiGet returns the values under keys in order; absent keys yield nil.
func (t *Txn) MultiGet(col Column, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		data, err := t.Get(col, key)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// Put writes value under key.
func (t *Txn) Put(col Column, key string, value []byte) error {
	b, err := t.bucket(col)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), value)
}

// Delete removes key. Deleting an absent key is not an error.
func (t *Txn) Delete(col Column, key string) error {
	b, err := t.bucket(col)
	if err != nil {
		return err
	}
	return b.Delete([]byte(key))
}

// ForEach iterates every key/value pair in the column in key order.
func (t *Txn) ForEach(col Column, fn func(key string, value []byte) error) error {
	b, err := t.bucket(col)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

// Commit makes the transaction's writes durable before returning.
func (t *Txn) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *Txn) Rollback() error {
	err := t.tx.Rollback()
	if err == bolt.ErrTxClosed {
		return nil
	}
	return err
}
