// Package repository provides SecureKeyStore implementations for the key vault:
// a bbolt-backed file store and an in-memory store.
package repository

import (
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/atinyakov/passvault/internal/db"
)

// BoltKeyStore keeps key-vault entries in a bbolt bucket.
type BoltKeyStore struct {
	// DB is the database handle; the key bucket must exist (see db.InitBolt).
	DB *bbolt.DB
}

// NewBoltKeyStore creates a BoltKeyStore using the provided *bbolt.DB.
func NewBoltKeyStore(bdb *bbolt.DB) *BoltKeyStore {
	return &BoltKeyStore{DB: bdb}
}

// Get returns a copy of the entry stored under name.
//
//	name: entry name ("salt", "verifier", "dek")
//
// Returns the value and true, nil and false if absent, or an error if the
// read transaction fails.
func (s *BoltKeyStore) Get(name string) ([]byte, bool, error) {
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(db.KeyBucket)
		if b == nil {
			return fmt.Errorf("bucket %q missing", db.KeyBucket)
		}
		if v := b.Get([]byte(name)); v != nil {
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", name, err)
	}
	return out, out != nil, nil
}

// Set creates or overwrites the entry in a single write transaction.
func (s *BoltKeyStore) Set(name string, value []byte) error {
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(db.KeyBucket)
		if b == nil {
			return fmt.Errorf("bucket %q missing", db.KeyBucket)
		}
		return b.Put([]byte(name), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// Delete removes the entry. Missing entries are ignored.
func (s *BoltKeyStore) Delete(name string) error {
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(db.KeyBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// MemoryKeyStore is a process-local SecureKeyStore, used in tests and for
// ephemeral vaults.
type MemoryKeyStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryKeyStore returns an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{entries: make(map[string][]byte)}
}

func (m *MemoryKeyStore) Get(name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (m *MemoryKeyStore) Set(name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = append([]byte{}, value...)
	return nil
}

func (m *MemoryKeyStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryKeyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
