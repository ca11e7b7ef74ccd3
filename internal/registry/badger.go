// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists registry entries on disk so hashes survive a restart
// within their TTL. An empty dir runs badger fully in memory.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Get(_ context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Sweep triggers value-log garbage collection. Badger already hides expired
// keys from reads, so this only reclaims space.
func (s *BadgerStore) Sweep(context.Context) (int, error) {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		return 0, err
	}
	return 0, nil
}

func (s *BadgerStore) Len(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore) Close() error { return s.db.Close() }
