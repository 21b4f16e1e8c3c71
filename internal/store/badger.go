package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/agenthands/sleuth/internal/core/model"
)

// BadgerStore is the embedded durable CaseStore. The conditional write runs
// inside a single Badger transaction so concurrent committers serialize on
// the version check.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a persistent store at path. An empty path opens an
// in-memory database, which is what the tests use.
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at '%s': %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func caseKey(id string) []byte {
	return []byte("case/" + id)
}

func (s *BadgerStore) Get(ctx context.Context, id string) (*model.Case, error) {
	var c model.Case
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(caseKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", id, err)
	}
	return &c, nil
}

func (s *BadgerStore) Put(ctx context.Context, c *model.Case, expectedVersion uint64) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode case %s: %w", c.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(caseKey(c.ID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expectedVersion != 0 {
				return ErrNotFound
			}
		case err != nil:
			return err
		default:
			if expectedVersion == 0 {
				return ErrVersionMismatch
			}
			var cur model.Case
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &cur)
			}); verr != nil {
				return verr
			}
			if cur.Version != expectedVersion {
				return ErrVersionMismatch
			}
		}
		return txn.Set(caseKey(c.ID), data)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
