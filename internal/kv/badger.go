// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/tilegate/internal/logging"
)

// keySeparator joins namespace and field into a single Badger key. NUL cannot
// appear in owner names or template names, so the mapping is unambiguous.
const keySeparator = "\x00"

// BadgerStore implements HashStore on BadgerDB. Each hash field maps to the
// key "<ns>\x00<field>"; namespace-level operations iterate the "<ns>\x00"
// prefix. HashSetNX runs get-then-set inside a single serializable
// transaction, which gives the conditional-create atomicity the template
// store relies on.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig holds BadgerDB store configuration.
type BadgerConfig struct {
	// Dir is the on-disk location. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger without persistence. Used for tests and for
	// ephemeral deployments.
	InMemory bool
}

// NewBadgerStore opens a BadgerDB-backed store.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	// Badger's default logger writes unstructured output; route it to zerolog.
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an already-open BadgerDB handle.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func storeKey(ns, field string) []byte {
	return []byte(ns + keySeparator + field)
}

// HashGet returns the value of field in ns, or ErrFieldNotFound.
func (s *BadgerStore) HashGet(_ context.Context, ns, field string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(ns, field))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrFieldNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s/%s: %w", ns, field, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// HashSet stores field=value in ns, overwriting any existing value.
func (s *BadgerStore) HashSet(_ context.Context, ns, field string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(ns, field), value)
	})
}

// HashSetNX stores field=value only if the field is absent.
func (s *BadgerStore) HashSetNX(_ context.Context, ns, field string, value []byte) (bool, error) {
	created := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(storeKey(ns, field))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("probe %s/%s: %w", ns, field, err)
		}
		created = true
		return txn.Set(storeKey(ns, field), value)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// HashDelete removes field from ns. Returns true if the field existed.
func (s *BadgerStore) HashDelete(_ context.Context, ns, field string) (bool, error) {
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := storeKey(ns, field)
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("probe %s/%s: %w", ns, field, err)
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// HashKeys lists all fields in ns, in lexicographic order.
func (s *BadgerStore) HashKeys(_ context.Context, ns string) ([]string, error) {
	prefix := []byte(ns + keySeparator)
	var fields []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			fields = append(fields, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// HashLen returns the number of fields in ns.
func (s *BadgerStore) HashLen(ctx context.Context, ns string) (int, error) {
	fields, err := s.HashKeys(ctx, ns)
	if err != nil {
		return 0, err
	}
	return len(fields), nil
}

// Close closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts Badger's logger interface to zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace().Str("component", "badger").Msgf(format, args...)
}
