// Package results keeps a ledger of benchmark results in an embedded
// BadgerDB database.
//
// Key layout:
//
//	rec:<id>                        JSON-encoded Record
//	run:<run-id>:<started>:<id>     empty; index for List
//
// Ids are raw 16-byte UUIDs and the start time is big-endian Unix
// nanoseconds, so a prefix scan over one run returns its records in start
// order.
package results

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/dittobench/internal/logger"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("result not found")

const (
	prefixRecord = "rec:"
	prefixRun    = "run:"
)

// Store is a BadgerDB-backed result ledger. It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the ledger at path. An empty path opens an
// in-memory ledger that is discarded on Close.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		if path == "" {
			return nil, fmt.Errorf("failed to open in-memory BadgerDB: %w", err)
		}
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", path, err)
	}

	logger.Debug("results: ledger opened at %q", path)
	return &Store{db: db}, nil
}

// Put stores r. A zero ID is replaced with a fresh one.
func (s *Store) Put(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	data, err := encodeRecord(r)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyRecord(r.ID), data); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}
		if err := txn.Set(keyRunIndex(r), nil); err != nil {
			return fmt.Errorf("failed to index record: %w", err)
		}
		return nil
	})
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the records of one run in start order.
func (s *Store) List(ctx context.Context, runID uuid.UUID) ([]*Record, error) {
	var records []*Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyRunPrefix(runID)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			key := it.Item().KeyCopy(nil)
			id, err := uuid.FromBytes(key[len(key)-16:])
			if err != nil {
				return fmt.Errorf("corrupt run index key %x: %w", key, err)
			}

			rec, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func getRecord(txn *badger.Txn, id uuid.UUID) (*Record, error) {
	item, err := txn.Get(keyRecord(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}

	var rec *Record
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = decodeRecord(val)
		return err
	})
	return rec, err
}

func keyRecord(id uuid.UUID) []byte {
	return append([]byte(prefixRecord), id[:]...)
}

func keyRunPrefix(runID uuid.UUID) []byte {
	key := append([]byte(prefixRun), runID[:]...)
	return append(key, ':')
}

func keyRunIndex(r *Record) []byte {
	key := keyRunPrefix(r.RunID)
	key = binary.BigEndian.AppendUint64(key, uint64(r.Started.UnixNano()))
	key = append(key, ':')
	return append(key, r.ID[:]...)
}
