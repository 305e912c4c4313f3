// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists processed experiment records in BadgerDB.
//
// The store decouples the processing stage from the analysis stage:
// a run can process a large collection once, then re-analyze with
// different sigma levels or thresholds without reprocessing curves.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EvoMech/services/mechanics/experiment"
)

// ErrNotFound is returned when no record exists for an experiment ID.
var ErrNotFound = errors.New("record not found")

// recordPrefix namespaces record keys so the keyspace can grow later.
const recordPrefix = "record/"

// Config holds configuration for a record store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a persistent configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed record store.
type Store struct {
	db *badger.DB
}

// Open creates and opens a record store with the given configuration.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if path is invalid or database cannot be opened.
//
// Thread Safety: The returned *Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return &Store{db: db}, nil
}

// PutRecord stores one processed experiment record.
//
// Inputs:
//
//	id - Experiment identifier. Must be non-empty.
//	rec - The record to store.
//
// Outputs:
//
//	error - Non-nil on serialization or write failure.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) PutRecord(id string, rec *experiment.Record) error {
	if id == "" {
		return errors.New("experiment id must not be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordPrefix+id), data)
	})
	if err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}
	return nil
}

// PutRecords stores a batch of records in one transaction per batch
// chunk, using Badger's WriteBatch for throughput.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) PutRecords(records map[string]*experiment.Record) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for id, rec := range records {
		if id == "" {
			return errors.New("experiment id must not be empty")
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", id, err)
		}
		if err := wb.Set([]byte(recordPrefix+id), data); err != nil {
			return fmt.Errorf("batch write record %s: %w", id, err)
		}
	}
	return wb.Flush()
}

// GetRecord fetches one record by experiment ID.
//
// Outputs:
//
//	*experiment.Record - The stored record.
//	error - ErrNotFound if no record exists, otherwise read failure.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) GetRecord(id string) (*experiment.Record, error) {
	var rec experiment.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns every stored record keyed by experiment ID,
// plus the IDs in lexicographic order.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) ListRecords() (map[string]*experiment.Record, []string, error) {
	records := make(map[string]*experiment.Record)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), recordPrefix)
			var rec experiment.Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode record %s: %w", id, err)
			}
			records[id] = &rec
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return records, ids, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
