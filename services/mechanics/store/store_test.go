// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvoMech/services/mechanics/experiment"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(name string) *experiment.Record {
	return &experiment.Record{
		ExperimentID:           name,
		SampleName:             name,
		Type:                   "tensile_test",
		PolynomialCoefficients: []float64{0, 2},
		RSquared:               1.0,
	}
}

func TestPutGetRecord(t *testing.T) {
	s := openTestStore(t)

	rec := sampleRecord("exp_001")
	require.NoError(t, s.PutRecord("exp_001", rec))

	got, err := s.GetRecord("exp_001")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestGetRecordNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRecord("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutRecordRejectsEmptyID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.PutRecord("", sampleRecord("x")))
}

func TestPutRecordsAndList(t *testing.T) {
	s := openTestStore(t)

	batch := map[string]*experiment.Record{
		"exp_b": sampleRecord("exp_b"),
		"exp_a": sampleRecord("exp_a"),
		"exp_c": sampleRecord("exp_c"),
	}
	require.NoError(t, s.PutRecords(batch))

	records, ids, err := s.ListRecords()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, []string{"exp_a", "exp_b", "exp_c"}, ids)
	assert.Equal(t, batch["exp_b"], records["exp_b"])
}

func TestOverwriteRecord(t *testing.T) {
	s := openTestStore(t)

	first := sampleRecord("exp_001")
	require.NoError(t, s.PutRecord("exp_001", first))

	second := sampleRecord("exp_001")
	second.RSquared = 0.5
	require.NoError(t, s.PutRecord("exp_001", second))

	got, err := s.GetRecord("exp_001")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.RSquared)
}

func TestPersistentStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.PutRecord("exp_001", sampleRecord("exp_001")))
	require.NoError(t, s.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRecord("exp_001")
	require.NoError(t, err)
	assert.Equal(t, "exp_001", got.ExperimentID)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
