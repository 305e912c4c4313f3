// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats computes per-group statistics over the flat analysis
// table.
//
// Experiments group by the taxonomic key (family, species name,
// subsample type); a missing key component forms its own group rather
// than excluding rows. Statistics require at least two experiments
// per group and at least two non-missing values per column; anything
// below that floor is omitted, not reported as zero variance.
//
// Thread Safety: All functions are stateless and safe for concurrent use.
package stats

import (
	"context"
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/EvoMech/services/mechanics/traits"
)

// MinGroupSize is the minimum experiments per group for statistics.
const MinGroupSize = 2

var statsTracer = otel.Tracer("mechanics.stats")

var groupsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "evomech_groups_analyzed_total",
	Help: "Number of taxonomic groups that met the size floor and were analyzed.",
})

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// GroupKey identifies a taxonomic group. Missing components are empty
// strings, so rows with absent taxonomy group together.
type GroupKey struct {
	Family        string
	Name          string
	Subsampletype string
}

// Less orders keys lexicographically by (family, name, subsampletype).
func (k GroupKey) Less(other GroupKey) bool {
	if k.Family != other.Family {
		return k.Family < other.Family
	}
	if k.Name != other.Name {
		return k.Name < other.Name
	}
	return k.Subsampletype < other.Subsampletype
}

// ColumnStats holds the statistics of one column within one group.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Band returns the symmetric sigma band [mean-k*std, mean+k*std] for
// sigma level k.
func (s *ColumnStats) Band(level int) (low, high float64) {
	delta := float64(level) * s.Std
	return s.Mean - delta, s.Mean + delta
}

// GroupResult is the statistics of one group.
type GroupResult struct {
	Key GroupKey

	// Family, Name, and Subsampletype carry the original values; nil
	// means the component was missing from the taxonomy.
	Family        *string
	Name          *string
	Subsampletype *string

	// SampleCount is the number of experiments in the group.
	SampleCount int

	// Rows are the group's table rows, retained for outlier detection.
	Rows []traits.Row

	// Columns maps column name to its statistics. Columns below the
	// two-value floor are absent.
	Columns map[string]*ColumnStats

	// ColumnOrder lists the keys of Columns in the table's column
	// order, for reproducible serialization.
	ColumnOrder []string
}

// -----------------------------------------------------------------------------
// Grouping and Analysis
// -----------------------------------------------------------------------------

// keyOf derives the group key of a row. The species name is already
// flattened into Row.Name.
func keyOf(row traits.Row) GroupKey {
	key := GroupKey{Name: row.Name}
	if row.Family != nil {
		key.Family = *row.Family
	}
	if row.Subsampletype != nil {
		key.Subsampletype = *row.Subsampletype
	}
	return key
}

// Analyze groups the analysis table and computes per-column statistics
// for every group at or above the size floor.
//
// Description:
//
//	Groups are computed in parallel; they have no cross-group
//	dependency once the flat table exists. Results are stable-sorted
//	by group key so serialized output is reproducible regardless of
//	completion order.
//
// Inputs:
//   - ctx: Context for tracing.
//   - table: The flat analysis table.
//
// Outputs:
//   - []*GroupResult: Key-ordered group statistics. Groups with fewer
//     than MinGroupSize experiments are omitted.
func Analyze(ctx context.Context, table *traits.Table) []*GroupResult {
	ctx, span := statsTracer.Start(ctx, "Analyze")
	defer span.End()

	byKey := make(map[GroupKey][]traits.Row)
	for _, row := range table.Rows {
		key := keyOf(row)
		byKey[key] = append(byKey[key], row)
	}

	keys := make([]GroupKey, 0, len(byKey))
	for key, rows := range byKey {
		if len(rows) < MinGroupSize {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	results := make([]*GroupResult, len(keys))
	g, _ := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			results[i] = analyzeGroup(key, byKey[key], table.Columns)
			return nil
		})
	}
	_ = g.Wait()

	groupsAnalyzed.Add(float64(len(results)))
	span.SetAttributes(
		attribute.Int("groups.total", len(results)),
		attribute.Int("rows.total", len(table.Rows)),
	)
	return results
}

func analyzeGroup(key GroupKey, rows []traits.Row, columns []string) *GroupResult {
	result := &GroupResult{
		Key:         key,
		SampleCount: len(rows),
		Rows:        rows,
		Columns:     make(map[string]*ColumnStats),
	}
	// Taxonomy pointers come from the first row; all rows in a group
	// share the key.
	first := rows[0]
	result.Family = first.Family
	if first.Name != "" {
		name := first.Name
		result.Name = &name
	}
	result.Subsampletype = first.Subsampletype

	for _, column := range columns {
		values := make([]float64, 0, len(rows))
		for _, row := range rows {
			if v, ok := row.Columns[column]; ok {
				values = append(values, v)
			}
		}
		if len(values) < MinGroupSize {
			continue
		}
		result.Columns[column] = columnStats(column, values)
		result.ColumnOrder = append(result.ColumnOrder, column)
	}
	return result
}

// columnStats computes summary statistics over non-missing values.
// Requires len(values) >= 2.
func columnStats(column string, values []float64) *ColumnStats {
	m := mean(values)
	return &ColumnStats{
		Column: column,
		Count:  len(values),
		Mean:   m,
		Std:    sampleStd(values, m),
		Min:    minOf(values),
		Max:    maxOf(values),
		Median: median(values),
	}
}

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// mean calculates the arithmetic mean.
func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd calculates the sample standard deviation (n-1 divisor).
func sampleStd(values []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// median returns the middle value, or the mean of the middle pair for
// even counts. The input is not modified.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
