// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traits flattens heterogeneous per-experiment trait lists
// into one numeric value per trait type.
//
// Measurements arrive as numbers, numeric strings, or null. Parsing
// is fallible but never fatal: a value that cannot be parsed is
// missing, and a trait type with at least one valid measurement
// aggregates to the arithmetic mean of the valid values. The fit
// outputs (r_squared and each polynomial coefficient) join the trait
// columns to form the complete analysis column set.
package traits

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/EvoMech/services/mechanics/experiment"
)

// Column name conventions of the analysis table.
const (
	// RSquaredColumn is the fit-quality column.
	RSquaredColumn = "r_squared"

	// CoeffPrefix prefixes polynomial coefficient columns (coeff_0,
	// coeff_1, ...).
	CoeffPrefix = "coeff_"

	// TraitPrefix prefixes aggregated trait columns (trait_diameter,
	// trait_mass, ...).
	TraitPrefix = "trait_"
)

// CoeffColumn returns the column name for the coefficient of the
// given degree.
func CoeffColumn(degree int) string {
	return fmt.Sprintf("%s%d", CoeffPrefix, degree)
}

// TraitColumn returns the column name for a trait type.
func TraitColumn(traitType string) string {
	return TraitPrefix + traitType
}

// -----------------------------------------------------------------------------
// Measurement Parsing
// -----------------------------------------------------------------------------

// ParseMeasurement converts a heterogeneous measurement value to a
// float64.
//
// Accepted representations: float64, integer types, json.Number, and
// numeric strings. Everything else (nil included) is missing. Parse
// failures are never errors; the bool result carries validity.
func ParseMeasurement(v any) (float64, bool) {
	switch m := v.(type) {
	case float64:
		return m, true
	case float32:
		return float64(m), true
	case int:
		return float64(m), true
	case int64:
		return float64(m), true
	case json.Number:
		f, err := m.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// Analysis Table
// -----------------------------------------------------------------------------

// Row is one experiment flattened for analysis. Columns holds only
// the non-missing values; absence from the map means missing.
type Row struct {
	ExperimentID  string
	SampleName    string
	Family        *string
	Genus         *string
	Species       *string
	Subsampletype *string

	// Name is "genus species" when both are present, else empty.
	Name string

	Columns map[string]float64
}

// Table is the flat analysis table over all processed experiments.
type Table struct {
	Rows []Row

	// Columns is the complete analysis column set in deterministic
	// order: r_squared, coeff_0..coeff_degree, then trait columns
	// sorted by name.
	Columns []string
}

// BuildTable flattens processed records into the analysis table.
//
// Description:
//
//	Each record contributes one row. Fit outputs become the r_squared
//	and coeff_i columns. Traits are grouped by type; each type with at
//	least one parseable measurement aggregates to the mean of the
//	valid measurements (order-independent), otherwise the column is
//	missing for that row. The table's column set is the union across
//	all rows, discovered once per run.
//
// Inputs:
//   - records: Processed experiment records.
//
// Outputs:
//   - *Table: The analysis table. Never nil.
func BuildTable(records []*experiment.Record) *Table {
	table := &Table{Rows: make([]Row, 0, len(records))}

	maxCoeffs := 0
	traitColumns := make(map[string]struct{})

	for _, rec := range records {
		row := Row{
			ExperimentID:  rec.ExperimentID,
			SampleName:    rec.SampleName,
			Family:        rec.Family,
			Genus:         rec.Genus,
			Species:       rec.Species,
			Subsampletype: rec.Subsampletype,
			Name:          speciesName(rec.Genus, rec.Species),
			Columns:       make(map[string]float64),
		}

		row.Columns[RSquaredColumn] = rec.RSquared
		for i, c := range rec.PolynomialCoefficients {
			row.Columns[CoeffColumn(i)] = c
		}
		if len(rec.PolynomialCoefficients) > maxCoeffs {
			maxCoeffs = len(rec.PolynomialCoefficients)
		}

		for traitType, value := range aggregateTraits(rec.AssociatedTraits) {
			col := TraitColumn(traitType)
			row.Columns[col] = value
			traitColumns[col] = struct{}{}
		}

		table.Rows = append(table.Rows, row)
	}

	table.Columns = append(table.Columns, RSquaredColumn)
	for i := 0; i < maxCoeffs; i++ {
		table.Columns = append(table.Columns, CoeffColumn(i))
	}
	sorted := make([]string, 0, len(traitColumns))
	for col := range traitColumns {
		sorted = append(sorted, col)
	}
	sort.Strings(sorted)
	table.Columns = append(table.Columns, sorted...)

	return table
}

// aggregateTraits reduces a trait list to one mean value per trait
// type. Types whose measurements all fail to parse are omitted.
func aggregateTraits(traits []experiment.Trait) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, t := range traits {
		if t.Type == "" {
			continue
		}
		v, ok := ParseMeasurement(t.Measurement)
		if !ok {
			continue
		}
		sums[t.Type] += v
		counts[t.Type]++
	}

	out := make(map[string]float64, len(sums))
	for traitType, sum := range sums {
		out[traitType] = sum / float64(counts[traitType])
	}
	return out
}

func speciesName(genus, species *string) string {
	if genus == nil || species == nil || *genus == "" || *species == "" {
		return ""
	}
	return *genus + " " + *species
}
