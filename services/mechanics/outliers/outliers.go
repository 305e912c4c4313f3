// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package outliers flags anomalous measurements and experiments using
// sigma bands over the per-group statistics.
//
// A measurement is an outlier when it lies strictly outside
// [mean-kσ, mean+kσ] for the chosen sigma level k; boundary values are
// not outliers. An experiment is an outlier when the fraction of its
// group's evaluated traits flagged for it reaches the configured
// threshold.
//
// Thread Safety: All functions are stateless and safe for concurrent use.
package outliers

import (
	"math"
	"sort"

	"github.com/AleutianAI/EvoMech/services/mechanics/stats"
	"github.com/AleutianAI/EvoMech/services/mechanics/traits"
)

// SigmaLevels are the levels every analysis evaluates.
var SigmaLevels = []int{1, 2, 3}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Outlier is one out-of-band measurement.
type Outlier struct {
	ExperimentID  string  `json:"experiment_id"`
	SampleName    string  `json:"sample_name"`
	Family        *string `json:"family"`
	Name          *string `json:"name"`
	Subsampletype *string `json:"subsampletype"`

	// Value is the measured value.
	Value float64 `json:"value"`

	// Deviation is the signed distance from the group mean in
	// standard-deviation units: (value - mean) / std.
	Deviation float64 `json:"deviation"`
}

// TraitAnalysis is the per-column outcome within one group.
type TraitAnalysis struct {
	Stats *stats.ColumnStats

	// Outliers maps sigma level (1, 2, 3) to the flagged
	// measurements, ordered by descending absolute deviation.
	Outliers map[int][]Outlier
}

// GroupAnalysis pairs a group's statistics with its outliers.
type GroupAnalysis struct {
	Group *stats.GroupResult

	// Traits maps column name to its analysis; iteration order is
	// Group.ColumnOrder.
	Traits map[string]*TraitAnalysis
}

// OutlierExperiment is an experiment whose outlier-trait fraction
// reached the threshold.
type OutlierExperiment struct {
	ExperimentID  string  `json:"experiment_id"`
	SampleName    string  `json:"sample_name"`
	Family        *string `json:"family"`
	Name          *string `json:"name"`
	Subsampletype *string `json:"subsampletype"`

	// OutlierTraits counts the traits flagged for this experiment in
	// its group; TotalTraits is the group's evaluated trait count.
	OutlierTraits int `json:"outlier_traits"`
	TotalTraits   int `json:"total_traits"`

	// OutlierPercentage is OutlierTraits / TotalTraits.
	OutlierPercentage float64 `json:"outlier_percentage"`

	SigmaLevel int `json:"sigma_level"`

	// OutlierTraitList names the contributing traits in column order.
	OutlierTraitList []string `json:"outlier_trait_list"`
}

// -----------------------------------------------------------------------------
// Measurement Outliers
// -----------------------------------------------------------------------------

// FindOutliers returns the rows whose value in the column lies
// strictly outside the sigma band.
//
// Description:
//
//	Rows without a value for the column are ignored. A value exactly
//	at a band edge is not an outlier. Results are ordered by
//	descending absolute deviation; ties keep the original row order.
//
// Inputs:
//   - rows: The group's table rows.
//   - column: Column to evaluate.
//   - cs: The column's group statistics.
//   - sigmaLevel: Band width in standard deviations (1, 2, or 3).
//
// Outputs:
//   - []Outlier: Flagged measurements, possibly empty.
func FindOutliers(rows []traits.Row, column string, cs *stats.ColumnStats, sigmaLevel int) []Outlier {
	low, high := cs.Band(sigmaLevel)

	var found []Outlier
	for _, row := range rows {
		v, ok := row.Columns[column]
		if !ok {
			continue
		}
		if v >= low && v <= high {
			continue
		}
		found = append(found, Outlier{
			ExperimentID:  row.ExperimentID,
			SampleName:    row.SampleName,
			Family:        row.Family,
			Name:          nameOf(row),
			Subsampletype: row.Subsampletype,
			Value:         v,
			Deviation:     (v - cs.Mean) / cs.Std,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return math.Abs(found[i].Deviation) > math.Abs(found[j].Deviation)
	})
	return found
}

func nameOf(row traits.Row) *string {
	if row.Name == "" {
		return nil
	}
	name := row.Name
	return &name
}

// AnalyzeGroups evaluates every group column at all sigma levels.
//
// Outputs:
//   - []*GroupAnalysis: One entry per input group, same order.
func AnalyzeGroups(groups []*stats.GroupResult) []*GroupAnalysis {
	analyses := make([]*GroupAnalysis, 0, len(groups))
	for _, group := range groups {
		analysis := &GroupAnalysis{
			Group:  group,
			Traits: make(map[string]*TraitAnalysis, len(group.Columns)),
		}
		for _, column := range group.ColumnOrder {
			cs := group.Columns[column]
			ta := &TraitAnalysis{
				Stats:    cs,
				Outliers: make(map[int][]Outlier, len(SigmaLevels)),
			}
			for _, level := range SigmaLevels {
				ta.Outliers[level] = FindOutliers(group.Rows, column, cs, level)
			}
			analysis.Traits[column] = ta
		}
		analyses = append(analyses, analysis)
	}
	return analyses
}

// -----------------------------------------------------------------------------
// Experiment Outliers
// -----------------------------------------------------------------------------

// IdentifyOutlierExperiments flags experiments whose outlier-trait
// fraction reaches the threshold.
//
// Description:
//
//	Each experiment belongs to exactly one group, so its denominator
//	is always its own group's evaluated-trait count. The fraction is
//	flagged-traits / total-traits at the chosen sigma level; an
//	experiment is reported when the fraction is >= threshold. Results
//	are ordered by descending percentage; ties keep group-key order
//	then first-flagged order.
//
// Inputs:
//   - analyses: Per-group analyses from AnalyzeGroups.
//   - sigmaLevel: Sigma level to evaluate (1, 2, or 3).
//   - threshold: Minimum outlier-trait fraction, in [0, 1].
//
// Outputs:
//   - []OutlierExperiment: Flagged experiments with contributing
//     trait names.
func IdentifyOutlierExperiments(analyses []*GroupAnalysis, sigmaLevel int, threshold float64) []OutlierExperiment {
	var flagged []OutlierExperiment

	for _, analysis := range analyses {
		group := analysis.Group
		totalTraits := len(group.ColumnOrder)
		if totalTraits == 0 {
			continue
		}

		counts := make(map[string]*OutlierExperiment)
		var order []string
		for _, column := range group.ColumnOrder {
			for _, o := range analysis.Traits[column].Outliers[sigmaLevel] {
				entry, ok := counts[o.ExperimentID]
				if !ok {
					entry = &OutlierExperiment{
						ExperimentID:  o.ExperimentID,
						SampleName:    o.SampleName,
						Family:        group.Family,
						Name:          group.Name,
						Subsampletype: group.Subsampletype,
						TotalTraits:   totalTraits,
						SigmaLevel:    sigmaLevel,
					}
					counts[o.ExperimentID] = entry
					order = append(order, o.ExperimentID)
				}
				entry.OutlierTraits++
				entry.OutlierTraitList = append(entry.OutlierTraitList, column)
			}
		}

		for _, id := range order {
			entry := counts[id]
			entry.OutlierPercentage = float64(entry.OutlierTraits) / float64(totalTraits)
			if entry.OutlierPercentage >= threshold {
				flagged = append(flagged, *entry)
			}
		}
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].OutlierPercentage > flagged[j].OutlierPercentage
	})
	return flagged
}
