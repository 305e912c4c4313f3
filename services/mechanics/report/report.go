// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report serializes pipeline artifacts.
//
// Three artifacts come out of a run:
//   - the records document: every processed experiment record plus
//     run metadata, consumed by the analysis stage
//   - the analysis document: hierarchical group statistics with
//     per-sigma-level outliers
//   - the outlier experiments CSV: the flagged experiments, one row
//     each, for spreadsheet review
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/EvoMech/services/mechanics/experiment"
	"github.com/AleutianAI/EvoMech/services/mechanics/outliers"
)

// ErrNoExperiments is returned when a records document holds nothing
// to analyze.
var ErrNoExperiments = errors.New("records document contains no experiments")

// -----------------------------------------------------------------------------
// Records Document
// -----------------------------------------------------------------------------

// FractureSettings echoes the detection parameters used for a run.
type FractureSettings struct {
	StopMaxStress bool    `json:"stop_max_stress"`
	DropThreshold float64 `json:"drop_threshold"`
	MinPoints     int     `json:"min_points"`
}

// RecordsMetadata describes one processing run.
type RecordsMetadata struct {
	RunID             string           `json:"run_id"`
	TotalExperiments  int              `json:"total_experiments"`
	PolynomialDegree  int              `json:"polynomial_degree"`
	ProcessingDate    string           `json:"processing_date"`
	FractureDetection FractureSettings `json:"fracture_detection"`
}

// RecordsDocument is the processing-stage artifact.
type RecordsDocument struct {
	Metadata    RecordsMetadata               `json:"metadata"`
	Experiments map[string]*experiment.Record `json:"experiments"`
}

// NewRecordsMetadata stamps run metadata with a fresh run ID and the
// current date.
func NewRecordsMetadata(total, degree int, fd FractureSettings) RecordsMetadata {
	return RecordsMetadata{
		RunID:             uuid.NewString(),
		TotalExperiments:  total,
		PolynomialDegree:  degree,
		ProcessingDate:    time.Now().UTC().Format(time.RFC3339),
		FractureDetection: fd,
	}
}

// WriteRecords writes the records document to path, creating parent
// directories as needed.
func WriteRecords(path string, doc *RecordsDocument) error {
	if doc.Experiments == nil {
		doc.Experiments = map[string]*experiment.Record{}
	}
	return writeJSON(path, doc)
}

// ReadRecords loads a records document.
//
// Outputs:
//   - *RecordsDocument: The parsed document.
//   - error: I/O or parse failure, or ErrNoExperiments when empty.
func ReadRecords(path string) (*RecordsDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	var doc RecordsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing records file %s: %w", path, err)
	}
	if len(doc.Experiments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExperiments, path)
	}
	return &doc, nil
}

// -----------------------------------------------------------------------------
// Analysis Document
// -----------------------------------------------------------------------------

// AnalysisMetadata describes one analysis run.
type AnalysisMetadata struct {
	AnalysisDate          string  `json:"analysis_date"`
	SourceFile            string  `json:"source_file"`
	TotalExperiments      int     `json:"total_experiments"`
	PolynomialDegree      int     `json:"polynomial_degree"`
	Grouping              string  `json:"grouping"`
	TotalGroups           int     `json:"total_groups"`
	OutlierTraitThreshold float64 `json:"outlier_trait_threshold"`
	SigmaLevel            int     `json:"sigma_level"`
}

// StatisticsReport is the serialized form of a column's statistics.
type StatisticsReport struct {
	Count       int                   `json:"count"`
	Mean        float64               `json:"mean"`
	Std         float64               `json:"std"`
	Min         float64               `json:"min"`
	Max         float64               `json:"max"`
	Median      float64               `json:"median"`
	SigmaRanges map[string][2]float64 `json:"sigma_ranges"`
}

// TraitReport pairs a trait's statistics with its per-level outliers.
type TraitReport struct {
	Statistics StatisticsReport              `json:"statistics"`
	Outliers   map[string][]outliers.Outlier `json:"outliers"`
}

// GroupReport is one taxonomic group in the analysis document.
type GroupReport struct {
	Family        *string                 `json:"family"`
	Name          *string                 `json:"name"`
	Subsampletype *string                 `json:"subsampletype"`
	SampleCount   int                     `json:"sample_count"`
	Traits        map[string]*TraitReport `json:"traits"`
}

// AnalysisDocument is the analysis-stage artifact.
type AnalysisDocument struct {
	Metadata AnalysisMetadata        `json:"metadata"`
	Groups   map[string]*GroupReport `json:"groups"`
}

// NewAnalysisMetadata stamps analysis metadata with the current time.
func NewAnalysisMetadata(source string, totalExperiments, degree, totalGroups int, threshold float64, sigmaLevel int) AnalysisMetadata {
	return AnalysisMetadata{
		AnalysisDate:          time.Now().UTC().Format(time.RFC3339),
		SourceFile:            source,
		TotalExperiments:      totalExperiments,
		PolynomialDegree:      degree,
		Grouping:              "family > name > subsampletype",
		TotalGroups:           totalGroups,
		OutlierTraitThreshold: threshold,
		SigmaLevel:            sigmaLevel,
	}
}

// BuildAnalysis converts group analyses into the analysis document.
//
// Description:
//
//	Each group keys its report by "family_name_subsampletype" with
//	missing components rendered as empty strings. Sigma ranges and
//	outlier lists cover levels 1 through 3; a level with no outliers
//	serializes as an empty list, not null.
func BuildAnalysis(analyses []*outliers.GroupAnalysis, meta AnalysisMetadata) *AnalysisDocument {
	doc := &AnalysisDocument{
		Metadata: meta,
		Groups:   make(map[string]*GroupReport, len(analyses)),
	}

	for _, ga := range analyses {
		group := ga.Group
		gr := &GroupReport{
			Family:        group.Family,
			Name:          group.Name,
			Subsampletype: group.Subsampletype,
			SampleCount:   group.SampleCount,
			Traits:        make(map[string]*TraitReport, len(ga.Traits)),
		}

		for _, column := range group.ColumnOrder {
			ta := ga.Traits[column]
			if ta == nil {
				continue
			}

			ranges := make(map[string][2]float64, len(outliers.SigmaLevels))
			levels := make(map[string][]outliers.Outlier, len(outliers.SigmaLevels))
			for _, level := range outliers.SigmaLevels {
				low, high := ta.Stats.Band(level)
				key := sigmaKey(level)
				ranges[key] = [2]float64{low, high}
				flagged := ta.Outliers[level]
				if flagged == nil {
					flagged = []outliers.Outlier{}
				}
				levels[key] = flagged
			}

			gr.Traits[column] = &TraitReport{
				Statistics: StatisticsReport{
					Count:       ta.Stats.Count,
					Mean:        ta.Stats.Mean,
					Std:         ta.Stats.Std,
					Min:         ta.Stats.Min,
					Max:         ta.Stats.Max,
					Median:      ta.Stats.Median,
					SigmaRanges: ranges,
				},
				Outliers: levels,
			}
		}

		doc.Groups[groupKeyString(group.Key.Family, group.Key.Name, group.Key.Subsampletype)] = gr
	}

	return doc
}

// WriteAnalysis writes the analysis document to path.
func WriteAnalysis(path string, doc *AnalysisDocument) error {
	return writeJSON(path, doc)
}

func sigmaKey(level int) string {
	return strconv.Itoa(level) + "sigma"
}

func groupKeyString(family, name, subsampletype string) string {
	return family + "_" + name + "_" + subsampletype
}

// -----------------------------------------------------------------------------
// Outlier Experiments CSV
// -----------------------------------------------------------------------------

// csvHeader matches the column order of OutlierExperiment.
var csvHeader = []string{
	"experiment_id", "sample_name", "family", "name", "subsampletype",
	"outlier_traits", "total_traits", "outlier_percentage",
	"sigma_level", "outlier_trait_list",
}

// WriteOutlierCSV writes the flagged experiments to path. An empty
// slice still produces a header-only file so downstream tooling sees
// a consistent schema.
func WriteOutlierCSV(path string, experiments []outliers.OutlierExperiment) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, exp := range experiments {
		row := []string{
			exp.ExperimentID,
			exp.SampleName,
			strOrEmpty(exp.Family),
			strOrEmpty(exp.Name),
			strOrEmpty(exp.Subsampletype),
			strconv.Itoa(exp.OutlierTraits),
			strconv.Itoa(exp.TotalTraits),
			strconv.FormatFloat(exp.OutlierPercentage, 'g', -1, 64),
			strconv.Itoa(exp.SigmaLevel),
			strings.Join(exp.OutlierTraitList, ", "),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func writeJSON(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return nil
}
