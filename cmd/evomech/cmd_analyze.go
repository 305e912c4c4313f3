// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AleutianAI/EvoMech/services/mechanics/experiment"
	"github.com/AleutianAI/EvoMech/services/mechanics/outliers"
	"github.com/AleutianAI/EvoMech/services/mechanics/report"
	"github.com/AleutianAI/EvoMech/services/mechanics/stats"
	"github.com/AleutianAI/EvoMech/services/mechanics/store"
	"github.com/AleutianAI/EvoMech/services/mechanics/traits"
)

// runAnalyze is the analysis stage: load processed records, compute
// per-group statistics, flag outlier measurements at every sigma
// level, and write the analysis artifact plus the outlier experiments
// CSV.
func runAnalyze(ctx context.Context) error {
	recordsPath := filepath.Join(cfg.Output.OutputDir, cfg.Output.RecordsFile)

	records, degree, err := loadRecords(recordsPath)
	if err != nil {
		return err
	}
	logger.Info("loaded experiment records",
		"experiments", len(records), "polynomial_degree", degree)

	table := traits.BuildTable(records)
	groups := stats.Analyze(ctx, table)
	analyses := outliers.AnalyzeGroups(groups)

	flagged := outliers.IdentifyOutlierExperiments(
		analyses, cfg.Analysis.SigmaLevel, cfg.Analysis.OutlierTraitThreshold)

	meta := report.NewAnalysisMetadata(
		recordsPath,
		len(records),
		degree,
		len(analyses),
		cfg.Analysis.OutlierTraitThreshold,
		cfg.Analysis.SigmaLevel,
	)
	doc := report.BuildAnalysis(analyses, meta)

	analysisPath := filepath.Join(cfg.Output.OutputDir, cfg.Output.AnalysisFile)
	if err := report.WriteAnalysis(analysisPath, doc); err != nil {
		return fmt.Errorf("writing analysis: %w", err)
	}

	csvPath := filepath.Join(cfg.Output.OutputDir, cfg.Output.ExperimentsFile)
	if err := report.WriteOutlierCSV(csvPath, flagged); err != nil {
		return fmt.Errorf("writing outlier experiments: %w", err)
	}

	logSummary(analyses, flagged, analysisPath, csvPath)
	return nil
}

// loadRecords reads the records artifact, falling back to the record
// store when the JSON file is absent. Records come back ordered by
// experiment ID so analysis output is reproducible.
func loadRecords(recordsPath string) ([]*experiment.Record, int, error) {
	doc, err := report.ReadRecords(recordsPath)
	if err == nil {
		ids := make([]string, 0, len(doc.Experiments))
		for id := range doc.Experiments {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		records := make([]*experiment.Record, 0, len(ids))
		for _, id := range ids {
			records = append(records, doc.Experiments[id])
		}
		return records, doc.Metadata.PolynomialDegree, nil
	}
	if !errors.Is(err, os.ErrNotExist) || cfg.Output.StoreDir == "" {
		return nil, 0, err
	}

	logger.Info("records file missing, reading from store",
		"path", recordsPath, "store", cfg.Output.StoreDir)

	s, err := store.Open(store.Config{
		Path:       cfg.Output.StoreDir,
		SyncWrites: false,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, 0, err
	}
	defer s.Close()

	byID, ids, err := s.ListRecords()
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return nil, 0, fmt.Errorf("record store %s is empty", cfg.Output.StoreDir)
	}
	records := make([]*experiment.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, byID[id])
	}
	return records, cfg.Processing.PolynomialDegree, nil
}

func logSummary(analyses []*outliers.GroupAnalysis, flagged []outliers.OutlierExperiment, analysisPath, csvPath string) {
	groupsWithOutliers := make(map[int]int, len(outliers.SigmaLevels))
	totalSamples := 0
	for _, ga := range analyses {
		totalSamples += ga.Group.SampleCount
		for _, level := range outliers.SigmaLevels {
			for _, ta := range ga.Traits {
				if len(ta.Outliers[level]) > 0 {
					groupsWithOutliers[level]++
					break
				}
			}
		}
	}

	logger.Info("analysis complete",
		"groups", len(analyses),
		"total_samples", totalSamples,
		"groups_with_1sigma", groupsWithOutliers[1],
		"groups_with_2sigma", groupsWithOutliers[2],
		"groups_with_3sigma", groupsWithOutliers[3],
		"outlier_experiments", len(flagged),
		"analysis_file", analysisPath,
		"experiments_file", csvPath)

	for _, exp := range flagged {
		logger.Info("outlier experiment",
			"experiment_id", exp.ExperimentID,
			"sample_name", exp.SampleName,
			"outlier_traits", exp.OutlierTraits,
			"total_traits", exp.TotalTraits,
			"outlier_percentage", exp.OutlierPercentage)
	}
}
