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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/EvoMech/services/mechanics/curve"
	"github.com/AleutianAI/EvoMech/services/mechanics/experiment"
	"github.com/AleutianAI/EvoMech/services/mechanics/report"
	"github.com/AleutianAI/EvoMech/services/mechanics/store"
)

// runProcess is the processing stage: load the raw collection, trim
// and fit every curve, then write the records artifact and, when a
// store is configured, persist the records for later re-analysis.
func runProcess(ctx context.Context) error {
	collection, err := loadCollection(inputPath)
	if err != nil {
		return err
	}
	logger.Info("loaded experiment collection",
		"path", inputPath,
		"experiments", len(collection.Experiments))

	opts := experiment.BatchOptions{
		Options: experiment.Options{
			Fracture: curve.DetectOptions{
				StopAtMax:     cfg.FractureDetection.StopMaxStress,
				DropThreshold: cfg.FractureDetection.DropThreshold,
				MinPoints:     cfg.FractureDetection.MinPoints,
			},
			Degree: cfg.Processing.PolynomialDegree,
		},
		MaxExperiments: cfg.Processing.MaxExperiments,
		Workers:        cfg.Processing.Workers,
	}

	result := experiment.RunBatch(ctx, logger, collection.Experiments, opts)

	doc := &report.RecordsDocument{
		Metadata: report.NewRecordsMetadata(
			len(result.Records),
			cfg.Processing.PolynomialDegree,
			report.FractureSettings{
				StopMaxStress: cfg.FractureDetection.StopMaxStress,
				DropThreshold: cfg.FractureDetection.DropThreshold,
				MinPoints:     cfg.FractureDetection.MinPoints,
			},
		),
		Experiments: make(map[string]*experiment.Record, len(result.Records)),
	}
	for _, rec := range result.Records {
		doc.Experiments[rec.ExperimentID] = rec
	}

	recordsPath := filepath.Join(cfg.Output.OutputDir, cfg.Output.RecordsFile)
	if err := report.WriteRecords(recordsPath, doc); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	logger.Info("records written",
		"path", recordsPath,
		"run_id", doc.Metadata.RunID,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed)

	if cfg.Output.StoreDir != "" {
		if err := persistRecords(doc.Experiments); err != nil {
			return fmt.Errorf("persisting records: %w", err)
		}
		logger.Info("records persisted", "store", cfg.Output.StoreDir)
	}
	return nil
}

func loadCollection(path string) (*experiment.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment collection: %w", err)
	}
	var collection experiment.Collection
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("parsing experiment collection %s: %w", path, err)
	}
	return &collection, nil
}

func persistRecords(records map[string]*experiment.Record) error {
	s, err := store.Open(store.Config{
		Path:       cfg.Output.StoreDir,
		SyncWrites: true,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return err
	}
	defer s.Close()
	return s.PutRecords(records)
}
