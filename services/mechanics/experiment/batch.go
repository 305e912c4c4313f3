// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experiment

import (
	"context"
	"runtime"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/EvoMech/pkg/logging"
)

// -----------------------------------------------------------------------------
// Prometheus Metrics
// -----------------------------------------------------------------------------

var (
	experimentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evomech_experiments_processed_total",
		Help: "Total experiments processed successfully",
	})

	experimentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evomech_experiments_skipped_total",
		Help: "Total experiments skipped for insufficient or degenerate data",
	})

	experimentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evomech_experiments_failed_total",
		Help: "Total experiments failed with malformed input",
	})
)

var batchTracer = otel.Tracer("mechanics.experiment.batch")

// -----------------------------------------------------------------------------
// Batch Orchestration
// -----------------------------------------------------------------------------

// BatchOptions configures a batch run.
type BatchOptions struct {
	// Options are the per-experiment processing options.
	Options

	// MaxExperiments caps how many experiments are processed.
	// Zero means no cap. The cap applies to the id-sorted list, so
	// identical inputs always select identical subsets.
	MaxExperiments int

	// Workers bounds per-experiment parallelism. Zero means
	// runtime.NumCPU(). Processing one experiment is a pure function
	// of its raw input, so parallelism never changes results.
	Workers int
}

// SkipReason records why one experiment produced no record.
type SkipReason struct {
	ExperimentID string `json:"experiment_id"`
	Reason       string `json:"reason"`
	Failed       bool   `json:"failed"`
}

// BatchResult is the outcome of processing a collection.
type BatchResult struct {
	// Records holds the successful records, ordered by experiment id.
	Records []*Record

	// Processed, Skipped, and Failed tally the batch. Their sum equals
	// the number of experiments attempted.
	Processed int
	Skipped   int
	Failed    int

	// Reasons lists every skipped or failed experiment with its cause,
	// ordered by experiment id.
	Reasons []SkipReason
}

// RunBatch processes every experiment in the collection.
//
// Description:
//
//	Experiment ids are sorted, optionally capped, and processed in
//	parallel. Per-experiment failures never abort the batch; they are
//	tallied and logged. Output order is by experiment id regardless
//	of completion order, so runs are reproducible.
//
// Inputs:
//   - ctx: Context for tracing. Processing itself is not cancellable;
//     failures are per-item and the batch always runs to completion.
//   - logger: Destination for progress and per-item diagnostics.
//   - experiments: The raw collection.
//   - opts: Batch options.
//
// Outputs:
//   - *BatchResult: Tallies and id-ordered records. Never nil.
func RunBatch(ctx context.Context, logger *logging.Logger, experiments map[string]RawExperiment, opts BatchOptions) *BatchResult {
	ctx, span := batchTracer.Start(ctx, "RunBatch")
	defer span.End()

	ids := make([]string, 0, len(experiments))
	for id := range experiments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if opts.MaxExperiments > 0 && len(ids) > opts.MaxExperiments {
		ids = ids[:opts.MaxExperiments]
	}

	span.SetAttributes(attribute.Int("experiments.total", len(ids)))
	logger.Info("processing experiments", "count", len(ids), "degree", opts.Degree)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type outcome struct {
		record *Record
		err    error
	}
	outcomes := make([]outcome, len(ids))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			rec, err := Process(id, experiments[id], opts.Options)
			outcomes[i] = outcome{record: rec, err: err}
			return nil
		})
	}
	// Workers never return errors; failures live in the outcomes.
	_ = g.Wait()

	result := &BatchResult{}
	for i, id := range ids {
		out := outcomes[i]
		switch {
		case out.err == nil:
			result.Records = append(result.Records, out.record)
			result.Processed++
			experimentsProcessed.Inc()
		case IsSkip(out.err):
			result.Skipped++
			experimentsSkipped.Inc()
			result.Reasons = append(result.Reasons, SkipReason{ExperimentID: id, Reason: out.err.Error()})
			logger.Debug("experiment skipped", "experiment_id", id, "reason", out.err)
		default:
			result.Failed++
			experimentsFailed.Inc()
			result.Reasons = append(result.Reasons, SkipReason{ExperimentID: id, Reason: out.err.Error(), Failed: true})
			logger.Warn("experiment failed", "experiment_id", id, "error", out.err)
		}
	}

	span.SetAttributes(
		attribute.Int("experiments.processed", result.Processed),
		attribute.Int("experiments.skipped", result.Skipped),
		attribute.Int("experiments.failed", result.Failed),
	)
	logger.Info("batch complete",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result
}
