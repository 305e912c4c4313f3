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
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	jsonLogs   bool
	inputPath  string
	outputDir  string

	rootCmd = &cobra.Command{
		Use:   "evomech",
		Short: "A cli to process and analyze tensile test data",
		Long: `EvoMech processes raw stress-strain curves from tensile test
				experiments, fits polynomial models to the trimmed curves, and
				flags statistical outliers within taxonomic groups.`,
	}

	// --- Processing ---
	processCmd = &cobra.Command{
		Use:   "process",
		Short: "Trim curves, fit polynomials, and write experiment records",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runProcess(cmd.Context()); err != nil {
				logger.Error("processing failed", "error", err)
				os.Exit(1)
			}
		},
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Detect statistical outliers in processed experiment records",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runAnalyze(cmd.Context()); err != nil {
				logger.Error("analysis failed", "error", err)
				os.Exit(1)
			}
		},
	}

	// --- Full Pipeline ---
	runPipelineCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: process then analyze",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runProcess(cmd.Context()); err != nil {
				logger.Error("processing failed", "error", err)
				os.Exit(1)
			}
			if err := runAnalyze(cmd.Context()); err != nil {
				logger.Error("analysis failed", "error", err)
				os.Exit(1)
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/pipeline.yaml",
		"Path to the pipeline configuration file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false,
		"Emit structured JSON logs instead of text")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "",
		"Override the configured output directory")

	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&inputPath, "input", "downloaded_data/experiments_data.json",
		"Path to the raw experiment collection JSON")

	rootCmd.AddCommand(analyzeCmd)

	rootCmd.AddCommand(runPipelineCmd)
	runPipelineCmd.Flags().StringVar(&inputPath, "input", "downloaded_data/experiments_data.json",
		"Path to the raw experiment collection JSON")
}
