// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides pipeline configuration loading.
//
// Configuration lives in a YAML file. A missing file is created with
// defaults on first run; a present file is merged over the defaults so
// partial files stay valid across new fields. Validation failures are
// fatal at startup: the pipeline never starts with an out-of-range
// threshold or degree.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps validation failures. Callers treat it as
// fatal before the run begins.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full pipeline configuration.
type Config struct {
	FractureDetection FractureDetectionConfig `yaml:"fracture_detection"`
	Processing        ProcessingConfig        `yaml:"processing"`
	Analysis          AnalysisConfig          `yaml:"analysis"`
	Output            OutputConfig            `yaml:"output"`
}

// FractureDetectionConfig controls how the fracture point is located.
type FractureDetectionConfig struct {
	// StopMaxStress terminates curves at the maximum-stress point
	// instead of searching for a post-peak drop.
	StopMaxStress bool `yaml:"stop_max_stress"`

	// DropThreshold is the relative post-peak stress drop treated as
	// fracture. Must be in [0, 1].
	DropThreshold float64 `yaml:"drop_threshold" validate:"gte=0,lte=1"`

	// MinPoints is the number of trailing samples excluded from the
	// fracture scan.
	MinPoints int `yaml:"min_points" validate:"gte=0"`
}

// ProcessingConfig controls per-experiment processing.
type ProcessingConfig struct {
	// PolynomialDegree is the degree of the fitted polynomial.
	PolynomialDegree int `yaml:"polynomial_degree" validate:"gte=1,lte=10"`

	// MaxExperiments caps the number of experiments processed.
	// Zero processes everything.
	MaxExperiments int `yaml:"max_experiments" validate:"gte=0"`

	// Workers bounds per-experiment parallelism. Zero uses one worker
	// per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`
}

// AnalysisConfig controls outlier analysis.
type AnalysisConfig struct {
	// SigmaLevel selects the band width for experiment-level flagging.
	SigmaLevel int `yaml:"sigma_level" validate:"gte=1,lte=3"`

	// OutlierTraitThreshold is the minimum fraction of a group's
	// traits an experiment must be outlier on to be flagged.
	OutlierTraitThreshold float64 `yaml:"outlier_trait_threshold" validate:"gte=0,lte=1"`
}

// OutputConfig names the output artifacts.
type OutputConfig struct {
	// OutputDir holds every artifact. Created if missing.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// RecordsFile is the normalized per-experiment record set.
	RecordsFile string `yaml:"records_file" validate:"required"`

	// AnalysisFile is the hierarchical outlier analysis report.
	AnalysisFile string `yaml:"analysis_file" validate:"required"`

	// ExperimentsFile is the CSV of flagged outlier experiments.
	ExperimentsFile string `yaml:"experiments_file" validate:"required"`

	// StoreDir is the local record store directory. Empty disables
	// the store.
	StoreDir string `yaml:"store_dir"`
}

// Default returns the default configuration. The numeric defaults
// match the historical processing runs so re-analysis stays
// comparable.
func Default() Config {
	return Config{
		FractureDetection: FractureDetectionConfig{
			StopMaxStress: false,
			DropThreshold: 0.9,
			MinPoints:     1,
		},
		Processing: ProcessingConfig{
			PolynomialDegree: 1,
		},
		Analysis: AnalysisConfig{
			SigmaLevel:            2,
			OutlierTraitThreshold: 0.3,
		},
		Output: OutputConfig{
			OutputDir:       "processed_data",
			RecordsFile:     "hierarchical_experiment_data_no_curves.json",
			AnalysisFile:    "outlier_analysis.json",
			ExperimentsFile: "outlier_experiments.csv",
			StoreDir:        "",
		},
	}
}

var validate = validator.New()

// Validate checks every range constraint.
//
// Outputs:
//   - error: nil, or ErrInvalidConfig wrapped with field details.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads the configuration file at path, creating it with
// defaults when absent.
//
// Description:
//
//	The file is unmarshalled over Default(), so fields missing from
//	the file keep their default value. The result is validated; an
//	out-of-range value is fatal.
//
// Inputs:
//   - path: Config file path.
//
// Outputs:
//   - *Config: The merged, validated configuration.
//   - error: I/O, parse, or validation failure.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
