// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.FractureDetection.StopMaxStress)
	assert.Equal(t, 0.9, cfg.FractureDetection.DropThreshold)
	assert.Equal(t, 1, cfg.FractureDetection.MinPoints)
	assert.Equal(t, 1, cfg.Processing.PolynomialDegree)
	assert.Equal(t, 2, cfg.Analysis.SigmaLevel)
	assert.Equal(t, 0.3, cfg.Analysis.OutlierTraitThreshold)
	assert.Equal(t, "processed_data", cfg.Output.OutputDir)
	assert.Equal(t, "hierarchical_experiment_data_no_curves.json", cfg.Output.RecordsFile)
	assert.Equal(t, "outlier_analysis.json", cfg.Output.AnalysisFile)
	assert.Equal(t, "outlier_experiments.csv", cfg.Output.ExperimentsFile)

	require.NoError(t, cfg.Validate())
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config file should be created on first load")
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	partial := `
processing:
  polynomial_degree: 3
analysis:
  sigma_level: 3
`
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Processing.PolynomialDegree)
	assert.Equal(t, 3, cfg.Analysis.SigmaLevel)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.9, cfg.FractureDetection.DropThreshold)
	assert.Equal(t, 0.3, cfg.Analysis.OutlierTraitThreshold)
	assert.Equal(t, "processed_data", cfg.Output.OutputDir)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	cases := map[string]string{
		"drop threshold above one": `
fracture_detection:
  drop_threshold: 1.5
`,
		"negative min points": `
fracture_detection:
  min_points: -1
`,
		"degree zero": `
processing:
  polynomial_degree: 0
`,
		"sigma level out of range": `
analysis:
  sigma_level: 4
`,
		"trait threshold above one": `
analysis:
  outlier_trait_threshold: 1.2
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pipeline.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fracture_detection: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
