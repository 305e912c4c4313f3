// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package curve cleans and trims raw stress-strain curves.
//
// A raw tensile-test curve arrives as two parallel sequences of
// optional samples. This package removes invalid pairs, aligns the
// curve at zero strain, detects the fracture point where stress drops
// sharply after its maximum, and trims the curve to the usable span.
//
// Thread Safety: All functions are stateless and safe for concurrent use.
package curve

import (
	"errors"
	"math"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyCurve indicates that no valid strain/stress pairs remain
	// after cleaning, or that trimming removed every point.
	ErrEmptyCurve = errors.New("curve has no valid data points")

	// ErrLengthMismatch indicates strain and stress arrays of unequal
	// length were passed where equal lengths are required.
	ErrLengthMismatch = errors.New("strain and stress arrays have different lengths")
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// DetectOptions controls fracture detection.
type DetectOptions struct {
	// StopAtMax terminates the curve at the global maximum-stress
	// point instead of searching for a post-peak drop.
	StopAtMax bool

	// DropThreshold is the relative stress drop that counts as
	// fracture: the first post-peak sample below
	// max_stress * (1 - DropThreshold) is the fracture point.
	// Must be in [0, 1].
	DropThreshold float64

	// MinPoints is the number of trailing samples excluded from the
	// fracture scan. Detection requires at least MinPoints+10 samples.
	MinPoints int
}

// TrimInfo describes how a curve was trimmed.
type TrimInfo struct {
	// OriginalPoints is the cleaned curve length before trimming.
	OriginalPoints int `json:"original_points"`

	// TrimmedPoints is the curve length after trimming.
	// Always <= OriginalPoints.
	TrimmedPoints int `json:"trimmed_points"`

	// ZeroStrainIdx is the index of the sample closest to zero strain.
	ZeroStrainIdx int `json:"zero_strain_idx"`

	// FractureIdx is the detected fracture index in the cleaned curve,
	// or nil when no fracture was detected.
	FractureIdx *int `json:"fracture_idx"`

	// FractureDetected reports whether a fracture point was found.
	FractureDetected bool `json:"fracture_detected"`

	// StrainRange is the [min, max] of the trimmed strain values.
	StrainRange [2]float64 `json:"strain_range"`

	// StressRange is the [min, max] of the trimmed stress values.
	StressRange [2]float64 `json:"stress_range"`

	// MaxStress is the maximum stress in the trimmed curve.
	MaxStress float64 `json:"max_stress"`
}

// -----------------------------------------------------------------------------
// Cleaning
// -----------------------------------------------------------------------------

// CleanPairs removes every index where either the strain or the stress
// sample is absent.
//
// Inputs:
//   - strain: Raw strain samples, nil entries allowed.
//   - stress: Raw stress samples, nil entries allowed. Extra trailing
//     samples in the longer array are ignored.
//
// Outputs:
//   - []float64: Cleaned strain values, equal length to cleaned stress.
//   - []float64: Cleaned stress values.
//   - error: ErrEmptyCurve if no valid pair remains.
func CleanPairs(strain, stress []*float64) ([]float64, []float64, error) {
	n := len(strain)
	if len(stress) < n {
		n = len(stress)
	}

	cleanStrain := make([]float64, 0, n)
	cleanStress := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if strain[i] == nil || stress[i] == nil {
			continue
		}
		cleanStrain = append(cleanStrain, *strain[i])
		cleanStress = append(cleanStress, *stress[i])
	}

	if len(cleanStrain) == 0 {
		return nil, nil, ErrEmptyCurve
	}
	return cleanStrain, cleanStress, nil
}

// ZeroStrainIndex returns the index of the sample with minimal
// absolute strain. Ties resolve to the first occurrence.
func ZeroStrainIndex(strain []float64) int {
	idx := 0
	best := math.Inf(1)
	for i, v := range strain {
		if abs := math.Abs(v); abs < best {
			best = abs
			idx = i
		}
	}
	return idx
}

// maxStressIndex returns the index of the global stress maximum,
// first occurrence on ties.
func maxStressIndex(stress []float64) int {
	idx := 0
	for i, v := range stress {
		if v > stress[idx] {
			idx = i
		}
	}
	return idx
}

// -----------------------------------------------------------------------------
// Fracture Detection
// -----------------------------------------------------------------------------

// DetectFracture locates the fracture point of a cleaned curve.
//
// Description:
//
//	With fewer than MinPoints+10 samples there is not enough signal to
//	distinguish a fracture from noise, so detection reports no result
//	(this is expected, not an error). In stop-at-max mode the global
//	maximum-stress index is the fracture point. Otherwise the scan
//	moves forward from the maximum-stress index through
//	len(stress)-MinPoints and returns the first index whose stress has
//	dropped below max_stress * (1 - DropThreshold).
//
// Inputs:
//   - stress: Cleaned stress values.
//   - opts: Detection options.
//
// Outputs:
//   - int: Fracture index, valid only when the bool is true.
//   - bool: Whether a fracture point was found.
func DetectFracture(stress []float64, opts DetectOptions) (int, bool) {
	if len(stress) < opts.MinPoints+10 {
		return 0, false
	}

	maxIdx := maxStressIndex(stress)
	if opts.StopAtMax {
		return maxIdx, true
	}

	maxStress := stress[maxIdx]
	cutoff := maxStress * (1 - opts.DropThreshold)
	for i := maxIdx; i < len(stress)-opts.MinPoints; i++ {
		if stress[i] < cutoff {
			return i, true
		}
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Trimming
// -----------------------------------------------------------------------------

// Trim slices a cleaned curve from the zero-strain sample up to the
// fracture point, or to the end of the curve when no fracture was
// detected.
//
// Inputs:
//   - strain: Cleaned strain values.
//   - stress: Cleaned stress values, same length as strain.
//   - opts: Fracture detection options.
//
// Outputs:
//   - []float64: Trimmed strain values.
//   - []float64: Trimmed stress values.
//   - *TrimInfo: Description of the trim. Never nil on success.
//   - error: ErrLengthMismatch, or ErrEmptyCurve when the trim window
//     is empty (fracture at or before the zero-strain sample).
func Trim(strain, stress []float64, opts DetectOptions) ([]float64, []float64, *TrimInfo, error) {
	if len(strain) != len(stress) {
		return nil, nil, nil, ErrLengthMismatch
	}
	if len(strain) == 0 {
		return nil, nil, nil, ErrEmptyCurve
	}

	zeroIdx := ZeroStrainIndex(strain)

	end := len(strain)
	var fractureIdx *int
	if idx, ok := DetectFracture(stress, opts); ok {
		i := idx
		fractureIdx = &i
		end = idx
	}

	if end <= zeroIdx {
		return nil, nil, nil, ErrEmptyCurve
	}

	trimmedStrain := strain[zeroIdx:end]
	trimmedStress := stress[zeroIdx:end]

	info := &TrimInfo{
		OriginalPoints:   len(strain),
		TrimmedPoints:    len(trimmedStrain),
		ZeroStrainIdx:    zeroIdx,
		FractureIdx:      fractureIdx,
		FractureDetected: fractureIdx != nil,
		StrainRange:      [2]float64{minOf(trimmedStrain), maxOf(trimmedStrain)},
		StressRange:      [2]float64{minOf(trimmedStress), maxOf(trimmedStress)},
		MaxStress:        maxOf(trimmedStress),
	}
	return trimmedStrain, trimmedStress, info, nil
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
