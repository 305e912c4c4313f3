// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package curve

import (
	"errors"
	"testing"
)

func fp(v float64) *float64 { return &v }

// -----------------------------------------------------------------------------
// CleanPairs Tests
// -----------------------------------------------------------------------------

func TestCleanPairs(t *testing.T) {
	t.Run("drops indices with missing values", func(t *testing.T) {
		strain := []*float64{fp(0), nil, fp(0.2), fp(0.3)}
		stress := []*float64{fp(1), fp(2), nil, fp(4)}

		cleanStrain, cleanStress, err := CleanPairs(strain, stress)
		if err != nil {
			t.Fatalf("CleanPairs: %v", err)
		}
		if len(cleanStrain) != 2 || len(cleanStress) != 2 {
			t.Fatalf("expected 2 pairs, got %d/%d", len(cleanStrain), len(cleanStress))
		}
		if cleanStrain[1] != 0.3 || cleanStress[1] != 4 {
			t.Errorf("wrong surviving pair: %v %v", cleanStrain, cleanStress)
		}
	})

	t.Run("uses shorter array length", func(t *testing.T) {
		strain := []*float64{fp(0), fp(0.1), fp(0.2)}
		stress := []*float64{fp(1), fp(2)}

		cleanStrain, _, err := CleanPairs(strain, stress)
		if err != nil {
			t.Fatalf("CleanPairs: %v", err)
		}
		if len(cleanStrain) != 2 {
			t.Errorf("expected 2 pairs, got %d", len(cleanStrain))
		}
	})

	t.Run("all missing yields ErrEmptyCurve", func(t *testing.T) {
		strain := []*float64{nil, fp(0.1)}
		stress := []*float64{fp(1), nil}

		_, _, err := CleanPairs(strain, stress)
		if !errors.Is(err, ErrEmptyCurve) {
			t.Errorf("expected ErrEmptyCurve, got %v", err)
		}
	})
}

// -----------------------------------------------------------------------------
// ZeroStrainIndex Tests
// -----------------------------------------------------------------------------

func TestZeroStrainIndex(t *testing.T) {
	t.Run("minimal absolute value", func(t *testing.T) {
		strain := []float64{-0.5, -0.01, 0.3, 0.8}
		if got := ZeroStrainIndex(strain); got != 1 {
			t.Errorf("expected index 1, got %d", got)
		}
	})

	t.Run("ties resolve to first occurrence", func(t *testing.T) {
		strain := []float64{0.2, -0.1, 0.1, 0.5}
		if got := ZeroStrainIndex(strain); got != 1 {
			t.Errorf("expected first tie at index 1, got %d", got)
		}
	})

	t.Run("exact zero", func(t *testing.T) {
		strain := []float64{0.3, 0.0, -0.0, 0.1}
		if got := ZeroStrainIndex(strain); got != 1 {
			t.Errorf("expected index 1, got %d", got)
		}
	})
}

// -----------------------------------------------------------------------------
// DetectFracture Tests
// -----------------------------------------------------------------------------

func TestDetectFracture(t *testing.T) {
	t.Run("insufficient samples returns none", func(t *testing.T) {
		stress := []float64{1, 2, 3, 4, 5}
		_, ok := DetectFracture(stress, DetectOptions{MinPoints: 0, DropThreshold: 0.5})
		if ok {
			t.Error("expected no detection with fewer than min_points+10 samples")
		}
	})

	t.Run("stop at max returns global max index", func(t *testing.T) {
		stress := []float64{0, 10, 20, 30, 25, 5, 4, 3, 2, 1, 0}
		idx, ok := DetectFracture(stress, DetectOptions{StopAtMax: true, MinPoints: 0})
		if !ok || idx != 3 {
			t.Errorf("expected index 3, got %d ok=%v", idx, ok)
		}
	})

	t.Run("drop threshold finds first post-peak drop", func(t *testing.T) {
		stress := []float64{0, 10, 20, 30, 25, 5, 4, 3, 2, 1, 0}
		idx, ok := DetectFracture(stress, DetectOptions{DropThreshold: 0.5, MinPoints: 0})
		// max stress 30 at index 3; first stress < 15 after it is 5 at index 5
		if !ok || idx != 5 {
			t.Errorf("expected index 5, got %d ok=%v", idx, ok)
		}
	})

	t.Run("never returns index before max", func(t *testing.T) {
		stress := []float64{5, 1, 2, 30, 25, 20, 14, 13, 12, 11, 10}
		idx, ok := DetectFracture(stress, DetectOptions{DropThreshold: 0.5, MinPoints: 0})
		if !ok {
			t.Fatal("expected detection")
		}
		if idx < 3 {
			t.Errorf("fracture index %d precedes max-stress index 3", idx)
		}
	})

	t.Run("no drop below cutoff returns none", func(t *testing.T) {
		stress := []float64{0, 10, 20, 30, 29, 28, 27, 26, 25, 24, 23}
		_, ok := DetectFracture(stress, DetectOptions{DropThreshold: 0.5, MinPoints: 0})
		if ok {
			t.Error("expected no detection when stress never drops below cutoff")
		}
	})

	t.Run("min_points excludes trailing samples", func(t *testing.T) {
		// drop happens only in the last two samples, which MinPoints masks
		stress := []float64{0, 10, 20, 30, 29, 28, 27, 26, 25, 5, 4}
		_, ok := DetectFracture(stress, DetectOptions{DropThreshold: 0.5, MinPoints: 2})
		if ok {
			t.Error("expected no detection when drop is inside the trailing window")
		}
	})
}

// -----------------------------------------------------------------------------
// Trim Tests
// -----------------------------------------------------------------------------

func TestTrim(t *testing.T) {
	t.Run("end to end fracture trim", func(t *testing.T) {
		strain := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
		stress := []float64{0, 10, 20, 30, 25, 5, 4, 3, 2, 1, 0}

		ts, tss, info, err := Trim(strain, stress, DetectOptions{DropThreshold: 0.5, MinPoints: 0})
		if err != nil {
			t.Fatalf("Trim: %v", err)
		}
		if !info.FractureDetected || info.FractureIdx == nil || *info.FractureIdx != 5 {
			t.Fatalf("expected fracture at index 5, got %+v", info)
		}
		if info.ZeroStrainIdx != 0 {
			t.Errorf("expected zero-strain index 0, got %d", info.ZeroStrainIdx)
		}
		if len(ts) != 5 || len(tss) != 5 {
			t.Errorf("expected 5 trimmed points, got %d", len(ts))
		}
		if info.TrimmedPoints > info.OriginalPoints {
			t.Error("trimmed points exceed original points")
		}
		if info.MaxStress != 30 {
			t.Errorf("expected max stress 30, got %v", info.MaxStress)
		}
		if info.StrainRange != [2]float64{0, 0.4} {
			t.Errorf("unexpected strain range %v", info.StrainRange)
		}
		if info.StressRange != [2]float64{0, 30} {
			t.Errorf("unexpected stress range %v", info.StressRange)
		}
	})

	t.Run("no fracture keeps full tail", func(t *testing.T) {
		strain := make([]float64, 12)
		stress := make([]float64, 12)
		for i := range strain {
			strain[i] = float64(i) * 0.1
			stress[i] = float64(i)
		}

		ts, _, info, err := Trim(strain, stress, DetectOptions{DropThreshold: 0.5, MinPoints: 0})
		if err != nil {
			t.Fatalf("Trim: %v", err)
		}
		if info.FractureDetected {
			t.Error("monotone curve should not fracture")
		}
		if len(ts) != 12 {
			t.Errorf("expected full curve, got %d points", len(ts))
		}
	})

	t.Run("trims leading negative strain", func(t *testing.T) {
		strain := []float64{-0.2, -0.1, 0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
		stress := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

		ts, _, info, err := Trim(strain, stress, DetectOptions{DropThreshold: 0.9, MinPoints: 0})
		if err != nil {
			t.Fatalf("Trim: %v", err)
		}
		if info.ZeroStrainIdx != 2 {
			t.Errorf("expected zero-strain index 2, got %d", info.ZeroStrainIdx)
		}
		if len(ts) != 10 {
			t.Errorf("expected 10 points, got %d", len(ts))
		}
	})

	t.Run("fracture before zero strain is empty", func(t *testing.T) {
		// max stress sits at index 0 and stop-at-max cuts there, but
		// zero strain is at index 2
		strain := []float64{-0.2, -0.1, 0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7}
		stress := []float64{30, 29, 3, 4, 5, 6, 7, 8, 9, 10}

		_, _, _, err := Trim(strain, stress, DetectOptions{StopAtMax: true, MinPoints: 0})
		if !errors.Is(err, ErrEmptyCurve) {
			t.Errorf("expected ErrEmptyCurve, got %v", err)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, _, err := Trim([]float64{1, 2}, []float64{1}, DetectOptions{})
		if !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})
}
