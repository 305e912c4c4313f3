// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package experiment turns raw tensile-test experiments into
// normalized per-experiment records.
//
// The per-experiment transform is a pure function of its raw input:
// clean the paired strain/stress samples, align and trim the curve to
// its fracture point, fit a polynomial, and flatten the metadata,
// taxonomy, and trait entries into a Record. Batch orchestration with
// progress logging and counters lives in batch.go; the transform
// itself is side-effect free.
package experiment

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/EvoMech/services/mechanics/curve"
	"github.com/AleutianAI/EvoMech/services/mechanics/polyfit"
)

// MinCurvePoints is the minimum number of valid strain/stress pairs an
// experiment must have after cleaning to be processed.
const MinCurvePoints = 10

// diameterTraitType is the one trait type that carries detail fields.
const diameterTraitType = "diameter"

var (
	// ErrTooFewPoints indicates fewer than MinCurvePoints valid pairs.
	// Experiments failing this check are skipped, not failed.
	ErrTooFewPoints = errors.New("too few valid data points")

	// ErrMissingSeries indicates the experiment carries no strain or
	// stress series at all. This is malformed input and counts as a
	// failure.
	ErrMissingSeries = errors.New("experiment is missing strain or stress series")
)

// IsSkip reports whether the processing error is an expected skip
// (insufficient or degenerate data) rather than a failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrTooFewPoints) ||
		errors.Is(err, curve.ErrEmptyCurve) ||
		errors.Is(err, polyfit.ErrInsufficientSamples) ||
		errors.Is(err, polyfit.ErrDegenerateFit)
}

// Options configures per-experiment processing.
type Options struct {
	// Fracture controls fracture detection during trimming.
	Fracture curve.DetectOptions

	// Degree is the polynomial degree for the fit. Must be >= 1.
	Degree int
}

// Process transforms a single raw experiment into a Record.
//
// Description:
//
//	Cleans the paired samples, requires at least MinCurvePoints valid
//	pairs, trims the curve from zero strain to the fracture point,
//	fits the polynomial on the trimmed curve, and copies metadata,
//	mechanical properties, taxonomy (from the first sample-chain
//	element, absent chain means absent taxonomy) and normalized
//	traits into the Record.
//
// Inputs:
//   - id: Experiment id, becomes Record.ExperimentID.
//   - raw: The raw experiment.
//   - opts: Processing options.
//
// Outputs:
//   - *Record: The normalized record. Nil on error.
//   - error: ErrMissingSeries for malformed input; skip conditions
//     (see IsSkip) for curves too short or degenerate to fit.
func Process(id string, raw RawExperiment, opts Options) (*Record, error) {
	strainValues := raw.RawData.EngineeringStrain.Values
	stressValues := raw.RawData.EngineeringStress.Values
	if len(strainValues) == 0 || len(stressValues) == 0 {
		return nil, ErrMissingSeries
	}

	strain, stress, err := curve.CleanPairs(strainValues, stressValues)
	if err != nil {
		return nil, fmt.Errorf("cleaning curve: %w", err)
	}
	if len(strain) < MinCurvePoints {
		return nil, ErrTooFewPoints
	}

	trimmedStrain, trimmedStress, info, err := curve.Trim(strain, stress, opts.Fracture)
	if err != nil {
		return nil, fmt.Errorf("trimming curve: %w", err)
	}
	if len(trimmedStrain) < MinCurvePoints {
		return nil, ErrTooFewPoints
	}

	fit, err := polyfit.Fit(trimmedStrain, trimmedStress, opts.Degree)
	if err != nil {
		return nil, fmt.Errorf("fitting polynomial: %w", err)
	}

	sampleName := raw.Metadata.Name
	if sampleName == "" {
		sampleName = "Unknown"
	}
	expType := raw.Metadata.Type
	if expType == "" {
		expType = "tensile_test"
	}

	rec := &Record{
		ExperimentID:           id,
		SampleName:             sampleName,
		Type:                   expType,
		Date:                   raw.Metadata.Date,
		PolynomialCoefficients: fit.Coefficients,
		RSquared:               fit.RSquared,
		DataPoints:             len(trimmedStrain),
		StrainRange:            info.StrainRange,
		StressRange:            info.StressRange,
		FractureDetected:       info.FractureDetected,
		MaxStress:              info.MaxStress,
		TrimInfo:               info,

		SpecimenDiameter:  raw.MechanicalProperties.SpecimenDiameter,
		StrainAtBreak:     raw.MechanicalProperties.StrainAtBreak,
		StressAtBreak:     raw.MechanicalProperties.StressAtBreak,
		Toughness:         raw.MechanicalProperties.Toughness,
		OffsetYieldStrain: raw.MechanicalProperties.OffsetYieldStrain,
		OffsetYieldStress: raw.MechanicalProperties.OffsetYieldStress,
		Modulus:           raw.MechanicalProperties.Modulus,
		SpecimenName:      raw.MechanicalProperties.SpecimenName,
		StrainRate:        raw.MechanicalProperties.StrainRate,

		Responsible: raw.Metadata.Responsible,
		Notes:       raw.Metadata.Notes,
		Equipment:   raw.Metadata.Equipment,

		AssociatedTraits: normalizeTraits(raw.AssociatedTraits),
		SampleChain:      raw.SampleChain,
	}

	if len(raw.SampleChain) > 0 {
		first := raw.SampleChain[0]
		rec.Family = first.Family
		rec.Genus = first.Genus
		rec.Species = first.Species
		rec.Subsampletype = first.Subsampletype
	}

	return rec, nil
}

// normalizeTraits maps raw trait entries to the {type, measurement,
// equipment, note} shape, attaching detail fields only for trait types
// that define them.
func normalizeTraits(raw []RawTrait) []Trait {
	traits := make([]Trait, 0, len(raw))
	for _, rt := range raw {
		note := rt.Note
		if note == nil {
			note = rt.Notes
		}
		t := Trait{
			Type:        rt.Type,
			Measurement: rt.Measurement,
			Equipment:   rt.Equipment,
			Note:        note,
		}
		if rt.Type == diameterTraitType {
			t.Detail = rt.Detail
			t.NFibres = rt.NFibres
		}
		traits = append(traits, t)
	}
	return traits
}
