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
	"github.com/AleutianAI/EvoMech/services/mechanics/curve"
)

// -----------------------------------------------------------------------------
// Raw Input Model
// -----------------------------------------------------------------------------

// Series is a named time-series of optional samples.
type Series struct {
	Values []*float64 `json:"values"`
}

// RawData holds the named curves of one tensile test.
type RawData struct {
	EngineeringStrain Series `json:"EngineeringStrain"`
	EngineeringStress Series `json:"EngineeringStress"`
}

// Metadata is the specimen metadata attached to a raw experiment.
// Every field is optional in the source data.
type Metadata struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Date        *string `json:"date"`
	Equipment   *string `json:"equipment"`
	Responsible *string `json:"responsible"`
	Notes       *string `json:"notes"`
}

// MechanicalProperties are the pre-computed scalar properties carried
// alongside the curve. All optional.
type MechanicalProperties struct {
	SpecimenDiameter  *float64 `json:"specimenDiameter"`
	StrainAtBreak     *float64 `json:"strainAtBreak"`
	StressAtBreak     *float64 `json:"stressAtBreak"`
	Toughness         *float64 `json:"toughness"`
	OffsetYieldStrain *float64 `json:"offsetYieldStrain"`
	OffsetYieldStress *float64 `json:"offsetYieldStress"`
	Modulus           *float64 `json:"modulus"`
	SpecimenName      *string  `json:"specimenName"`
	StrainRate        *float64 `json:"strainRate"`
}

// SampleLink is one element of the ancestor chain from the tested
// subsample up to the animal it came from. Taxonomy is copied from the
// first element when present.
type SampleLink struct {
	Family        *string `json:"family"`
	Genus         *string `json:"genus"`
	Species       *string `json:"species"`
	Subsampletype *string `json:"subsampletype"`
}

// RawTrait is a trait entry as delivered by the collection. The
// measurement may be a number, a numeric string, or null.
type RawTrait struct {
	Type        string   `json:"type"`
	Measurement any      `json:"measurement"`
	Equipment   *string  `json:"equipment"`
	Note        *string  `json:"note"`
	Notes       *string  `json:"notes"`
	Detail      *string  `json:"detail"`
	NFibres     *float64 `json:"nfibres"`
}

// RawExperiment is one entry of the raw experiment collection.
type RawExperiment struct {
	Metadata             Metadata             `json:"metadata"`
	RawData              RawData              `json:"rawData"`
	MechanicalProperties MechanicalProperties `json:"mechanicalProperties"`
	SampleChain          []SampleLink         `json:"sampleChain"`
	AssociatedTraits     []RawTrait           `json:"associatedTraits"`
}

// Collection is the raw experiment set keyed by experiment id.
type Collection struct {
	Experiments map[string]RawExperiment `json:"experiments"`
}

// -----------------------------------------------------------------------------
// Normalized Output Model
// -----------------------------------------------------------------------------

// Trait is a normalized trait entry. Detail and NFibres are populated
// only for trait types that carry them (currently "diameter").
type Trait struct {
	Type        string   `json:"type"`
	Measurement any      `json:"measurement"`
	Equipment   *string  `json:"equipment"`
	Note        *string  `json:"note"`
	Detail      *string  `json:"detail,omitempty"`
	NFibres     *float64 `json:"nfibres,omitempty"`
}

// Record is the normalized, immutable per-experiment result.
//
// A Record is created once by the processor and never mutated; every
// later stage reads it.
type Record struct {
	ExperimentID string  `json:"experiment_id"`
	SampleName   string  `json:"sample_name"`
	Type         string  `json:"type"`
	Date         *string `json:"date,omitempty"`

	PolynomialCoefficients []float64 `json:"polynomial_coefficients"`
	RSquared               float64   `json:"r_squared"`
	DataPoints             int       `json:"data_points"`

	StrainRange      [2]float64      `json:"strain_range"`
	StressRange      [2]float64      `json:"stress_range"`
	FractureDetected bool            `json:"fracture_detected"`
	MaxStress        float64         `json:"max_stress"`
	TrimInfo         *curve.TrimInfo `json:"trim_info"`

	SpecimenDiameter  *float64 `json:"specimenDiameter,omitempty"`
	StrainAtBreak     *float64 `json:"strainAtBreak,omitempty"`
	StressAtBreak     *float64 `json:"stressAtBreak,omitempty"`
	Toughness         *float64 `json:"toughness,omitempty"`
	OffsetYieldStrain *float64 `json:"offsetYieldStrain,omitempty"`
	OffsetYieldStress *float64 `json:"offsetYieldStress,omitempty"`
	Modulus           *float64 `json:"modulus,omitempty"`
	SpecimenName      *string  `json:"specimenName,omitempty"`
	StrainRate        *float64 `json:"strainRate,omitempty"`

	Responsible *string `json:"responsible,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Equipment   *string `json:"equipment,omitempty"`

	Family        *string `json:"family,omitempty"`
	Genus         *string `json:"genus,omitempty"`
	Species       *string `json:"species,omitempty"`
	Subsampletype *string `json:"subsampletype,omitempty"`

	AssociatedTraits []Trait      `json:"associatedTraits"`
	SampleChain      []SampleLink `json:"sampleChain,omitempty"`
}
