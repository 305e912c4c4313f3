// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"context"
	"math"
	"testing"

	"github.com/AleutianAI/EvoMech/services/mechanics/traits"
)

func sp(s string) *string { return &s }

func row(id, family, name, subtype string, cols map[string]float64) traits.Row {
	r := traits.Row{
		ExperimentID: id,
		SampleName:   "s-" + id,
		Name:         name,
		Columns:      cols,
	}
	if family != "" {
		r.Family = sp(family)
	}
	if subtype != "" {
		r.Subsampletype = sp(subtype)
	}
	return r
}

func TestAnalyze_GroupFloor(t *testing.T) {
	table := &traits.Table{
		Columns: []string{"trait_mass"},
		Rows: []traits.Row{
			row("e1", "A", "a b", "silk", map[string]float64{"trait_mass": 1}),
			row("e2", "A", "a b", "silk", map[string]float64{"trait_mass": 3}),
			row("e3", "B", "c d", "silk", map[string]float64{"trait_mass": 5}),
		},
	}

	groups := Analyze(context.Background(), table)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group (singleton omitted), got %d", len(groups))
	}
	if groups[0].Key.Family != "A" {
		t.Errorf("unexpected group %+v", groups[0].Key)
	}
}

func TestAnalyze_TwoValueStatistics(t *testing.T) {
	a, b := 2.0, 6.0
	table := &traits.Table{
		Columns: []string{"trait_mass"},
		Rows: []traits.Row{
			row("e1", "A", "a b", "silk", map[string]float64{"trait_mass": a}),
			row("e2", "A", "a b", "silk", map[string]float64{"trait_mass": b}),
		},
	}

	groups := Analyze(context.Background(), table)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	cs := groups[0].Columns["trait_mass"]
	if cs == nil {
		t.Fatal("missing column stats")
	}

	wantMean := (a + b) / 2
	wantStd := math.Abs(a-b) / math.Sqrt2
	if math.Abs(cs.Mean-wantMean) > 1e-12 {
		t.Errorf("mean = %v, want %v", cs.Mean, wantMean)
	}
	if math.Abs(cs.Std-wantStd) > 1e-12 {
		t.Errorf("std = %v, want %v", cs.Std, wantStd)
	}
	if cs.Min != a || cs.Max != b {
		t.Errorf("min/max = %v/%v", cs.Min, cs.Max)
	}
	if cs.Median != wantMean {
		t.Errorf("median = %v, want %v", cs.Median, wantMean)
	}

	low, high := cs.Band(2)
	if math.Abs(low-(wantMean-2*wantStd)) > 1e-12 || math.Abs(high-(wantMean+2*wantStd)) > 1e-12 {
		t.Errorf("band(2) = [%v, %v]", low, high)
	}
	// Bands are symmetric about the mean.
	for k := 1; k <= 3; k++ {
		lo, hi := cs.Band(k)
		if math.Abs((hi-cs.Mean)-(cs.Mean-lo)) > 1e-12 {
			t.Errorf("band %d not symmetric: [%v, %v]", k, lo, hi)
		}
	}
}

func TestAnalyze_ColumnFloor(t *testing.T) {
	table := &traits.Table{
		Columns: []string{"trait_mass", "trait_diameter"},
		Rows: []traits.Row{
			row("e1", "A", "a b", "silk", map[string]float64{"trait_mass": 1, "trait_diameter": 2}),
			row("e2", "A", "a b", "silk", map[string]float64{"trait_mass": 3}),
		},
	}

	groups := Analyze(context.Background(), table)
	g := groups[0]
	if _, ok := g.Columns["trait_mass"]; !ok {
		t.Error("trait_mass should be reported")
	}
	if _, ok := g.Columns["trait_diameter"]; ok {
		t.Error("single-value column should be omitted, not zero-variance")
	}
}

func TestAnalyze_MissingTaxonomyGroupsTogether(t *testing.T) {
	table := &traits.Table{
		Columns: []string{"trait_mass"},
		Rows: []traits.Row{
			row("e1", "", "", "", map[string]float64{"trait_mass": 1}),
			row("e2", "", "", "", map[string]float64{"trait_mass": 2}),
		},
	}

	groups := Analyze(context.Background(), table)
	if len(groups) != 1 {
		t.Fatalf("rows without taxonomy should form their own group, got %d groups", len(groups))
	}
	g := groups[0]
	if g.Family != nil || g.Name != nil || g.Subsampletype != nil {
		t.Errorf("missing components should stay nil: %+v", g)
	}
	if g.SampleCount != 2 {
		t.Errorf("sample count = %d", g.SampleCount)
	}
}

func TestAnalyze_StableKeyOrder(t *testing.T) {
	table := &traits.Table{
		Columns: []string{"trait_mass"},
		Rows: []traits.Row{
			row("e1", "B", "x y", "silk", map[string]float64{"trait_mass": 1}),
			row("e2", "B", "x y", "silk", map[string]float64{"trait_mass": 2}),
			row("e3", "A", "a b", "silk", map[string]float64{"trait_mass": 3}),
			row("e4", "A", "a b", "silk", map[string]float64{"trait_mass": 4}),
			row("e5", "A", "a b", "web", map[string]float64{"trait_mass": 5}),
			row("e6", "A", "a b", "web", map[string]float64{"trait_mass": 6}),
		},
	}

	for i := 0; i < 5; i++ {
		groups := Analyze(context.Background(), table)
		if len(groups) != 3 {
			t.Fatalf("expected 3 groups, got %d", len(groups))
		}
		if groups[0].Key.Family != "A" || groups[0].Key.Subsampletype != "silk" {
			t.Errorf("run %d: wrong first group %+v", i, groups[0].Key)
		}
		if groups[2].Key.Family != "B" {
			t.Errorf("run %d: wrong last group %+v", i, groups[2].Key)
		}
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{5, 1, 3}); got != 3 {
		t.Errorf("odd median = %v", got)
	}
	if got := median([]float64{4, 1, 2, 3}); got != 2.5 {
		t.Errorf("even median = %v", got)
	}
}
