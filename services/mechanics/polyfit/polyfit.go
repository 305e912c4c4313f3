// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package polyfit fits least-squares polynomials to trimmed
// stress-strain curves.
//
// The fit is deterministic ordinary least squares: the normal
// equations are assembled from power sums of the predictor and solved
// by Gaussian elimination with partial pivoting. Identical inputs
// always produce identical coefficients.
//
// Thread Safety: All functions are stateless and safe for concurrent use.
package polyfit

import (
	"errors"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientSamples indicates fewer distinct predictor values
	// than the polynomial has coefficients.
	ErrInsufficientSamples = errors.New("insufficient distinct samples for polynomial fit")

	// ErrDegenerateFit indicates a zero-variance response: R-squared
	// is undefined because the total sum of squares is zero.
	ErrDegenerateFit = errors.New("degenerate fit: response has zero variance")

	// ErrSingularSystem indicates the normal equations could not be
	// solved. With enough distinct predictor values this does not
	// happen; it guards against pathological overflow inputs.
	ErrSingularSystem = errors.New("normal equations are singular")
)

// -----------------------------------------------------------------------------
// Fit
// -----------------------------------------------------------------------------

// Result holds the outcome of a polynomial fit.
type Result struct {
	// Coefficients are the fitted polynomial coefficients in ascending
	// degree order: y = c[0] + c[1]*x + ... + c[degree]*x^degree.
	Coefficients []float64

	// RSquared is the coefficient of determination, 1 - SSE/SST,
	// with SST taken against the response mean.
	RSquared float64
}

// Fit computes the least-squares polynomial of the given degree.
//
// Inputs:
//   - x: Predictor values (trimmed strain).
//   - y: Response values (trimmed stress), same length as x.
//   - degree: Polynomial degree, >= 1.
//
// Outputs:
//   - *Result: Coefficients (ascending degree) and R-squared.
//   - error: ErrInsufficientSamples with fewer than degree+1 distinct
//     x values, ErrDegenerateFit when the response has zero variance.
func Fit(x, y []float64, degree int) (*Result, error) {
	if degree < 1 {
		return nil, fmt.Errorf("polyfit: degree must be >= 1, got %d", degree)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("polyfit: length mismatch %d != %d", len(x), len(y))
	}
	if distinctCount(x, degree+1) < degree+1 {
		return nil, ErrInsufficientSamples
	}

	coeffs, err := solveNormalEquations(x, y, degree)
	if err != nil {
		return nil, err
	}

	sst := totalSumOfSquares(y)
	if sst == 0 {
		return nil, ErrDegenerateFit
	}

	var sse float64
	for i, xi := range x {
		r := y[i] - Eval(coeffs, xi)
		sse += r * r
	}

	return &Result{
		Coefficients: coeffs,
		RSquared:     1 - sse/sst,
	}, nil
}

// Eval evaluates a polynomial with ascending-degree coefficients at x
// using Horner's method.
func Eval(coeffs []float64, x float64) float64 {
	var v float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// distinctCount counts distinct values in x, stopping early once
// limit is reached.
func distinctCount(x []float64, limit int) int {
	seen := make(map[float64]struct{}, limit)
	for _, v := range x {
		seen[v] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

func totalSumOfSquares(y []float64) float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	mean := sum / float64(len(y))

	var sst float64
	for _, v := range y {
		d := v - mean
		sst += d * d
	}
	return sst
}

// solveNormalEquations assembles X^T X c = X^T y from power sums and
// solves for c.
func solveNormalEquations(x, y []float64, degree int) ([]float64, error) {
	n := degree + 1

	// Power sums S_k = sum(x^k) for k in [0, 2*degree].
	powerSums := make([]float64, 2*degree+1)
	powerSums[0] = float64(len(x))
	for _, xi := range x {
		p := xi
		for k := 1; k <= 2*degree; k++ {
			powerSums[k] += p
			p *= xi
		}
	}

	// Moments T_k = sum(y * x^k) for k in [0, degree].
	moments := make([]float64, n)
	for i, xi := range x {
		p := 1.0
		for k := 0; k < n; k++ {
			moments[k] += y[i] * p
			p *= xi
		}
	}

	// Augmented matrix [A | b] with A[i][j] = S_{i+j}.
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, n+1)
		for j := 0; j < n; j++ {
			aug[i][j] = powerSums[i+j]
		}
		aug[i][n] = moments[i]
	}

	return gaussianSolve(aug)
}

// gaussianSolve solves an augmented linear system in place using
// partial pivoting. The pivot order depends only on the input values,
// keeping the solution deterministic.
func gaussianSolve(aug [][]float64) ([]float64, error) {
	n := len(aug)

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if aug[pivot][col] == 0 {
			return nil, ErrSingularSystem
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		for row := col + 1; row < n; row++ {
			factor := aug[row][col] / aug[col][col]
			if factor == 0 {
				continue
			}
			for j := col; j <= n; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	coeffs := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		v := aug[i][n]
		for j := i + 1; j < n; j++ {
			v -= aug[i][j] * coeffs[j]
		}
		coeffs[i] = v / aug[i][i]
	}

	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, ErrSingularSystem
		}
	}
	return coeffs, nil
}
