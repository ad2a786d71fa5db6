// Package testutil provides shared fixtures and assertion helpers for the
// sim/ and sim/cost/ test packages.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// Dense builds a matrix from literal rows.
func Dense(rows ...[]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for r, row := range rows {
		m.SetRow(r, row)
	}
	return m
}

// Filled returns an r×c matrix with every cell set to v.
func Filled(r, c int, v float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(r, c, data)
}

// AssertRowSums checks that every row of m sums to want within absTol.
func AssertRowSums(t *testing.T, name string, m *mat.Dense, want, absTol float64) {
	t.Helper()
	rows, _ := m.Dims()
	for r := 0; r < rows; r++ {
		if got := floats.Sum(m.RawRowView(r)); math.Abs(got-want) > absTol {
			t.Errorf("%s: row %d sums to %v, want %v (tol %v)", name, r, got, want, absTol)
		}
	}
}

// AssertNonNegative checks that no cell of m is below zero.
func AssertNonNegative(t *testing.T, name string, m *mat.Dense) {
	t.Helper()
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if v := m.At(r, c); v < 0 {
				t.Errorf("%s: cell (%d,%d) = %v is negative", name, r, c, v)
			}
		}
	}
}

// AssertSkewSymmetric checks that m equals -mᵀ exactly.
func AssertSkewSymmetric(t *testing.T, name string, m *mat.Dense) {
	t.Helper()
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if m.At(i, j) != -m.At(j, i) {
				t.Errorf("%s: (%d,%d)=%v but (%d,%d)=%v", name, i, j, m.At(i, j), j, i, m.At(j, i))
			}
		}
	}
}
