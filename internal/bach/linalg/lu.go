// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package linalg implements the 1-indexed LU decomposition with partial
// pivoting used by the global kernel fit. The legacy Numerical Recipes
// convention is load-bearing: callers allocate n+1 rows/columns with index
// 0 unused, matching the fit's own 1-indexed solution vector so no
// shifting is needed at the call sites.
package linalg

import (
	"fmt"
	"math"
)

// tiny substitutes for an exactly-zero pivot, avoiding division by zero
// without materially changing a well-posed solve.
const tiny = 1.0e-20

// LUDecompose performs in-place LU decomposition of the n x n matrix held
// in a[1..n][1..n] (row 0 and column 0 unused), with partial pivoting
// scaled by each row's largest magnitude entry. It returns the row
// permutation index[1..n] and the sign of the permutation (+1 or -1), or
// an error if a row is entirely zero.
func LUDecompose(a [][]float64, n int) (index []int, sign float64, err error) {
	index = make([]int, n+1)
	sign = 1.0
	vv := make([]float64, n+1)

	for i := 1; i <= n; i++ {
		big := 0.0
		for j := 1; j <= n; j++ {
			if v := math.Abs(a[i][j]); v > big {
				big = v
			}
		}
		if big == 0 {
			return nil, 0, fmt.Errorf("linalg: singular matrix, row %d is all zero", i)
		}
		vv[i] = 1.0 / big
	}

	for j := 1; j <= n; j++ {
		for i := 1; i < j; i++ {
			sum := a[i][j]
			for k := 1; k < i; k++ {
				sum -= a[i][k] * a[k][j]
			}
			a[i][j] = sum
		}

		big := 0.0
		imax := j
		for i := j; i <= n; i++ {
			sum := a[i][j]
			for k := 1; k < j; k++ {
				sum -= a[i][k] * a[k][j]
			}
			a[i][j] = sum

			dum := vv[i] * math.Abs(sum)
			if dum >= big {
				big = dum
				imax = i
			}
		}

		if j != imax {
			for k := 1; k <= n; k++ {
				a[imax][k], a[j][k] = a[j][k], a[imax][k]
			}
			sign = -sign
			vv[imax] = vv[j]
		}
		index[j] = imax

		if a[j][j] == 0.0 {
			a[j][j] = tiny
		}

		if j != n {
			dum := 1.0 / a[j][j]
			for i := j + 1; i <= n; i++ {
				a[i][j] *= dum
			}
		}
	}

	return index, sign, nil
}

// LUBackSubstitute solves a*x = b given the LU decomposition produced by
// LUDecompose (in a, with permutation index), overwriting b in place with
// the solution x.
func LUBackSubstitute(a [][]float64, n int, index []int, b []float64) {
	ii := 0
	for i := 1; i <= n; i++ {
		ip := index[i]
		sum := b[ip]
		b[ip] = b[i]
		if ii != 0 {
			for j := ii; j <= i-1; j++ {
				sum -= a[i][j] * b[j]
			}
		} else if sum != 0 {
			ii = i
		}
		b[i] = sum
	}

	for i := n; i >= 1; i-- {
		sum := b[i]
		for j := i + 1; j <= n; j++ {
			sum -= a[i][j] * b[j]
		}
		b[i] = sum / a[i][i]
	}
}

// NewMatrix allocates an (n+1) x (n+1) matrix with row/column 0 unused.
func NewMatrix(n int) [][]float64 {
	m := make([][]float64, n+1)
	for i := range m {
		m[i] = make([]float64, n+1)
	}
	return m
}

// NewVector allocates an (n+1)-length vector with index 0 unused.
func NewVector(n int) []float64 {
	return make([]float64, n+1)
}

// Solve is a convenience wrapper: decompose a copy of a and back-substitute
// b, leaving the caller's a and b untouched. It returns the solution
// vector x (1-indexed, x[0] is 0).
func Solve(a [][]float64, n int, b []float64) ([]float64, error) {
	workA := NewMatrix(n)
	for i := 1; i <= n; i++ {
		copy(workA[i], a[i])
	}
	index, _, err := LUDecompose(workA, n)
	if err != nil {
		return nil, err
	}
	x := make([]float64, n+1)
	copy(x, b)
	x[0] = 0
	LUBackSubstitute(workA, n, index, x)
	return x, nil
}
