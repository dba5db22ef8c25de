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

package linalg

import "testing"

func TestSolvePivotSwap(t *testing.T) {
	a := NewMatrix(2)
	a[1][1], a[1][2] = 0, 1
	a[2][1], a[2][2] = 1, 0
	b := []float64{0, 1, 2}

	x, err := Solve(a, 2, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := x[1] - 2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("x[1] = %v, want 2", x[1])
	}
	if diff := x[2] - 1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("x[2] = %v, want 1", x[2])
	}
}

func TestLUReconstructsMatrix(t *testing.T) {
	n := 3
	a := NewMatrix(n)
	vals := [][]float64{{4, 3, 2}, {1, 5, 3}, {2, 2, 6}}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i+1][j+1] = vals[i][j]
		}
	}

	work := NewMatrix(n)
	for i := 1; i <= n; i++ {
		copy(work[i], a[i])
	}
	index, _, err := LUDecompose(work, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reconstruct P*A from L*U and compare against the permuted original.
	l := NewMatrix(n)
	u := NewMatrix(n)
	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			switch {
			case i > j:
				l[i][j] = work[i][j]
			case i == j:
				l[i][j] = 1
				u[i][j] = work[i][j]
			default:
				u[i][j] = work[i][j]
			}
		}
	}

	perm := make([]int, n+1)
	for i := 1; i <= n; i++ {
		perm[i] = i
	}
	for i := 1; i <= n; i++ {
		perm[i], perm[index[i]] = perm[index[i]], perm[i]
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			sum := 0.0
			for k := 1; k <= n; k++ {
				sum += l[i][k] * u[k][j]
			}
			want := a[perm[i]][j]
			if d := sum - want; d > 1e-9 || d < -1e-9 {
				t.Errorf("L*U[%d][%d] = %v, want %v", i, j, sum, want)
			}
		}
	}
}

func TestSolveResidual(t *testing.T) {
	n := 3
	a := NewMatrix(n)
	vals := [][]float64{{4, 1, 0}, {1, 3, 1}, {0, 1, 2}}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i+1][j+1] = vals[i][j]
		}
	}
	b := []float64{0, 1, 2, 3}

	x, err := Solve(a, n, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	maxResidual, maxB := 0.0, 0.0
	for i := 1; i <= n; i++ {
		sum := 0.0
		for j := 1; j <= n; j++ {
			sum += a[i][j] * x[j]
		}
		if r := abs(sum - b[i]); r > maxResidual {
			maxResidual = r
		}
		if v := abs(b[i]); v > maxB {
			maxB = v
		}
	}
	if maxResidual/maxB > 1e-8 {
		t.Errorf("residual too large: %v", maxResidual/maxB)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
