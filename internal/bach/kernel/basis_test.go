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

package kernel

import "testing"

func TestNewBasisEvenDegreeSubtraction(t *testing.T) {
	k := New([]int32{2}, []float64{0.8}, 11, 5)
	if k.NPSF() != 6 { // triNum(dg+1) = triNum(3) for dg=2
		t.Fatalf("NPSF() = %d, want 6", k.NPSF())
	}

	sum0 := sumOf(k.KernVec[0])
	if diff := sum0 - 1.0; diff > 1e-10 || diff < -1e-10 {
		t.Errorf("kernVec[0] should sum to ~1 after normalization, got %v", sum0)
	}

	for p := 1; p < k.NPSF(); p++ {
		if k.Stats[p].X%2 == 0 && k.Stats[p].Y%2 == 0 {
			sum := sumOf(k.KernVec[p])
			if sum > 1e-8 || sum < -1e-8 {
				t.Errorf("kernVec[%d] (even degree) should sum to ~0 after subtraction, got %v", p, sum)
			}
		}
	}
}

func sumOf(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
