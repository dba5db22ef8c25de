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

import "math"

// New builds the fixed basis from the Gaussian group degrees dg and widths
// bg, one entry per group, with full kernel width fKernelWidth (half width
// hKernelWidth). Index 0 is a normalized Gaussian; other even-degree
// vectors are orthogonalized against it by subtraction, per resetKernVec.
func New(dg []int32, bg []float64, fKernelWidth, hKernelWidth int32) *Kernel {
	k := &Kernel{FKernelWidth: fKernelWidth, HKernelWidth: hKernelWidth}
	resetKernVec(k, dg, bg)
	return k
}

func resetKernVec(k *Kernel, dg []int32, bg []float64) {
	fw := int(k.FKernelWidth)
	hw := int(k.HKernelWidth)

	for g := 0; g < len(dg); g++ {
		for deg := int32(0); deg <= dg[g]; deg++ {
			for x := int32(0); x <= deg; x++ {
				y := deg - x
				filterX := make([]float64, fw)
				filterY := make([]float64, fw)
				for i := 0; i < fw; i++ {
					u := float64(i - hw)
					filterX[i] = math.Exp(-u*u*bg[g]) * ipow(u, int(x))
					filterY[i] = math.Exp(-u*u*bg[g]) * ipow(u, int(y))
				}

				n := len(k.KernVec)
				bothEven := x%2 == 0 && y%2 == 0
				if bothEven {
					normalize(filterX)
					normalize(filterY)
				}

				vec := make([]float64, fw*fw)
				for v := 0; v < fw; v++ {
					for u := 0; u < fw; u++ {
						vec[u+v*fw] = filterX[u] * filterY[v]
					}
				}
				if bothEven && n > 0 {
					base := k.KernVec[0]
					for i := range vec {
						vec[i] -= base[i]
					}
				}

				k.KernVec = append(k.KernVec, vec)
				k.FilterX = append(k.FilterX, filterX)
				k.FilterY = append(k.FilterY, filterY)
				k.Stats = append(k.Stats, Basis{Gauss: g, X: int(x), Y: int(y)})
			}
		}
	}
}

func ipow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
