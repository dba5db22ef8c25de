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

// SpatialTerms enumerates the (i, j) exponent pairs with i+j <= order, in
// the same triangular order used throughout the fit (x-major within each
// total degree).
func SpatialTerms(order int32) [][2]int32 {
	var terms [][2]int32
	for deg := int32(0); deg <= order; deg++ {
		for i := int32(0); i <= deg; i++ {
			terms = append(terms, [2]int32{i, deg - i})
		}
	}
	return terms
}

func normCoord(v, extent int32) float64 {
	half := float64(extent) / 2
	return (float64(v) - half) / half
}

// KernCoeffs evaluates the nPSF kernel coefficients at image point (x, y)
// given the solved 1-indexed solution and kernelOrder. kernCoeffs[0] is the
// DC term solution[1]; kernCoeffs[p] for p >= 1 is the spatial polynomial
// with coefficients drawn in order from solution[2:].
func KernCoeffs(solution []float64, nPSF int, kernelOrder, imgW, imgH int32, x, y int32) []float64 {
	terms := SpatialTerms(kernelOrder)
	xn, yn := normCoord(x, imgW), normCoord(y, imgH)

	coeffs := make([]float64, nPSF)
	coeffs[0] = solution[1]

	k := 2
	for p := 1; p < nPSF; p++ {
		v := 0.0
		for _, t := range terms {
			v += solution[k] * ipow(xn, int(t[0])) * ipow(yn, int(t[1]))
			k++
		}
		coeffs[p] = v
	}
	return coeffs
}

// MakeKernel evaluates the spatially-varying kernel at image point (x, y)
// and returns its pixel-space values plus their sum (the local kernel
// normalization, used e.g. as the merit reference in direction choice).
func MakeKernel(k *Kernel, kernelOrder, imgW, imgH, x, y int32) (pixels []float64, sum float64) {
	coeffs := KernCoeffs(k.Solution, k.NPSF(), kernelOrder, imgW, imgH, x, y)

	n := len(k.KernVec[0])
	pixels = make([]float64, n)
	for p, coeff := range coeffs {
		vec := k.KernVec[p]
		for i := 0; i < n; i++ {
			pixels[i] += coeff * vec[i]
		}
	}
	for _, v := range pixels {
		sum += v
	}
	return pixels, sum
}

// GetBackground evaluates the spatial background polynomial at (x, y)
// using the tail of solution starting right after the kernel terms, i.e.
// at offset nC1*nC2+2 where nC1=nPSF-1 and nC2=triNum(kernelOrder+1).
func GetBackground(solution []float64, nPSF int, kernelOrder, backgroundOrder, imgW, imgH, x, y int32) float64 {
	nC1 := int32(nPSF) - 1
	nC2 := triNum(kernelOrder + 1)
	offset := nC1*nC2 + 2

	terms := SpatialTerms(backgroundOrder)
	xn, yn := normCoord(x, imgW), normCoord(y, imgH)

	v := 0.0
	for i, t := range terms {
		v += solution[int(offset)+i] * ipow(xn, int(t[0])) * ipow(yn, int(t[1]))
	}
	return v
}

func triNum(n int32) int32 { return n * (n + 1) / 2 }
