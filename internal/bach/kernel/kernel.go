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

// Package kernel builds the fixed Gaussian-polynomial basis kernels and
// evaluates the fitted spatial kernel/background at any point.
package kernel

// Basis describes one basis vector's generating polynomial degrees, kept
// alongside the evaluated kernVec for diagnostics.
type Basis struct {
	Gauss, X, Y int
}

// Kernel holds the fixed basis and the solved fit coefficients.
type Kernel struct {
	FKernelWidth, HKernelWidth int32

	KernVec [][]float64 // nPSF vectors, each fKernelWidth^2
	FilterX [][]float64 // nPSF vectors, each fKernelWidth
	FilterY [][]float64

	Stats []Basis

	// Solution is 1-indexed: Solution[0] is unused, matching the LU solver
	// contract and the source's legacy Numerical Recipes convention.
	Solution []float64
}

// NPSF returns the number of basis vectors.
func (k *Kernel) NPSF() int { return len(k.KernVec) }
