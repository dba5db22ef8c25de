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

// Package config holds the BACH pipeline configuration. A single *Config
// value is threaded explicitly through every pipeline call; there is no
// process-wide singleton.
package config

import "fmt"

// Config collects every tunable of the kernel-fitting pipeline.
type Config struct {
	StampsX, StampsY int32 // grid size, shrunk if too fine

	FKernelWidth, HKernelWidth int32 // kernel full/half width
	FSStampWidth, HSStampWidth int32 // substamp window full/half width
	FStampWidth                int32 // derived stamp tile size

	ThreshHigh float64 // saturation cutoff
	ThreshLow  float64 // floor cutoff

	ThreshKernFit float64 // per-substamp signal-to-FWHM threshold
	SigClipAlpha  float64 // sigma-clip rejection threshold
	SigKernFit    float64 // global-fit outlier threshold
	IQRange       float64 // inter-quartile range of a unit Gaussian

	Dg []int32   // ordered Gaussian polynomial degrees
	Bg []float64 // Gaussian widths, one per Dg entry

	KernelOrder     int32 // spatial polynomial order for kernel coefficients
	BackgroundOrder int32 // spatial polynomial order for background

	MaxKSStamps int32 // per-stamp substamp cap

	RefineAlignment bool // -refineAlignment: run the optional gonum/optimize
	// registration residual diagnostic between the two chosen directions'
	// surviving substamps. Off by default: it never feeds back into the
	// kernel fit, it only reports whether upstream alignment left a gap.

	BackgroundGridSpacing int32   // grid spacing for the empirical background diagnostic
	BadPixelSigma         float64 // sigma threshold for the bad-pixel pre-pass diagnostic

	Verbose     bool // -v
	VerboseTime bool // -vt
}

// NewDefault returns the reference BACH configuration, matching the
// defaults of the original C++ implementation.
func NewDefault() *Config {
	return &Config{
		StampsX: 10, StampsY: 10,
		FKernelWidth: 11, HKernelWidth: 5,
		FSStampWidth: 21, HSStampWidth: 10,
		ThreshHigh:    25000,
		ThreshLow:     0,
		ThreshKernFit: 2,
		SigClipAlpha:  3,
		SigKernFit:    3,
		IQRange:       1.34896,
		Dg:            []int32{6, 4, 2},
		Bg:            []float64{0.7, 0.8, 1.5},
		KernelOrder:   2,
		BackgroundOrder: 1,
		MaxKSStamps:   3,
		BackgroundGridSpacing: 64,
		BadPixelSigma:         5,
	}
}

// NPSF returns the number of basis kernels implied by Dg: sum of
// triNum(dg[g]+1) over all Gaussian components.
func (c *Config) NPSF() int32 {
	n := int32(0)
	for _, d := range c.Dg {
		n += TriNum(d + 1)
	}
	return n
}

// NBGComp returns the number of spatial background polynomial terms.
func (c *Config) NBGComp() int32 {
	return TriNum(c.BackgroundOrder + 1)
}

// TriNum returns n*(n+1)/2, the count of polynomial terms of total degree < n.
func TriNum(n int32) int32 {
	return n * (n + 1) / 2
}

// Validate enforces the width/consistency invariants from the data model,
// forcing odd widths and recomputing the dependent derived values.
func (c *Config) Validate() error {
	if len(c.Dg) == 0 {
		return fmt.Errorf("config: Dg must have at least one entry")
	}
	if len(c.Dg) != len(c.Bg) {
		return fmt.Errorf("config: Dg and Bg must have the same length, got %d and %d", len(c.Dg), len(c.Bg))
	}
	if c.NPSF() < 1 {
		return fmt.Errorf("config: NPSF must be >= 1, got %d", c.NPSF())
	}

	c.HKernelWidth = forceOdd(c.HKernelWidth)
	c.FKernelWidth = 2*c.HKernelWidth + 1

	c.HSStampWidth = forceOdd(c.HSStampWidth)
	c.FSStampWidth = 2*c.HSStampWidth + 1

	if c.StampsX < 1 || c.StampsY < 1 {
		return fmt.Errorf("config: StampsX and StampsY must be >= 1")
	}
	return nil
}

// forceOdd clamps a half-width to at least 1 and otherwise returns it
// unchanged; the full width 2*h+1 derived from it is odd by construction,
// matching the invariant in the data model.
func forceOdd(h int32) int32 {
	if h < 1 {
		return 1
	}
	return h
}

// DeriveStampGrid applies the fStampWidth derivation and stamp-count
// recomputation from the stamp-grid component: if the naive tile size is
// smaller than the substamp window, grow it and recompute stampsx/stampsy.
func (c *Config) DeriveStampGrid(w, h int32) {
	sx, sy := c.StampsX, c.StampsY
	tileW, tileH := w/sx, h/sy
	fStampWidth := tileW
	if tileH < fStampWidth {
		fStampWidth = tileH
	}
	fStampWidth -= c.FKernelWidth
	fStampWidth = forceOddFull(fStampWidth)

	if fStampWidth < c.FSStampWidth {
		fStampWidth = forceOddFull(c.FSStampWidth + c.FKernelWidth)
		sx = w / fStampWidth
		sy = h / fStampWidth
		if sx < 1 {
			sx = 1
		}
		if sy < 1 {
			sy = 1
		}
	}

	c.FStampWidth = fStampWidth
	c.StampsX, c.StampsY = sx, sy
}

// forceOddFull forces a full-width value to be odd by incrementing if even.
func forceOddFull(v int32) int32 {
	if v%2 == 0 {
		v++
	}
	return v
}
