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

package fit

import (
	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/kernel"
	"github.com/astrobach/bach/internal/bach/linalg"
	"github.com/astrobach/bach/internal/bach/mask"
	"github.com/astrobach/bach/internal/bach/stamp"
	"github.com/astrobach/bach/internal/bach/statutil"
)

// MeritSentinel is returned when a direction has no surviving stamps; it
// marks the direction as unusable so the caller prefers the other one.
const MeritSentinel = 666.0

// Result holds one direction's fit outcome.
type Result struct {
	Merit    float64
	Solution []float64
	Stamps   []*stamp.Stamp
}

// TestFit runs the full per-stamp normalization, sigma-clip rejection and
// global fit for one convolution direction (from fromImg onto toImg), then
// scores the result by the sigma-clipped mean per-substamp residual
// divided by the fitted kernel's sum at the image center.
func TestFit(stamps []*stamp.Stamp, k *kernel.Kernel, cfg *config.Config, fromImg, toImg *image.Image, m *mask.Mask) Result {
	for _, s := range stamps {
		FillStamp(s, fromImg, k, cfg)
		CreateB(s, toImg, cfg)
	}

	normalized := normalizeStamps(stamps, cfg.SigKernFit)
	if len(normalized) == 0 {
		return Result{Merit: MeritSentinel}
	}

	fillDesign := func(s *stamp.Stamp) {
		FillStamp(s, fromImg, k, cfg)
		CreateB(s, toImg, cfg)
	}

	solution, survivors, err := FitKernel(normalized, k, cfg, fromImg, toImg, m, fillDesign)
	if err != nil || len(survivors) == 0 {
		return Result{Merit: MeritSentinel}
	}

	sigs := make([]float64, 0, len(survivors))
	for _, s := range survivors {
		sig := CalcSig(s, k, cfg, fromImg, toImg, m, solution)
		if sig == -1 {
			continue
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return Result{Merit: MeritSentinel}
	}

	meanSig, _, _ := statutil.SigmaClip(sigs, cfg.SigClipAlpha, 3)
	fitted := *k
	fitted.Solution = solution
	_, refSum := kernel.MakeKernel(&fitted, cfg.KernelOrder, fromImg.Width, fromImg.Height, fromImg.Width/2, fromImg.Height/2)
	if refSum == 0 {
		return Result{Merit: MeritSentinel}
	}

	return Result{Merit: meanSig / refSum, Solution: solution, Stamps: survivors}
}

// normalizeStamps solves the small per-stamp Q*x=B system for each stamp
// to get a normalization value, then sigma-clips those values at alpha,
// returning only the stamps that survive.
func normalizeStamps(stamps []*stamp.Stamp, alpha float64) []*stamp.Stamp {
	type entry struct {
		s    *stamp.Stamp
		norm float64
	}
	var entries []entry

	for _, s := range stamps {
		if s.Q == nil || s.B == nil || len(s.W) == 0 {
			continue
		}
		n := len(s.W)
		x, err := linalg.Solve(s.Q, n, s.B)
		if err != nil {
			continue
		}
		s.Stats.Norm = x[1]
		entries = append(entries, entry{s: s, norm: x[1]})
	}
	if len(entries) == 0 {
		return nil
	}

	norms := make([]float64, len(entries))
	for i, e := range entries {
		norms[i] = e.norm
	}
	mean, stdDev, _ := statutil.SigmaClip(norms, alpha, 10)

	out := make([]*stamp.Stamp, 0, len(entries))
	for _, e := range entries {
		if stdDev == 0 || absf(e.norm-mean)/stdDev <= alpha {
			out = append(out, e.s)
		}
	}
	return out
}
