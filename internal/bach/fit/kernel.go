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

// dims bundles the block sizes of the global normal-equation system.
type dims struct {
	nPSF, nC1, nC2, nBG, m int
}

func computeDims(k *kernel.Kernel, cfg *config.Config) dims {
	nPSF := k.NPSF()
	nC1 := nPSF - 1
	nC2 := int(config.TriNum(cfg.KernelOrder + 1))
	nBG := int(cfg.NBGComp())
	return dims{nPSF: nPSF, nC1: nC1, nC2: nC2, nBG: nBG, m: nC1*nC2 + nBG + 1}
}

func (d dims) kernCol(p, k int) int { return 2 + (p-1)*d.nC2 + k }
func (d dims) bgCol(b int) int      { return d.nC1*d.nC2 + 2 + b }

// weightVector returns fx^i*fy^j for every (i, j) term of the given order,
// at the stamp's normalized image position.
func weightVector(fx, fy float64, order int32) []float64 {
	terms := kernel.SpatialTerms(order)
	w := make([]float64, len(terms))
	for i, t := range terms {
		w[i] = ipow(fx, int(t[0])) * ipow(fy, int(t[1]))
	}
	return w
}

// CreateMatrix assembles the (M+1)x(M+1) normal-equation matrix (1-indexed)
// over every stamp with a design, using each stamp's Q and its spatial
// position within the full image.
func CreateMatrix(stamps []*stamp.Stamp, k *kernel.Kernel, cfg *config.Config, imgW, imgH int32) ([][]float64, dims) {
	d := computeDims(k, cfg)
	matrix := linalg.NewMatrix(d.m)

	for _, s := range stamps {
		ss, ok := s.Best()
		if !ok || s.Q == nil {
			continue
		}
		fx := (float64(ss.ImageCoords.X) - float64(imgW)/2) / (float64(imgW) / 2)
		fy := (float64(ss.ImageCoords.Y) - float64(imgH)/2) / (float64(imgH) / 2)
		kw := weightVector(fx, fy, cfg.KernelOrder)
		bw := weightVector(fx, fy, cfg.BackgroundOrder)
		q := s.Q

		add := func(a, b int, v float64) {
			matrix[a][b] += v
			if a != b {
				matrix[b][a] += v
			}
		}

		add(1, 1, q[1][1])
		for p := 1; p <= d.nC1; p++ {
			for ki := 0; ki < d.nC2; ki++ {
				c := d.kernCol(p, ki)
				add(1, c, kw[ki]*q[1][p+1])
			}
		}
		for p := 1; p <= d.nC1; p++ {
			for ki := 0; ki < d.nC2; ki++ {
				c := d.kernCol(p, ki)
				for p2 := p; p2 <= d.nC1; p2++ {
					kiStart := 0
					if p2 == p {
						kiStart = ki
					}
					for ki2 := kiStart; ki2 < d.nC2; ki2++ {
						c2 := d.kernCol(p2, ki2)
						add(c, c2, kw[ki]*kw[ki2]*q[p+1][p2+1])
					}
				}
			}
		}
		for b := 0; b < d.nBG; b++ {
			bc := d.bgCol(b)
			add(1, bc, bw[b]*q[1][d.nPSF+1+b])
		}
		for p := 1; p <= d.nC1; p++ {
			for ki := 0; ki < d.nC2; ki++ {
				c := d.kernCol(p, ki)
				for b := 0; b < d.nBG; b++ {
					bc := d.bgCol(b)
					add(c, bc, kw[ki]*bw[b]*q[p+1][d.nPSF+1+b])
				}
			}
		}
		for b := 0; b < d.nBG; b++ {
			bc := d.bgCol(b)
			for b2 := b; b2 < d.nBG; b2++ {
				bc2 := d.bgCol(b2)
				add(bc, bc2, bw[b]*bw[b2]*q[d.nPSF+1+b][d.nPSF+1+b2])
			}
		}
	}
	return matrix, d
}

// CreateScProd builds the right-hand side of length M (1-indexed), mirroring
// CreateMatrix's block layout and using each stamp's B vector.
func CreateScProd(stamps []*stamp.Stamp, k *kernel.Kernel, cfg *config.Config, imgW, imgH int32) []float64 {
	d := computeDims(k, cfg)
	rhs := linalg.NewVector(d.m)

	for _, s := range stamps {
		ss, ok := s.Best()
		if !ok || s.B == nil {
			continue
		}
		fx := (float64(ss.ImageCoords.X) - float64(imgW)/2) / (float64(imgW) / 2)
		fy := (float64(ss.ImageCoords.Y) - float64(imgH)/2) / (float64(imgH) / 2)
		kw := weightVector(fx, fy, cfg.KernelOrder)
		bw := weightVector(fx, fy, cfg.BackgroundOrder)
		b := s.B

		rhs[1] += b[1]
		for p := 1; p <= d.nC1; p++ {
			for ki := 0; ki < d.nC2; ki++ {
				rhs[d.kernCol(p, ki)] += kw[ki] * b[p+1]
			}
		}
		for bi := 0; bi < d.nBG; bi++ {
			rhs[d.bgCol(bi)] += bw[bi] * b[d.nPSF+1+bi]
		}
	}
	return rhs
}

// MakeModel builds the fSStampWidth^2 model image for stamp s from
// solution, as coeff_0*W[0] + sum_{p>=1} coeff_p*W[p].
func MakeModel(s *stamp.Stamp, k *kernel.Kernel, cfg *config.Config, imgW, imgH int32, solution []float64) []float64 {
	ss, _ := s.Best()
	coeffs := kernel.KernCoeffs(solution, k.NPSF(), cfg.KernelOrder, imgW, imgH, ss.ImageCoords.X, ss.ImageCoords.Y)

	n := len(s.W[0])
	model := make([]float64, n)
	for p, coeff := range coeffs {
		w := s.W[p]
		for i := 0; i < n; i++ {
			model[i] += coeff * w[i]
		}
	}
	return model
}

// CalcSig computes the per-substamp fit residual for s, returning -1 on
// statistical degeneracy (no surviving pixels or signal >= 1e10) per the
// error handling design.
func CalcSig(s *stamp.Stamp, k *kernel.Kernel, cfg *config.Config, tImg, sImg *image.Image, m *mask.Mask, solution []float64) float64 {
	ss, ok := s.Best()
	if !ok || s.W == nil {
		return -1
	}

	model := MakeModel(s, k, cfg, tImg.Width, tImg.Height, solution)
	bg := kernel.GetBackground(solution, k.NPSF(), cfg.KernelOrder, cfg.BackgroundOrder, tImg.Width, tImg.Height, ss.ImageCoords.X, ss.ImageCoords.Y)

	hw := cfg.HSStampWidth
	full := cfg.FSStampWidth
	cx, cy := ss.ImageCoords.X, ss.ImageCoords.Y

	sum := 0.0
	n := 0
	for yy := int32(0); yy < full; yy++ {
		iy := cy + yy - hw
		for xx := int32(0); xx < full; xx++ {
			ix := cx + xx - hw
			if !tImg.InBounds(ix, iy) || !sImg.InBounds(ix, iy) {
				continue
			}
			if m.IsMaskedAny(ix, iy, mask.BadInput) {
				continue
			}
			tv, sv := tImg.At(ix, iy), sImg.At(ix, iy)
			if tv == 0 || sv == 0 {
				continue
			}
			idx := int(yy*full + xx)
			diff := model[idx] - sv + bg
			if diff != diff {
				m.Set(ix, iy, mask.NaNPixel|mask.BadInput)
				continue
			}
			denom := absf(tv) + absf(sv)
			if denom == 0 {
				continue
			}
			sum += diff * diff / denom
			n++
		}
	}
	if n == 0 {
		return -1
	}
	signal := sum / float64(n)
	if signal >= 1e10 || signal != signal {
		return -1
	}
	return signal
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// FitKernel assembles and solves the global normal equations for the
// given stamps, then runs CheckFitSolution's iterative outlier rejection
// until it converges. It returns the final 1-indexed solution vector, or
// an error if the system is unsolvable even after rejection.
func FitKernel(stamps []*stamp.Stamp, k *kernel.Kernel, cfg *config.Config, tImg, sImg *image.Image, m *mask.Mask, fillDesign func(s *stamp.Stamp)) ([]float64, []*stamp.Stamp, error) {
	matrix, d := CreateMatrix(stamps, k, cfg, tImg.Width, tImg.Height)
	rhs := CreateScProd(stamps, k, cfg, tImg.Width, tImg.Height)

	solution, err := linalg.Solve(matrix, d.m, rhs)
	if err != nil {
		return nil, stamps, err
	}

	for {
		check, dropped := checkFitSolution(stamps, k, cfg, tImg, sImg, m, solution, fillDesign)
		if !check {
			return solution, stamps, nil
		}
		stamps = dropped
		matrix, _ = CreateMatrix(stamps, k, cfg, tImg.Width, tImg.Height)
		rhs = CreateScProd(stamps, k, cfg, tImg.Width, tImg.Height)
		solution, err = linalg.Solve(matrix, d.m, rhs)
		if err != nil {
			return nil, stamps, err
		}
	}
}

// checkFitSolution computes calcSig for every stamp, drops the best
// substamp (refilling via fillDesign) from any stamp that is degenerate
// or a sigma-clipped outlier, and reports whether anything changed.
func checkFitSolution(stamps []*stamp.Stamp, k *kernel.Kernel, cfg *config.Config, tImg, sImg *image.Image, m *mask.Mask, solution []float64, fillDesign func(s *stamp.Stamp)) (bool, []*stamp.Stamp) {
	check := false

	sigs := make([]float64, 0, len(stamps))
	sigOf := make(map[*stamp.Stamp]float64, len(stamps))
	for _, s := range stamps {
		if len(s.SubStamps) == 0 {
			continue
		}
		sig := CalcSig(s, k, cfg, tImg, sImg, m, solution)
		sigOf[s] = sig
		if sig == -1 {
			s.DropBest()
			if len(s.SubStamps) > 0 {
				fillDesign(s)
			}
			check = true
			continue
		}
		sigs = append(sigs, sig)
	}

	if len(sigs) > 0 {
		mean, stdDev, _ := statutil.SigmaClip(sigs, cfg.SigKernFit, 10)
		for _, s := range stamps {
			sig, ok := sigOf[s]
			if !ok || sig == -1 {
				continue
			}
			if sig-mean > cfg.SigKernFit*stdDev {
				s.DropBest()
				if len(s.SubStamps) > 0 {
					fillDesign(s)
				}
				check = true
			}
		}
	}

	survivors := make([]*stamp.Stamp, 0, len(stamps))
	for _, s := range stamps {
		if len(s.SubStamps) > 0 {
			survivors = append(survivors, s)
		}
	}
	return check, survivors
}

