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

// Package fit assembles the per-stamp design matrices and the global
// normal equations, runs the direction-choice and global least-squares
// kernel fit, and drives the iterative outlier-rejection loop.
package fit

import (
	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/kernel"
	"github.com/astrobach/bach/internal/bach/stamp"
)

// ConvStamp computes W[n]: the separable convolution of basis vector n
// with tmplImg, evaluated on the fSStampWidth^2 window centered at the
// substamp's image coordinates. The first pass runs horizontally with
// filterY, the second vertically with filterX — matching the source's
// naming exactly, since the two filters are per-axis but swapped relative
// to a naive reading. If odd is set (every even-degree basis vector past
// index 0), w0 is subtracted elementwise.
func ConvStamp(tmplImg *image.Image, k *kernel.Kernel, n int, odd bool, w0 []float64, ss stamp.SubStamp, cfg *config.Config) []float64 {
	hw := cfg.HSStampWidth
	full := cfg.FSStampWidth
	hk := cfg.HKernelWidth

	cx, cy := ss.ImageCoords.X, ss.ImageCoords.Y
	filterX, filterY := k.FilterX[n], k.FilterY[n]

	extH := full + 2*hk
	temp := make([]float64, full*extH)
	for ty := int32(0); ty < extH; ty++ {
		iy := cy + (ty - hk) - hw
		for tx := int32(0); tx < full; tx++ {
			sum := 0.0
			for d := int32(0); d < int32(len(filterY)); d++ {
				ix := cx + (tx - hw) + (d - hk)
				sum += filterY[d] * clampedAt(tmplImg, ix, iy)
			}
			temp[ty*full+tx] = sum
		}
	}

	out := make([]float64, full*full)
	for oy := int32(0); oy < full; oy++ {
		for ox := int32(0); ox < full; ox++ {
			sum := 0.0
			for d := int32(0); d < int32(len(filterX)); d++ {
				ty := oy + d
				sum += filterX[d] * temp[ty*full+ox]
			}
			out[oy*full+ox] = sum
		}
	}

	if odd {
		for i := range out {
			out[i] -= w0[i]
		}
	}
	return out
}

func clampedAt(img *image.Image, x, y int32) float64 {
	if x < 0 {
		x = 0
	}
	if x >= img.Width {
		x = img.Width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= img.Height {
		y = img.Height - 1
	}
	return img.At(x, y)
}

// FillStamp builds s.W: the nPSF basis convolutions followed by nBGComp
// background-polynomial vectors, using the stamp's current best substamp.
func FillStamp(s *stamp.Stamp, tmplImg *image.Image, k *kernel.Kernel, cfg *config.Config) {
	ss, ok := s.Best()
	if !ok {
		s.W = nil
		return
	}

	nPSF := k.NPSF()
	w := make([][]float64, 0, nPSF+int(cfg.NBGComp()))

	var w0 []float64
	for n := 0; n < nPSF; n++ {
		odd := n > 0 && k.Stats[n].X%2 == 0 && k.Stats[n].Y%2 == 0
		vec := ConvStamp(tmplImg, k, n, odd, w0, ss, cfg)
		if n == 0 {
			w0 = vec
		}
		w = append(w, vec)
	}

	hw := cfg.HSStampWidth
	full := cfg.FSStampWidth
	ssx, ssy := ss.ImageCoords.X, ss.ImageCoords.Y
	imgW, imgH := float64(tmplImg.Width), float64(tmplImg.Height)
	terms := spatialTerms(cfg.BackgroundOrder)
	for _, t := range terms {
		vec := make([]float64, full*full)
		for yy := int32(0); yy < full; yy++ {
			y := ssy + yy - hw
			ynorm := (float64(y) - imgH*0.5) / imgH * 0.5
			for xx := int32(0); xx < full; xx++ {
				x := ssx + xx - hw
				xnorm := (float64(x) - imgW*0.5) / imgW * 0.5
				vec[yy*full+xx] = ipow(xnorm, int(t[0])) * ipow(ynorm, int(t[1]))
			}
		}
		w = append(w, vec)
	}

	s.W = w
	s.Q = createQ(w)
	s.B = nil // filled by CreateB once the other image is known
}

// CreateB forms s.B[i+1] = sum_k W[i][k] * otherImage[substamp window pixel k].
func CreateB(s *stamp.Stamp, otherImg *image.Image, cfg *config.Config) {
	ss, ok := s.Best()
	if !ok {
		s.B = nil
		return
	}
	hw := cfg.HSStampWidth
	full := cfg.FSStampWidth
	cx, cy := ss.ImageCoords.X, ss.ImageCoords.Y

	other := make([]float64, full*full)
	for yy := int32(0); yy < full; yy++ {
		iy := cy + yy - hw
		for xx := int32(0); xx < full; xx++ {
			ix := cx + xx - hw
			other[yy*full+xx] = clampedAt(otherImg, ix, iy)
		}
	}

	n := len(s.W)
	b := make([]float64, n+2)
	for i, w := range s.W {
		sum := 0.0
		for k := range w {
			sum += w[k] * other[k]
		}
		b[i+1] = sum
	}
	s.B = b
}

// createQ forms the (n+2) x (n+2) symmetric Gram matrix Q[i+1][j+1] =
// sum_k W[i][k]*W[j][k], filling the lower triangle and mirroring it.
func createQ(w [][]float64) [][]float64 {
	n := len(w)
	q := make([][]float64, n+2)
	for i := range q {
		q[i] = make([]float64, n+2)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := range w[i] {
				sum += w[i][k] * w[j][k]
			}
			q[i+1][j+1] = sum
			q[j+1][i+1] = sum
		}
	}
	return q
}

func spatialTerms(order int32) [][2]int32 {
	var terms [][2]int32
	for deg := int32(0); deg <= order; deg++ {
		for i := int32(0); i <= deg; i++ {
			terms = append(terms, [2]int32{i, deg - i})
		}
	}
	return terms
}

func ipow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
