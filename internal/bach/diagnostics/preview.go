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

// Package diagnostics renders human-inspectable previews of the fitted
// kernel's spatial variation, for -previewKernelMap. Not on the core fit
// path; purely an operator aid.
package diagnostics

import (
	"image/color"
	"image/png"
	"io"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	stdimage "image"

	"github.com/astrobach/bach/internal/bach/background"
	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/kernel"
)

// KernelMapPreview samples the fitted kernel's sum (its local
// normalization) on a gridSize x gridSize grid across a w x h image,
// colorizes it with a perceptually-uniform blue-to-red scale and writes a
// PNG sized outW x outH.
func KernelMapPreview(w io.Writer, k *kernel.Kernel, cfg *config.Config, imgW, imgH int32, gridSize, outW, outH int) error {
	if gridSize < 2 {
		gridSize = 2
	}
	samples := make([]float64, gridSize*gridSize)
	min, max := samples[0], samples[0]
	first := true
	for gy := 0; gy < gridSize; gy++ {
		y := int32(gy) * imgH / int32(gridSize-1)
		if y >= imgH {
			y = imgH - 1
		}
		for gx := 0; gx < gridSize; gx++ {
			x := int32(gx) * imgW / int32(gridSize-1)
			if x >= imgW {
				x = imgW - 1
			}
			_, sum := kernel.MakeKernel(k, cfg.KernelOrder, imgW, imgH, x, y)
			samples[gy*gridSize+gx] = sum
			if first || sum < min {
				min = sum
			}
			if first || sum > max {
				max = sum
			}
			first = false
		}
	}

	small := stdimage.NewRGBA(stdimage.Rect(0, 0, gridSize, gridSize))
	span := max - min
	if span == 0 {
		span = 1
	}
	for gy := 0; gy < gridSize; gy++ {
		for gx := 0; gx < gridSize; gx++ {
			t := (samples[gy*gridSize+gx] - min) / span
			c := colorful.Hsv(240*(1-t), 0.85, 0.95)
			small.Set(gx, gy, c)
		}
	}

	big := stdimage.NewRGBA(stdimage.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(big, big.Bounds(), small, small.Bounds(), draw.Over, nil)

	return png.Encode(w, big)
}

// BackgroundGridPreview colorizes a Grid's empirical sky-level cells with
// the same blue-to-red scale as KernelMapPreview and writes a PNG sized
// outW x outH, letting an operator sanity-check the sampled background
// diagnostic against the fitted polynomial rendered by background.Surface.
func BackgroundGridPreview(w io.Writer, g *background.Grid, outW, outH int) error {
	gw, gh := int(g.GridCellsX), int(g.GridCellsY)
	if gw < 1 {
		gw = 1
	}
	if gh < 1 {
		gh = 1
	}

	min, max := g.Cells[0], g.Cells[0]
	for _, v := range g.Cells {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	if span == 0 {
		span = 1
	}

	small := stdimage.NewRGBA(stdimage.Rect(0, 0, gw, gh))
	for gy := 0; gy < gh; gy++ {
		for gx := 0; gx < gw; gx++ {
			t := (g.Cells[gy*gw+gx] - min) / span
			c := colorful.Hsv(240*(1-t), 0.85, 0.95)
			small.Set(gx, gy, c)
		}
	}

	big := stdimage.NewRGBA(stdimage.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(big, big.Bounds(), small, small.Bounds(), draw.Over, nil)

	return png.Encode(w, big)
}

// grayscaleLevel is a small helper kept for callers that want a flat-gray
// fallback preview when the colorful scale would be degenerate.
func grayscaleLevel(v float64) color.Gray {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return color.Gray{Y: uint8(v * 255)}
}
