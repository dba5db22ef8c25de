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

// Package background renders a low-resolution preview of the fitted
// spatial background polynomial, sampling it on a coarse grid and
// smoothing the result the way the teacher's automated background
// extraction smooths its cell fits, rather than evaluating every pixel.
package background

import (
	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/kernel"
)

// Surface samples the fitted background polynomial on a gridSize x
// gridSize grid and bilinearly expands it back to full resolution,
// cheaper than evaluating GetBackground at every pixel for a diagnostic
// preview.
func Surface(k *kernel.Kernel, cfg *config.Config, w, h int32, gridSize int32) *image.Image {
	if gridSize < 2 {
		gridSize = 2
	}
	cell := make([]float64, gridSize*gridSize)
	for gy := int32(0); gy < gridSize; gy++ {
		y := gy * h / (gridSize - 1)
		if y >= h {
			y = h - 1
		}
		for gx := int32(0); gx < gridSize; gx++ {
			x := gx * w / (gridSize - 1)
			if x >= w {
				x = w - 1
			}
			cell[gy*gridSize+gx] = kernel.GetBackground(k.Solution, k.NPSF(), cfg.KernelOrder, cfg.BackgroundOrder, w, h, x, y)
		}
	}
	smoothed := smooth3x3(cell, gridSize, gridSize)

	out := image.New("background", w, h)
	for y := int32(0); y < h; y++ {
		fy := float64(y) / float64(h-1) * float64(gridSize-1)
		for x := int32(0); x < w; x++ {
			fx := float64(x) / float64(w-1) * float64(gridSize-1)
			out.Set(x, y, bilerp(smoothed, gridSize, gridSize, fx, fy))
		}
	}
	return out
}

// smooth3x3 applies the teacher's 3x3 box smoothing to a dense grid,
// clamping at the border instead of wrapping.
func smooth3x3(v []float64, w, h int32) []float64 {
	out := make([]float64, len(v))
	at := func(x, y int32) float64 {
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return v[y*w+x]
	}
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			sum := 0.0
			for dy := int32(-1); dy <= 1; dy++ {
				for dx := int32(-1); dx <= 1; dx++ {
					sum += at(x+dx, y+dy)
				}
			}
			out[y*w+x] = sum / 9
		}
	}
	return out
}

func bilerp(v []float64, w, h int32, fx, fy float64) float64 {
	x0 := int32(fx)
	y0 := int32(fy)
	x1, y1 := x0+1, y0+1
	if x1 >= w {
		x1 = w - 1
	}
	if y1 >= h {
		y1 = h - 1
	}
	tx, ty := fx-float64(x0), fy-float64(y0)

	v00, v10 := v[y0*w+x0], v[y0*w+x1]
	v01, v11 := v[y1*w+x0], v[y1*w+x1]

	top := v00*(1-tx) + v10*tx
	bot := v01*(1-tx) + v11*tx
	return top*(1-ty) + bot*ty
}
