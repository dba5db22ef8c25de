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

// Package convolve is the final-stage collaborator that applies a fitted,
// spatially-varying kernel across a full image and produces the
// subtracted difference image. GPU (OpenCL) dispatch is out of scope; this
// package defines the Convolver interface the pipeline hands its result
// to, plus a portable CPU reference implementation.
package convolve

import (
	"runtime"
	"sync"

	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/kernel"
)

// Convolver applies a fitted kernel across an image and returns the
// convolved image plus the science-minus-convolved difference image. A
// non-zero code mirrors the CLI contract's "exit code N for OpenCL error
// N from the convolver collaborator".
type Convolver interface {
	Convolve(fromImg, toImg *image.Image, k *kernel.Kernel, cfg *config.Config) (convolved, diff *image.Image, code int, err error)
}

// CPU is a portable reference Convolver: no OpenCL, one goroutine per
// CPU evaluating disjoint row ranges, mirroring the teacher's
// goroutine+WaitGroup shard-by-NumCPU pattern for the median filter.
type CPU struct{}

// Convolve evaluates the kernel at every output pixel via MakeKernel,
// applies it as a direct (non-separable, since the kernel now varies per
// pixel) convolution, and subtracts from toImg.
func (CPU) Convolve(fromImg, toImg *image.Image, k *kernel.Kernel, cfg *config.Config) (convolved, diff *image.Image, code int, err error) {
	w, h := fromImg.Width, fromImg.Height
	convolved = image.New("convolved", w, h)
	diff = image.New("diff", w, h)

	hw := k.HKernelWidth
	shards := runtime.NumCPU()
	if shards < 1 {
		shards = 1
	}
	rowsPerShard := (int(h) + shards - 1) / shards

	var wg sync.WaitGroup
	for shard := 0; shard < shards; shard++ {
		y0 := int32(shard * rowsPerShard)
		y1 := y0 + int32(rowsPerShard)
		if y1 > h {
			y1 = h
		}
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(y0, y1 int32) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				for x := int32(0); x < w; x++ {
					pixels, _ := kernel.MakeKernel(k, cfg.KernelOrder, w, h, x, y)
					bg := kernel.GetBackground(k.Solution, k.NPSF(), cfg.KernelOrder, cfg.BackgroundOrder, w, h, x, y)

					sum := 0.0
					idx := 0
					for dy := -hw; dy <= hw; dy++ {
						iy := clamp(y+dy, 0, h-1)
						for dx := -hw; dx <= hw; dx++ {
							ix := clamp(x+dx, 0, w-1)
							sum += pixels[idx] * fromImg.At(ix, iy)
							idx++
						}
					}
					conv := sum + bg
					convolved.Set(x, y, conv)
					diff.Set(x, y, toImg.At(x, y)-conv)
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	return convolved, diff, 0, nil
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
