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

// Package mask implements the bit-flag pixel mask shared by both images in
// a differencing pair, plus the routines that populate it from raw pixel
// values.
package mask

import (
	"fmt"
	"io"

	"github.com/klauspost/cpuid"
)

// Flag is a single bit in a pixel's mask word.
type Flag uint16

// Flag values mirror the original implementation's ImageMask enum exactly;
// callers rely on the numeric values being stable since masks from template
// and science images are combined bitwise.
const (
	BadPixVal Flag = 1 << iota
	SatPixel
	LowPixel
	NaNPixel
	BadConv
	InputMask
	OKConv
	BadInput
	BadPixelT
	SkipT
	BadPixelS
	SkipS
	BadOutput
)

// All is the union of every defined flag.
const All = Flag((1 << 13) - 1)

// Mask is a dense per-pixel bit-flag grid, same dimensions as its image.
type Mask struct {
	Width, Height int32
	Bits          []Flag
}

// New allocates a zeroed mask for a w by h image.
func New(w, h int32) *Mask {
	return &Mask{Width: w, Height: h, Bits: make([]Flag, w*h)}
}

func (m *Mask) index(x, y int32) int32 { return y*m.Width + x }

// At returns the flag word at (x, y).
func (m *Mask) At(x, y int32) Flag { return m.Bits[m.index(x, y)] }

// Set ORs flag into the pixel at (x, y); per spec.md's monotone-set
// invariant, the core pipeline never clears a flag this way.
func (m *Mask) Set(x, y int32, flag Flag) {
	m.Bits[m.index(x, y)] |= flag
}

// Unmask clears flag at (x, y). The core pipeline never calls it.
func (m *Mask) Unmask(x, y int32, flag Flag) {
	m.Bits[m.index(x, y)] &^= flag
}

// IsMasked reports whether every bit in flags is set at (x, y).
func (m *Mask) IsMasked(x, y int32, flags Flag) bool {
	return m.Bits[m.index(x, y)]&flags == flags
}

// IsMaskedAny reports whether any bit in flags is set at (x, y).
func (m *Mask) IsMaskedAny(x, y int32, flags Flag) bool {
	return m.Bits[m.index(x, y)]&flags != 0
}

// LogCPUFeatures reports AVX2 availability to w when verbose, mirroring the
// teacher's cpuid-gated dispatch diagnostics. It has no effect on mask
// contents; the spreading loop below stays portable regardless.
func LogCPUFeatures(w io.Writer, verbose bool) {
	if !verbose {
		return
	}
	fmt.Fprintf(w, "mask: cpu=%s avx2=%v\n", cpuid.CPU.BrandName, cpuid.CPU.AVX2())
}

// MaskInput flags pixels in data as NaNPixel, BadPixVal, SatPixel, or
// LowPixel (each together with BadInput), ORing each into m, flags the
// hKernelWidth-pixel image border as BadInput, then sets OKConv on pixels
// within a square of half-side hKernelWidth/2 around any BadInput pixel.
// threshHigh and threshLow use the exact original operators: saturation is
// >=, the floor is <=, and an exact-zero reading is flagged BadPixVal.
func MaskInput(m *Mask, data []float64, width, height int32, threshHigh, threshLow float64, hKernelWidth int32) {
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			v := data[y*width+x]
			switch {
			case v != v: // NaN
				m.Set(x, y, NaNPixel|BadInput)
			case v == 0.0:
				m.Set(x, y, BadPixVal|BadInput)
			case v >= threshHigh:
				m.Set(x, y, SatPixel|BadInput)
			case v <= threshLow:
				m.Set(x, y, LowPixel|BadInput)
			}
		}
	}
	maskBorder(m, width, height, hKernelWidth)
	SpreadMask(m, width, height, hKernelWidth/2)
}

// maskBorder flags the hKernelWidth-pixel border around the image as
// BadInput, since no full convolution kernel fits there. Bounds are
// checked with the strict form (>= 0 and < dimension); this intentionally
// does not reproduce the off-by-one border bug present in an earlier
// revision of the original implementation.
func maskBorder(m *Mask, width, height, hKernelWidth int32) {
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			if x < hKernelWidth || x >= width-hKernelWidth || y < hKernelWidth || y >= height-hKernelWidth {
				m.Set(x, y, BadInput)
			}
		}
	}
}

// SpreadMask ORs OKConv onto every non-BadInput pixel within a
// (2*halfWidth+1) square of any BadInput pixel, flagging the convolution
// footprint poisoned by a bad input pixel.
func SpreadMask(m *Mask, width, height, halfWidth int32) {
	src := make([]Flag, len(m.Bits))
	copy(src, m.Bits)

	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			if src[y*width+x]&BadInput == 0 {
				continue
			}
			for dy := -halfWidth; dy <= halfWidth; dy++ {
				ny := y + dy
				if ny < 0 || ny >= height {
					continue
				}
				for dx := -halfWidth; dx <= halfWidth; dx++ {
					nx := x + dx
					if nx < 0 || nx >= width {
						continue
					}
					if !m.IsMasked(nx, ny, BadInput) {
						m.Set(nx, ny, OKConv)
					}
				}
			}
		}
	}
}
