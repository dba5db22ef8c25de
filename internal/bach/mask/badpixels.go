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

package mask

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/valyala/fastrand"
)

// BadPixelStats summarizes a sampled estimate of how far pixels deviate
// from their local 3x3-neighborhood median.
type BadPixelStats struct {
	Samples int32
	Mean    float64
	StdDev  float64
}

// SampleBadPixelStats estimates the mean and standard deviation of
// pixel-minus-local-median across a random subset of data, without
// touching every pixel. It mirrors the reject-bad-pixel pre-pass: draw a
// small random fraction of pixel indices, compare each one against its
// local neighborhood median, and summarize the spread. sampleFraction of
// 0.01 matches the teacher's default 1% sample.
func SampleBadPixelStats(data []float64, width, height int32, sampleFraction float64) BadPixelStats {
	n := int32(len(data))
	if n == 0 || width == 0 || height == 0 {
		return BadPixelStats{}
	}
	numSamples := int32(float64(n) * sampleFraction)
	if numSamples < 1 {
		numSamples = 1
	}
	if numSamples > n {
		numSamples = n
	}

	rng := fastrand.RNG{}
	diffs := make([]float64, numSamples)
	for i := int32(0); i < numSamples; i++ {
		idx := int32(rng.Uint32n(uint32(n)))
		x, y := idx%width, idx/width
		diffs[i] = data[idx] - localMedian3x3(data, width, height, x, y)
	}

	mean := 0.0
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))

	variance := 0.0
	for _, d := range diffs {
		dd := d - mean
		variance += dd * dd
	}
	if len(diffs) > 1 {
		variance /= float64(len(diffs) - 1)
	}

	return BadPixelStats{Samples: numSamples, Mean: mean, StdDev: math.Sqrt(variance)}
}

// CountOutliers does a full-frame pass counting pixels whose deviation
// from the local 3x3 median exceeds sigma times stats.StdDev, returning
// the count and its fraction of the frame. It never mutates data or m; it
// is a read-only diagnostic run ahead of MaskInput's actual threshold
// flagging, answering "does this frame have enough impulse noise to
// worry about" before paying for the full mask pass.
func CountOutliers(data []float64, width, height int32, stats BadPixelStats, sigma float64) (count int32, fraction float64) {
	if len(data) == 0 {
		return 0, 0
	}
	threshold := stats.StdDev * sigma
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			diff := data[y*width+x] - localMedian3x3(data, width, height, x, y)
			if diff > threshold || -diff > threshold {
				count++
			}
		}
	}
	return count, float64(count) / float64(len(data))
}

// LogBadPixelDiagnostic runs the sampled estimate and, when verbose, the
// full outlier count, and writes a one-line summary to w. It is purely
// informational and runs before MaskInput; nothing it computes feeds into
// the mask itself.
func LogBadPixelDiagnostic(w io.Writer, data []float64, width, height int32, sigma float64, verbose bool) BadPixelStats {
	stats := SampleBadPixelStats(data, width, height, 0.01)
	if !verbose {
		return stats
	}
	count, fraction := CountOutliers(data, width, height, stats, sigma)
	fmt.Fprintf(w, "mask: bad-pixel pre-pass sampled=%d mean=%.4g stddev=%.4g outliers=%d (%.4g%%)\n",
		stats.Samples, stats.Mean, stats.StdDev, count, fraction*100)
	return stats
}

// localMedian3x3 returns the median of the up-to-9 pixel values in the
// 3x3 neighborhood around (x, y), clamped at the image border.
func localMedian3x3(data []float64, width, height, x, y int32) float64 {
	var buf [9]float64
	n := 0
	for dy := int32(-1); dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= height {
			continue
		}
		for dx := int32(-1); dx <= 1; dx++ {
			nx := x + dx
			if nx < 0 || nx >= width {
				continue
			}
			buf[n] = data[ny*width+nx]
			n++
		}
	}
	s := buf[:n]
	sort.Float64s(s)
	return s[n/2]
}
