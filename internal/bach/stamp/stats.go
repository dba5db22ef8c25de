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

package stamp

import (
	"math"
	"sort"

	"github.com/astrobach/bach/internal/bach/mask"
	"github.com/astrobach/bach/internal/bach/rng"
	"github.com/astrobach/bach/internal/bach/statutil"
)

const numBins = 256

// CalcStats fills s.Stats.SkyEst and s.Stats.FWHM using an adaptive
// 256-bin histogram over a sigma-clipped sample of the stamp's
// not-masked, not-near-zero pixels. src provides reproducible uniform
// draws; sigClipAlpha and iqRange come from the pipeline configuration.
// A pixel is skipped when image-masked bad/NaN or |v| <= 1e-10, matching
// the refined skip criterion.
func CalcStats(s *Stamp, m *mask.Mask, sigClipAlpha, iqRange float64, src *rng.Source) {
	all := collect(s, m)
	if len(all) == 0 {
		s.Stats.SkyEst = 0
		s.Stats.FWHM = 1e10
		return
	}

	sample := sampleUpTo100(s, m, src)
	if len(sample) < 2 {
		sample = append([]float64(nil), all...)
	}
	sort.Float64s(sample)

	n := len(sample)
	v90 := sample[clampIdx(int(0.9*float64(n)), n)]
	v50 := sample[clampIdx(int(0.5*float64(n)), n)]
	binSize := (v90 - v50) / 100.0
	if binSize == 0 {
		binSize = 1e-6
	}
	lowerBinVal := v50 - 128*binSize

	mean, stdDev, _ := statutil.SigmaClip(all, sigClipAlpha, 3)

	var skyEst, fwhm float64
	for attempt := 0; attempt < 5; attempt++ {
		bins := make([]int, numBins)
		for _, v := range all {
			if absf(v-mean)/stdDev > sigClipAlpha {
				continue
			}
			idx := int(math.Floor((v-lowerBinVal)/binSize)) + 1
			if idx < 0 {
				idx = 0
			}
			if idx > numBins-1 {
				idx = numBins - 1
			}
			bins[idx]++
		}

		total := 0
		for _, c := range bins {
			total += c
		}
		if total == 0 {
			skyEst, fwhm = 0, 1e10
			break
		}
		maxIndex := densestWindow(bins, total)

		threshold := float64(total) / 10.0
		sumI, sumB := 0.0, 0.0
		for i := maxIndex; sumB < threshold && i < numBins-1; i++ {
			sumI += float64(i) * float64(bins[i])
			sumB += float64(bins[i])
		}
		var modeBin float64
		if sumB > 0 {
			modeBin = sumI/sumB + 0.5
		}
		skyEst = lowerBinVal + binSize*(modeBin-1)

		lowerPct := percentileBin(bins, total, 0.25)
		upperPct := percentileBin(bins, total, 0.75)

		if lowerPct < 1 || upperPct > numBins-1 {
			binSize *= 2
			lowerBinVal -= 128 * binSize
			continue
		}
		if upperPct-lowerPct < 40 {
			binSize /= 3
			lowerBinVal = skyEst - 128*binSize
			continue
		}

		fwhm = binSize * (upperPct - lowerPct) / iqRange
		break
	}
	if fwhm == 0 {
		fwhm = 1e10
	}

	s.Stats.SkyEst = skyEst
	s.Stats.FWHM = fwhm
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// densestWindow slides a variable-width window [lowerIndex, upperIndex)
// across bins, growing it until its point count reaches okCount/10 and
// shrinking it from the left by one bin each step, tracking the start of
// the window with the highest density sum/width seen along the way.
func densestWindow(bins []int, okCount int) int {
	threshold := float64(okCount) / 10.0
	maxDens := 0.0
	maxIndex := -1
	sumBins := 0.0
	lowerIndex, upperIndex := 1, 1
	for upperIndex < numBins-1 {
		for sumBins < threshold && upperIndex < numBins-1 {
			sumBins += float64(bins[upperIndex])
			upperIndex++
		}
		if dens := sumBins / float64(upperIndex-lowerIndex); dens > maxDens {
			maxDens = dens
			maxIndex = lowerIndex
		}
		sumBins -= float64(bins[lowerIndex])
		lowerIndex++
	}
	if maxIndex < 0 || maxIndex > numBins-1 {
		maxIndex = 0
	}
	return maxIndex
}

// percentileBin returns the linearly-interpolated bin index at which the
// cumulative histogram reaches frac of total.
func percentileBin(bins []int, total int, frac float64) float64 {
	target := frac * float64(total)
	cum := 0.0
	for i, c := range bins {
		next := cum + float64(c)
		if next >= target {
			if c == 0 {
				return float64(i)
			}
			return float64(i) + (target-cum)/float64(c)
		}
		cum = next
	}
	return float64(len(bins))
}

// collect gathers every stamp pixel that is not image-masked bad/NaN and
// not near-zero, in absolute image coordinates for mask lookups.
func collect(s *Stamp, m *mask.Mask) []float64 {
	out := make([]float64, 0, len(s.Data))
	for yy := int32(0); yy < s.Size.Y; yy++ {
		for xx := int32(0); xx < s.Size.X; xx++ {
			ax, ay := s.Coords.X+xx, s.Coords.Y+yy
			if m.IsMaskedAny(ax, ay, mask.BadInput|mask.NaNPixel) {
				continue
			}
			v := s.At(xx, yy)
			if absf(v) <= 1e-10 {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// sampleUpTo100 draws up to 100 uniformly-random pixels from the stamp,
// skipping masked or near-zero pixels, using src for reproducibility.
func sampleUpTo100(s *Stamp, m *mask.Mask, src *rng.Source) []float64 {
	out := make([]float64, 0, 100)
	tries := 0
	for len(out) < 100 && tries < 10000 {
		tries++
		xx := int32(src.Float64() * float64(s.Size.X))
		yy := int32(src.Float64() * float64(s.Size.Y))
		if xx >= s.Size.X {
			xx = s.Size.X - 1
		}
		if yy >= s.Size.Y {
			yy = s.Size.Y - 1
		}
		ax, ay := s.Coords.X+xx, s.Coords.Y+yy
		if m.IsMaskedAny(ax, ay, mask.BadInput|mask.NaNPixel) {
			continue
		}
		v := s.At(xx, yy)
		if absf(v) <= 1e-10 {
			continue
		}
		out = append(out, v)
	}
	return out
}
