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

// Package statutil holds the small statistical helpers shared across stamp
// statistics, direction choice and the global fit: sigma-clipping and a
// percentile lookup over sorted data.
package statutil

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SigmaClip iteratively recomputes mean and standard deviation over data,
// rejecting points more than alpha standard deviations from the mean, for
// up to iter rounds. It reports (mean, stdDev, kept). On an empty input it
// returns the degenerate sentinel (0, 1e10, nil) per the source's error
// handling design; a single surviving point produces the same sentinel
// stdDev since variance is undefined.
func SigmaClip(data []float64, alpha float64, iter int) (mean, stdDev float64, kept []float64) {
	if len(data) == 0 {
		return 0, 1e10, nil
	}
	kept = append(kept, data...)

	for i := 0; i < iter; i++ {
		if len(kept) <= 1 {
			return meanOf(kept), 1e10, kept
		}
		mean = stat.Mean(kept, nil)
		stdDev = stat.StdDev(kept, nil)
		if stdDev == 0 {
			return mean, stdDev, kept
		}

		next := kept[:0:0]
		for _, v := range kept {
			if absf(v-mean)/stdDev <= alpha {
				next = append(next, v)
			}
		}
		if len(next) == len(kept) {
			kept = next
			break
		}
		kept = next
	}

	if len(kept) <= 1 {
		return meanOf(kept), 1e10, kept
	}
	mean = stat.Mean(kept, nil)
	stdDev = stat.StdDev(kept, nil)
	return mean, stdDev, kept
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v) / float64(len(v))
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Percentile returns the linearly-interpolated value at fraction frac
// (0..1) of sorted data. data is sorted in place.
func Percentile(data []float64, frac float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	if len(data) == 1 {
		return data[0]
	}
	pos := frac * float64(len(data)-1)
	lo := int(pos)
	if lo >= len(data)-1 {
		return data[len(data)-1]
	}
	frac2 := pos - float64(lo)
	return data[lo]*(1-frac2) + data[lo+1]*frac2
}
