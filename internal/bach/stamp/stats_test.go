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
	"testing"

	"github.com/astrobach/bach/internal/bach/mask"
	"github.com/astrobach/bach/internal/bach/rng"
)

func flatStamp(w, h int32, val float64) *Stamp {
	s := &Stamp{Coords: Coord{0, 0}, Size: Coord{w, h}}
	s.Data = make([]float64, w*h)
	for i := range s.Data {
		s.Data[i] = val
	}
	return s
}

func TestCalcStatsOnUniformStampEstimatesFlatSky(t *testing.T) {
	s := flatStamp(40, 40, 1000)
	m := mask.New(40, 40)
	src := rng.New(-666)

	CalcStats(s, m, 3, 1.34896, src)

	if d := s.Stats.SkyEst - 1000; d > 1 || d < -1 {
		t.Errorf("SkyEst = %v, want ~1000", s.Stats.SkyEst)
	}
	// Every pixel lands in one histogram bin, so the interquartile width
	// never reaches 40 bins and the zero-variance stamp gets the sentinel.
	if s.Stats.FWHM != 1e10 {
		t.Errorf("FWHM = %v, want sentinel 1e10 on a zero-variance stamp", s.Stats.FWHM)
	}
}

func TestCalcStatsAllMaskedYieldsSentinel(t *testing.T) {
	s := flatStamp(10, 10, 500)
	m := mask.New(10, 10)
	for yy := int32(0); yy < 10; yy++ {
		for xx := int32(0); xx < 10; xx++ {
			m.Set(xx, yy, mask.BadInput)
		}
	}
	src := rng.New(-666)
	CalcStats(s, m, 3, 1.34896, src)

	if s.Stats.FWHM != 1e10 {
		t.Errorf("FWHM = %v, want sentinel 1e10 when every pixel is masked", s.Stats.FWHM)
	}
}

func TestDensestWindowFindsPeak(t *testing.T) {
	// A single ten-bin spike of density 5 surrounded by zeros: with
	// okCount=50, the 10%-of-points threshold is 5, met immediately by
	// bins[100] alone, so the densest single-bin window starts there.
	bins := make([]int, 256)
	for i := 100; i < 110; i++ {
		bins[i] = 5
	}
	if start := densestWindow(bins, 50); start != 100 {
		t.Errorf("densestWindow start = %d, want 100", start)
	}
}

func TestDensestWindowSpreadsOverSparseHistogram(t *testing.T) {
	// Points spread one-per-bin everywhere except a denser cluster in
	// [50,60): reaching the 10%-of-points threshold there takes a
	// narrower window than elsewhere, so that cluster should win.
	bins := make([]int, 256)
	for i := range bins {
		bins[i] = 1
	}
	for i := 50; i < 60; i++ {
		bins[i] = 10
	}
	okCount := 0
	for _, c := range bins {
		okCount += c
	}
	start := densestWindow(bins, okCount)
	if start < 49 || start > 60 {
		t.Errorf("densestWindow start = %d, want inside/near the dense cluster [50,60)", start)
	}
}

func TestPercentileBinInterpolates(t *testing.T) {
	bins := make([]int, 4)
	bins[0], bins[1], bins[2], bins[3] = 10, 10, 10, 10
	p := percentileBin(bins, 40, 0.5)
	if p < 1.9 || p > 2.1 {
		t.Errorf("percentileBin(0.5) = %v, want ~2.0", p)
	}
}
