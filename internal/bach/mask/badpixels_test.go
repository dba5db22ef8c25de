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
	"bytes"
	"testing"
)

func flatFrame(w, h int32, v float64) []float64 {
	data := make([]float64, w*h)
	for i := range data {
		data[i] = v
	}
	return data
}

func TestSampleBadPixelStatsOnFlatFrameIsZero(t *testing.T) {
	data := flatFrame(20, 20, 100)
	stats := SampleBadPixelStats(data, 20, 20, 0.1)
	if stats.Mean != 0 || stats.StdDev != 0 {
		t.Errorf("stats = %+v, want zero mean/stddev on a flat frame", stats)
	}
	if stats.Samples < 1 {
		t.Errorf("Samples = %d, want at least 1", stats.Samples)
	}
}

func TestCountOutliersFlagsSingleSpike(t *testing.T) {
	w, h := int32(10), int32(10)
	data := flatFrame(w, h, 100)
	data[5*w+5] = 100000 // one bright outlier pixel

	stats := SampleBadPixelStats(data, w, h, 0.5)
	count, fraction := CountOutliers(data, w, h, stats, 3)
	if count < 1 {
		t.Errorf("count = %d, want at least 1 outlier detected", count)
	}
	if fraction <= 0 {
		t.Errorf("fraction = %v, want > 0", fraction)
	}
}

func TestLogBadPixelDiagnosticQuietWhenNotVerbose(t *testing.T) {
	data := flatFrame(10, 10, 1)
	var buf bytes.Buffer
	LogBadPixelDiagnostic(&buf, data, 10, 10, 5, false)
	if buf.Len() != 0 {
		t.Errorf("expected no output when verbose is false, got %q", buf.String())
	}
}

func TestLogBadPixelDiagnosticWritesSummaryWhenVerbose(t *testing.T) {
	data := flatFrame(10, 10, 1)
	var buf bytes.Buffer
	LogBadPixelDiagnostic(&buf, data, 10, 10, 5, true)
	if buf.Len() == 0 {
		t.Error("expected a summary line when verbose is true")
	}
}
