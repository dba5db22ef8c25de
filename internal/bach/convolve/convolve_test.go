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

package convolve

import (
	"testing"

	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/kernel"
)

func TestConvolveIdentityKernelReproducesSourceImage(t *testing.T) {
	k := kernel.New([]int32{0}, []float64{0.8}, 1, 0)
	k.Solution = []float64{0, 1, 0} // coeff[0]=1 (identity), background=0

	cfg := config.NewDefault()
	cfg.KernelOrder = 0
	cfg.BackgroundOrder = 0

	w, h := int32(6), int32(6)
	from := image.New("from", w, h)
	to := image.New("to", w, h)
	for i := range from.Data {
		from.Data[i] = float64(i)
		to.Data[i] = float64(i) + 10
	}

	conv := CPU{}
	convolved, diff, code, err := conv.Convolve(from, to, k, cfg)
	if err != nil {
		t.Fatalf("Convolve: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			if d := convolved.At(x, y) - from.At(x, y); d > 1e-9 || d < -1e-9 {
				t.Errorf("convolved(%d,%d) = %v, want %v (identity kernel)", x, y, convolved.At(x, y), from.At(x, y))
			}
			wantDiff := to.At(x, y) - from.At(x, y)
			if d := diff.At(x, y) - wantDiff; d > 1e-9 || d < -1e-9 {
				t.Errorf("diff(%d,%d) = %v, want %v", x, y, diff.At(x, y), wantDiff)
			}
		}
	}
}

func TestClamp(t *testing.T) {
	if v := clamp(-5, 0, 10); v != 0 {
		t.Errorf("clamp(-5,0,10) = %d, want 0", v)
	}
	if v := clamp(15, 0, 10); v != 10 {
		t.Errorf("clamp(15,0,10) = %d, want 10", v)
	}
	if v := clamp(5, 0, 10); v != 5 {
		t.Errorf("clamp(5,0,10) = %d, want 5", v)
	}
}
