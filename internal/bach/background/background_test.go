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

package background

import (
	"testing"

	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/kernel"
)

func TestSurfaceConstantBackgroundIsFlat(t *testing.T) {
	k := kernel.New([]int32{0}, []float64{0.8}, 1, 0)
	cfg := config.NewDefault()
	cfg.KernelOrder = 0
	cfg.BackgroundOrder = 0
	k.Solution = []float64{0, 1, 42} // constant background of 42

	w, h := int32(32), int32(32)
	surf := Surface(k, cfg, w, h, 4)

	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			if d := surf.At(x, y) - 42; d > 1e-6 || d < -1e-6 {
				t.Fatalf("Surface(%d,%d) = %v, want 42", x, y, surf.At(x, y))
			}
		}
	}
}

func TestBilerpMidpoint(t *testing.T) {
	grid := []float64{0, 10, 20, 30} // 2x2
	v := bilerp(grid, 2, 2, 0.5, 0.5)
	if d := v - 15; d > 1e-9 || d < -1e-9 {
		t.Errorf("bilerp midpoint = %v, want 15", v)
	}
}

func TestSmooth3x3PreservesConstant(t *testing.T) {
	grid := make([]float64, 16)
	for i := range grid {
		grid[i] = 7
	}
	out := smooth3x3(grid, 4, 4)
	for i, v := range out {
		if d := v - 7; d > 1e-9 || d < -1e-9 {
			t.Errorf("smooth3x3 constant grid index %d = %v, want 7", i, v)
		}
	}
}
