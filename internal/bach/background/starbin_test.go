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

	"github.com/astrobach/bach/internal/bach/stamp"
)

func TestNewGridOnFlatSkyEstimatesConstant(t *testing.T) {
	w, h := int32(64), int32(64)
	data := make([]float64, w*h)
	for i := range data {
		data[i] = 50
	}

	g := NewGrid(data, w, h, 16, nil, 5, 200)
	for _, c := range g.Cells {
		if d := c - 50; d > 1e-9 || d < -1e-9 {
			t.Fatalf("cell = %v, want 50 on a flat sky", c)
		}
	}
}

func TestNewGridExcludesStarPixels(t *testing.T) {
	w, h := int32(32), int32(32)
	data := make([]float64, w*h)
	for i := range data {
		data[i] = 10
	}
	// Flood one quadrant with bright "star" pixels around a substamp centroid.
	cx, cy := int32(8), int32(8)
	for dy := int32(-3); dy <= 3; dy++ {
		for dx := int32(-3); dx <= 3; dx++ {
			data[(cy+dy)*w+(cx+dx)] = 50000
		}
	}
	substamps := []stamp.SubStamp{{ImageCoords: stamp.Coord{X: cx, Y: cy}}}

	g := NewGrid(data, w, h, 16, substamps, 5, 200)
	for _, c := range g.Cells {
		if c > 1000 {
			t.Errorf("cell = %v, star pixels should have been excluded from the sky estimate", c)
		}
	}
}

func TestBinSubStampsIntoCellsCoversNeighborhood(t *testing.T) {
	substamps := []stamp.SubStamp{{ImageCoords: stamp.Coord{X: 16, Y: 16}}}
	cells := binSubStampsIntoCells(substamps, 4, 4, 8, 8)

	total := 0
	for _, c := range cells {
		total += len(c)
	}
	if total == 0 {
		t.Error("expected the substamp to be binned into at least one cell")
	}
}
