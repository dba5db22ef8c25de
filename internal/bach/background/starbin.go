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
	"sort"

	"github.com/valyala/fastrand"

	"github.com/astrobach/bach/internal/bach/stamp"
)

// Grid is a coarse empirical sky-background estimate read directly off the
// image data, binning out pixels near known substamp centroids the way
// automated background extraction avoids stars when fitting sky level. It
// is a diagnostic cross-check against the fitted polynomial Surface, not
// an input to the kernel fit.
type Grid struct {
	Width, Height          int32
	GridCellsX, GridCellsY int32
	GridSpacingX           float64
	GridSpacingY           float64
	Cells                  []float64
}

// At bilinearly samples the grid at full-resolution (x, y).
func (g *Grid) At(x, y int32) float64 {
	fx := float64(x) / g.GridSpacingX
	fy := float64(y) / g.GridSpacingY
	return bilerp(g.Cells, g.GridCellsX, g.GridCellsY, fx, fy)
}

// NewGrid bins substamp centroids into grid cells, then estimates each
// cell's sky level as the median of a random subsample of its non-excluded
// pixels. exclusionRadius is the per-substamp radius (in pixels) treated
// as star light rather than sky; maxSamplesPerCell caps how many pixels
// per cell are drawn, the way the teacher's FastApprox* estimators trade
// exhaustive scans for a bounded random sample.
func NewGrid(data []float64, width, height, gridSpacing int32, substamps []stamp.SubStamp, exclusionRadius float64, maxSamplesPerCell int32) *Grid {
	if gridSpacing < 1 {
		gridSpacing = 1
	}
	gridCellsX := (width + gridSpacing/2) / gridSpacing
	if gridCellsX < 1 {
		gridCellsX = 1
	}
	gridCellsY := (height + gridSpacing/2) / gridSpacing
	if gridCellsY < 1 {
		gridCellsY = 1
	}
	gridSpacingX := float64(width) / float64(gridCellsX)
	gridSpacingY := float64(height) / float64(gridCellsY)

	cellStars := binSubStampsIntoCells(substamps, gridCellsX, gridCellsY, gridSpacingX, gridSpacingY)

	cells := make([]float64, gridCellsX*gridCellsY)
	rng := fastrand.RNG{}
	for cy := int32(0); cy < gridCellsY; cy++ {
		yStart := int32(float64(cy) * gridSpacingY)
		yEnd := int32(float64(cy+1) * gridSpacingY)
		if yEnd > height {
			yEnd = height
		}
		for cx := int32(0); cx < gridCellsX; cx++ {
			xStart := int32(float64(cx) * gridSpacingX)
			xEnd := int32(float64(cx+1) * gridSpacingX)
			if xEnd > width {
				xEnd = width
			}
			c := cy*gridCellsX + cx
			cells[c] = sampleCellMedian(data, width, xStart, xEnd, yStart, yEnd, cellStars[c], exclusionRadius, maxSamplesPerCell, &rng)
		}
	}
	return &Grid{Width: width, Height: height, GridCellsX: gridCellsX, GridCellsY: gridCellsY,
		GridSpacingX: gridSpacingX, GridSpacingY: gridSpacingY, Cells: cells}
}

// binSubStampsIntoCells places each substamp centroid into the 3x3
// neighborhood of grid cells around it, mirroring the teacher's
// binStarsIntoCells so a cell knows about stars whose light can bleed
// into its edge even if the centroid itself lies in a neighboring cell.
func binSubStampsIntoCells(substamps []stamp.SubStamp, gridCellsX, gridCellsY int32, gridSpacingX, gridSpacingY float64) [][]stamp.SubStamp {
	cells := make([][]stamp.SubStamp, gridCellsX*gridCellsY)
	for _, s := range substamps {
		cx := int32(float64(s.ImageCoords.X) / gridSpacingX)
		cy := int32(float64(s.ImageCoords.Y) / gridSpacingY)
		for dy := int32(-1); dy <= 1; dy++ {
			ny := cy + dy
			if ny < 0 || ny >= gridCellsY {
				continue
			}
			for dx := int32(-1); dx <= 1; dx++ {
				nx := cx + dx
				if nx < 0 || nx >= gridCellsX {
					continue
				}
				c := ny*gridCellsX + nx
				cells[c] = append(cells[c], s)
			}
		}
	}
	return cells
}

// sampleCellMedian gathers the non-excluded pixels of one grid cell,
// randomly subsamples down to maxSamples when there are more candidates
// than that, and returns their median.
func sampleCellMedian(data []float64, width, xStart, xEnd, yStart, yEnd int32, stars []stamp.SubStamp, exclusionRadius float64, maxSamples int32, rng *fastrand.RNG) float64 {
	candidates := make([]float64, 0, (xEnd-xStart)*(yEnd-yStart))
nextPixel:
	for y := yStart; y < yEnd; y++ {
		for x := xStart; x < xEnd; x++ {
			for _, s := range stars {
				dx := float64(x) - float64(s.ImageCoords.X)
				dy := float64(y) - float64(s.ImageCoords.Y)
				if dx*dx+dy*dy <= exclusionRadius*exclusionRadius {
					continue nextPixel
				}
			}
			candidates = append(candidates, data[y*width+x])
		}
	}
	if len(candidates) == 0 {
		return 0
	}
	if int32(len(candidates)) > maxSamples && maxSamples > 0 {
		sampled := make([]float64, maxSamples)
		for i := int32(0); i < maxSamples; i++ {
			idx := rng.Uint32n(uint32(len(candidates)))
			sampled[i] = candidates[idx]
		}
		candidates = sampled
	}
	sort.Float64s(candidates)
	return candidates[len(candidates)/2]
}
