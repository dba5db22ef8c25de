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

package fit

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/astrobach/bach/internal/bach/stamp"
)

// AffineTransform is a 2D affine map x' = A*x + B*y + C, y' = D*x + E*y + F.
type AffineTransform struct {
	A, B, C, D, E, F float64
}

// Apply maps (x, y) through the transform.
func (t AffineTransform) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// identityTransform is the no-op affine map, returned when there aren't
// enough surviving substamp pairs to refine anything.
var identityTransform = AffineTransform{1, 0, 0, 0, 1, 0}

// RefineTransform fits a 2D affine transform mapping each fromStamp's best
// substamp centroid onto the corresponding toStamp's best centroid, and
// reports the RMS residual distance in pixels after fitting. This is a
// diagnostic only: callers pass in the same stamp-index pairing
// IdentifySStamps produced, and the result tells them how far the upstream
// alignment step (which BACH assumes already happened) actually left the
// two frames apart. It never feeds back into the kernel fit and never
// moves a pixel.
func RefineTransform(fromStamps, toStamps []*stamp.Stamp) (t AffineTransform, residual float64) {
	n := len(fromStamps)
	if len(toStamps) < n {
		n = len(toStamps)
	}

	var fromX, fromY, toX, toY []float64
	for i := 0; i < n; i++ {
		fs, ok1 := fromStamps[i].Best()
		ts, ok2 := toStamps[i].Best()
		if !ok1 || !ok2 {
			continue
		}
		fromX = append(fromX, float64(fs.ImageCoords.X))
		fromY = append(fromY, float64(fs.ImageCoords.Y))
		toX = append(toX, float64(ts.ImageCoords.X))
		toY = append(toY, float64(ts.ImageCoords.Y))
	}
	if len(fromX) < 3 {
		return identityTransform, 0
	}

	x0 := []float64{1, 0, 0, 0, 1, 0}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			tr := AffineTransform{x[0], x[1], x[2], x[3], x[4], x[5]}
			sum := 0.0
			for i := range fromX {
				px, py := tr.Apply(fromX[i], fromY[i])
				dx, dy := px-toX[i], py-toY[i]
				sum += dx*dx + dy*dy
			}
			return math.Sqrt(sum / float64(len(fromX)))
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return identityTransform, math.Inf(1)
	}

	x := result.X
	t = AffineTransform{x[0], x[1], x[2], x[3], x[4], x[5]}
	return t, result.F
}
