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

	"github.com/astrobach/bach/internal/bach/image"
)

func TestCreateStampsCoversEveryPixelExactlyOnce(t *testing.T) {
	w, h := int32(23), int32(17)
	img := image.New("test", w, h)
	for i := range img.Data {
		img.Data[i] = float64(i)
	}

	stamps := CreateStamps(img, 4, 3)
	if len(stamps) != 12 {
		t.Fatalf("expected 12 stamps, got %d", len(stamps))
	}

	seen := make([]bool, w*h)
	for _, s := range stamps {
		for yy := int32(0); yy < s.Size.Y; yy++ {
			for xx := int32(0); xx < s.Size.X; xx++ {
				ax, ay := s.Coords.X+xx, s.Coords.Y+yy
				idx := ay*w + ax
				if seen[idx] {
					t.Fatalf("pixel (%d,%d) covered by more than one stamp", ax, ay)
				}
				seen[idx] = true
				if s.At(xx, yy) != img.At(ax, ay) {
					t.Errorf("stamp data mismatch at (%d,%d)", ax, ay)
				}
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("pixel index %d never covered by any stamp", i)
		}
	}
}

func TestDeriveFStampWidthShrinksWhenTooFine(t *testing.T) {
	fStampWidth, sx, sy := DeriveFStampWidth(256, 256, 100, 100, 11, 21)
	if fStampWidth < 21 {
		t.Errorf("fStampWidth %d should be >= fSStampWidth 21 after regrow", fStampWidth)
	}
	if fStampWidth%2 == 0 {
		t.Errorf("fStampWidth must be odd, got %d", fStampWidth)
	}
	if sx < 1 || sy < 1 {
		t.Errorf("recomputed grid must be at least 1x1, got %dx%d", sx, sy)
	}
}

func TestDeriveFStampWidthKeepsCoarseGrid(t *testing.T) {
	fStampWidth, sx, sy := DeriveFStampWidth(1024, 1024, 10, 10, 11, 21)
	if fStampWidth < 21 {
		t.Errorf("fStampWidth %d should already satisfy fSStampWidth 21", fStampWidth)
	}
	if sx != 10 || sy != 10 {
		t.Errorf("grid should be unchanged at 10x10, got %dx%d", sx, sy)
	}
}
