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

package diagnostics

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/astrobach/bach/internal/bach/background"
	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/kernel"
)

func TestKernelMapPreviewProducesDecodablePNG(t *testing.T) {
	k := kernel.New([]int32{2}, []float64{0.8}, 11, 5)
	cfg := config.NewDefault()
	k.Solution = make([]float64, 200)
	k.Solution[1] = 1

	var buf bytes.Buffer
	if err := KernelMapPreview(&buf, k, cfg, 200, 200, 8, 64, 48); err != nil {
		t.Fatalf("KernelMapPreview: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded size %dx%d, want 64x48", b.Dx(), b.Dy())
	}
}

func TestBackgroundGridPreviewProducesDecodablePNG(t *testing.T) {
	data := make([]float64, 64*64)
	for i := range data {
		data[i] = 20
	}
	g := background.NewGrid(data, 64, 64, 16, nil, 5, 100)

	var buf bytes.Buffer
	if err := BackgroundGridPreview(&buf, g, 32, 32); err != nil {
		t.Fatalf("BackgroundGridPreview: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("decoded size %dx%d, want 32x32", b.Dx(), b.Dy())
	}
}

func TestGrayscaleLevelClamps(t *testing.T) {
	if g := grayscaleLevel(-1); g.Y != 0 {
		t.Errorf("grayscaleLevel(-1).Y = %d, want 0", g.Y)
	}
	if g := grayscaleLevel(2); g.Y != 255 {
		t.Errorf("grayscaleLevel(2).Y = %d, want 255", g.Y)
	}
}
