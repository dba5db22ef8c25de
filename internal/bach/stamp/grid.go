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

import "github.com/astrobach/bach/internal/bach/image"

// CreateStamps tiles img into stampsx by stampsy rectangular stamps. Tile
// width is w/stampsx, height h/stampsy; the last row/column absorbs the
// remainder so every pixel belongs to exactly one stamp.
func CreateStamps(img *image.Image, stampsx, stampsy int32) []*Stamp {
	w, h := img.Width, img.Height
	tileW, tileH := w/stampsx, h/stampsy

	stamps := make([]*Stamp, 0, stampsx*stampsy)
	for sy := int32(0); sy < stampsy; sy++ {
		y0 := sy * tileH
		th := tileH
		if sy == stampsy-1 {
			th = h - y0
		}
		for sx := int32(0); sx < stampsx; sx++ {
			x0 := sx * tileW
			tw := tileW
			if sx == stampsx-1 {
				tw = w - x0
			}

			s := &Stamp{Coords: Coord{x0, y0}, Size: Coord{tw, th}}
			s.Data = make([]float64, tw*th)
			for yy := int32(0); yy < th; yy++ {
				for xx := int32(0); xx < tw; xx++ {
					s.Data[yy*tw+xx] = img.At(x0+xx, y0+yy)
				}
			}
			stamps = append(stamps, s)
		}
	}
	return stamps
}

// DeriveFStampWidth implements the fStampWidth derivation from the stamp
// grid component: the naive tile size minus fKernelWidth, forced odd; if
// that is smaller than fSStampWidth, grow it to fSStampWidth+fKernelWidth
// (forced odd) and recompute stampsx/stampsy from it.
func DeriveFStampWidth(w, h, stampsx, stampsy, fKernelWidth, fSStampWidth int32) (fStampWidth, newStampsX, newStampsY int32) {
	tileW, tileH := w/stampsx, h/stampsy
	fStampWidth = tileW
	if tileH < fStampWidth {
		fStampWidth = tileH
	}
	fStampWidth -= fKernelWidth
	fStampWidth = forceOdd(fStampWidth)

	if fStampWidth >= fSStampWidth {
		return fStampWidth, stampsx, stampsy
	}

	fStampWidth = forceOdd(fSStampWidth + fKernelWidth)
	newStampsX = w / fStampWidth
	newStampsY = h / fStampWidth
	if newStampsX < 1 {
		newStampsX = 1
	}
	if newStampsY < 1 {
		newStampsY = 1
	}
	return fStampWidth, newStampsX, newStampsY
}

func forceOdd(v int32) int32 {
	if v%2 == 0 {
		v++
	}
	return v
}
