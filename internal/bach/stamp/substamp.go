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
	"sort"

	"github.com/astrobach/bach/internal/bach/mask"
)

// FindSStamps locates up to 2*maxKSStamps bright peaks inside s, keeping
// the top maxKSStamps by peak value. isTemplate selects which of the
// companion image's skip flags are excluded from the bad mask, since the
// two images' substamp searches must not block each other.
func FindSStamps(s *Stamp, m *mask.Mask, isTemplate bool, threshHigh, threshKernFit float64, hSStampWidth int32, maxKSStamps int32) {
	badMask := mask.All &^ mask.OKConv
	if isTemplate {
		badMask &^= mask.BadPixelS | mask.SkipS
	} else {
		badMask &^= mask.BadPixelT | mask.SkipT
	}

	skyEst, fwhm := s.Stats.SkyEst, s.Stats.FWHM
	floor := skyEst + threshKernFit*fwhm

	var candidates []SubStamp
	for dfrac := 0.9; ; dfrac -= 0.2 {
		lowestPSFLim := floor
		if v := skyEst + (threshHigh-skyEst)*dfrac; v > floor {
			lowestPSFLim = v
		}

		for yy := int32(0); yy < s.Size.Y; yy++ {
			for xx := int32(0); xx < s.Size.X; xx++ {
				ax, ay := s.Coords.X+xx, s.Coords.Y+yy
				if m.IsMaskedAny(ax, ay, badMask) {
					continue
				}
				v := s.At(xx, yy)
				if v > threshHigh {
					if isTemplate {
						m.Set(ax, ay, mask.BadPixelT)
					} else {
						m.Set(ax, ay, mask.BadPixelS)
					}
					continue
				}
				if (v-skyEst)/fwhm < threshKernFit {
					continue
				}
				if v <= lowestPSFLim {
					continue
				}

				rx, ry, rv, ok := refinePeak(s, m, badMask, xx, yy, skyEst, fwhm, threshHigh, threshKernFit, hSStampWidth, isTemplate)
				if !ok {
					continue
				}
				score := checkSStamp(s, m, badMask, rx, ry, skyEst, fwhm, threshHigh, threshKernFit, hSStampWidth, isTemplate)
				if score == 0 {
					continue
				}

				candidates = append(candidates, SubStamp{
					ImageCoords: Coord{s.Coords.X + rx, s.Coords.Y + ry},
					StampCoords: Coord{rx, ry},
					Val:         rv,
					Sum:         score,
				})
				markSkip(s, m, rx, ry, hSStampWidth, isTemplate)
			}
		}

		if int32(len(candidates)) >= 2*maxKSStamps || lowestPSFLim == floor {
			break
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Val > candidates[j].Val })
	if int32(len(candidates)) > maxKSStamps {
		candidates = candidates[:maxKSStamps]
	}
	s.SubStamps = candidates
}

// refinePeak searches the window of half-width hSStampWidth around (x, y),
// clipped to the stamp bounds, for the highest un-masked pixel satisfying
// the same acceptance thresholds as the caller.
func refinePeak(s *Stamp, m *mask.Mask, badMask mask.Flag, x, y int32, skyEst, fwhm, threshHigh, threshKernFit float64, hSStampWidth int32, isTemplate bool) (bx, by int32, bv float64, ok bool) {
	bv = -1
	for dy := -hSStampWidth; dy <= hSStampWidth; dy++ {
		yy := y + dy
		if yy < 0 || yy >= s.Size.Y {
			continue
		}
		for dx := -hSStampWidth; dx <= hSStampWidth; dx++ {
			xx := x + dx
			if xx < 0 || xx >= s.Size.X {
				continue
			}
			ax, ay := s.Coords.X+xx, s.Coords.Y+yy
			if m.IsMaskedAny(ax, ay, badMask) {
				continue
			}
			v := s.At(xx, yy)
			if v > threshHigh {
				continue
			}
			if (v-skyEst)/fwhm < threshKernFit {
				continue
			}
			if v > bv {
				bv, bx, by, ok = v, xx, yy, true
			}
		}
	}
	return
}

// checkSStamp accumulates the useful signal in the substamp window around
// (x, y): the sum of v over un-masked pixels whose (v-skyEst)/fwhm exceeds
// threshKernFit. It returns 0 if any pixel in the window is masked under
// badMask, and also if one is saturated, flagging that pixel as bad.
func checkSStamp(s *Stamp, m *mask.Mask, badMask mask.Flag, x, y int32, skyEst, fwhm, threshHigh, threshKernFit float64, hSStampWidth int32, isTemplate bool) float64 {
	sum := 0.0
	for dy := -hSStampWidth; dy <= hSStampWidth; dy++ {
		yy := y + dy
		if yy < 0 || yy >= s.Size.Y {
			continue
		}
		for dx := -hSStampWidth; dx <= hSStampWidth; dx++ {
			xx := x + dx
			if xx < 0 || xx >= s.Size.X {
				continue
			}
			ax, ay := s.Coords.X+xx, s.Coords.Y+yy
			if m.IsMaskedAny(ax, ay, badMask) {
				return 0
			}
			v := s.At(xx, yy)
			if v >= threshHigh {
				if isTemplate {
					m.Set(ax, ay, mask.BadPixelT)
				} else {
					m.Set(ax, ay, mask.BadPixelS)
				}
				return 0
			}
			if (v-skyEst)/fwhm > threshKernFit {
				sum += v
			}
		}
	}
	return sum
}

// markSkip flags SkipT/SkipS over the accepted substamp window so later
// candidates don't overlap it.
func markSkip(s *Stamp, m *mask.Mask, x, y int32, hSStampWidth int32, isTemplate bool) {
	flag := mask.SkipS
	if isTemplate {
		flag = mask.SkipT
	}
	for dy := -hSStampWidth; dy <= hSStampWidth; dy++ {
		yy := y + dy
		if yy < 0 || yy >= s.Size.Y {
			continue
		}
		for dx := -hSStampWidth; dx <= hSStampWidth; dx++ {
			xx := x + dx
			if xx < 0 || xx >= s.Size.X {
				continue
			}
			m.Set(s.Coords.X+xx, s.Coords.Y+yy, flag)
		}
	}
}

// IdentifySStamps computes substamps for both the template and science
// stamp grids, then removes stamps that ended up empty in either grid so
// the two slices stay index-aligned. It returns the count of surviving
// stamps.
func IdentifySStamps(tmplStamps, sciStamps []*Stamp, m *mask.Mask, threshHigh, threshKernFit float64, hSStampWidth, maxKSStamps int32) ([]*Stamp, []*Stamp, int) {
	if len(tmplStamps) != len(sciStamps) {
		panic("stamp: template and science stamp grids must have equal length")
	}

	for i := range tmplStamps {
		FindSStamps(tmplStamps[i], m, true, threshHigh, threshKernFit, hSStampWidth, maxKSStamps)
		FindSStamps(sciStamps[i], m, false, threshHigh, threshKernFit, hSStampWidth, maxKSStamps)
	}

	outT := tmplStamps[:0]
	outS := sciStamps[:0]
	for i := range tmplStamps {
		if len(tmplStamps[i].SubStamps) == 0 || len(sciStamps[i].SubStamps) == 0 {
			continue
		}
		outT = append(outT, tmplStamps[i])
		outS = append(outS, sciStamps[i])
	}
	return outT, outS, len(outT)
}
