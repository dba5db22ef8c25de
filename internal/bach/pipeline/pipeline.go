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

// Package pipeline drives the end-to-end stage sequence: masking, stamp
// grid, stamp statistics, substamp discovery, kernel basis construction,
// direction choice and the global kernel fit.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/fit"
	"github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/kernel"
	"github.com/astrobach/bach/internal/bach/mask"
	"github.com/astrobach/bach/internal/bach/rng"
	"github.com/astrobach/bach/internal/bach/stamp"
)

// Result is the pipeline's output: the fitted kernel, the winning
// direction and its surviving stamps, ready for the convolution
// collaborator.
type Result struct {
	Kernel      *kernel.Kernel
	Direction   Direction
	Solution    []float64
	Stamps      []*stamp.Stamp
	Mask        *mask.Mask
	TemplateImg *image.Image
	ScienceImg  *image.Image
}

// Direction identifies which image was convolved onto which.
type Direction int

const (
	TemplateToScience Direction = iota
	ScienceToTemplate
)

func (d Direction) String() string {
	if d == TemplateToScience {
		return "template->science"
	}
	return "science->template"
}

// Run executes the full stage sequence over a template/science pair and
// returns the fitted kernel and chosen direction. log receives verbose
// progress lines when cfg.Verbose is set; stage timings are reported to
// log when cfg.VerboseTime is set.
func Run(cfg *config.Config, tmplImg, sciImg *image.Image, log io.Writer) (*Result, error) {
	if err := image.RequireSameDimensions(tmplImg, sciImg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.DeriveStampGrid(tmplImg.Width, tmplImg.Height)

	m := mask.New(tmplImg.Width, tmplImg.Height)
	mask.LogCPUFeatures(log, cfg.Verbose)
	mask.LogBadPixelDiagnostic(log, tmplImg.Data, tmplImg.Width, tmplImg.Height, cfg.BadPixelSigma, cfg.Verbose)
	mask.LogBadPixelDiagnostic(log, sciImg.Data, sciImg.Width, sciImg.Height, cfg.BadPixelSigma, cfg.Verbose)

	borderSize := cfg.HSStampWidth + cfg.HKernelWidth
	stage(cfg, log, "masking", func() {
		mask.MaskInput(m, tmplImg.Data, tmplImg.Width, tmplImg.Height, cfg.ThreshHigh, cfg.ThreshLow, cfg.HKernelWidth)
		mask.MaskInput(m, sciImg.Data, sciImg.Width, sciImg.Height, cfg.ThreshHigh, cfg.ThreshLow, cfg.HKernelWidth)
		markStampBorder(m, tmplImg.Width, tmplImg.Height, borderSize)
	})

	var tmplStamps, sciStamps []*stamp.Stamp
	stage(cfg, log, "stamp grid", func() {
		tmplStamps = stamp.CreateStamps(tmplImg, cfg.StampsX, cfg.StampsY)
		sciStamps = stamp.CreateStamps(sciImg, cfg.StampsX, cfg.StampsY)
	})

	src := rng.New(-666)
	stage(cfg, log, "stamp statistics", func() {
		for _, s := range tmplStamps {
			stamp.CalcStats(s, m, cfg.SigClipAlpha, cfg.IQRange, src)
		}
		for _, s := range sciStamps {
			stamp.CalcStats(s, m, cfg.SigClipAlpha, cfg.IQRange, src)
		}
	})

	threshLow := cfg.ThreshLow
	var nOK int
	stage(cfg, log, "substamp finder", func() {
		tmplStamps, sciStamps, nOK = stamp.IdentifySStamps(tmplStamps, sciStamps, m, cfg.ThreshHigh, cfg.ThreshKernFit, cfg.HSStampWidth, cfg.MaxKSStamps)
		if total := len(tmplStamps); total > 0 && float64(nOK) < 0.1*float64(total) {
			cfg.ThreshLow /= 2
			tmplStamps, sciStamps, nOK = stamp.IdentifySStamps(tmplStamps, sciStamps, m, cfg.ThreshHigh, cfg.ThreshKernFit, cfg.HSStampWidth, cfg.MaxKSStamps)
			cfg.ThreshLow = threshLow
		}
	})
	if nOK == 0 {
		return nil, fmt.Errorf("pipeline: no substamps found in any stamp")
	}

	k := kernel.New(cfg.Dg, cfg.Bg, cfg.FKernelWidth, cfg.HKernelWidth)

	var t2s, s2t fit.Result
	stage(cfg, log, "direction choice", func() {
		t2s = fit.TestFit(cloneStamps(tmplStamps), k, cfg, tmplImg, sciImg, m)
		s2t = fit.TestFit(cloneStamps(sciStamps), k, cfg, sciImg, tmplImg, m)
	})

	res := &Result{Kernel: k, Mask: m, TemplateImg: tmplImg, ScienceImg: sciImg}
	if t2s.Merit <= s2t.Merit {
		res.Direction = TemplateToScience
		res.Solution = t2s.Solution
		res.Stamps = t2s.Stamps
	} else {
		res.Direction = ScienceToTemplate
		res.Solution = s2t.Solution
		res.Stamps = s2t.Stamps
	}
	if res.Solution == nil {
		return nil, fmt.Errorf("pipeline: both convolution directions unusable (merit=%v)", fit.MeritSentinel)
	}
	k.Solution = res.Solution

	if cfg.RefineAlignment {
		from, to := tmplStamps, sciStamps
		if res.Direction == ScienceToTemplate {
			from, to = sciStamps, tmplStamps
		}
		_, residual := fit.RefineTransform(from, to)
		if cfg.Verbose {
			fmt.Fprintf(log, "pipeline: alignment refinement residual=%.4g px\n", residual)
		}
	}

	if cfg.Verbose {
		fmt.Fprintf(log, "pipeline: chose direction %s, merit t2s=%.6g s2t=%.6g, %d stamps retained\n",
			res.Direction, t2s.Merit, s2t.Merit, len(res.Stamps))
	}
	return res, nil
}

// cloneStamps makes shallow copies of the stamp slice (not the underlying
// pixel data) so each direction's fit mutates its own subStamps/W/Q/B
// state independently.
func cloneStamps(stamps []*stamp.Stamp) []*stamp.Stamp {
	out := make([]*stamp.Stamp, len(stamps))
	for i, s := range stamps {
		cp := *s
		cp.SubStamps = append([]stamp.SubStamp(nil), s.SubStamps...)
		out[i] = &cp
	}
	return out
}

func markStampBorder(m *mask.Mask, w, h, borderSize int32) {
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			if x < borderSize || x >= w-borderSize || y < borderSize || y >= h-borderSize {
				m.Set(x, y, mask.BadPixelT|mask.BadPixelS)
			}
		}
	}
}

func stage(cfg *config.Config, log io.Writer, name string, f func()) {
	if cfg.VerboseTime {
		start := time.Now()
		f()
		fmt.Fprintf(log, "pipeline: stage %q took %s\n", name, time.Since(start))
		return
	}
	f()
}
