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

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/pbnjay/memory"

	"github.com/astrobach/bach/internal/bach/background"
	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/convolve"
	"github.com/astrobach/bach/internal/bach/diagnostics"
	"github.com/astrobach/bach/internal/bach/fitsio"
	bimage "github.com/astrobach/bach/internal/bach/image"
	"github.com/astrobach/bach/internal/bach/pipeline"
	"github.com/astrobach/bach/internal/bach/rest"
	"github.com/astrobach/bach/internal/bach/stamp"
)

const version = "0.1.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var tmplPath = flag.String("t", "", "template image (required)")
var sciPath = flag.String("s", "", "science image (required)")
var outName = flag.String("o", "diff", "output image name")
var outPath = flag.String("op", "res/", "output directory")
var inPath = flag.String("ip", "", "input directory, prepended to -t and -s")

var verbose = flag.Bool("v", false, "verbose")
var verboseTime = flag.Bool("vt", false, "report stage timings")

var stampsX = flag.Int("stampsx", 10, "stamp grid columns")
var stampsY = flag.Int("stampsy", 10, "stamp grid rows")
var hKernelWidth = flag.Int("hKernelWidth", 5, "kernel half width")
var hSStampWidth = flag.Int("hSStampWidth", 10, "substamp half width")
var threshHigh = flag.Float64("threshHigh", 25000, "saturation cutoff")
var threshLow = flag.Float64("threshLow", 0, "floor cutoff")
var threshKernFit = flag.Float64("threshKernFit", 2, "per-substamp signal-to-FWHM threshold")
var sigClipAlpha = flag.Float64("sigClipAlpha", 3, "sigma-clip rejection threshold")
var sigKernFit = flag.Float64("sigKernFit", 3, "global-fit outlier threshold")
var kernelOrder = flag.Int("kernelOrder", 2, "spatial polynomial order for kernel coefficients")
var backgroundOrder = flag.Int("backgroundOrder", 1, "spatial polynomial order for background")
var maxKSStamps = flag.Int("maxKSStamps", 3, "per-stamp substamp cap")

var previewKernelMap = flag.String("previewKernelMap", "", "save a colorized PNG preview of the kernel sum map to `file`")
var previewBackgroundGrid = flag.String("previewBackgroundGrid", "", "save a colorized PNG preview of the empirical background grid to `file`")
var refineAlignment = flag.Bool("refineAlignment", false, "run the optional sub-pixel alignment residual diagnostic")
var backgroundGridSpacing = flag.Int("backgroundGridSpacing", 64, "grid spacing for the empirical background diagnostic")
var badPixelSigma = flag.Float64("badPixelSigma", 5, "sigma threshold for the bad-pixel pre-pass diagnostic")
var port = flag.Int("port", 0, "if set, serve the optional HTTP job API on this port instead of running once from the CLI")

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		checkErr(err)
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg := config.NewDefault()
	cfg.StampsX, cfg.StampsY = int32(*stampsX), int32(*stampsY)
	cfg.HKernelWidth = int32(*hKernelWidth)
	cfg.HSStampWidth = int32(*hSStampWidth)
	cfg.ThreshHigh = *threshHigh
	cfg.ThreshLow = *threshLow
	cfg.ThreshKernFit = *threshKernFit
	cfg.SigClipAlpha = *sigClipAlpha
	cfg.SigKernFit = *sigKernFit
	cfg.KernelOrder = int32(*kernelOrder)
	cfg.BackgroundOrder = int32(*backgroundOrder)
	cfg.MaxKSStamps = int32(*maxKSStamps)
	cfg.RefineAlignment = *refineAlignment
	cfg.BackgroundGridSpacing = int32(*backgroundGridSpacing)
	cfg.BadPixelSigma = *badPixelSigma
	cfg.Verbose = *verbose
	cfg.VerboseTime = *verboseTime

	if *port != 0 {
		addr := fmt.Sprintf(":%d", *port)
		fmt.Fprintf(os.Stderr, "bach %s: serving HTTP API on %s\n", version, addr)
		checkErr(rest.Serve(addr, cfg))
		return
	}

	if *tmplPath == "" || *sciPath == "" {
		fmt.Fprintln(os.Stderr, "bach: -t and -s are required")
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "bach %s: %d MiB total memory\n", version, totalMiBs)
	}

	tmplImg, err := fitsio.ReadFile(filepath.Join(*inPath, *tmplPath), os.Stderr)
	checkErr(err)
	sciImg, err := fitsio.ReadFile(filepath.Join(*inPath, *sciPath), os.Stderr)
	checkErr(err)

	res, err := pipeline.Run(cfg, tmplImg, sciImg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bach: %v\n", err)
		os.Exit(1)
	}

	fromImg, toImg := directionImages(res)

	conv := convolve.CPU{}
	convolved, diff, code, err := conv.Convolve(fromImg, toImg, res.Kernel, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bach: convolution error: %v\n", err)
		os.Exit(orExitCode(code))
	}

	checkErr(os.MkdirAll(*outPath, 0o755))
	checkErr(fitsio.WriteFile(convolved, filepath.Join(*outPath, *outName+"_conv.fits")))
	checkErr(fitsio.WriteFile(diff, filepath.Join(*outPath, *outName+"_diff.fits")))

	if *previewKernelMap != "" {
		f, err := os.Create(*previewKernelMap)
		checkErr(err)
		defer f.Close()
		checkErr(diagnostics.KernelMapPreview(f, res.Kernel, cfg, tmplImg.Width, tmplImg.Height, 16, 512, 512))
	}

	if *previewBackgroundGrid != "" {
		var substamps []stamp.SubStamp
		for _, s := range res.Stamps {
			substamps = append(substamps, s.SubStamps...)
		}
		grid := background.NewGrid(fromImg.Data, fromImg.Width, fromImg.Height, cfg.BackgroundGridSpacing, substamps, float64(cfg.HSStampWidth), 200)
		f, err := os.Create(*previewBackgroundGrid)
		checkErr(err)
		defer f.Close()
		checkErr(diagnostics.BackgroundGridPreview(f, grid, 512, 512))
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		checkErr(err)
		defer f.Close()
		checkErr(pprof.WriteHeapProfile(f))
	}
}

func directionImages(res *pipeline.Result) (from, to *bimage.Image) {
	if res.Direction == pipeline.TemplateToScience {
		return res.TemplateImg, res.ScienceImg
	}
	return res.ScienceImg, res.TemplateImg
}

func orExitCode(code int) int {
	if code == 0 {
		return 1
	}
	return code
}

func checkErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "bach: %v\n", err)
		os.Exit(1)
	}
}
