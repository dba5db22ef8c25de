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

package pipeline

import (
	"bytes"
	"testing"

	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/image"
)

func TestDirectionString(t *testing.T) {
	if TemplateToScience.String() != "template->science" {
		t.Errorf("TemplateToScience.String() = %q", TemplateToScience.String())
	}
	if ScienceToTemplate.String() != "science->template" {
		t.Errorf("ScienceToTemplate.String() = %q", ScienceToTemplate.String())
	}
}

func TestRunRejectsDimensionMismatch(t *testing.T) {
	cfg := config.NewDefault()
	tmpl := image.New("t", 50, 50)
	sci := image.New("s", 40, 40)

	var log bytes.Buffer
	_, err := Run(cfg, tmpl, sci, &log)
	if err == nil {
		t.Fatal("expected an error on mismatched image dimensions")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Dg = cfg.Dg[:1] // mismatched against Bg, Validate() should reject
	tmpl := image.New("t", 50, 50)
	sci := image.New("s", 50, 50)

	var log bytes.Buffer
	_, err := Run(cfg, tmpl, sci, &log)
	if err == nil {
		t.Fatal("expected an error on invalid config")
	}
}

func TestRunNoSubstampsOnFlatImages(t *testing.T) {
	cfg := config.NewDefault()
	cfg.StampsX, cfg.StampsY = 2, 2
	w, h := int32(120), int32(120)
	tmpl := image.New("t", w, h)
	sci := image.New("s", w, h)
	for i := range tmpl.Data {
		tmpl.Data[i] = 100
		sci.Data[i] = 100
	}

	var log bytes.Buffer
	_, err := Run(cfg, tmpl, sci, &log)
	if err == nil {
		t.Fatal("expected an error when no star-like peaks exist anywhere")
	}
}
