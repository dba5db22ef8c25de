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

// Package rest exposes an optional HTTP endpoint that runs the pipeline
// on a template/science pair and streams a plain-text progress log back
// to the caller, for operators who'd rather not shell out to the CLI.
package rest

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/astrobach/bach/internal/bach/config"
	"github.com/astrobach/bach/internal/bach/fitsio"
	"github.com/astrobach/bach/internal/bach/pipeline"
)

// JobRequest names the two input files for a differencing run.
type JobRequest struct {
	TemplatePath string `json:"template" binding:"required"`
	SciencePath  string `json:"science" binding:"required"`
}

// Serve starts the HTTP server on addr. It is never on the core fit path;
// -port must be set explicitly to enable it.
func Serve(addr string, cfg *config.Config) error {
	r := gin.Default()
	r.GET("/api/v1/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.POST("/api/v1/job", func(c *gin.Context) {
		var req JobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, "bad request: %v", err)
			return
		}
		runJob(c, req, cfg)
	})
	return r.Run(addr)
}

func runJob(c *gin.Context, req JobRequest, cfg *config.Config) {
	var log bytes.Buffer
	c.Writer.Header().Set("Content-Type", "text/plain")
	c.Writer.WriteHeader(http.StatusOK)

	tmplImg, err := fitsio.ReadFile(req.TemplatePath, &log)
	if err != nil {
		fmt.Fprintf(c.Writer, "error reading template: %v\n", err)
		flush(c, &log)
		return
	}
	sciImg, err := fitsio.ReadFile(req.SciencePath, &log)
	if err != nil {
		fmt.Fprintf(c.Writer, "error reading science: %v\n", err)
		flush(c, &log)
		return
	}
	flush(c, &log)

	res, err := pipeline.Run(cfg, tmplImg, sciImg, c.Writer)
	if err != nil {
		fmt.Fprintf(c.Writer, "error: %v\n", err)
		return
	}
	fmt.Fprintf(c.Writer, "done: direction=%s stamps=%d\n", res.Direction, len(res.Stamps))
}

func flush(c *gin.Context, log *bytes.Buffer) {
	c.Writer.Write(log.Bytes())
	log.Reset()
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}
}
