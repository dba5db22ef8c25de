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

package fitsio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	bimage "github.com/astrobach/bach/internal/bach/image"
)

// WriteFile writes img to fileName as a BITPIX=-64 FITS file, double
// precision throughout so the output never loses kernel-fit precision.
func WriteFile(img *bimage.Image, fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := Write(w, img); err != nil {
		return err
	}
	return w.Flush()
}

// Write encodes img as a minimal single-HDU FITS stream.
func Write(w io.Writer, img *bimage.Image) error {
	cards := []string{
		card("SIMPLE", "T"),
		card("BITPIX", "-64"),
		card("NAXIS", "2"),
		card("NAXIS1", fmt.Sprintf("%d", img.Width)),
		card("NAXIS2", fmt.Sprintf("%d", img.Height)),
		card("BZERO", "0"),
		card("BSCALE", "1"),
		endCard(),
	}
	if err := writeHeaderBlocks(w, cards); err != nil {
		return err
	}

	buf := make([]byte, 8)
	for _, v := range img.Data {
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (56 - 8*i))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return writePadding(w, len(img.Data)*8)
}

func card(key, val string) string {
	line := fmt.Sprintf("%-8s= %20s", key, val)
	return padCard(line)
}

func endCard() string {
	return padCard("END")
}

func padCard(s string) string {
	if len(s) > cardSize {
		return s[:cardSize]
	}
	for len(s) < cardSize {
		s += " "
	}
	return s
}

func writeHeaderBlocks(w io.Writer, cards []string) error {
	joined := ""
	for _, c := range cards {
		joined += c
	}
	for len(joined)%blockSize != 0 {
		joined += " "
	}
	_, err := io.WriteString(w, joined)
	return err
}

func writePadding(w io.Writer, byteLen int) error {
	rem := byteLen % blockSize
	if rem == 0 {
		return nil
	}
	pad := make([]byte, blockSize-rem)
	_, err := w.Write(pad)
	return err
}
