// Copyright 2026 The avicap Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rle8 implements the BI_RLE8 bitmap compression used by AVI files.
package rle8

import (
	"errors"
	"fmt"
)

// Escape codes that follow a zero count byte.
const (
	escEndOfLine   = 0
	escEndOfBitmap = 1
	escDelta       = 2
)

type run struct {
	length byte
	value  byte
}

// CompressLine appends the compressed line to dst. Runs of identical
// bytes are stored as (count, value) pairs. Sequences of short runs
// are merged into absolute blocks when that is smaller. The line is
// terminated with an end of line marker.
func CompressLine(dst, line []byte) []byte {
	if len(line) == 0 {
		return append(dst, 0, escEndOfLine)
	}

	runs := make([]run, 0, len(line))
	runLength := 1
	for i := 1; i < len(line); i++ {
		if line[i] != line[i-1] {
			runs = append(runs, run{byte(runLength), line[i-1]})
			runLength = 1
			continue
		}
		runLength++
		if runLength >= 256 {
			runs = append(runs, run{255, line[i-1]})
			runLength = 1
		}
	}
	runs = append(runs, run{byte(runLength), line[len(line)-1]})

	for i := 0; i < len(runs); {
		if runs[i].length >= 2 || i+1 >= len(runs) {
			dst = append(dst, runs[i].length, runs[i].value)
			i++
			continue
		}

		// Collect following short runs.
		j := i + 1
		bytesToCopy := int(runs[i].length)
		minLength := 3
		for j < len(runs) {
			n := int(runs[j].length)
			if n >= minLength || bytesToCopy+n > 255 {
				break
			}
			bytesToCopy += n
			minLength = 4 | (bytesToCopy & 1)
			j++
		}

		// Absolute blocks shorter than 3 bytes would be escape codes.
		if bytesToCopy < 3 {
			for ; i < j; i++ {
				dst = append(dst, runs[i].length, runs[i].value)
			}
			continue
		}

		dst = append(dst, 0, byte(bytesToCopy))
		for ; i < j; i++ {
			for k := 0; k < int(runs[i].length); k++ {
				dst = append(dst, runs[i].value)
			}
		}
		if bytesToCopy&1 != 0 {
			dst = append(dst, 0)
		}
	}
	return append(dst, 0, escEndOfLine)
}

// Errors.
var (
	ErrTruncated   = errors.New("truncated data")
	ErrOverflow    = errors.New("line overflow")
	ErrUnsupported = errors.New("unsupported escape code")
)

// DecompressLine decodes one line into dst and returns the number of
// bytes read from src. Decoding stops after an end of line or end of
// bitmap marker. Pixels not covered are left unchanged.
func DecompressLine(dst, src []byte) (int, error) {
	x := 0
	pos := 0
	for {
		if pos+2 > len(src) {
			return pos, ErrTruncated
		}
		count, value := int(src[pos]), src[pos+1]
		pos += 2

		if count > 0 {
			if x+count > len(dst) {
				return pos, fmt.Errorf("%w: %d", ErrOverflow, x+count)
			}
			for k := 0; k < count; k++ {
				dst[x+k] = value
			}
			x += count
			continue
		}

		switch value {
		case escEndOfLine, escEndOfBitmap:
			return pos, nil
		case escDelta:
			return pos, ErrUnsupported
		}

		n := int(value)
		padded := n + (n & 1)
		if pos+padded > len(src) {
			return pos, ErrTruncated
		}
		if x+n > len(dst) {
			return pos, fmt.Errorf("%w: %d", ErrOverflow, x+n)
		}
		copy(dst[x:], src[pos:pos+n])
		x += n
		pos += padded
	}
}

// DecodeFrame decodes a bottom-up compressed frame into a top-down
// width*height buffer.
func DecodeFrame(src []byte, width, height int) ([]byte, error) {
	out := make([]byte, width*height)
	pos := 0
	for row := height - 1; row >= 0; row-- {
		n, err := DecompressLine(out[row*width:(row+1)*width], src[pos:])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		pos += n
	}
	return out, nil
}
