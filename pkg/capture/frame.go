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

package capture

import (
	"bytes"

	"avicap/pkg/colormap"
)

// indexedFrame palette index pixels, top-down rows.
type indexedFrame struct {
	width  int
	height int
	pix    []byte
}

func newIndexedFrame(width, height int) *indexedFrame {
	return &indexedFrame{
		width:  width,
		height: height,
		pix:    make([]byte, width*height),
	}
}

func (f *indexedFrame) row(y int) []byte {
	return f.pix[y*f.width : (y+1)*f.width]
}

func (f *indexedFrame) clearRow(y int) {
	row := f.row(y)
	for i := range row {
		row[i] = 0
	}
}

func (f *indexedFrame) equalRow(y int, other *indexedFrame) bool {
	return bytes.Equal(f.row(y), other.row(y))
}

func (f *indexedFrame) copyRow(y int, src *indexedFrame) {
	copy(f.row(y), src.row(y))
}

// planarFrame YV12 frame, the Y plane followed by the V and U planes.
type planarFrame struct {
	width  int
	height int
	buf    []byte
}

const (
	blackY    = 0x10
	neutralUV = 0x80
)

func newPlanarFrame(width, height int) *planarFrame {
	f := &planarFrame{
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3/2),
	}
	f.clear()
	return f
}

func (f *planarFrame) clear() {
	n := f.width * f.height
	for i := range f.buf {
		if i < n {
			f.buf[i] = blackY
		} else {
			f.buf[i] = neutralUV
		}
	}
}

func (f *planarFrame) y() []byte {
	return f.buf[:f.width*f.height]
}

func (f *planarFrame) v() []byte {
	n := f.width * f.height
	return f.buf[n : n+n/4]
}

func (f *planarFrame) u() []byte {
	n := f.width * f.height
	return f.buf[n+n/4:]
}

func (f *planarFrame) clearRow(row int) {
	y := f.y()[row*f.width : (row+1)*f.width]
	for i := range y {
		y[i] = blackY
	}
	half := f.width >> 1
	offs := (row >> 1) * half
	v := f.v()[offs : offs+half]
	u := f.u()[offs : offs+half]
	for i := range v {
		v[i] = neutralUV
		u[i] = neutralUV
	}
}

// Visible length of a line that needs no resampling.
const (
	palLineLength  = 490
	ntscLineLength = 392
)

func lineFlags(l *lineBuffer, row int, ntsc bool) byte {
	flags := byte(row&1)<<1 | (l.flags&lineFlagBurst)>>2
	if ntsc {
		flags |= colormap.LineNTSC
	}
	return flags
}

// needsResampling reports if the line length differs from the
// nominal length or the line has NTSC rate dots.
func needsResampling(l *lineBuffer, ntsc bool) bool {
	nominal := palLineLength
	if ntsc {
		nominal = ntscLineLength
	}
	return l.length != nominal || l.flags&lineFlagNTSCDot != 0
}

// convertLine decodes a line at nominal length into dst, four pixels
// per sample. It returns the number of pixels written.
func convertLine(dst []uint32, cm *colormap.Colormap, l *lineBuffer, flags byte) int {
	data := l.data()
	var px [4]uint32
	pos := 0
	x := 0
	for x+4 <= len(dst) {
		n := cm.ConvertFourPixels(&px, data[pos:], flags)
		if n == 0 {
			break
		}
		pos += n
		copy(dst[x:], px[:])
		x += 4
	}
	return x
}

// lineResampler reads pixels from a line of arbitrary length,
// stepping by length/nominal source pixels for each output pixel.
type lineResampler struct {
	cm      *colormap.Colormap
	data    []byte
	flags   byte
	scale   int
	pos     int
	px      [4]uint32
	readPos int
	cnt     int
	step    int
	length  int
}

func (r *lineResampler) reset(cm *colormap.Colormap, l *lineBuffer, flags byte, scale int) {
	*r = lineResampler{
		cm:      cm,
		data:    l.data(),
		flags:   flags,
		scale:   scale,
		readPos: 4,
		step:    palLineLength * scale,
		length:  l.length,
	}
}

// next returns the next pixel, false at the end of the line.
func (r *lineResampler) next() (uint32, bool) {
	if r.readPos >= 4 {
		r.readPos &= 3
		if r.pos >= len(r.data) {
			return 0, false
		}
		r.step = palLineLength * r.scale
		if r.data[r.pos]&colormap.FlagNTSCDot != 0 {
			r.step = ntscLineLength * r.scale
		}
		n := r.cm.ConvertFourPixels(&r.px, r.data[r.pos:], r.flags)
		if n == 0 {
			return 0, false
		}
		r.pos += n
	}
	p := r.px[r.readPos]
	r.cnt += r.length
	for r.cnt >= r.step {
		r.cnt -= r.step
		r.readPos++
	}
	return p, true
}
