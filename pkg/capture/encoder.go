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

	"avicap/pkg/audio"
	"avicap/pkg/colormap"
	"avicap/pkg/video/avi"
	"avicap/pkg/video/rle8"
)

// encoder assembles native frames and emits output frames.
type encoder interface {
	lineSink
	avi.FrameEncoder
}

// output audio chunk source and frame destination shared by encoders.
type output struct {
	ring  *audio.Ring
	chunk []int16
	muxer *avi.Muxer
}

// ready reports if a full audio chunk is buffered.
func (o *output) ready() bool {
	return o.ring.Len() >= len(o.chunk)
}

// write consumes one audio chunk and writes a frame.
func (o *output) write(enc avi.FrameEncoder, changed bool) {
	o.ring.Read(o.chunk)
	o.muxer.WriteFrame(enc, changed, o.chunk)
}

// rle8Encoder sample-and-hold resampling with RLE8 compression.
type rle8Encoder struct {
	cm     *colormap.Colormap
	out    *output
	frame  *indexedFrame
	output *indexedFrame
	pixels []uint32
	rs     lineResampler
}

func newRLE8Encoder(dp colormap.DisplayParameters, out *output, width, height int) *rle8Encoder {
	return &rle8Encoder{
		cm:     colormap.New(colormap.FormatIndex8, dp),
		out:    out,
		frame:  newIndexedFrame(width, height),
		output: newIndexedFrame(width, height),
		pixels: make([]uint32, width),
	}
}

func (e *rle8Encoder) decodeLine(l *lineBuffer, row int, ntsc bool) {
	flags := lineFlags(l, row, ntsc)
	dst := e.frame.row(row)
	x := 0
	if !needsResampling(l, ntsc) {
		x = convertLine(e.pixels, e.cm, l, flags)
		for i := 0; i < x; i++ {
			dst[i] = byte(e.pixels[i])
		}
	} else {
		e.rs.reset(e.cm, l, flags, 1)
		for ; x < len(dst); x++ {
			p, ok := e.rs.next()
			if !ok {
				break
			}
			dst[x] = byte(p)
		}
	}
	for ; x < len(dst); x++ {
		dst[x] = 0
	}
}

func (e *rle8Encoder) clearLine(row int) {
	e.frame.clearRow(row)
}

// frameDone copies changed rows to the output frame and writes
// one output frame for every buffered audio chunk. Only the first
// of them can be a changed frame.
func (e *rle8Encoder) frameDone() {
	if !e.out.ready() {
		return
	}
	changed := false
	for y := 0; y < e.frame.height; y++ {
		if !e.output.equalRow(y, e.frame) {
			changed = true
			e.output.copyRow(y, e.frame)
		}
	}
	for e.out.ready() {
		e.out.write(e, changed)
		changed = false
	}
}

// AppendFrame compresses the output frame bottom-up. A row equal
// to the row below it reuses the previous compressed bytes.
func (e *rle8Encoder) AppendFrame(dst []byte) []byte {
	prevStart, prevEnd := 0, 0
	for y := e.output.height - 1; y >= 0; y-- {
		row := e.output.row(y)
		if y < e.output.height-1 && bytes.Equal(row, e.output.row(y+1)) {
			dst = append(dst, dst[prevStart:prevEnd]...)
			continue
		}
		prevStart = len(dst)
		dst = rle8.CompressLine(dst, row)
		prevEnd = len(dst)
	}
	return dst
}

// yv12Encoder weighted blend resampling of planar frames.
type yv12Encoder struct {
	cm     *colormap.Colormap
	out    *output
	clock  *clock
	frame0 *planarFrame
	frame1 *planarFrame
	blend  *blender
	pixels []uint32
	rs     lineResampler
}

// Scales luma to 16-235 and chroma to 16-240.
func yv12DisplayParameters(dp colormap.DisplayParameters) colormap.DisplayParameters {
	dp.Brightness = -2.0 / 255
	dp.Contrast = 219.0 / 255
	dp.Saturation = 224.0 / 219
	return dp
}

func newYV12Encoder(
	dp colormap.DisplayParameters,
	out *output,
	c *clock,
	width, height, frameRate, sampleRate int,
) *yv12Encoder {
	return &yv12Encoder{
		cm:     colormap.New(colormap.FormatYUV, yv12DisplayParameters(dp)),
		out:    out,
		clock:  c,
		frame0: newPlanarFrame(width, height),
		frame1: newPlanarFrame(width, height),
		blend:  newBlender(width*height*3/2, frameRate, sampleRate),
		pixels: make([]uint32, width),
	}
}

// Blank pixel, Y=16 U=V=128.
const blankYUV = 0x08020010

func (e *yv12Encoder) decodeLine(l *lineBuffer, row int, ntsc bool) {
	flags := lineFlags(l, row, ntsc)
	px := e.pixels
	x := 0
	if !needsResampling(l, ntsc) {
		x = convertLine(px, e.cm, l, flags)
	} else {
		// Two source pixels are averaged for every output pixel.
		e.rs.reset(e.cm, l, flags, 2)
		for ; x < len(px); x++ {
			p0, ok := e.rs.next()
			if !ok {
				break
			}
			p1, ok := e.rs.next()
			if !ok {
				break
			}
			px[x] = ((p0 + p1 + 0x00100401) >> 1) & 0x0FF3FCFF
		}
	}
	for ; x < len(px); x++ {
		px[x] = blankYUV
	}

	f := e.frame1
	w := f.width
	y := f.y()[row*w : (row+1)*w]
	offs := (row >> 1) * (w >> 1)
	v := f.v()[offs : offs+w>>1]
	u := f.u()[offs : offs+w>>1]
	for x := 0; x < w; x += 2 {
		p0, p1 := px[x], px[x+1]
		y[x] = byte(p0)
		y[x+1] = byte(p1)
		sum := p0 + p1 + 0x00100400
		vv := (sum >> 21) & 0xFF
		uu := (sum >> 11) & 0xFF
		if row&1 == 0 {
			v[x>>1] = byte(vv)
			u[x>>1] = byte(uu)
		} else {
			v[x>>1] = byte((vv + uint32(v[x>>1]) + 1) >> 1)
			u[x>>1] = byte((uu + uint32(u[x>>1]) + 1) >> 1)
		}
	}
}

func (e *yv12Encoder) clearLine(row int) {
	e.frame1.clearRow(row)
}

func (e *yv12Encoder) frameDone() {
	e.blend.integrate(e.frame0.buf, e.frame1.buf, e.clock.curTime)
	for e.out.ready() {
		changed := e.blend.emit(e.frame0.buf, e.frame1.buf, &e.clock.curTime)
		e.out.write(e, changed)
	}
	e.blend.reanchor(&e.clock.curTime, e.out.ring.Len())
	e.frame0, e.frame1 = e.frame1, e.frame0
}

// AppendFrame appends the Y, V and U planes of the output frame.
func (e *yv12Encoder) AppendFrame(dst []byte) []byte {
	return append(dst, e.blend.out...)
}
