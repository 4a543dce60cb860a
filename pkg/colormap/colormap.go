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

// Package colormap converts encoded video samples to pixels.
package colormap

import "math"

// Format output pixel format.
type Format int

// Pixel formats.
const (
	// FormatIndex8 palette index, see PaletteYUV.
	FormatIndex8 Format = iota

	// FormatRGB565 packed 16 bit RGB.
	FormatRGB565

	// FormatYUV is V<<20 | U<<10 | Y with 8 bit components and
	// two guard bits between them, so that pixels can be summed.
	FormatYUV
)

// Sample flag bits.
const (
	FlagSync       = 0x80
	FlagBlank      = 0x40
	FlagBurst      = 0x08
	FlagPhaseInv   = 0x04
	FlagFourPixels = 0x02
	FlagNTSCDot    = 0x01
)

// Line flags supplied by the caller.
const (
	LineOdd       = 0x02
	LineNTSC      = 0x10
	LineBurstSeen = 0x20
)

const (
	tableCount = 18
	tableBlank = 7
	tableMono  = 6
)

// Table parameters: phase shift in degrees, y/u/v scale and NTSC decoding.
var (
	phaseShift = [tableCount]float32{
		0, 33, 327, 0, 33, 327, 0, 0,
		0, 33, 33, 0, 0, 327, 327, 0,
		0, 0,
	}
	yScale = [tableCount]float32{
		1, 1, 1, 1, 1, 1, 1, 0,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1,
	}
	uScale = [tableCount]float32{
		1, 1, 1, 1, 1, 1, 0, 0,
		1, 1, 1, 1, 1, 1, 1, 1,
		1, 1,
	}
	vScale = [tableCount]float32{
		1, 1, 1, -1, -1, -1, 0, 0,
		1, 1, -1, -1, 1, 1, -1, -1,
		1, -1,
	}
	ntscTable = [tableCount]bool{
		false, false, true, false, false, true, false, false,
		false, false, false, false, true, true, true, true,
		true, true,
	}
	// Low five key bits to table number.
	keyToTable = [32]uint8{
		0, 2, 3, 5, 3, 5, 0, 2,
		8, 13, 11, 14, 11, 14, 8, 13,
		1, 16, 1, 16, 4, 17, 4, 17,
		9, 12, 9, 12, 10, 15, 10, 15,
	}
)

// Colormap set of lookup tables, one for each combination
// of phase shift, phase invert, burst and video standard.
type Colormap struct {
	format Format
	data   [tableCount * 256]uint32
	table  [256]uint16 // Key to data offset.
}

// New builds a colormap.
func New(format Format, dp DisplayParameters) *Colormap {
	c := &Colormap{format: format}
	for key := 0; key < 256; key++ {
		t := tableBlank
		if key&0xC0 == 0 {
			if key&LineBurstSeen == 0 {
				t = tableMono
			} else {
				t = int(keyToTable[key&0x1F])
			}
		}
		c.table[key] = uint16(t << 8)
	}
	c.build(dp.Clamped())
	return c
}

// Format returns the pixel format.
func (c *Colormap) Format() Format {
	return c.format
}

func (c *Colormap) build(dp DisplayParameters) {
	var base [2][256][3]float32
	for i := 0; i < 256; i++ {
		for m := 0; m < 2; m++ {
			y, u, v := dp.IndexToYUV(byte(i), m == 1)
			base[m][i] = [3]float32{y, u, v}
		}
	}

	var nearest *nearestColor
	if c.format == FormatIndex8 {
		nearest = newNearestColor()
	}

	for i := range c.data {
		j := i & 0xFF
		k := i >> 8
		m := 0
		if ntscTable[k] {
			m = 1
		}
		y, u0, v0 := base[m][j][0], base[m][j][1], base[m][j][2]

		if i&0x0800 != 0 {
			chroma := (u0 * u0) + (v0 * v0)
			if i < 0x0C00 {
				// PAL burst, 135 degrees.
				u0 -= 0.127
				v0 += 0.127
			} else {
				// NTSC burst, 180 degrees.
				u0 -= 0.179
			}
			if chroma > 0.005 {
				u0 *= 0.525
				v0 *= 0.525
			}
		}

		shift := float64(phaseShift[k] * 0.01745329)
		re := float32(math.Cos(shift))
		im := float32(math.Sin(shift))
		u := (u0*re - v0*im) * uScale[k]
		v := (u0*im + v0*re) * vScale[k]

		switch c.format {
		case FormatIndex8:
			c.data[i] = uint32(nearest.find(y*yScale[k], u*yScale[k], v*yScale[k]))
		case FormatRGB565:
			r, g, b := dp.YUVToRGB(y, u, v)
			c.data[i] = uint32(rgb565(r*yScale[k], g*yScale[k], b*yScale[k]))
		case FormatYUV:
			r, g, b := dp.YUVToRGB(y, u, v)
			c.data[i] = packYUV(r, g, b, yScale[k])
		}
	}
}

// Lookup returns the pixel for a single index.
func (c *Colormap) Lookup(key, index byte) uint32 {
	return c.data[int(c.table[key])|int(index)]
}

// ConvertFourPixels decodes one sample into four pixels and
// returns the number of source bytes consumed. If the flags byte
// has FlagFourPixels set, four indexes follow, otherwise a single
// index is repeated. Zero is returned if src is too short.
func (c *Colormap) ConvertFourPixels(dst *[4]uint32, src []byte, lineFlags byte) int {
	if len(src) < 2 {
		return 0
	}
	flags := src[0]
	t := int(c.table[(flags&0xCD)|lineFlags])
	if flags&FlagFourPixels == 0 {
		p := c.data[t|int(src[1])]
		dst[0], dst[1], dst[2], dst[3] = p, p, p, p
		return 2
	}
	if len(src) < 5 {
		return 0
	}
	dst[0] = c.data[t|int(src[1])]
	dst[1] = c.data[t|int(src[2])]
	dst[2] = c.data[t|int(src[3])]
	dst[3] = c.data[t|int(src[4])]
	return 5
}

func rgb565(r, g, b float32) uint16 {
	ri := clampInt(int(r*992+16), 16, 1007)
	gi := clampInt(int(g*2016+16), 16, 2031)
	bi := clampInt(int(b*992+16), 16, 1007)

	// Dither green toward the rounding error of red and blue.
	tmp := (16 - (gi & 31)) - ((16 - (ri & 31)) + (16 - (bi & 31)))
	if tmp <= -16 {
		gi += 16
	} else if tmp >= 16 {
		gi -= 16
	}
	return uint16(((ri & 0x03E0) << 6) | (gi & 0x07E0) | (bi >> 5))
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func packYUV(r, g, b, scale float32) uint32 {
	y := (0.299 * r) + (0.587 * g) + (0.114 * b)
	u := 0.492 * (b - y)
	v := 0.877 * (r - y)
	y *= scale
	u *= scale
	v *= scale
	if y < 0 {
		u *= 0.25 / (0.25 - y)
		v *= 0.25 / (0.25 - y)
		y = 0
	} else if y > 1 {
		u *= 0.25 / (y - 0.75)
		v *= 0.25 / (y - 0.75)
		y = 1
	}
	u = (u + 0.435912) * 1.147020
	v = (v + 0.614777) * 0.813303

	yi := uint32(to8bit(y))
	ui := uint32(to8bit(u))
	vi := uint32(to8bit(v))
	if yi < 16 {
		yi = 16
	}
	return (vi << 20) | (ui << 10) | yi
}

// YUV components of a FormatYUV pixel.
func YUV(p uint32) (y, u, v byte) {
	return byte(p), byte(p >> 10), byte(p >> 20)
}

type nearestColor struct {
	palette [256][3]float64
	levels  [9]float64
}

func newNearestColor() *nearestColor {
	var n nearestColor
	for i := range n.palette {
		y, u, v := PaletteYUV(byte(i))
		n.palette[i] = [3]float64{float64(y), float64(u), float64(v)}
	}
	for i := range n.levels {
		c := 0
		if i > 0 {
			c = ((i - 1) << 4) | 1
		}
		n.levels[i] = n.palette[c][0]
	}
	return &n
}

// find returns the palette index closest to y, u, v. The luminance
// level is matched first, then the hue within that level.
func (n *nearestColor) find(y, u, v float32) byte {
	level := 0
	bestErr := 1000000.0
	for i, ly := range n.levels {
		err := ly - float64(y)
		err *= err
		if err < bestErr {
			level = i
			bestErr = err
		}
	}

	bestErr = 1000000.0
	best := 0
	for c := 0; c < 256; c++ {
		hue := c & 0x0F
		if level == 0 && hue != 0 {
			continue
		}
		if level > 0 && (hue == 0 || ((c&0x70)>>4)+1 != level) {
			continue
		}
		p := n.palette[c]
		yErr := p[0] - float64(y)
		uErr := p[1] - float64(u)
		vErr := p[2] - float64(v)
		err := (yErr * yErr) + (uErr * uErr) + (vErr * vErr)
		if err < bestErr {
			best = c
			bestErr = err
			if bestErr < 0.000001 {
				break
			}
		}
	}
	return byte(best)
}
