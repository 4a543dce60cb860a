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

package colormap

import "math"

// Chip palette. The low nibble of an index selects the hue,
// bits 4-6 select one of eight luminance levels.

var brightnessToY = [9]float32{
	2.00, 2.42, 2.60, 2.70, 2.90, 3.35, 3.75, 4.10, 4.80,
}

var hueDegreesPAL = [16]float32{
	0, 0, 103, 283, 53, 240, 347, 167,
	130, 148, 195, 83, 265, 323, 3, 213,
}

var hueDegreesNTSC = [16]float32{
	0, 0, 103, 283, 53, 240, 347, 167,
	125, 148, 195, 83, 265, 323, 23, 213,
}

// ChipIndexToYUV converts a chip color index to YUV.
func ChipIndexToYUV(color byte, ntsc bool) (y, u, v float32) {
	const (
		yMin = 0.033
		yMax = 0.956
	)
	hue := color & 0x0F
	lum := (color & 0x70) >> 4

	level := 0
	if hue != 0 {
		level = int(lum) + 1
	}
	y = brightnessToY[level] - brightnessToY[0]
	y = y * (yMax - yMin) / (brightnessToY[8] - brightnessToY[0])
	y += yMin

	if hue > 1 {
		phase := hueDegreesPAL[hue]
		if ntsc {
			phase = hueDegreesNTSC[hue]
		}
		phase *= math.Pi / 180
		u = float32(math.Cos(float64(phase))) * 0.19
		v = float32(math.Sin(float64(phase))) * 0.19
	}
	return y, u, v
}

// GrayIndexToYUV maps an index directly to luma without chroma.
func GrayIndexToYUV(color byte, _ bool) (y, u, v float32) {
	return float32(color) / 255, 0, 0
}

// PaletteYUV returns the YUV value of an entry in the 256 color
// palette used by indexed output. Entries 0x00-0x7F are chip colors
// with sync (0x00) and burst phases (0x20-0x70 in steps of 0x10),
// entries 0x80-0xFF add half saturated and extra hues.
func PaletteYUV(c byte) (y, u, v float32) {
	phase := 0.0
	sat := 0.19
	switch {
	case c < 0x80:
		if c&0x0F != 0 || c == 0x10 {
			return ChipIndexToYUV(c, false)
		}
		if c == 0x00 {
			return 0, 0, 0
		}
		y, _, _ = ChipIndexToYUV(0x00, false)
		phase = (math.Pi / 4) * float64(c>>4)
		sat = 0.1795
	case c&0x0F == 0x0E:
		return ChipIndexToYUV(c, true)
	default:
		y, _, _ = ChipIndexToYUV((c&0x70)|0x01, false)
		switch c & 0x0F {
		case 12:
			phase = 181 * math.Pi / 180
		case 13:
			phase = 303 * math.Pi / 180
		case 15:
			phase = 68 * math.Pi / 180
		default:
			phase = (math.Pi / 6) * float64(c&0x0F)
			sat *= 0.5
		}
	}
	u = float32(math.Cos(phase) * sat)
	v = float32(math.Sin(phase) * sat)
	return y, u, v
}

// PaletteBGR returns the palette as 32 bit BGR0 quads.
func PaletteBGR() [256][4]byte {
	var out [256][4]byte
	for i := range out {
		y, u, v := PaletteYUV(byte(i))
		r := (v / 0.877) + y
		b := (u / 0.492) + y
		g := (y - ((r * 0.299) + (b * 0.114))) / 0.587
		out[i] = [4]byte{to8bit(b), to8bit(g), to8bit(r), 0}
	}
	return out
}

func to8bit(c float32) byte {
	return byte(int(clamp(c, 0, 1)*255 + 0.5))
}
