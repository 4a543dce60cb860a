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

package audio

import "math"

const (
	windowSize = 1200
	windowTaps = 12
	bufSize    = 16
)

// Converter resamples a native rate signal to the output rate with
// a windowed sinc filter, then removes DC and applies a high shelf
// equalizer before converting to 16 bit samples.
type Converter struct {
	inputRate  float32
	outputRate float32
	ratio      float32
	ampScale   float32

	window [windowSize + 1]float32
	buf    [bufSize]float32
	bufPos float32
	nxtPos float32

	dcBlock1 dcBlockFilter
	dcBlock2 dcBlockFilter
	eq       equalizer

	out func(int16)
}

// NewConverter returns a converter that calls out for every output sample.
func NewConverter(inputRate, outputRate float32, out func(int16)) *Converter {
	c := &Converter{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      outputRate / inputRate,
		nxtPos:     1,
		dcBlock1:   newDCBlockFilter(outputRate, 10),
		dcBlock2:   newDCBlockFilter(outputRate, 10),
		out:        out,
	}
	c.SetVolume(0.7)
	c.eq.setParameters(eqHighShelf, 2*math.Pi*15000/float64(outputRate), 0.5, 0.5)

	// Von Hann windowed sinc.
	phs := -(math.Pi * 6)
	phsInc := 12 * math.Pi / windowSize
	for i := 0; i <= windowSize; i++ {
		if i == windowSize/2 {
			c.window[i] = 1
		} else {
			c.window[i] = float32((math.Cos(phs/6)*0.5 + 0.5) * (math.Sin(phs) / phs))
		}
		phs += phsInc
	}
	return c
}

// SetInputRate changes the native sample rate.
func (c *Converter) SetInputRate(rate float32) {
	c.inputRate = rate
	c.ratio = c.outputRate / rate
}

// SetVolume sets the output amplitude scale, 0.01 to 1.
func (c *Converter) SetVolume(v float32) {
	switch {
	case v > 0.01 && v < 1:
		c.ampScale = 1.17 * v
	case v > 0.99:
		c.ampScale = 1.17
	default:
		c.ampScale = 0.017
	}
}

// Send feeds one native rate sample.
func (c *Converter) Send(in int32) {
	c.addWindow(float32(in))
	c.bufPos += c.ratio
	if c.bufPos < c.nxtPos {
		return
	}
	if c.bufPos >= bufSize {
		c.bufPos -= bufSize
	}
	c.nxtPos = float32(int(c.bufPos) + 1)
	readPos := int(c.bufPos) - 6
	for readPos < 0 {
		readPos += bufSize
	}
	tmp := c.buf[readPos] * c.ratio
	c.buf[readPos] = 0
	c.emit(c.eq.process(c.dcBlock2.process(c.dcBlock1.process(tmp))))
}

func (c *Converter) addWindow(in float32) {
	writePos := int(c.bufPos)
	posFrac := c.bufPos - float32(writePos)
	winPos := (1 - posFrac) * float32(windowSize/windowTaps)
	winPosInt := int(winPos)
	winPosFrac := winPos - float32(winPosInt)
	writePos -= 5
	for writePos < 0 {
		writePos += bufSize
	}
	for winPosInt < windowSize {
		w := c.window[winPosInt] + (c.window[winPosInt+1]-c.window[winPosInt])*winPosFrac
		c.buf[writePos] += in * w
		writePos++
		if writePos >= bufSize {
			writePos = 0
		}
		winPosInt += windowSize / windowTaps
	}
}

func (c *Converter) emit(s float32) {
	s *= c.ampScale
	if s < 0 {
		if s > -32767 {
			s -= 0.5
		} else {
			s = -32767.5
		}
	} else {
		if s < 32767 {
			s += 0.5
		} else {
			s = 32767.5
		}
	}
	c.out(int16(s))
}

// y[n] = x[n] - x[n-1] + c*y[n-1]
type dcBlockFilter struct {
	c    float32
	xnm1 float32
	ynm1 float32
}

func newDCBlockFilter(sampleRate, cutoff float32) dcBlockFilter {
	tpfdsr := 2 * math.Pi * cutoff / sampleRate
	switch {
	case tpfdsr < 0.0003:
		tpfdsr = 0.0003
	case tpfdsr > 0.125:
		tpfdsr = 0.125
	}
	return dcBlockFilter{c: 1 - tpfdsr}
}

func (f *dcBlockFilter) process(in float32) float32 {
	out := (in - f.xnm1) + (f.c * f.ynm1)
	if out > -1.0e-20 && out < 1.0e-20 {
		out = 0
	}
	f.xnm1 = in
	f.ynm1 = out
	return out
}

const (
	eqDisabled  = -1
	eqPeaking   = 0
	eqLowShelf  = 1
	eqHighShelf = 2
)

// Biquad equalizer, Robert Bristow-Johnson's cookbook formulas.
type equalizer struct {
	mode int

	xnm1, xnm2, ynm1, ynm2            float64
	a1da0, a2da0, b0da0, b1da0, b2da0 float64
}

func clamp64(v, min, max float64) float64 {
	if v > min {
		if v < max {
			return v
		}
		return max
	}
	return min
}

func (e *equalizer) setParameters(mode int, omega, level, q float64) {
	if mode < eqPeaking || mode > eqHighShelf {
		mode = eqDisabled
	}
	*e = equalizer{mode: mode, b0da0: 1}
	omega = clamp64(omega, 0.0005, 3.14)
	level = clamp64(level, 0.0001, 100)
	q = clamp64(q, 0.001, 100)

	a := math.Sqrt(level)
	cosw0 := math.Cos(omega)
	alpha := math.Sin(omega) / (2 * q)

	switch mode {
	case eqPeaking:
		a0 := 1 + (alpha / a)
		e.a1da0 = (-2 * cosw0) / a0
		e.a2da0 = (1 - (alpha / a)) / a0
		e.b0da0 = (1 + (alpha * a)) / a0
		e.b1da0 = (-2 * cosw0) / a0
		e.b2da0 = (1 - (alpha * a)) / a0
	case eqLowShelf:
		am1cosw0 := (a - 1) * cosw0
		twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha
		a0 := (a + 1) + am1cosw0 + twoSqrtAAlpha
		e.a1da0 = (-2 * ((a - 1) + ((a + 1) * cosw0))) / a0
		e.a2da0 = ((a + 1) + am1cosw0 - twoSqrtAAlpha) / a0
		e.b0da0 = a * ((a + 1) - am1cosw0 + twoSqrtAAlpha) / a0
		e.b1da0 = 2 * a * ((a - 1) - ((a + 1) * cosw0)) / a0
		e.b2da0 = a * ((a + 1) - am1cosw0 - twoSqrtAAlpha) / a0
	case eqHighShelf:
		am1cosw0 := (a - 1) * cosw0
		twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha
		a0 := (a + 1) - am1cosw0 + twoSqrtAAlpha
		e.a1da0 = (2 * ((a - 1) - ((a + 1) * cosw0))) / a0
		e.a2da0 = ((a + 1) - am1cosw0 - twoSqrtAAlpha) / a0
		e.b0da0 = a * ((a + 1) + am1cosw0 + twoSqrtAAlpha) / a0
		e.b1da0 = -2 * a * ((a - 1) + ((a + 1) * cosw0)) / a0
		e.b2da0 = a * ((a + 1) + am1cosw0 - twoSqrtAAlpha) / a0
	}
}

func (e *equalizer) process(in float32) float32 {
	if e.mode == eqDisabled {
		return in
	}
	yn := (float64(in) * e.b0da0) + (e.xnm1 * e.b1da0) + (e.xnm2 * e.b2da0) -
		(e.ynm1 * e.a1da0) - (e.ynm2 * e.a2da0)
	if yn > -1.0e-32 && yn < 1.0e-32 {
		yn = 0
	}
	e.xnm2 = e.xnm1
	e.xnm1 = float64(in)
	e.ynm2 = e.ynm1
	e.ynm1 = yn
	return float32(yn)
}
