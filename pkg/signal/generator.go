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

// Package signal generates and stores encoded composite video
// sample streams.
package signal

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownPattern unknown pattern.
var ErrUnknownPattern = errors.New("unknown pattern")

// Sample flags.
const (
	FlagSync       = 0x80
	FlagBlank      = 0x40
	FlagBurst      = 0x08
	FlagPhaseInv   = 0x04
	FlagFourPixels = 0x02
	FlagNTSCDot    = 0x01
)

// Line layout in samples. PAL samples are 5 time units and NTSC
// samples 4 units, so a line is 570 or 456 units.
const (
	SamplesPerLine    = 114
	PALLinesPerField  = 312
	NTSCLinesPerField = 262
	PALFieldRate      = 50
	NTSCFieldRate     = 60

	hsyncLength    = 8
	vsyncLength    = 40
	burstStart     = 8
	burstEnd       = 14
	visibleStart   = 16
	visibleSamples = SamplesPerLine - visibleStart
)

// Pattern picture content.
type Pattern int

// Patterns.
const (
	PatternBars Pattern = iota
	PatternSolid
	PatternGradient
	PatternRamp
)

func (p Pattern) String() string {
	switch p {
	case PatternBars:
		return "bars"
	case PatternSolid:
		return "solid"
	case PatternGradient:
		return "gradient"
	case PatternRamp:
		return "ramp"
	}
	return fmt.Sprintf("Pattern(%d)", int(p))
}

// ParsePattern parses a pattern name.
func ParsePattern(s string) (Pattern, error) {
	for p := PatternBars; p <= PatternRamp; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

// LineChange replaces one line with a solid color from a field onwards.
type LineChange struct {
	Field int
	Line  int
	Color byte
}

// GeneratorConfig generator config.
type GeneratorConfig struct {
	NTSC    bool
	Pattern Pattern

	// Color of the solid pattern.
	Color byte

	// Tone frequency, zero for silence.
	ToneHz    float64
	ToneLevel int16

	Change *LineChange
}

// Bar colors, luminance in the high nibble, hue in the low nibble.
var barColors = [8]byte{0x71, 0x67, 0x53, 0x45, 0x5D, 0x32, 0x26, 0x10}

// Generator produces an endless stream of samples with hsync,
// burst and vsync.
type Generator struct {
	config        GeneratorConfig
	linesPerField int
	dot           byte

	field  int
	line   int
	sample int
	n      int64
	buf    [5]byte
}

// NewGenerator returns a generator starting at the first line of a field.
func NewGenerator(config GeneratorConfig) *Generator {
	g := &Generator{
		config:        config,
		linesPerField: PALLinesPerField,
	}
	if config.NTSC {
		g.linesPerField = NTSCLinesPerField
		g.dot = FlagNTSCDot
	}
	return g
}

// LinesPerField lines in every field.
func (g *Generator) LinesPerField() int {
	return g.linesPerField
}

// SamplesPerField samples in every field.
func (g *Generator) SamplesPerField() int {
	return g.linesPerField * SamplesPerLine
}

// FieldRate fields per second.
func (g *Generator) FieldRate() int {
	if g.config.NTSC {
		return NTSCFieldRate
	}
	return PALFieldRate
}

// ClockFrequency samples per second.
func (g *Generator) ClockFrequency() int {
	return g.SamplesPerField() * g.FieldRate()
}

// Field returns the current field number.
func (g *Generator) Field() int {
	return g.field
}

// Next returns the next sample. The video slice is
// only valid until the next call.
func (g *Generator) Next() ([]byte, int16) {
	video := g.video()
	audio := g.audio()

	g.n++
	g.sample++
	if g.sample >= SamplesPerLine {
		g.sample = 0
		g.line++
		if g.line >= g.linesPerField {
			g.line = 0
			g.field++
		}
	}
	return video, audio
}

func (g *Generator) audio() int16 {
	if g.config.ToneHz == 0 {
		return 0
	}
	t := float64(g.n) / float64(g.ClockFrequency())
	return int16(float64(g.config.ToneLevel) * math.Sin(2*math.Pi*g.config.ToneHz*t))
}

func (g *Generator) single(flags, index byte) []byte {
	g.buf[0] = flags | g.dot
	g.buf[1] = index
	return g.buf[:2]
}

func (g *Generator) video() []byte {
	s := g.sample
	switch {
	case g.line == 0 && s < vsyncLength:
		return g.single(FlagSync|FlagBlank, 0)
	case g.line == 0:
		return g.single(FlagBlank, 0)
	case s < hsyncLength:
		return g.single(FlagSync|FlagBlank, 0)
	case s >= burstStart && s < burstEnd:
		return g.single(FlagBurst|FlagBlank, 0)
	case s < visibleStart:
		return g.single(FlagBlank, 0)
	}

	x := s - visibleStart
	if c := g.config.Change; c != nil && g.field >= c.Field && g.line == c.Line {
		return g.single(0, c.Color)
	}
	switch g.config.Pattern {
	case PatternSolid:
		return g.single(0, g.config.Color)
	case PatternGradient:
		g.buf[0] = FlagFourPixels | g.dot
		for i := 0; i < 4; i++ {
			g.buf[1+i] = byte((x*4+i)*128/(visibleSamples*4))&0x70 | byte(x/12+1)&0x0F
		}
		return g.buf[:5]
	case PatternRamp:
		return g.single(0, byte(g.line*8/g.linesPerField)<<4|0x01)
	default:
		return g.single(0, barColors[x*len(barColors)/visibleSamples])
	}
}
