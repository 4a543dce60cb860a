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

package signal

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratorTiming(t *testing.T) {
	cases := []struct {
		name    string
		ntsc    bool
		clock   int
		lines   int
		dotFlag byte
	}{
		{"pal", false, 1778400, 312, 0},
		{"ntsc", true, 1792080, 262, FlagNTSCDot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(GeneratorConfig{NTSC: tc.ntsc})
			require.Equal(t, tc.clock, g.ClockFrequency())
			require.Equal(t, tc.lines, g.LinesPerField())

			var syncRun, maxSyncRun int
			for i := 0; i < g.SamplesPerField(); i++ {
				video, _ := g.Next()
				require.Equal(t, tc.dotFlag, video[0]&FlagNTSCDot)
				if video[0]&FlagSync != 0 {
					syncRun++
					if syncRun > maxSyncRun {
						maxSyncRun = syncRun
					}
				} else {
					syncRun = 0
				}
			}
			require.Equal(t, vsyncLength, maxSyncRun)
			require.Equal(t, 1, g.Field())
		})
	}
}

func TestGeneratorLine(t *testing.T) {
	g := NewGenerator(GeneratorConfig{Pattern: PatternSolid, Color: 0x71})
	for i := 0; i < SamplesPerLine; i++ {
		g.Next()
	}
	var line [][]byte
	for i := 0; i < SamplesPerLine; i++ {
		video, _ := g.Next()
		line = append(line, append([]byte(nil), video...))
	}
	require.Equal(t, []byte{FlagSync | FlagBlank, 0}, line[0])
	require.Equal(t, []byte{FlagBurst | FlagBlank, 0}, line[burstStart])
	require.Equal(t, []byte{FlagBlank, 0}, line[burstEnd])
	require.Equal(t, []byte{0, 0x71}, line[visibleStart])
	require.Equal(t, []byte{0, 0x71}, line[SamplesPerLine-1])
}

func TestGeneratorChange(t *testing.T) {
	g := NewGenerator(GeneratorConfig{
		Pattern: PatternSolid,
		Color:   0x10,
		Change:  &LineChange{Field: 1, Line: 100, Color: 0x45},
	})
	sampleAt := func(field, line int) []byte {
		for {
			if g.Field() == field && g.line == line && g.sample == visibleStart {
				video, _ := g.Next()
				return append([]byte(nil), video...)
			}
			g.Next()
		}
	}
	require.Equal(t, []byte{0, 0x10}, sampleAt(0, 100))
	require.Equal(t, []byte{0, 0x45}, sampleAt(1, 100))
	require.Equal(t, []byte{0, 0x10}, sampleAt(1, 101))
	require.Equal(t, []byte{0, 0x45}, sampleAt(2, 100))
}

func TestGeneratorGradient(t *testing.T) {
	g := NewGenerator(GeneratorConfig{Pattern: PatternGradient})
	for g.line != 1 || g.sample != visibleStart {
		g.Next()
	}
	video, _ := g.Next()
	require.Len(t, video, 5)
	require.Equal(t, byte(FlagFourPixels), video[0])
}

func TestParsePattern(t *testing.T) {
	for p := PatternBars; p <= PatternRamp; p++ {
		parsed, err := ParsePattern(p.String())
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}
	_, err := ParsePattern("noise")
	require.ErrorIs(t, err, ErrUnknownPattern)
}

func TestDump(t *testing.T) {
	g := NewGenerator(GeneratorConfig{
		Pattern:   PatternGradient,
		ToneHz:    1000,
		ToneLevel: 8000,
	})
	header := Header{ClockFrequency: uint32(g.ClockFrequency())}

	type sample struct {
		video []byte
		audio int16
	}
	var samples []sample
	for i := 0; i < 3*SamplesPerLine; i++ {
		video, audio := g.Next()
		samples = append(samples, sample{append([]byte(nil), video...), audio})
	}
	// Truncated four pixel sample.
	samples = append(samples, sample{[]byte{FlagFourPixels, 1}, -5})

	var buf bytes.Buffer
	w, err := NewWriter(&buf, header)
	require.NoError(t, err)
	for _, s := range samples {
		require.NoError(t, w.WriteSample(s.video, s.audio))
	}
	require.NoError(t, w.Close())
	require.Equal(t, int64(len(samples)), w.Samples())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	require.Equal(t, header, r.Header())
	for i, s := range samples {
		video, audio, err := r.ReadSample()
		require.NoError(t, err, i)
		if i == len(samples)-1 {
			require.Equal(t, []byte{FlagFourPixels, 1, 0, 0, 0}, video)
		} else {
			require.Equal(t, s.video, video, i)
		}
		require.Equal(t, s.audio, audio, i)
	}
	_, _, err = r.ReadSample()
	require.ErrorIs(t, err, io.EOF)
	_, _, err = r.ReadSample()
	require.ErrorIs(t, err, io.EOF)
}

func TestDumpErrors(t *testing.T) {
	t.Run("magic", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader([]byte("RIFF\x01\x00\x00\x00\x00\x00")))
		require.ErrorIs(t, err, ErrInvalidMagic)
	})
	t.Run("version", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader([]byte("AVCS\x02\x00\x00\x00\x00\x00")))
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})
	t.Run("truncated", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, Header{NTSC: true, ClockFrequency: 1792080})
		require.NoError(t, err)
		require.NoError(t, w.w.Close())

		r, err := NewReader(&buf)
		require.NoError(t, err)
		require.True(t, r.Header().NTSC)
		_, _, err = r.ReadSample()
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}
