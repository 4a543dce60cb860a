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
	"testing"

	"github.com/stretchr/testify/require"
)

type blendSim struct {
	b        *blender
	now      int64
	totalUs  int64
	samples  int64
	buffered int
	outputs  int
	changed  []bool
}

func newBlendSim(size int) *blendSim {
	return &blendSim{b: newBlender(size, 50, 48000)}
}

// frame advances native time by us microseconds and emits an output
// frame for every 960 buffered audio samples.
func (s *blendSim) frame(f0, f1 []byte, us int64) {
	s.now += us << 32
	s.totalUs += us
	samples := s.totalUs * 48 / 1000
	s.buffered += int(samples - s.samples)
	s.samples = samples

	s.b.integrate(f0, f1, s.now)
	for s.buffered >= 960 {
		s.buffered -= 960
		s.changed = append(s.changed, s.b.emit(f0, f1, &s.now))
		s.outputs++
	}
	s.b.reanchor(&s.now, s.buffered)
}

func TestBlenderConstant(t *testing.T) {
	f := bytes.Repeat([]byte{100}, 6)
	s := newBlendSim(len(f))
	durations := []int64{19700, 20300, 20100, 19900}
	for i := 0; i < 200; i++ {
		s.frame(f, f, durations[i%len(durations)])
	}
	require.Equal(t, f, s.b.out)
	for i, changed := range s.changed[5:] {
		require.False(t, changed, i)
	}
}

func TestBlenderConvergence(t *testing.T) {
	f := []byte{10, 20}
	cases := map[string][]int64{
		"exact":  {20000},
		"jitter": {19700, 20300, 20100, 19900},
		"slow":   {20500},
		"fast":   {19500, 19400},
	}
	for name, durations := range cases {
		t.Run(name, func(t *testing.T) {
			s := newBlendSim(len(f))
			for i := 0; i < 600; i++ {
				s.frame(f, f, durations[i%len(durations)])
			}
			require.Greater(t, s.outputs, 550)
			expected := int64(s.outputs) * 20000
			require.InDelta(t, expected, s.b.consumed, 2000)
		})
	}
}

func TestBlenderTransition(t *testing.T) {
	black := []byte{0, 0}
	white := []byte{200, 200}
	s := newBlendSim(2)
	for i := 0; i < 10; i++ {
		s.frame(black, black, 20000)
	}
	require.Equal(t, black, s.b.out)

	// The output moves toward the new frame over the next frames.
	s.frame(black, white, 20000)
	first := s.b.out[0]
	s.frame(white, white, 20000)
	second := s.b.out[0]
	for i := 0; i < 5; i++ {
		s.frame(white, white, 20000)
	}
	require.Equal(t, white, s.b.out)
	require.Less(t, first, byte(200))
	require.GreaterOrEqual(t, second, first)
}

func TestFixedRound(t *testing.T) {
	require.Equal(t, int64(3), fixedRound(3<<32))
	require.Equal(t, int64(4), fixedRound(3<<32+fixedHalf))
	require.Equal(t, int64(-1), fixedRound(-fixedOne))
}
