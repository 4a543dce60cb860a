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

import "math"

const (
	fixedOne  = int64(1) << 32
	fixedHalf = int64(1) << 31
)

// fixedRound converts 32.32 fixed point to the nearest integer.
func fixedRound(t int64) int64 {
	return (t + fixedHalf) >> 32
}

// blender converts native frames to the output frame rate. The area
// under the linear interpolation between the previous and the current
// native frame is integrated over time, each output frame is the
// average over its interval. Times are relative to the last output
// frame boundary.
type blender struct {
	frameRate  int
	sampleRate int

	acc        []int64
	out        []byte
	interpTime int64
	frame0Time int64
	frame1Time int64

	// Native time covered by the emitted frames, microseconds.
	consumed int64
}

func newBlender(size, frameRate, sampleRate int) *blender {
	b := &blender{
		frameRate:  frameRate,
		sampleRate: sampleRate,
		acc:        make([]int64, size),
		out:        make([]byte, size),
		frame0Time: -1,
	}
	n := size * 2 / 3
	for i := range b.out {
		if i < n {
			b.out[i] = blackY
		} else {
			b.out[i] = neutralUV
		}
	}
	return b
}

// integrate adds the interval from the previous native frame to now.
func (b *blender) integrate(f0, f1 []byte, now int64) {
	b.frame0Time = b.frame1Time
	b.frame1Time = now
	dt := fixedRound(b.frame1Time - b.frame0Time)
	b.interpTime += dt
	for i := range b.acc {
		b.acc[i] += (int64(f0[i]) + int64(f1[i])) * dt
	}
}

// emit computes the next output frame and moves the time origin to
// its end. It returns true if any output byte changed.
func (b *blender) emit(f0, f1 []byte, now *int64) bool {
	frameTime := int64(float64(fixedOne)*1000000/float64(b.frameRate) + 0.5)
	if frameTime > b.frame1Time {
		frameTime = b.frame1Time
	}
	t0 := fixedRound(frameTime - b.frame0Time)
	t1 := fixedRound(b.frame1Time - frameTime)

	// Raised cosine weight of the part after the boundary.
	var tt float64
	if t0+t1 > 0 {
		tt = math.Pi * float64(t1) / float64(t0+t1)
		tt = (tt - math.Sin(tt)) / math.Pi
	}
	scale0 := int64(float64(t1)*tt + 0.5)
	scale1 := int64(float64(t1)*(2-tt) + 0.5)

	interval := b.interpTime - t1
	b.interpTime = t1
	b.frame0Time -= frameTime
	b.frame1Time -= frameTime
	*now -= frameTime

	if interval <= 0 {
		for i := range b.acc {
			b.acc[i] = int64(f0[i])*scale0 + int64(f1[i])*scale1
		}
		return false
	}
	b.consumed += interval
	outScale := int64(0x20000000) / interval

	var changed byte
	for i := range b.acc {
		tmp := int64(f0[i])*scale0 + int64(f1[i])*scale1
		v := (((b.acc[i]-tmp)>>8)*outScale + 0x00200000) >> 22
		b.acc[i] = tmp
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		changed |= byte(v) ^ b.out[i]
		b.out[i] = byte(v)
	}
	return changed != 0
}

// reanchor aligns the current native frame time with the duration of
// the audio still buffered, so video time cannot drift from audio.
func (b *blender) reanchor(now *int64, bufferedSamples int) {
	sr := int64(b.sampleRate)
	frameTime := ((int64(bufferedSamples)*10000)<<32 + sr/200) / (sr / 100)
	*now += frameTime - b.frame1Time
	b.frame0Time += frameTime - b.frame1Time
	b.frame1Time = frameTime
}
