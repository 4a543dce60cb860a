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

// Package audio converts native rate audio into fixed size chunks.
package audio

// Ring fixed capacity circular buffer of 16 bit samples.
// Samples written to a full ring are dropped.
type Ring struct {
	buf      []int16
	readPos  int
	writePos int
	n        int
}

// NewRing returns a ring holding chunks*chunkSize samples.
func NewRing(chunkSize, chunks int) *Ring {
	return &Ring{buf: make([]int16, chunkSize*chunks)}
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	return r.n
}

// Write appends a sample, false if the ring is full.
func (r *Ring) Write(s int16) bool {
	if r.n >= len(r.buf) {
		return false
	}
	r.buf[r.writePos] = s
	r.writePos++
	if r.writePos >= len(r.buf) {
		r.writePos = 0
	}
	r.n++
	return true
}

// Read consumes up to len(dst) samples.
func (r *Ring) Read(dst []int16) int {
	n := 0
	for n < len(dst) && r.n > 0 {
		dst[n] = r.buf[r.readPos]
		r.readPos++
		if r.readPos >= len(r.buf) {
			r.readPos = 0
		}
		r.n--
		n++
	}
	return n
}

// Reset discards all samples.
func (r *Ring) Reset() {
	r.readPos = 0
	r.writePos = 0
	r.n = 0
}
