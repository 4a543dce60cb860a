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

// Package writerseeker provides an in-memory file used by tests and
// by the CLI when the output is not seekable.
package writerseeker

import (
	"errors"
	"io"
)

// WriterSeeker in-memory io.WriteSeeker that can be read back.
type WriterSeeker struct {
	buf    []byte
	pos    int
	closed bool
}

// ErrNegativeResultPos negative result pos.
var ErrNegativeResultPos = errors.New("negative result pos")

// ErrClosed write after close.
var ErrClosed = errors.New("writer closed")

// Write implements io.Writer. Writing past the end fills
// the gap with null bytes.
func (ws *WriterSeeker) Write(p []byte) (int, error) {
	if ws.closed {
		return 0, ErrClosed
	}
	end := ws.pos + len(p)
	if end > len(ws.buf) {
		if end > cap(ws.buf) {
			grown := make([]byte, len(ws.buf), 2*end)
			copy(grown, ws.buf)
			ws.buf = grown
		}
		// Zero the gap, the backing array may hold stale bytes.
		gap := ws.buf[len(ws.buf):end]
		for i := range gap {
			gap[i] = 0
		}
		ws.buf = ws.buf[:end]
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (ws *WriterSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(ws.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(ws.buf)) + offset
	}
	if newPos < 0 {
		return 0, ErrNegativeResultPos
	}
	ws.pos = int(newPos)
	return newPos, nil
}

// ReadAt implements io.ReaderAt.
func (ws *WriterSeeker) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(ws.buf)) {
		return 0, io.EOF
	}
	n := copy(p, ws.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close marks the writer as closed, the content stays readable.
func (ws *WriterSeeker) Close() error {
	ws.closed = true
	return nil
}

// Closed reports if Close has been called.
func (ws *WriterSeeker) Closed() bool {
	return ws.closed
}

// Size returns the buffer length.
func (ws *WriterSeeker) Size() int64 {
	return int64(len(ws.buf))
}

// Bytes returns the underlying byte slice.
func (ws *WriterSeeker) Bytes() []byte {
	return ws.buf
}
