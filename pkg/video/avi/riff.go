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

package avi

import (
	"encoding/binary"
	"io"
)

// Writer little-endian RIFF field writer.
type Writer struct {
	out io.Writer
	buf [4]byte

	// TryError holds the first error occurred in TryXXX() methods.
	TryError error
}

// NewWriter returns a new Writer using the specified io.Writer as the output.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

// WriteUint16 writes 16 bits.
func (w *Writer) WriteUint16(v uint16) error {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	_, err := w.out.Write(w.buf[:2])
	return err
}

// WriteUint32 writes 32 bits.
func (w *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:], v)
	_, err := w.out.Write(w.buf[:])
	return err
}

// WriteFourCC writes a four character code, shorter
// codes are padded with spaces.
func (w *Writer) WriteFourCC(code string) error {
	b := [4]byte{' ', ' ', ' ', ' '}
	copy(b[:], code)
	_, err := w.out.Write(b[:])
	return err
}

// TryWrite tries to write len(p) bytes.
func (w *Writer) TryWrite(p []byte) {
	if w.TryError == nil {
		_, w.TryError = w.Write(p)
	}
}

// TryWriteUint16 tries to write 16 bits.
func (w *Writer) TryWriteUint16(v uint16) {
	if w.TryError == nil {
		w.TryError = w.WriteUint16(v)
	}
}

// TryWriteUint32 tries to write 32 bits.
func (w *Writer) TryWriteUint32(v uint32) {
	if w.TryError == nil {
		w.TryError = w.WriteUint32(v)
	}
}

// TryWriteFourCC tries to write a four character code.
func (w *Writer) TryWriteFourCC(code string) {
	if w.TryError == nil {
		w.TryError = w.WriteFourCC(code)
	}
}

// TryWriteChunkHeader tries to write a chunk id and size.
func (w *Writer) TryWriteChunkHeader(id string, size uint32) {
	w.TryWriteFourCC(id)
	w.TryWriteUint32(size)
}
