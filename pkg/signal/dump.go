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
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
)

// Dump file format.
//
//	magic          "AVCS"
//	version        8 bits
//	ntsc           1 bit
//	padding        7 bits
//	clockFrequency 32 bits
//	records
//	end            1 bit, zero
//
// Each record starts with a one bit, followed by the flags byte and
// one or four index bytes. Audio is stored as a one bit if it changed
// followed by the 16 bit sample, otherwise a zero bit.
const (
	dumpMagic   = "AVCS"
	dumpVersion = 1
)

// Dump errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
)

// Header dump file header.
type Header struct {
	NTSC           bool
	ClockFrequency uint32
}

// Marshal header.
func (h Header) Marshal(w *bitio.Writer) error {
	w.TryWrite([]byte(dumpMagic))
	w.TryWriteByte(dumpVersion)
	w.TryWriteBool(h.NTSC)
	w.TryWriteBits(0, 7)
	w.TryWriteBits(uint64(h.ClockFrequency), 32)
	return w.TryError
}

// Unmarshal header.
func (h *Header) Unmarshal(r *bitio.Reader) error {
	magic := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != dumpMagic {
		return fmt.Errorf("%w: %q", ErrInvalidMagic, magic)
	}
	version := r.TryReadByte()
	h.NTSC = r.TryReadBool()
	r.TryReadBits(7)
	h.ClockFrequency = uint32(r.TryReadBits(32))
	if r.TryError != nil {
		return r.TryError
	}
	if version != dumpVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return nil
}

// Writer writes samples to a dump file.
type Writer struct {
	w         *bitio.Writer
	lastAudio int16
	samples   int64
}

// NewWriter writes the header and returns a sample writer.
func NewWriter(out io.Writer, h Header) (*Writer, error) {
	w := &Writer{w: bitio.NewWriter(out)}
	if err := h.Marshal(w.w); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// WriteSample writes one sample. Four pixel samples shorter than
// five bytes are padded with zeros.
func (w *Writer) WriteSample(video []byte, audio int16) error {
	var sample [5]byte
	copy(sample[:], video)
	n := 2
	if sample[0]&FlagFourPixels != 0 {
		n = 5
	}

	w.w.TryWriteBool(true)
	for _, b := range sample[:n] {
		w.w.TryWriteByte(b)
	}
	if audio != w.lastAudio {
		w.w.TryWriteBool(true)
		w.w.TryWriteBits(uint64(uint16(audio)), 16)
		w.lastAudio = audio
	} else {
		w.w.TryWriteBool(false)
	}
	w.samples++
	return w.w.TryError
}

// Samples returns the number of samples written.
func (w *Writer) Samples() int64 {
	return w.samples
}

// Close writes the end marker and flushes the last byte.
// The underlying writer is not closed.
func (w *Writer) Close() error {
	w.w.TryWriteBool(false)
	if w.w.TryError != nil {
		return w.w.TryError
	}
	return w.w.Close()
}

// Reader reads samples from a dump file.
type Reader struct {
	r         *bitio.Reader
	header    Header
	buf       [5]byte
	lastAudio int16
	done      bool
}

// NewReader reads the header and returns a sample reader.
func NewReader(in io.Reader) (*Reader, error) {
	r := &Reader{r: bitio.NewReader(in)}
	if err := r.header.Unmarshal(r.r); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return r, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// ReadSample returns the next sample or io.EOF after the last one.
// The video slice is only valid until the next call.
func (r *Reader) ReadSample() ([]byte, int16, error) {
	if r.done {
		return nil, 0, io.EOF
	}
	more, err := r.r.ReadBool()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing end marker", io.ErrUnexpectedEOF)
	}
	if !more {
		r.done = true
		return nil, 0, io.EOF
	}

	r.buf[0] = r.r.TryReadByte()
	n := 2
	if r.buf[0]&FlagFourPixels != 0 {
		n = 5
	}
	for i := 1; i < n; i++ {
		r.buf[i] = r.r.TryReadByte()
	}
	if r.r.TryReadBool() {
		r.lastAudio = int16(uint16(r.r.TryReadBits(16)))
	}
	if r.r.TryError != nil {
		return nil, 0, fmt.Errorf("read sample: %w", r.r.TryError)
	}
	return r.buf[:n], r.lastAudio, nil
}
