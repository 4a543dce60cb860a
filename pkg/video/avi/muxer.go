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

// Package avi writes and reads interleaved RIFF AVI files with one
// video stream and one 16 bit mono PCM audio stream.
package avi

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// File output file.
type File interface {
	io.WriteSeeker
	io.Closer
}

// OpenFunc opens or creates a file for writing.
type OpenFunc func(path string) (File, error)

// CreateFile creates or truncates a file on disk.
func CreateFile(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

// Hooks callbacks from the muxer to its owner.
type Hooks interface {
	// Error reports a non fatal error message.
	Error(msg string)

	// NeedNewFile returns the name of the next output file,
	// an empty name stops writing.
	NeedNewFile() string
}

// FrameEncoder appends the compressed current output frame to dst.
type FrameEncoder interface {
	AppendFrame(dst []byte) []byte
}

// Stats muxer counters, cumulative across files.
type Stats struct {
	Files      int
	Frames     int
	Keyframes  int
	Duplicates int
	Bytes      int64
}

// ErrTooLarge reported when a file is rolled over.
const ErrTooLarge = "AVI file is too large, starting new output file"

// Muxer AVI file writer.
type Muxer struct {
	config Config
	open   OpenFunc
	hooks  Hooks

	file            File
	w               *Writer
	fileSize        int64
	frameSizes      []uint32
	duplicateFrames int

	chunk bytes.Buffer
	cw    *Writer
	frame []byte
	stats Stats
}

// NewMuxer creates a muxer, no file is open until Open is called.
func NewMuxer(config Config, open OpenFunc, hooks Hooks) (*Muxer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		open = CreateFile
	}
	m := &Muxer{
		config: config,
		open:   open,
		hooks:  hooks,
		frame:  make([]byte, 0, config.VideoFrameSize()),
	}
	m.cw = NewWriter(&m.chunk)
	return m, nil
}

// Config returns the muxer config.
func (m *Muxer) Config() Config {
	return m.config
}

// IsOpen reports if a file is open.
func (m *Muxer) IsOpen() bool {
	return m.file != nil
}

// FramesWritten frames in the current file.
func (m *Muxer) FramesWritten() int {
	return len(m.frameSizes)
}

// FileSize current file size without the index.
func (m *Muxer) FileSize() int64 {
	return m.fileSize
}

// Stats returns the cumulative counters.
func (m *Muxer) Stats() Stats {
	return m.stats
}

// Open closes the current file and starts a new one.
// An empty path only closes the current file.
func (m *Muxer) Open(path string) error {
	if err := m.Close(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	file, err := m.open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	m.file = file
	m.w = NewWriter(file)
	m.fileSize = m.config.HeaderSize()
	m.frameSizes = m.frameSizes[:0]
	m.duplicateFrames = 0

	if err := m.writeHeader(); err != nil {
		file.Close()
		m.file = nil
		return fmt.Errorf("write header: %w", err)
	}
	m.stats.Files++
	return nil
}

// Close finalizes the header and index and closes the file.
func (m *Muxer) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.writeHeader()
	if err == nil {
		err = m.writeIndex()
	}
	if err2 := m.file.Close(); err == nil {
		err = err2
	}
	m.file = nil
	m.w = nil
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (m *Muxer) closeQuiet() {
	if m.file == nil {
		return
	}
	m.writeHeader() //nolint:errcheck
	m.writeIndex()  //nolint:errcheck
	m.file.Close()
	m.file = nil
	m.w = nil
}

// fail closes the file after a write error and asks for a new one.
func (m *Muxer) fail(err error) {
	m.closeQuiet()
	m.hooks.Error(fmt.Sprintf("error writing AVI file: %v", err))
	m.next()
}

func (m *Muxer) next() {
	name := m.hooks.NeedNewFile()
	if name == "" {
		return
	}
	if err := m.Open(name); err != nil {
		m.hooks.Error(err.Error())
	}
}

// WriteFrame writes one video chunk and one audio chunk. Unchanged
// frames are written as empty video chunks except for the first frame
// of a file and one frame every second. audio is padded with silence
// or truncated to the samples per frame.
func (m *Muxer) WriteFrame(video FrameEncoder, changed bool, audio []int16) {
	if m.file == nil {
		return
	}
	if m.fileSize >= m.config.maxFileSize() {
		m.closeQuiet()
		m.hooks.Error(ErrTooLarge)
		m.next()
		if m.file == nil {
			return
		}
	}

	if !changed {
		if len(m.frameSizes) == 0 || m.duplicateFrames+1 >= m.config.FrameRate {
			changed = true
		} else {
			m.duplicateFrames++
		}
	}
	if changed {
		m.duplicateFrames = 0
		m.frame = video.AppendFrame(m.frame[:0])
	} else {
		m.frame = m.frame[:0]
	}

	if err := m.writeChunks(m.frame, audio); err != nil {
		m.fail(err)
		return
	}

	m.frameSizes = append(m.frameSizes, uint32(len(m.frame)))
	m.stats.Frames++
	if changed {
		m.stats.Keyframes++
	} else {
		m.stats.Duplicates++
	}

	if len(m.frameSizes)&31 == 0 {
		if err := m.writeHeader(); err != nil {
			m.fail(err)
		}
	}
}

func (m *Muxer) writeChunks(frame []byte, audio []int16) error {
	samples := m.config.SamplesPerFrame()

	m.chunk.Reset()
	m.cw.TryError = nil
	m.cw.TryWriteChunkHeader("00dc", uint32(len(frame)))
	m.cw.TryWrite(frame)
	m.cw.TryWriteChunkHeader("01wb", uint32(samples*2))
	for i := 0; i < samples; i++ {
		var s int16
		if i < len(audio) {
			s = audio[i]
		}
		m.cw.TryWriteUint16(uint16(s))
	}
	if m.cw.TryError != nil {
		return m.cw.TryError
	}

	if _, err := m.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	n, err := m.file.Write(m.chunk.Bytes())
	m.fileSize += int64(n)
	m.stats.Bytes += int64(n)
	return err
}

func (m *Muxer) writeHeader() error {
	if _, err := m.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	m.chunk.Reset()
	m.cw.TryError = nil
	if err := writeHeader(m.cw, m.config, len(m.frameSizes), m.fileSize); err != nil {
		return err
	}
	_, err := m.file.Write(m.chunk.Bytes())
	return err
}

const (
	indexFlagKeyframe = 0x10
	indexEntrySize    = 16
)

func (m *Muxer) writeIndex() error {
	if _, err := m.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	audioSize := uint32(m.config.AudioChunkSize())

	m.chunk.Reset()
	m.cw.TryError = nil
	m.cw.TryWriteChunkHeader("idx1", uint32(len(m.frameSizes)*2*indexEntrySize))
	filePos := uint32(4)
	for _, size := range m.frameSizes {
		var flags uint32
		if size > 0 {
			flags = indexFlagKeyframe
		}
		m.cw.TryWriteFourCC("00dc")
		m.cw.TryWriteUint32(flags)
		m.cw.TryWriteUint32(filePos)
		m.cw.TryWriteUint32(size)
		filePos += size + 8

		m.cw.TryWriteFourCC("01wb")
		m.cw.TryWriteUint32(indexFlagKeyframe)
		m.cw.TryWriteUint32(filePos)
		m.cw.TryWriteUint32(audioSize)
		filePos += audioSize + 8
	}
	if m.cw.TryError != nil {
		return m.cw.TryError
	}
	n, err := m.file.Write(m.chunk.Bytes())
	m.fileSize += int64(n)
	if err != nil {
		return err
	}

	if _, err := m.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := m.w.WriteFourCC("RIFF"); err != nil {
		return err
	}
	return m.w.WriteUint32(uint32(m.fileSize - 8))
}
