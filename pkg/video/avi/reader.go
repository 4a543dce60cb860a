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
	"errors"
	"fmt"
	"io"
)

// Stream parsed strh and strf chunks.
type Stream struct {
	Type                string
	Handler             string
	Scale               uint32
	Rate                uint32
	Length              uint32
	SuggestedBufferSize uint32
	SampleSize          uint32
	Format              []byte
}

// Chunk data chunk inside the movi list.
type Chunk struct {
	ID string

	// Offset of the chunk header from the start of the file.
	Offset int64
	Size   uint32
}

// IndexEntry idx1 entry. Offset is relative to the movi fourcc.
type IndexEntry struct {
	ID     string
	Flags  uint32
	Offset uint32
	Size   uint32
}

// Info parsed file.
type Info struct {
	RIFFSize         uint32
	MicroSecPerFrame uint32
	MaxBytesPerSec   uint32
	Flags            uint32
	TotalFrames      uint32
	Streams          []Stream
	Width            uint32
	Height           uint32

	// Offset of the movi fourcc.
	MoviOffset int64
	MoviSize   uint32
	Chunks     []Chunk
	Index      []IndexEntry
}

// Reader errors.
var (
	ErrNotAVI        = errors.New("not a RIFF AVI file")
	ErrShortChunk    = errors.New("chunk extends past end of file")
	ErrIndexMismatch = errors.New("index does not match chunks")
	ErrNoVideo       = errors.New("no video stream")
)

// Read parses the header, the movi chunk list and the index.
func Read(r io.ReaderAt, size int64) (*Info, error) {
	var head [12]byte
	if _, err := r.ReadAt(head[:], 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAVI, err)
	}
	if string(head[0:4]) != "RIFF" || string(head[8:12]) != "AVI " {
		return nil, ErrNotAVI
	}
	info := &Info{RIFFSize: binary.LittleEndian.Uint32(head[4:8])}

	pos := int64(12)
	var hdr [12]byte
	for pos+8 <= size {
		if _, err := r.ReadAt(hdr[:8], pos); err != nil {
			return nil, err
		}
		id := string(hdr[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		start := pos + 8
		end := start + chunkSize
		if end > size {
			return nil, fmt.Errorf("%w: %q at %d", ErrShortChunk, id, pos)
		}

		switch id {
		case "LIST":
			if chunkSize < 4 {
				return nil, fmt.Errorf("%w: %q at %d, size %d", ErrShortChunk, id, pos, chunkSize)
			}
			if _, err := r.ReadAt(hdr[8:12], start); err != nil {
				return nil, err
			}
			switch string(hdr[8:12]) {
			case "hdrl":
				payload := make([]byte, chunkSize-4)
				if _, err := r.ReadAt(payload, start+4); err != nil {
					return nil, err
				}
				info.parseHeaderList(payload)
			case "movi":
				info.MoviOffset = start
				info.MoviSize = uint32(chunkSize)
				if err := info.readMovi(r, start+4, end); err != nil {
					return nil, err
				}
			}
		case "idx1":
			payload := make([]byte, chunkSize)
			if _, err := r.ReadAt(payload, start); err != nil {
				return nil, err
			}
			info.parseIndex(payload)
		}

		if chunkSize%2 == 1 {
			end++
		}
		pos = end
	}
	return info, nil
}

func (info *Info) readMovi(r io.ReaderAt, pos, end int64) error {
	var hdr [8]byte
	for pos+8 <= end {
		if _, err := r.ReadAt(hdr[:], pos); err != nil {
			return err
		}
		size := binary.LittleEndian.Uint32(hdr[4:8])
		if pos+8+int64(size) > end {
			return fmt.Errorf("%w: %q at %d", ErrShortChunk, string(hdr[:4]), pos)
		}
		info.Chunks = append(info.Chunks, Chunk{
			ID:     string(hdr[:4]),
			Offset: pos,
			Size:   size,
		})
		pos += 8 + int64(size) + int64(size&1)
	}
	return nil
}

func (info *Info) parseHeaderList(data []byte) {
	parseRIFFChunks(data, func(id string, payload []byte) {
		switch id {
		case "avih":
			if len(payload) < 40 {
				return
			}
			info.MicroSecPerFrame = binary.LittleEndian.Uint32(payload[0:4])
			info.MaxBytesPerSec = binary.LittleEndian.Uint32(payload[4:8])
			info.Flags = binary.LittleEndian.Uint32(payload[12:16])
			info.TotalFrames = binary.LittleEndian.Uint32(payload[16:20])
			info.Width = binary.LittleEndian.Uint32(payload[32:36])
			info.Height = binary.LittleEndian.Uint32(payload[36:40])
		case "LIST":
			if len(payload) < 4 || string(payload[:4]) != "strl" {
				return
			}
			info.Streams = append(info.Streams, parseStreamList(payload[4:]))
		}
	})
}

func parseStreamList(data []byte) Stream {
	var s Stream
	parseRIFFChunks(data, func(id string, payload []byte) {
		switch id {
		case "strh":
			if len(payload) < 48 {
				return
			}
			s.Type = string(payload[0:4])
			s.Handler = fourCC(binary.LittleEndian.Uint32(payload[4:8]))
			s.Scale = binary.LittleEndian.Uint32(payload[20:24])
			s.Rate = binary.LittleEndian.Uint32(payload[24:28])
			s.Length = binary.LittleEndian.Uint32(payload[32:36])
			s.SuggestedBufferSize = binary.LittleEndian.Uint32(payload[36:40])
			s.SampleSize = binary.LittleEndian.Uint32(payload[44:48])
		case "strf":
			s.Format = payload
		}
	})
	return s
}

func (info *Info) parseIndex(data []byte) {
	for i := 0; i+indexEntrySize <= len(data); i += indexEntrySize {
		e := data[i : i+indexEntrySize]
		info.Index = append(info.Index, IndexEntry{
			ID:     string(e[0:4]),
			Flags:  binary.LittleEndian.Uint32(e[4:8]),
			Offset: binary.LittleEndian.Uint32(e[8:12]),
			Size:   binary.LittleEndian.Uint32(e[12:16]),
		})
	}
}

func parseRIFFChunks(data []byte, fn func(id string, payload []byte)) {
	pos := 0
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if end > len(data) {
			return
		}
		fn(id, data[start:end])
		if size%2 == 1 {
			end++
		}
		pos = end
	}
}

func fourCC(value uint32) string {
	// Numeric handlers such as 1 for RLE are not printable.
	if value < 0x20202020 {
		return fmt.Sprintf("%d", value)
	}
	b := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	return string(b)
}

// Verify checks that every index entry points to a chunk with the
// same id and size.
func (info *Info) Verify() error {
	if len(info.Index) != len(info.Chunks) {
		return fmt.Errorf("%w: %d entries, %d chunks",
			ErrIndexMismatch, len(info.Index), len(info.Chunks))
	}
	for i, e := range info.Index {
		c := info.Chunks[i]
		if e.ID != c.ID || e.Size != c.Size || info.MoviOffset+int64(e.Offset) != c.Offset {
			return fmt.Errorf("%w: entry %d %s@%d/%d chunk %s@%d/%d", ErrIndexMismatch,
				i, e.ID, e.Offset, e.Size, c.ID, c.Offset-info.MoviOffset, c.Size)
		}
	}
	return nil
}

// VideoFormat returns the compression fourcc and bit count of the
// first video stream.
func (info *Info) VideoFormat() (compression string, bitCount uint16, err error) {
	for _, s := range info.Streams {
		if s.Type != "vids" || len(s.Format) < bitmapInfo {
			continue
		}
		bitCount = binary.LittleEndian.Uint16(s.Format[14:16])
		compression = fourCC(binary.LittleEndian.Uint32(s.Format[16:20]))
		return compression, bitCount, nil
	}
	return "", 0, ErrNoVideo
}

// Palette returns the video stream palette, if any.
func (info *Info) Palette() [][4]byte {
	for _, s := range info.Streams {
		if s.Type != "vids" || len(s.Format) <= bitmapInfo {
			continue
		}
		raw := s.Format[bitmapInfo:]
		palette := make([][4]byte, len(raw)/4)
		for i := range palette {
			copy(palette[i][:], raw[i*4:])
		}
		return palette
	}
	return nil
}

// ReadChunk reads the payload of a chunk.
func ReadChunk(r io.ReaderAt, c Chunk) ([]byte, error) {
	buf := make([]byte, c.Size)
	if _, err := r.ReadAt(buf, c.Offset+8); err != nil {
		return nil, err
	}
	return buf, nil
}
