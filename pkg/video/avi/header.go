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
	"errors"
	"fmt"
)

// Codec video stream compression.
type Codec int

// Codecs.
const (
	CodecRLE8 Codec = iota
	CodecYV12
)

func (c Codec) String() string {
	switch c {
	case CodecRLE8:
		return "rle8"
	case CodecYV12:
		return "yv12"
	}
	return fmt.Sprintf("Codec(%d)", int(c))
}

// ParseCodec parses "rle8" or "yv12".
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "rle8", "RLE8":
		return CodecRLE8, nil
	case "yv12", "YV12":
		return CodecYV12, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

// DefaultMaxFileSize files are rolled over when they reach this size.
const DefaultMaxFileSize = 0x7F800000

// Config stream parameters of a file.
type Config struct {
	Codec      Codec
	Width      int
	Height     int
	FrameRate  int
	SampleRate int

	// Palette BGR0 entries, RLE8 only.
	Palette [256][4]byte

	// MaxFileSize zero means DefaultMaxFileSize, which is also the limit.
	MaxFileSize int64
}

// Config errors.
var (
	ErrUnknownCodec   = errors.New("unknown codec")
	ErrInvalidSize    = errors.New("invalid frame size")
	ErrInvalidRate    = errors.New("invalid rate")
	ErrRateNotDivisor = errors.New("frame rate does not divide sample rate")
	ErrFileSize       = errors.New("invalid max file size")
)

// Validate returns an error if the config cannot produce a valid file.
func (c Config) Validate() error {
	switch {
	case c.Codec != CodecRLE8 && c.Codec != CodecYV12:
		return fmt.Errorf("%w: %d", ErrUnknownCodec, c.Codec)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.Width, c.Height)
	case c.Codec == CodecYV12 && (c.Width%2 != 0 || c.Height%2 != 0):
		return fmt.Errorf("%w: yv12 requires even size %dx%d", ErrInvalidSize, c.Width, c.Height)
	case c.FrameRate <= 0 || c.SampleRate <= 0:
		return fmt.Errorf("%w: frame=%d sample=%d", ErrInvalidRate, c.FrameRate, c.SampleRate)
	case c.SampleRate%c.FrameRate != 0:
		return fmt.Errorf("%w: %d/%d", ErrRateNotDivisor, c.SampleRate, c.FrameRate)
	case c.MaxFileSize < 0 || c.MaxFileSize > DefaultMaxFileSize:
		return fmt.Errorf("%w: %d, limit %d", ErrFileSize, c.MaxFileSize, int64(DefaultMaxFileSize))
	}
	return nil
}

// SamplesPerFrame audio samples in every audio chunk.
func (c Config) SamplesPerFrame() int {
	return c.SampleRate / c.FrameRate
}

// AudioChunkSize size of every audio chunk payload in bytes.
func (c Config) AudioChunkSize() int {
	return c.SamplesPerFrame() * 2
}

// VideoFrameSize maximum video chunk payload size.
func (c Config) VideoFrameSize() int {
	if c.Codec == CodecRLE8 {
		return (c.Width + 16) * c.Height
	}
	return c.Width * c.Height * 3 / 2
}

func (c Config) maxFrameSize() int {
	return c.VideoFrameSize() + c.AudioChunkSize() + 16
}

func (c Config) maxFileSize() int64 {
	if c.MaxFileSize <= 0 || c.MaxFileSize > DefaultMaxFileSize {
		return DefaultMaxFileSize
	}
	return c.MaxFileSize
}

const (
	avihSize      = 0x38
	strhSize      = 0x38
	bitmapInfo    = 0x28
	paletteSize   = 256 * 4
	waveFormatLen = 0x12
)

func (c Config) videoFormatSize() uint32 {
	if c.Codec == CodecRLE8 {
		return bitmapInfo + paletteSize
	}
	return bitmapInfo
}

func (c Config) videoListSize() uint32 {
	return 4 + 8 + strhSize + 8 + c.videoFormatSize()
}

func audioListSize() uint32 {
	return 4 + 8 + strhSize + 8 + waveFormatLen
}

func (c Config) headerListSize() uint32 {
	return 4 + 8 + avihSize + 8 + c.videoListSize() + 8 + audioListSize()
}

// HeaderSize size of everything before the first movi chunk.
func (c Config) HeaderSize() int64 {
	return int64(12 + 8 + c.headerListSize() + 12)
}

// writeHeader writes the RIFF, hdrl and movi list headers.
// fileSize is the current size of the file without the index.
func writeHeader(w *Writer, c Config, frames int, fileSize int64) error {
	maxFrameSize := uint32(c.maxFrameSize())
	frameRate := uint32(c.FrameRate)
	width, height := uint32(c.Width), uint32(c.Height)
	samplesPerFrame := uint32(c.SamplesPerFrame())

	w.TryWriteChunkHeader("RIFF", uint32(fileSize-8))
	w.TryWriteFourCC("AVI ")
	w.TryWriteChunkHeader("LIST", c.headerListSize())
	w.TryWriteFourCC("hdrl")

	w.TryWriteChunkHeader("avih", avihSize)
	w.TryWriteUint32((1000000 + frameRate/2) / frameRate) // Microseconds per frame.
	w.TryWriteUint32(maxFrameSize * frameRate)            // Max bytes per second.
	w.TryWriteUint32(1)                                   // Padding granularity.
	w.TryWriteUint32(0x910)                               // Flags, has index, interleaved, trust chunk type.
	w.TryWriteUint32(uint32(frames))
	w.TryWriteUint32(0) // Initial frames.
	w.TryWriteUint32(2) // Streams.
	w.TryWriteUint32(maxFrameSize)
	w.TryWriteUint32(width)
	w.TryWriteUint32(height)
	for i := 0; i < 4; i++ {
		w.TryWriteUint32(0)
	}

	// Video stream.
	w.TryWriteChunkHeader("LIST", c.videoListSize())
	w.TryWriteFourCC("strl")
	w.TryWriteChunkHeader("strh", strhSize)
	w.TryWriteFourCC("vids")
	if c.Codec == CodecRLE8 {
		w.TryWriteUint32(1)
	} else {
		w.TryWriteFourCC("YV12")
	}
	w.TryWriteUint32(0) // Flags.
	w.TryWriteUint16(0) // Priority.
	w.TryWriteUint16(0) // Language.
	w.TryWriteUint32(0) // Initial frames.
	w.TryWriteUint32(1) // Scale.
	w.TryWriteUint32(frameRate)
	w.TryWriteUint32(0) // Start.
	w.TryWriteUint32(uint32(frames))
	w.TryWriteUint32(uint32(c.VideoFrameSize()))
	w.TryWriteUint32(0) // Quality.
	w.TryWriteUint32(0) // Sample size.
	w.TryWriteUint16(0) // Frame rectangle.
	w.TryWriteUint16(0)
	w.TryWriteUint16(uint16(width))
	w.TryWriteUint16(uint16(height))

	w.TryWriteChunkHeader("strf", c.videoFormatSize())
	w.TryWriteUint32(bitmapInfo)
	w.TryWriteUint32(width)
	w.TryWriteUint32(height)
	w.TryWriteUint16(1) // Planes.
	if c.Codec == CodecRLE8 {
		w.TryWriteUint16(8)
		w.TryWriteUint32(1)
		w.TryWriteUint32(width * height)
	} else {
		w.TryWriteUint16(0x18)
		w.TryWriteFourCC("YV12")
		w.TryWriteUint32(width * height * 3)
	}
	for i := 0; i < 4; i++ {
		w.TryWriteUint32(0)
	}
	if c.Codec == CodecRLE8 {
		for _, entry := range c.Palette {
			w.TryWrite(entry[:])
		}
	}

	// Audio stream.
	w.TryWriteChunkHeader("LIST", audioListSize())
	w.TryWriteFourCC("strl")
	w.TryWriteChunkHeader("strh", strhSize)
	w.TryWriteFourCC("auds")
	w.TryWriteUint32(1) // Handler.
	w.TryWriteUint32(0) // Flags.
	w.TryWriteUint16(0) // Priority.
	w.TryWriteUint16(0) // Language.
	w.TryWriteUint32(0) // Initial frames.
	w.TryWriteUint32(1) // Scale.
	w.TryWriteUint32(uint32(c.SampleRate))
	w.TryWriteUint32(0) // Start.
	w.TryWriteUint32(uint32(frames) * samplesPerFrame)
	w.TryWriteUint32(samplesPerFrame * 2)
	w.TryWriteUint32(0) // Quality.
	w.TryWriteUint32(2) // Sample size.
	for i := 0; i < 4; i++ {
		w.TryWriteUint16(0)
	}

	w.TryWriteChunkHeader("strf", waveFormatLen)
	w.TryWriteUint16(1) // PCM.
	w.TryWriteUint16(1) // Channels.
	w.TryWriteUint32(uint32(c.SampleRate))
	w.TryWriteUint32(uint32(c.SampleRate) * 2)
	w.TryWriteUint16(2)  // Block align.
	w.TryWriteUint16(16) // Bits per sample.
	w.TryWriteUint16(0)  // Extra size.

	w.TryWriteChunkHeader("LIST", uint32(fileSize-c.HeaderSize())+4)
	w.TryWriteFourCC("movi")

	return w.TryError
}
