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
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"avicap/pkg/video/writerseeker"

	"github.com/stretchr/testify/require"
)

func testConfig(codec Codec) Config {
	return Config{
		Codec:      codec,
		Width:      384,
		Height:     288,
		FrameRate:  50,
		SampleRate: 48000,
	}
}

type testHooks struct {
	errors []string
	names  []string
}

func (h *testHooks) Error(msg string) {
	h.errors = append(h.errors, msg)
}

func (h *testHooks) NeedNewFile() string {
	if len(h.names) == 0 {
		return ""
	}
	name := h.names[0]
	h.names = h.names[1:]
	return name
}

type testFiles map[string]*writerseeker.WriterSeeker

func (f testFiles) open(path string) (File, error) {
	ws := &writerseeker.WriterSeeker{}
	f[path] = ws
	return ws, nil
}

type payload []byte

func (p payload) AppendFrame(dst []byte) []byte {
	return append(dst, p...)
}

func TestHeaderSize(t *testing.T) {
	cases := []struct {
		codec    Codec
		expected int64
		list     uint32
	}{
		{CodecRLE8, 0x546, 0x526},
		{CodecYV12, 0x146, 0x126},
	}
	for _, tc := range cases {
		t.Run(tc.codec.String(), func(t *testing.T) {
			c := testConfig(tc.codec)
			require.Equal(t, tc.expected, c.HeaderSize())

			var buf bytes.Buffer
			require.NoError(t, writeHeader(NewWriter(&buf), c, 0, c.HeaderSize()))
			b := buf.Bytes()
			require.Len(t, b, int(tc.expected))
			require.Equal(t, "RIFF", string(b[0:4]))
			require.Equal(t, uint32(tc.expected-8), binary.LittleEndian.Uint32(b[4:8]))
			require.Equal(t, tc.list, binary.LittleEndian.Uint32(b[16:20]))
			require.Equal(t, "movi", string(b[len(b)-4:]))
			require.Equal(t, uint32(4), binary.LittleEndian.Uint32(b[len(b)-8:]))
		})
	}
}

func TestHeaderFields(t *testing.T) {
	c := testConfig(CodecRLE8)
	c.Palette[0x71] = [4]byte{244, 244, 244, 0}

	var buf bytes.Buffer
	require.NoError(t, writeHeader(NewWriter(&buf), c, 7, c.HeaderSize()))
	b := buf.Bytes()
	u32 := func(pos int) uint32 { return binary.LittleEndian.Uint32(b[pos:]) }

	maxFrameSize := uint32(400*288 + 1920 + 16)
	require.Equal(t, "avih", string(b[24:28]))
	require.Equal(t, uint32(20000), u32(32))
	require.Equal(t, maxFrameSize*50, u32(36))
	require.Equal(t, uint32(0x910), u32(44))
	require.Equal(t, uint32(7), u32(48))
	require.Equal(t, uint32(2), u32(56))
	require.Equal(t, maxFrameSize, u32(60))
	require.Equal(t, uint32(384), u32(64))
	require.Equal(t, uint32(288), u32(68))

	info, err := Read(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	require.Len(t, info.Streams, 2)

	video := info.Streams[0]
	require.Equal(t, "vids", video.Type)
	require.Equal(t, "1", video.Handler)
	require.Equal(t, uint32(50), video.Rate)
	require.Equal(t, uint32(7), video.Length)
	require.Equal(t, uint32(400*288), video.SuggestedBufferSize)

	compression, bitCount, err := info.VideoFormat()
	require.NoError(t, err)
	require.Equal(t, "1", compression)
	require.Equal(t, uint16(8), bitCount)
	palette := info.Palette()
	require.Len(t, palette, 256)
	require.Equal(t, [4]byte{244, 244, 244, 0}, palette[0x71])

	audio := info.Streams[1]
	require.Equal(t, "auds", audio.Type)
	require.Equal(t, uint32(48000), audio.Rate)
	require.Equal(t, uint32(7*960), audio.Length)
	require.Equal(t, uint32(1920), audio.SuggestedBufferSize)
	require.Equal(t, uint32(2), audio.SampleSize)
	require.Equal(t, []byte{1, 0, 1, 0, 0x80, 0xbb, 0, 0, 0, 0x77, 1, 0, 2, 0, 16, 0, 0, 0}, audio.Format)
}

func TestMuxer(t *testing.T) {
	for _, codec := range []Codec{CodecRLE8, CodecYV12} {
		t.Run(codec.String(), func(t *testing.T) {
			files := testFiles{}
			hooks := &testHooks{}
			m, err := NewMuxer(testConfig(codec), files.open, hooks)
			require.NoError(t, err)

			// Writing without an open file is a no-op.
			m.WriteFrame(payload{1, 2}, true, nil)
			require.Equal(t, 0, m.FramesWritten())

			require.NoError(t, m.Open("a.avi"))
			audio := make([]int16, 960)
			audio[0] = -2
			for i := 0; i < 120; i++ {
				m.WriteFrame(payload{1, 2, 3, 4}, i == 0, audio)
			}
			require.NoError(t, m.Close())
			require.False(t, m.IsOpen())
			require.Empty(t, hooks.errors)

			stats := m.Stats()
			require.Equal(t, Stats{
				Files:      1,
				Frames:     120,
				Keyframes:  3,
				Duplicates: 117,
				Bytes:      120*(8+8+1920) + 3*4,
			}, stats)

			ws := files["a.avi"]
			info, err := Read(ws, ws.Size())
			require.NoError(t, err)
			require.NoError(t, info.Verify())
			require.Equal(t, uint32(ws.Size()-8), info.RIFFSize)
			require.Equal(t, uint32(120), info.TotalFrames)
			require.Len(t, info.Chunks, 240)
			require.Equal(t, int64(testConfig(codec).HeaderSize()-4), info.MoviOffset)

			var keyframes []int
			for i := 0; i < 120; i++ {
				video, audio := info.Chunks[2*i], info.Chunks[2*i+1]
				require.Equal(t, "00dc", video.ID)
				require.Equal(t, "01wb", audio.ID)
				require.Equal(t, uint32(1920), audio.Size)
				if video.Size > 0 {
					keyframes = append(keyframes, i)
					require.Equal(t, uint32(indexFlagKeyframe), info.Index[2*i].Flags)
				} else {
					require.Equal(t, uint32(0), info.Index[2*i].Flags)
				}
			}
			require.Equal(t, []int{0, 50, 100}, keyframes)

			samples, err := ReadChunk(ws, info.Chunks[1])
			require.NoError(t, err)
			require.Equal(t, []byte{0xfe, 0xff, 0, 0}, samples[:4])
		})
	}
}

func TestMuxerHeaderRewrite(t *testing.T) {
	files := testFiles{}
	m, err := NewMuxer(testConfig(CodecRLE8), files.open, &testHooks{})
	require.NoError(t, err)
	require.NoError(t, m.Open("a.avi"))

	frames := func() uint32 {
		return binary.LittleEndian.Uint32(files["a.avi"].Bytes()[48:])
	}
	for i := 0; i < 31; i++ {
		m.WriteFrame(payload{0, 0}, true, nil)
	}
	require.Equal(t, uint32(0), frames())

	m.WriteFrame(payload{0, 0}, true, nil)
	require.Equal(t, uint32(32), frames())
}

func TestMuxerRollover(t *testing.T) {
	files := testFiles{}
	hooks := &testHooks{names: []string{"b.avi", "c.avi"}}
	c := testConfig(CodecYV12)
	c.MaxFileSize = c.HeaderSize() + 1

	m, err := NewMuxer(c, files.open, hooks)
	require.NoError(t, err)
	require.NoError(t, m.Open("a.avi"))

	for i := 0; i < 4; i++ {
		m.WriteFrame(payload{9, 9}, false, nil)
	}
	require.False(t, m.IsOpen())
	require.Equal(t, []string{ErrTooLarge, ErrTooLarge, ErrTooLarge}, hooks.errors)
	require.Len(t, files, 3)

	for _, name := range []string{"a.avi", "b.avi", "c.avi"} {
		ws := files[name]
		require.True(t, ws.Closed())
		info, err := Read(ws, ws.Size())
		require.NoError(t, err)
		require.NoError(t, info.Verify())
		require.Equal(t, uint32(1), info.TotalFrames)
		// Every file starts with a keyframe.
		require.Equal(t, uint32(2), info.Chunks[0].Size)
	}
}

var errDiskFull = errors.New("disk full")

type limitedFile struct {
	writerseeker.WriterSeeker
	limit int
}

func (f *limitedFile) Write(p []byte) (int, error) {
	if f.Size()+int64(len(p)) > int64(f.limit) {
		return 0, errDiskFull
	}
	return f.WriterSeeker.Write(p)
}

func TestMuxerWriteError(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		hooks := &testHooks{}
		c := testConfig(CodecYV12)
		open := func(string) (File, error) {
			return &limitedFile{limit: int(c.HeaderSize())}, nil
		}
		m, err := NewMuxer(c, open, hooks)
		require.NoError(t, err)
		require.NoError(t, m.Open("a.avi"))

		m.WriteFrame(payload{1, 2}, true, nil)
		require.False(t, m.IsOpen())
		require.Len(t, hooks.errors, 1)
		require.Contains(t, hooks.errors[0], "disk full")
	})
	t.Run("reopen", func(t *testing.T) {
		files := testFiles{}
		hooks := &testHooks{names: []string{"b.avi"}}
		c := testConfig(CodecYV12)
		open := func(path string) (File, error) {
			if path == "a.avi" {
				return &limitedFile{limit: int(c.HeaderSize())}, nil
			}
			return files.open(path)
		}
		m, err := NewMuxer(c, open, hooks)
		require.NoError(t, err)
		require.NoError(t, m.Open("a.avi"))

		m.WriteFrame(payload{1, 2}, true, nil)
		require.True(t, m.IsOpen())
		require.Len(t, hooks.errors, 1)

		m.WriteFrame(payload{1, 2}, false, nil)
		require.Equal(t, 1, m.FramesWritten())
		require.NoError(t, m.Close())
		require.Equal(t, 2, m.Stats().Files)
	})
	t.Run("open", func(t *testing.T) {
		open := func(string) (File, error) {
			return nil, errDiskFull
		}
		m, err := NewMuxer(testConfig(CodecRLE8), open, &testHooks{})
		require.NoError(t, err)
		require.ErrorIs(t, m.Open("a.avi"), errDiskFull)
		require.False(t, m.IsOpen())
	})
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]struct {
		modify   func(*Config)
		expected error
	}{
		"ok":      {func(*Config) {}, nil},
		"codec":   {func(c *Config) { c.Codec = 5 }, ErrUnknownCodec},
		"size":    {func(c *Config) { c.Width = 0 }, ErrInvalidSize},
		"oddYV12": {func(c *Config) { c.Codec = CodecYV12; c.Height = 287 }, ErrInvalidSize},
		"rate":    {func(c *Config) { c.FrameRate = 0 }, ErrInvalidRate},
		"divisor": {func(c *Config) { c.FrameRate = 49 }, ErrRateNotDivisor},
		"maxSize": {func(c *Config) { c.MaxFileSize = DefaultMaxFileSize }, nil},
		"tooBig":  {func(c *Config) { c.MaxFileSize = 1 << 33 }, ErrFileSize},
		"negSize": {func(c *Config) { c.MaxFileSize = -1 }, ErrFileSize},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := testConfig(CodecRLE8)
			tc.modify(&c)
			err := c.Validate()
			if tc.expected == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.expected)
			}
		})
	}
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("yv12")
	require.NoError(t, err)
	require.Equal(t, CodecYV12, c)

	_, err = ParseCodec("h264")
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestReadNotAVI(t *testing.T) {
	cases := map[string]struct {
		data     string
		expected error
	}{
		"wave":      {"RIFF\x04\x00\x00\x00WAVE", ErrNotAVI},
		"short":     {"RIFF", ErrNotAVI},
		"emptyList": {"RIFF\x10\x00\x00\x00AVI LIST\x00\x00\x00\x00hdrl", ErrShortChunk},
		"list3":     {"RIFF\x10\x00\x00\x00AVI LIST\x03\x00\x00\x00hdr\x00", ErrShortChunk},
		"pastEnd":   {"RIFF\x10\x00\x00\x00AVI idx1\xff\x00\x00\x00", ErrShortChunk},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			data := []byte(tc.data)
			_, err := Read(bytes.NewReader(data), int64(len(data)))
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestReadEmptyHeaderList(t *testing.T) {
	data := []byte("RIFF\x10\x00\x00\x00AVI LIST\x04\x00\x00\x00hdrl")
	info, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Empty(t, info.Streams)
}
