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

// Package capture records a composite video sample stream and its
// audio to an AVI file.
//
// Samples are fed one at a time. A software PLL recovers lines and
// frames from the sync bits, lines are decoded through a colormap
// and assembled into frames, which are resampled to the output
// frame rate and written together with the converted audio.
// Capture is not safe for concurrent use.
package capture

import (
	"errors"
	"fmt"

	"avicap/pkg/audio"
	"avicap/pkg/colormap"
	"avicap/pkg/video/avi"
)

// Output format.
const (
	VideoWidth  = 384
	VideoHeight = 288

	DefaultSampleRate     = 48000
	DefaultFrameRate      = 50
	DefaultClockFrequency = 1773448

	minFrameRate = 24
	maxFrameRate = 60

	// Audio chunks the ring can hold.
	audioBuffers = 8

	// Native samples averaged into one audio converter input.
	audioDecimation = 8
)

// Hooks callbacks from the capture to its owner.
type Hooks interface {
	// Error reports a non fatal error.
	Error(msg string)

	// NeedNewFile is called when the output file is full or
	// failed. It returns the next file name or an empty
	// string to stop writing.
	NeedNewFile() string
}

// NopHooks ignores errors and never provides a new file.
type NopHooks struct{}

// Error implements Hooks.
func (NopHooks) Error(string) {}

// NeedNewFile implements Hooks.
func (NopHooks) NeedNewFile() string { return "" }

// Config capture config.
type Config struct {
	Codec avi.Codec

	// FrameRate is limited to 24-60 and raised until it divides
	// the sample rate.
	FrameRate  int
	SampleRate int

	// Zero contrast, gamma and saturation fields are neutral,
	// see colormap.DisplayParameters.WithDefaults.
	Display colormap.DisplayParameters

	// Volume 0.01 to 1, zero means 0.7.
	Volume float32

	MaxFileSize int64

	// Open defaults to avi.CreateFile.
	Open avi.OpenFunc
}

// ErrInvalidSampleRate invalid sample rate.
var ErrInvalidSampleRate = errors.New("invalid sample rate")

// AdjustFrameRate limits the frame rate to the supported range and
// raises it until the sample rate is a multiple of it. The result is
// above 60 when no rate in range divides the sample rate.
func AdjustFrameRate(frameRate, sampleRate int) int {
	if frameRate < minFrameRate {
		frameRate = minFrameRate
	} else if frameRate > maxFrameRate {
		frameRate = maxFrameRate
	}
	for sampleRate%frameRate != 0 {
		frameRate++
	}
	return frameRate
}

// Stats capture counters.
type Stats struct {
	Lines        int
	NativeFrames int
	AudioDropped int
	Muxer        avi.Stats
}

// Capture video capture pipeline.
type Capture struct {
	frameRate      int
	sampleRate     int
	clockFrequency int
	hooks          Hooks

	clock clock
	sync  *syncDecoder
	enc   encoder
	out   output
	conv  *audio.Converter

	audioAcc     int32
	audioCnt     int
	audioDropped int
}

// New creates a capture, no file is open until OpenFile is called.
func New(config Config, hooks Hooks) (*Capture, error) {
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.SampleRate < 8000 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, config.SampleRate)
	}
	if config.FrameRate == 0 {
		config.FrameRate = DefaultFrameRate
	}
	config.Display = config.Display.WithDefaults()
	if hooks == nil {
		hooks = NopHooks{}
	}
	frameRate := AdjustFrameRate(config.FrameRate, config.SampleRate)
	if frameRate > maxFrameRate {
		return nil, fmt.Errorf("%w: %d has no frame rate divisor in %d-%d",
			ErrInvalidSampleRate, config.SampleRate, minFrameRate, maxFrameRate)
	}

	aviConfig := avi.Config{
		Codec:       config.Codec,
		Width:       VideoWidth,
		Height:      VideoHeight,
		FrameRate:   frameRate,
		SampleRate:  config.SampleRate,
		MaxFileSize: config.MaxFileSize,
	}
	if config.Codec == avi.CodecRLE8 {
		aviConfig.Palette = colormap.PaletteBGR()
	}
	muxer, err := avi.NewMuxer(aviConfig, config.Open, hooks)
	if err != nil {
		return nil, err
	}

	samplesPerFrame := aviConfig.SamplesPerFrame()
	c := &Capture{
		frameRate:  frameRate,
		sampleRate: config.SampleRate,
		hooks:      hooks,
		out: output{
			ring:  audio.NewRing(samplesPerFrame, audioBuffers),
			chunk: make([]int16, samplesPerFrame),
			muxer: muxer,
		},
	}

	switch config.Codec {
	case avi.CodecRLE8:
		c.enc = newRLE8Encoder(config.Display, &c.out, VideoWidth, VideoHeight)
	case avi.CodecYV12:
		c.enc = newYV12Encoder(config.Display, &c.out, &c.clock,
			VideoWidth, VideoHeight, frameRate, config.SampleRate)
	}
	c.sync = newSyncDecoder(VideoHeight, c.enc, &c.clock)

	c.conv = audio.NewConverter(
		DefaultClockFrequency/audioDecimation,
		float32(config.SampleRate),
		c.writeAudio,
	)
	if config.Volume > 0 {
		c.conv.SetVolume(config.Volume)
	}
	c.SetClockFrequency(DefaultClockFrequency)
	return c, nil
}

func (c *Capture) writeAudio(s int16) {
	if !c.out.ring.Write(s) {
		c.audioDropped++
	}
}

// FrameRate returns the output frame rate.
func (c *Capture) FrameRate() int {
	return c.frameRate
}

// SampleRate returns the audio sample rate.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}

// ClockFrequency returns the native sample rate in Hz.
func (c *Capture) ClockFrequency() int {
	return c.clockFrequency
}

// SetClockFrequency sets the number of samples fed per second.
// The value is rounded to a multiple of 8.
func (c *Capture) SetClockFrequency(hz int) {
	hz = (hz + 4) &^ 7
	if hz <= 0 || hz == c.clockFrequency {
		return
	}
	c.clockFrequency = hz
	c.clock.timeslice = (int64(1000000) << 32) / int64(hz)
	c.conv.SetInputRate(float32(hz / audioDecimation))
}

// SetNTSCMode switches between PAL and NTSC sync timing.
func (c *Capture) SetNTSCMode(ntsc bool) {
	c.sync.setNTSC(ntsc)
}

// NTSCMode reports the current timing mode.
func (c *Capture) NTSCMode() bool {
	return c.sync.ntsc
}

// FeedSample processes one native sample. The first video byte
// holds the flags followed by one or four palette indexes.
func (c *Capture) FeedSample(video []byte, audioIn int16) {
	c.audioAcc += int32(audioIn)
	c.audioCnt++
	if c.audioCnt >= audioDecimation {
		c.conv.Send((c.audioAcc + audioDecimation/2) >> 3)
		c.audioAcc = 0
		c.audioCnt = 0
	}
	c.sync.feed(video)
}

// OpenFile closes the current file and opens a new one.
// An empty path only closes the current file.
func (c *Capture) OpenFile(path string) error {
	return c.out.muxer.Open(path)
}

// CloseFile writes the index and closes the current file.
func (c *Capture) CloseFile() error {
	return c.out.muxer.Close()
}

// IsOpen reports if an output file is open.
func (c *Capture) IsOpen() bool {
	return c.out.muxer.IsOpen()
}

// Stats returns the capture counters.
func (c *Capture) Stats() Stats {
	return Stats{
		Lines:        c.sync.lines,
		NativeFrames: c.sync.frames,
		AudioDropped: c.audioDropped,
		Muxer:        c.out.muxer.Stats(),
	}
}
