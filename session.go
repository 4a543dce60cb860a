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

package avicap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"avicap/pkg/capture"
	"avicap/pkg/colormap"
	"avicap/pkg/log"
	"avicap/pkg/signal"
	"avicap/pkg/storage"
	"avicap/pkg/video/avi"
)

// Source provides native samples. ReadSample returns io.EOF after
// the last sample.
type Source interface {
	ReadSample() ([]byte, int16, error)
}

type generatorSource struct {
	*signal.Generator
}

func (g generatorSource) ReadSample() ([]byte, int16, error) {
	video, audio := g.Next()
	return video, audio, nil
}

// The context is checked once per this many samples.
const ctxCheckInterval = 4096

// Session feeds a source into a capture and names its output files.
type Session struct {
	capture *capture.Capture
	source  Source
	namer   *storage.Namer
	logger  *log.Logger

	// Zero means until the source ends or the context is canceled.
	maxSamples int64

	// Samples between stats logs.
	statsInterval int64

	file string
}

// SessionConfig everything needed to create a session.
type SessionConfig struct {
	Capture storage.CaptureConfig
	Display colormap.DisplayParameters
	Source  storage.SourceConfig

	// Seconds between stats logs, zero disables them.
	StatsInterval int

	// Open defaults to avi.CreateFile.
	Open avi.OpenFunc
}

// NewSession creates the capture and opens the source.
// The returned close function releases the source.
func NewSession(config SessionConfig, namer *storage.Namer, logger *log.Logger) (*Session, func() error, error) {
	codec, err := avi.ParseCodec(config.Capture.Codec)
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		namer:  namer,
		logger: logger,
	}

	ntsc := config.Capture.NTSC
	clock := config.Capture.ClockFrequency
	closeSource := func() error { return nil }

	if config.Source.Dump != "" {
		file, err := os.Open(config.Source.Dump)
		if err != nil {
			return nil, nil, fmt.Errorf("open dump: %w", err)
		}
		r, err := signal.NewReader(bufio.NewReader(file))
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("%v: %w", config.Source.Dump, err)
		}
		ntsc = r.Header().NTSC
		clock = int(r.Header().ClockFrequency)
		s.source = r
		closeSource = file.Close
	} else {
		pattern, err := signal.ParsePattern(config.Source.Pattern)
		if err != nil {
			return nil, nil, err
		}
		g := signal.NewGenerator(signal.GeneratorConfig{
			NTSC:      ntsc,
			Pattern:   pattern,
			Color:     config.Source.Color,
			ToneHz:    config.Source.ToneHz,
			ToneLevel: 8000,
		})
		if clock == 0 {
			clock = g.ClockFrequency()
		}
		s.source = generatorSource{g}
	}

	s.capture, err = capture.New(capture.Config{
		Codec:       codec,
		FrameRate:   config.Capture.FrameRate,
		SampleRate:  config.Capture.SampleRate,
		Display:     config.Display,
		Volume:      config.Capture.Volume,
		MaxFileSize: config.Capture.MaxFileSize,
		Open:        config.Open,
	}, (*sessionHooks)(s))
	if err != nil {
		closeSource()
		return nil, nil, fmt.Errorf("could not create capture: %w", err)
	}
	s.capture.SetNTSCMode(ntsc)
	if clock != 0 {
		s.capture.SetClockFrequency(clock)
	}

	clock = s.capture.ClockFrequency()
	s.maxSamples = int64(config.Source.Duration) * int64(clock)
	s.statsInterval = int64(config.StatsInterval) * int64(clock)

	return s, closeSource, nil
}

// Capture returns the session capture.
func (s *Session) Capture() *capture.Capture {
	return s.capture
}

// File returns the current output file.
func (s *Session) File() string {
	return s.file
}

// Run opens the first file and feeds samples until the source ends,
// the duration is reached or ctx is canceled. The file is always closed.
func (s *Session) Run(ctx context.Context) error {
	file, err := s.namer.Next()
	if err != nil {
		return fmt.Errorf("could not name output file: %w", err)
	}
	s.file = file
	if err := s.capture.OpenFile(file); err != nil {
		return fmt.Errorf("could not open output file: %w", err)
	}
	s.logger.Info().Src("capture").Session(file).Msgf(
		"recording %v fps, %v Hz", s.capture.FrameRate(), s.capture.SampleRate())

	err = s.feed(ctx)

	if err2 := s.capture.CloseFile(); err2 != nil && err == nil {
		err = err2
	}
	s.logStats()
	return err
}

func (s *Session) feed(ctx context.Context) error {
	for n := int64(0); s.maxSamples == 0 || n < s.maxSamples; n++ {
		if n%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil
		}
		if s.statsInterval > 0 && n > 0 && n%s.statsInterval == 0 {
			s.logStats()
		}
		video, audio, err := s.source.ReadSample()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read sample: %w", err)
		}
		s.capture.FeedSample(video, audio)
	}
	return nil
}

func (s *Session) logStats() {
	stats := s.capture.Stats()
	s.logger.Info().Src("capture").Session(s.file).Msgf(
		"lines: %v, native frames: %v, frames: %v, keyframes: %v, files: %v, audio dropped: %v",
		stats.Lines,
		stats.NativeFrames,
		stats.Muxer.Frames,
		stats.Muxer.Keyframes,
		stats.Muxer.Files,
		stats.AudioDropped,
	)
}

// sessionHooks routes capture callbacks to the logger and namer.
type sessionHooks Session

func (h *sessionHooks) Error(msg string) {
	h.logger.Error().Src("capture").Session(h.file).Msg(msg)
}

func (h *sessionHooks) NeedNewFile() string {
	file, err := h.namer.Next()
	if err != nil {
		h.logger.Error().Src("capture").Session(h.file).Msgf("could not start new file: %v", err)
		return ""
	}
	h.file = file
	return file
}
