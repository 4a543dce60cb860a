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
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"avicap/pkg/log"
	"avicap/pkg/signal"
	"avicap/pkg/storage"
	"avicap/pkg/video/avi"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*log.Logger, <-chan log.Log) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := log.NewMockLogger()
	logger.Start(ctx)

	// Buffered copy of the feed so logging never blocks the test.
	feed, cancelFeed := logger.Subscribe()
	t.Cleanup(cancelFeed)
	logs := make(chan log.Log, 1000)
	go func() {
		for l := range feed {
			select {
			case logs <- l:
			default:
			}
		}
	}()
	return logger, logs
}

func drain(logs <-chan log.Log) []log.Log {
	var out []log.Log
	for {
		select {
		case l := <-logs:
			out = append(out, l)
		default:
			return out
		}
	}
}

func listAVI(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.avi"))
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func readAVI(t *testing.T, path string) *avi.Info {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	stat, err := file.Stat()
	require.NoError(t, err)

	info, err := avi.Read(file, stat.Size())
	require.NoError(t, err)
	require.NoError(t, info.Verify())
	return info
}

func TestSessionGenerator(t *testing.T) {
	dir := t.TempDir()
	logger, logs := newTestLogger(t)
	namer := storage.NewNamer(dir, storage.NewDisk(dir), 0)

	s, closeSource, err := NewSession(SessionConfig{
		Capture: storage.CaptureConfig{Codec: "rle8"},
		Source:  storage.SourceConfig{Pattern: "bars", Duration: 1},
	}, namer, logger)
	require.NoError(t, err)
	defer closeSource()

	require.Equal(t, signal.SamplesPerLine*signal.PALLinesPerField*signal.PALFieldRate,
		s.Capture().ClockFrequency())
	require.NoError(t, s.Run(context.Background()))

	files := listAVI(t, dir)
	require.Len(t, files, 1)
	require.Equal(t, files[0], s.File())

	info := readAVI(t, files[0])
	require.GreaterOrEqual(t, info.TotalFrames, uint32(45))
	require.LessOrEqual(t, info.TotalFrames, uint32(50))

	var msgs []string
	for _, l := range drain(logs) {
		require.Equal(t, "capture", l.Src)
		require.Equal(t, files[0], l.Session)
		msgs = append(msgs, l.Msg)
	}
	require.NotEmpty(t, msgs)
}

func TestSessionRollover(t *testing.T) {
	dir := t.TempDir()
	logger, logs := newTestLogger(t)
	namer := storage.NewNamer(dir, storage.NewDisk(dir), 0)

	s, closeSource, err := NewSession(SessionConfig{
		Capture: storage.CaptureConfig{Codec: "rle8", MaxFileSize: 60000},
		Source:  storage.SourceConfig{Pattern: "solid", Color: 0x45, Duration: 1},
	}, namer, logger)
	require.NoError(t, err)
	defer closeSource()

	require.NoError(t, s.Run(context.Background()))

	files := listAVI(t, dir)
	require.GreaterOrEqual(t, len(files), 2)
	require.Equal(t, len(files), namer.Count())
	for _, file := range files {
		readAVI(t, file)
	}

	rollovers := 0
	require.Eventually(t, func() bool {
		for _, l := range drain(logs) {
			if l.Level == log.LevelError && l.Msg == avi.ErrTooLarge {
				rollovers++
			}
		}
		return rollovers == len(files)-1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionDump(t *testing.T) {
	dir := t.TempDir()
	dumpPath := filepath.Join(dir, "in.sig")

	g := signal.NewGenerator(signal.GeneratorConfig{NTSC: true, Pattern: signal.PatternRamp})
	file, err := os.Create(dumpPath)
	require.NoError(t, err)
	w, err := signal.NewWriter(file, signal.Header{NTSC: true, ClockFrequency: uint32(g.ClockFrequency())})
	require.NoError(t, err)
	for i := 0; i < g.SamplesPerField()*30; i++ {
		require.NoError(t, w.WriteSample(g.Next()))
	}
	require.NoError(t, w.Close())
	require.NoError(t, file.Close())

	logger, _ := newTestLogger(t)
	namer := storage.NewNamer(dir, storage.NewDisk(dir), 0)
	s, closeSource, err := NewSession(SessionConfig{
		Capture: storage.CaptureConfig{Codec: "yv12"},
		Source:  storage.SourceConfig{Dump: dumpPath},
	}, namer, logger)
	require.NoError(t, err)
	defer closeSource()

	require.True(t, s.Capture().NTSCMode())
	require.Equal(t, g.ClockFrequency(), s.Capture().ClockFrequency())
	require.NoError(t, s.Run(context.Background()))

	files := listAVI(t, dir)
	require.Len(t, files, 1)
	info := readAVI(t, files[0])
	require.GreaterOrEqual(t, info.TotalFrames, uint32(20))
	require.LessOrEqual(t, info.TotalFrames, uint32(25))
}

func TestSessionCanceled(t *testing.T) {
	dir := t.TempDir()
	logger, _ := newTestLogger(t)
	namer := storage.NewNamer(dir, storage.NewDisk(dir), 0)

	s, closeSource, err := NewSession(SessionConfig{
		Capture: storage.CaptureConfig{Codec: "rle8"},
		Source:  storage.SourceConfig{Pattern: "bars"},
	}, namer, logger)
	require.NoError(t, err)
	defer closeSource()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	files := listAVI(t, dir)
	require.Len(t, files, 1)
	require.Zero(t, readAVI(t, files[0]).TotalFrames)
}

func TestNewSessionErrors(t *testing.T) {
	logger, _ := newTestLogger(t)
	namer := storage.NewNamer(t.TempDir(), nil, 0)

	cases := map[string]SessionConfig{
		"codec": {
			Capture: storage.CaptureConfig{Codec: "x"},
			Source:  storage.SourceConfig{Pattern: "bars"},
		},
		"pattern": {
			Capture: storage.CaptureConfig{Codec: "rle8"},
			Source:  storage.SourceConfig{Pattern: "x"},
		},
		"dump": {
			Capture: storage.CaptureConfig{Codec: "rle8"},
			Source:  storage.SourceConfig{Dump: "/nonexistent/in.sig"},
		},
		"sampleRate": {
			Capture: storage.CaptureConfig{Codec: "rle8", SampleRate: 100},
			Source:  storage.SourceConfig{Pattern: "bars"},
		},
	}
	for name, config := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := NewSession(config, namer, logger)
			require.Error(t, err)
		})
	}
}

func TestApp(t *testing.T) {
	storageDir := t.TempDir()
	env, err := storage.NewConfigEnv("/c/env.yaml", []byte(`
storageDir: `+storageDir+`
logDB: true
source:
  duration: 1
`))
	require.NoError(t, err)

	wg := &sync.WaitGroup{}
	app, err := newAppFromEnv(*env, wg)
	require.NoError(t, err)

	logCtx, logCancel := context.WithCancel(context.Background())
	app.startLogger(logCtx)

	require.NoError(t, app.run(context.Background()))

	files := listAVI(t, env.RecordingsDir())
	require.Len(t, files, 1)
	readAVI(t, files[0])

	logCancel()
	wg.Wait()
	_, err = os.Stat(env.LogDBPath())
	require.NoError(t, err)
}
