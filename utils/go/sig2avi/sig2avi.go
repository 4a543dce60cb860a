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

// Package sig2avi is a CLI utility that generates sample dumps and
// converts them into AVI files.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"avicap/pkg/capture"
	"avicap/pkg/signal"
	"avicap/pkg/video/avi"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sig2avi",
		Short:         "Generate sample dumps and convert them into AVI files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newGenCmd(), newConvertCmd(), newInfoCmd())
	return rootCmd
}

type genOptions struct {
	ntsc    bool
	pattern string
	color   uint8
	toneHz  float64
	seconds int
}

func newGenCmd() *cobra.Command {
	var opts genOptions
	cmd := &cobra.Command{
		Use:   "gen <out.sig>",
		Short: "Write a generated test signal to a dump file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := gen(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %v samples to %v\n", n, args[0])
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.ntsc, "ntsc", false, "NTSC timing")
	flags.StringVar(&opts.pattern, "pattern", "bars", "bars, solid, gradient or ramp")
	flags.Uint8Var(&opts.color, "color", 0x45, "solid pattern color")
	flags.Float64Var(&opts.toneHz, "tone", 1000, "audio tone frequency, 0 for silence")
	flags.IntVar(&opts.seconds, "seconds", 2, "duration")
	return cmd
}

func gen(path string, opts genOptions) (int64, error) {
	pattern, err := signal.ParsePattern(opts.pattern)
	if err != nil {
		return 0, err
	}
	g := signal.NewGenerator(signal.GeneratorConfig{
		NTSC:      opts.ntsc,
		Pattern:   pattern,
		Color:     opts.color,
		ToneHz:    opts.toneHz,
		ToneLevel: 8000,
	})

	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	w, err := signal.NewWriter(buf, signal.Header{
		NTSC:           opts.ntsc,
		ClockFrequency: uint32(g.ClockFrequency()),
	})
	if err != nil {
		return 0, err
	}

	total := int64(opts.seconds) * int64(g.ClockFrequency())
	for i := int64(0); i < total; i++ {
		if err := w.WriteSample(g.Next()); err != nil {
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	if err := buf.Flush(); err != nil {
		return 0, err
	}
	return w.Samples(), file.Close()
}

type convertOptions struct {
	codec       string
	frameRate   int
	maxFileSize int64
}

func newConvertCmd() *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert <file.sig|dir>",
		Short: "Convert dump files into AVI files",
		Long: "Convert a dump file, or every dump file in a directory " +
			"that has no AVI file yet, next to the input.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertPath(args[0], opts, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.codec, "codec", "rle8", "rle8 or yv12")
	flags.IntVar(&opts.frameRate, "fps", capture.DefaultFrameRate, "output frame rate")
	flags.Int64Var(&opts.maxFileSize, "max-size", 0, "roll over to a new file at this size")
	return cmd
}

func findDumps(dir string) ([]string, error) {
	var dumps []string
	walkFunc := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%v %w", path, err)
		}
		if d.IsDir() || filepath.Ext(path) != ".sig" {
			return nil
		}
		_, err = os.Stat(aviPath(path, 0))
		if !errors.Is(err, os.ErrNotExist) {
			return nil
		}
		dumps = append(dumps, path)
		return nil
	}
	if err := filepath.WalkDir(dir, walkFunc); err != nil {
		return nil, err
	}
	return dumps, nil
}

type result struct {
	dump  string
	files []string
	err   error
}

func convertPath(path string, opts convertOptions, out io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	dumps := []string{path}
	if info.IsDir() {
		if dumps, err = findDumps(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "Found %v new dumps.\n", len(dumps))
	}

	chResults := make(chan result, len(dumps))
	for _, dump := range dumps {
		go func(dump string) {
			files, err := convert(dump, opts)
			chResults <- result{dump: dump, files: files, err: err}
		}(dump)
	}

	var failed int
	for range dumps {
		res := <-chResults
		if res.err != nil {
			failed++
			fmt.Fprintf(out, "%v: %v\n", res.dump, res.err)
			continue
		}
		fmt.Fprintf(out, "%v -> %v\n", res.dump, strings.Join(res.files, ", "))
	}
	if failed != 0 {
		return fmt.Errorf("%w: %v of %v", errConvert, failed, len(dumps))
	}
	return nil
}

var errConvert = errors.New("conversion failed")

// aviPath "a.sig" -> "a.avi", "a_1.avi", ...
func aviPath(dump string, n int) string {
	base := strings.TrimSuffix(dump, filepath.Ext(dump))
	if n == 0 {
		return base + ".avi"
	}
	return fmt.Sprintf("%s_%d.avi", base, n)
}

// convertHooks collects errors and names rollover files.
type convertHooks struct {
	dump   string
	files  []string
	errors []string
}

func (h *convertHooks) Error(msg string) {
	if msg != avi.ErrTooLarge {
		h.errors = append(h.errors, msg)
	}
}

func (h *convertHooks) NeedNewFile() string {
	if len(h.errors) != 0 {
		return ""
	}
	name := aviPath(h.dump, len(h.files))
	h.files = append(h.files, name)
	return name
}

func convert(dump string, opts convertOptions) ([]string, error) {
	codec, err := avi.ParseCodec(opts.codec)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(dump)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, err := signal.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, err
	}

	hooks := &convertHooks{dump: dump}
	c, err := capture.New(capture.Config{
		Codec:       codec,
		FrameRate:   opts.frameRate,
		MaxFileSize: opts.maxFileSize,
	}, hooks)
	if err != nil {
		return nil, err
	}
	c.SetNTSCMode(r.Header().NTSC)
	c.SetClockFrequency(int(r.Header().ClockFrequency))

	if err := c.OpenFile(hooks.NeedNewFile()); err != nil {
		return nil, err
	}
	for {
		video, audio, err := r.ReadSample()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.CloseFile() //nolint:errcheck
			return hooks.files, err
		}
		c.FeedSample(video, audio)
	}
	if err := c.CloseFile(); err != nil {
		return hooks.files, err
	}
	if len(hooks.errors) != 0 {
		return hooks.files, fmt.Errorf("%w: %v", errConvert, hooks.errors[0])
	}
	return hooks.files, nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.avi>",
		Short: "Print the header and chunk summary of an AVI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printInfo(args[0], cmd.OutOrStdout())
		},
	}
}

func printInfo(path string, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}
	info, err := avi.Read(file, stat.Size())
	if err != nil {
		return err
	}
	compression, bitCount, err := info.VideoFormat()
	if err != nil {
		return err
	}

	var keyframes, audioBytes int
	for _, c := range info.Chunks {
		switch {
		case c.ID == "00dc" && c.Size > 0:
			keyframes++
		case c.ID == "01wb":
			audioBytes += int(c.Size)
		}
	}

	fmt.Fprintf(out, "size:        %v\n", stat.Size())
	fmt.Fprintf(out, "video:       %vx%v %v %v bit\n", info.Width, info.Height, compression, bitCount)
	fmt.Fprintf(out, "frame time:  %v us\n", info.MicroSecPerFrame)
	fmt.Fprintf(out, "frames:      %v\n", info.TotalFrames)
	fmt.Fprintf(out, "keyframes:   %v\n", keyframes)
	fmt.Fprintf(out, "audio bytes: %v\n", audioBytes)
	if err := info.Verify(); err != nil {
		fmt.Fprintf(out, "index:       %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "index:       ok\n")
	return nil
}
