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

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"avicap/pkg/colormap"
	"avicap/pkg/signal"
	"avicap/pkg/video/avi"

	"github.com/shirou/gopsutil/v3/disk"
	"gopkg.in/yaml.v2"
)

type statFunc func(path string) (*disk.UsageStat, error)

// Disk caches the usage of the file system holding dir.
type Disk struct {
	dir  string
	stat statFunc

	cache      DiskUsage
	lastUpdate time.Time
	cacheLock  sync.Mutex

	updateLock sync.Mutex
}

// NewDisk returns a disk usage cache for dir.
func NewDisk(dir string) *Disk {
	return &Disk{
		dir:  dir,
		stat: disk.Usage,
	}
}

// UsageCached returns cached value and its age.
func (d *Disk) UsageCached() (DiskUsage, time.Duration) {
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()

	return d.cache, time.Since(d.lastUpdate)
}

// Usage returns cached value if witin maxAge.
// Will update and return new value if the cached value is too old.
func (d *Disk) Usage(maxAge time.Duration) (DiskUsage, error) {
	maxTime := time.Now().Add(-maxAge)

	d.cacheLock.Lock()
	if d.lastUpdate.After(maxTime) {
		defer d.cacheLock.Unlock()
		return d.cache, nil
	}
	d.cacheLock.Unlock()

	// Cache is too old, acquire update lock and update it.
	d.updateLock.Lock()
	defer d.updateLock.Unlock()

	// Check if it was updated while we were waiting for the update lock.
	d.cacheLock.Lock()
	if d.lastUpdate.After(maxTime) {
		defer d.cacheLock.Unlock()
		return d.cache, nil
	}
	d.cacheLock.Unlock()

	stat, err := d.stat(d.dir)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("disk usage: %w", err)
	}
	usage := DiskUsage{
		Used:      int64(stat.Used),
		Free:      int64(stat.Free),
		Percent:   int(stat.UsedPercent),
		Formatted: formatDiskUsage(float64(stat.Used)),
	}

	d.cacheLock.Lock()
	d.cache = usage
	d.lastUpdate = time.Now()
	d.cacheLock.Unlock()

	return usage, nil
}

// DiskUsage in Bytes.
type DiskUsage struct {
	Used      int64
	Free      int64
	Percent   int
	Formatted string
}

const (
	kilobyte float64 = 1000
	megabyte         = kilobyte * 1000
	gigabyte         = megabyte * 1000
	terabyte         = gigabyte * 1000
)

func formatDiskUsage(used float64) string {
	switch {
	case used < 1000*megabyte:
		return fmt.Sprintf("%.0fMB", used/megabyte)
	case used < 10*gigabyte:
		return fmt.Sprintf("%.2fGB", used/gigabyte)
	case used < 100*gigabyte:
		return fmt.Sprintf("%.1fGB", used/gigabyte)
	case used < 1000*gigabyte:
		return fmt.Sprintf("%.0fGB", used/gigabyte)
	case used < 10*terabyte:
		return fmt.Sprintf("%.2fTB", used/terabyte)
	case used < 100*terabyte:
		return fmt.Sprintf("%.1fTB", used/terabyte)
	default:
		return fmt.Sprintf("%.0fTB", used/terabyte)
	}
}

// ErrNoSpace not enough free disk space for a new file.
var ErrNoSpace = errors.New("not enough free disk space")

// Namer generates output file names.
type Namer struct {
	dir     string
	disk    *Disk
	minFree int64
	now     func() time.Time

	count int
}

// NewNamer returns a namer for files in dir. New names are refused
// when less than minFree bytes are available, zero disables the check.
func NewNamer(dir string, disk *Disk, minFree int64) *Namer {
	return &Namer{
		dir:     dir,
		disk:    disk,
		minFree: minFree,
		now:     time.Now,
	}
}

// Next returns the next file name, "<dir>/2006-01-02_15-04-05_<n>.avi".
func (n *Namer) Next() (string, error) {
	if n.minFree > 0 {
		usage, err := n.disk.Usage(10 * time.Second)
		if err != nil {
			return "", err
		}
		if usage.Free < n.minFree {
			return "", fmt.Errorf("%w: %v", ErrNoSpace, formatDiskUsage(float64(usage.Free)))
		}
	}
	n.count++
	name := fmt.Sprintf("%s_%d.avi", n.now().Format("2006-01-02_15-04-05"), n.count)
	return filepath.Join(n.dir, name), nil
}

// Count returns the number of names generated.
func (n *Namer) Count() int {
	return n.count
}

// ConfigEnv stores system configuration.
type ConfigEnv struct {
	StorageDir string `yaml:"storageDir"`
	HomeDir    string `yaml:"homeDir"`
	ConfigDir  string `yaml:"-"`

	LogDB bool `yaml:"logDB"`

	// Seconds between status logs.
	StatusInterval int `yaml:"statusInterval"`

	// Megabytes required to start a new file.
	MinFreeSpace int64 `yaml:"minFreeSpace"`

	Capture CaptureConfig              `yaml:"capture"`
	Display colormap.DisplayParameters `yaml:"display"`
	Source  SourceConfig               `yaml:"source"`
}

// CaptureConfig output configuration.
type CaptureConfig struct {
	Codec          string  `yaml:"codec"`
	FrameRate      int     `yaml:"frameRate"`
	SampleRate     int     `yaml:"sampleRate"`
	NTSC           bool    `yaml:"ntsc"`
	ClockFrequency int     `yaml:"clockFrequency"`
	MaxFileSize    int64   `yaml:"maxFileSize"`
	Volume         float32 `yaml:"volume"`
}

// SourceConfig sample source. Samples are read from Dump if set,
// otherwise they are generated from Pattern.
type SourceConfig struct {
	Dump     string  `yaml:"dump"`
	Pattern  string  `yaml:"pattern"`
	Color    uint8   `yaml:"color"`
	ToneHz   float64 `yaml:"toneHz"`
	Duration int     `yaml:"duration"` // Seconds, zero runs until stopped.
}

// ErrPathNotAbsolute path is not absolute.
var ErrPathNotAbsolute = errors.New("path is not absolute")

// NewConfigEnv return new environment configuration.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	env := ConfigEnv{
		Display: colormap.DefaultDisplayParameters(),
	}

	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("unmarshal env.yaml: %w", err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if env.HomeDir == "" {
		env.HomeDir = filepath.Dir(env.ConfigDir)
	}
	if env.StorageDir == "" {
		env.StorageDir = filepath.Join(env.HomeDir, "storage")
	}
	if env.StatusInterval == 0 {
		env.StatusInterval = 10
	}
	if env.Capture.Codec == "" {
		env.Capture.Codec = avi.CodecRLE8.String()
	}
	if env.Source.Pattern == "" {
		env.Source.Pattern = signal.PatternBars.String()
	}

	if !filepath.IsAbs(env.HomeDir) {
		return nil, fmt.Errorf("homeDir '%v': %w", env.HomeDir, ErrPathNotAbsolute)
	}
	if !filepath.IsAbs(env.StorageDir) {
		return nil, fmt.Errorf("storageDir '%v': %w", env.StorageDir, ErrPathNotAbsolute)
	}
	if env.Source.Dump != "" && !filepath.IsAbs(env.Source.Dump) {
		return nil, fmt.Errorf("source.dump '%v': %w", env.Source.Dump, ErrPathNotAbsolute)
	}
	if _, err := avi.ParseCodec(env.Capture.Codec); err != nil {
		return nil, fmt.Errorf("capture.codec: %w", err)
	}
	if env.Capture.MaxFileSize < 0 || env.Capture.MaxFileSize > avi.DefaultMaxFileSize {
		return nil, fmt.Errorf("capture.maxFileSize %d: %w", env.Capture.MaxFileSize, avi.ErrFileSize)
	}
	if _, err := signal.ParsePattern(env.Source.Pattern); err != nil {
		return nil, fmt.Errorf("source.pattern: %w", err)
	}

	return &env, nil
}

// RecordingsDir return recordings directory.
func (env ConfigEnv) RecordingsDir() string {
	return filepath.Join(env.StorageDir, "recordings")
}

// LogDBPath returns the log database path.
func (env ConfigEnv) LogDBPath() string {
	return filepath.Join(env.StorageDir, "logs.db")
}

// PrepareEnvironment prepares directories.
func (env ConfigEnv) PrepareEnvironment() error {
	err := os.MkdirAll(env.RecordingsDir(), 0o700)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create recordings directory: %v: %w", env.StorageDir, err)
	}
	return nil
}
