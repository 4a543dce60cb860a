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

package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"avicap/pkg/log"
	"avicap/pkg/storage"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status stores system status.
type Status struct {
	CPUUsage           int    `json:"cpuUsage"`
	RAMUsage           int    `json:"ramUsage"`
	DiskUsage          int    `json:"diskUsage"`
	DiskUsageFormatted string `json:"diskUsageFormatted"`
}

func (s Status) String() string {
	return fmt.Sprintf("cpu %d%%, ram %d%%, disk %d%% (%s)",
		s.CPUUsage, s.RAMUsage, s.DiskUsage, s.DiskUsageFormatted)
}

type (
	cpuFunc  func(context.Context, time.Duration, bool) ([]float64, error)
	ramFunc  func() (*mem.VirtualMemoryStat, error)
	diskFunc func() (storage.DiskUsage, error)
)

// System samples cpu, ram and disk usage.
type System struct {
	cpu  cpuFunc
	ram  ramFunc
	disk diskFunc

	status   Status
	duration time.Duration

	// Called after every update.
	onUpdate func(Status)

	log *log.Logger
	mu  sync.Mutex
}

// New returns a System that samples cpu usage over interval.
// onUpdate may be nil.
func New(disk diskFunc, interval time.Duration, log *log.Logger, onUpdate func(Status)) *System {
	return &System{
		cpu:  cpu.PercentWithContext,
		ram:  mem.VirtualMemory,
		disk: disk,

		duration: interval,
		onUpdate: onUpdate,

		log: log,
	}
}

func (s *System) update(ctx context.Context) error {
	cpuUsage, err := s.cpu(ctx, s.duration, false)
	if err != nil {
		return fmt.Errorf("could not get cpu usage %w", err)
	}
	if len(cpuUsage) == 0 {
		return fmt.Errorf("could not get cpu usage: %w", errNoCPU)
	}
	ramUsage, err := s.ram()
	if err != nil {
		return fmt.Errorf("could not get ram usage %w", err)
	}
	diskUsage, err := s.disk()
	if err != nil {
		return fmt.Errorf("could not get disk usage %w", err)
	}

	status := Status{
		CPUUsage:           int(cpuUsage[0]),
		RAMUsage:           int(ramUsage.UsedPercent),
		DiskUsage:          diskUsage.Percent,
		DiskUsageFormatted: diskUsage.Formatted,
	}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(status)
	}
	return nil
}

var errNoCPU = errors.New("no cpu")

// StatusLoop updates system status until context is canceled.
// Errors are logged and retried after one interval.
func (s *System) StatusLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.update(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Src("system").Msgf("could not update system status: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.duration):
			}
		}
	}
}

// Status returns cpu, ram and disk usage.
func (s *System) Status() Status {
	defer s.mu.Unlock()
	s.mu.Lock()
	return s.status
}
