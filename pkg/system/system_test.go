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
	"testing"
	"time"

	"avicap/pkg/log"
	"avicap/pkg/storage"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"
)

func mockCPU(context.Context, time.Duration, bool) ([]float64, error) {
	return []float64{11}, nil
}

func mockRAM() (*mem.VirtualMemoryStat, error) {
	return &mem.VirtualMemoryStat{UsedPercent: 22}, nil
}

func mockDisk() (storage.DiskUsage, error) {
	return storage.DiskUsage{Percent: 33, Formatted: "1.00GB"}, nil
}

var errMock = errors.New("mock")

func newTestSystem(logger *log.Logger) *System {
	s := New(mockDisk, time.Millisecond, logger, nil)
	s.cpu = mockCPU
	s.ram = mockRAM
	return s
}

func TestUpdate(t *testing.T) {
	var updates []Status
	s := newTestSystem(nil)
	s.onUpdate = func(status Status) { updates = append(updates, status) }

	require.NoError(t, s.update(context.Background()))

	expected := Status{
		CPUUsage:           11,
		RAMUsage:           22,
		DiskUsage:          33,
		DiskUsageFormatted: "1.00GB",
	}
	require.Equal(t, expected, s.Status())
	require.Equal(t, []Status{expected}, updates)
	require.Equal(t, "cpu 11%, ram 22%, disk 33% (1.00GB)", expected.String())
}

func TestUpdateErrors(t *testing.T) {
	cases := map[string]func(s *System){
		"cpu": func(s *System) {
			s.cpu = func(context.Context, time.Duration, bool) ([]float64, error) {
				return nil, errMock
			}
		},
		"ram": func(s *System) {
			s.ram = func() (*mem.VirtualMemoryStat, error) { return nil, errMock }
		},
		"disk": func(s *System) {
			s.disk = func() (storage.DiskUsage, error) { return storage.DiskUsage{}, errMock }
		},
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestSystem(nil)
			modify(s)
			require.ErrorIs(t, s.update(context.Background()), errMock)
			require.Equal(t, Status{}, s.Status())
		})
	}
	t.Run("noCPU", func(t *testing.T) {
		s := newTestSystem(nil)
		s.cpu = func(context.Context, time.Duration, bool) ([]float64, error) {
			return nil, nil
		}
		require.ErrorIs(t, s.update(context.Background()), errNoCPU)
	})
}

func TestStatusLoop(t *testing.T) {
	logCtx, logCancel := context.WithCancel(context.Background())
	defer logCancel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.NewMockLogger()
	logger.Start(logCtx)
	feed, cancelFeed := logger.Subscribe()
	defer cancelFeed()

	s := newTestSystem(logger)
	s.ram = func() (*mem.VirtualMemoryStat, error) { return nil, errMock }

	stopped := make(chan struct{})
	go func() {
		s.StatusLoop(ctx)
		close(stopped)
	}()

	entry := <-feed
	require.Equal(t, log.LevelError, entry.Level)
	require.Equal(t, "system", entry.Src)
	require.Contains(t, entry.Msg, "could not get ram usage")

	cancel()
	// Drain until the loop notices the cancel.
	for done := false; !done; {
		select {
		case <-feed:
		case <-stopped:
			done = true
		}
	}
}
