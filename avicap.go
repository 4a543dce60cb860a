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

// Package avicap records a composite video sample stream to AVI files.
package avicap

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"avicap/pkg/log"
	"avicap/pkg/storage"
	"avicap/pkg/system"

	"golang.org/x/sync/errgroup"
)

// Run .
func Run() error {
	envFlag := flag.String("env", "", "path to env.yaml")
	flag.Parse()

	if *envFlag == "" {
		flag.Usage()
		return nil
	}

	envPath, err := filepath.Abs(*envFlag)
	if err != nil {
		return fmt.Errorf("could not get absolute path of env.yaml: %w", err)
	}

	wg := &sync.WaitGroup{}
	app, err := newApp(envPath, wg)
	if err != nil {
		return err
	}

	logCtx, logCancel := context.WithCancel(context.Background())
	defer logCancel()
	app.startLogger(logCtx)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fatal := make(chan error, 1)
	go func() { fatal <- app.run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-fatal:
	case signal := <-stop:
		app.Logger.Info().Msg("") // New line.
		app.Logger.Info().Src("app").Msgf("received %v, stopping", signal)
		cancel()
		err = <-fatal
	}
	if err != nil {
		app.Logger.Error().Src("app").Msgf("fatal error: %v", err)
	}
	app.Logger.Info().Src("app").Msg("stopped")

	// Let the last logs reach stdout and the database.
	time.Sleep(10 * time.Millisecond)
	logCancel()
	wg.Wait()

	return err
}

// App is the main application struct.
type App struct {
	WG     *sync.WaitGroup
	Logger *log.Logger
	Env    storage.ConfigEnv

	logDB   *log.DB
	disk    *storage.Disk
	namer   *storage.Namer
	session *Session
	close   func() error
}

func newApp(envPath string, wg *sync.WaitGroup) (*App, error) {
	envYAML, err := os.ReadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("could not read env.yaml: %w", err)
	}

	env, err := storage.NewConfigEnv(envPath, envYAML)
	if err != nil {
		return nil, fmt.Errorf("could not get environment config: %w", err)
	}

	return newAppFromEnv(*env, wg)
}

func newAppFromEnv(env storage.ConfigEnv, wg *sync.WaitGroup) (*App, error) {
	logger := log.NewLogger(wg)

	var logDB *log.DB
	if env.LogDB {
		logDB = log.NewDB(env.LogDBPath(), wg)
	}

	disk := storage.NewDisk(env.StorageDir)
	namer := storage.NewNamer(env.RecordingsDir(), disk, env.MinFreeSpace*int64(1e6))

	session, closeSource, err := NewSession(SessionConfig{
		Capture:       env.Capture,
		Display:       env.Display,
		Source:        env.Source,
		StatsInterval: env.StatusInterval,
	}, namer, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create session: %w", err)
	}

	return &App{
		WG:     wg,
		Logger: logger,
		Env:    env,

		logDB:   logDB,
		disk:    disk,
		namer:   namer,
		session: session,
		close:   closeSource,
	}, nil
}

func (app *App) startLogger(ctx context.Context) {
	app.Logger.Start(ctx)
	go app.Logger.LogToStdout(ctx)

	if app.logDB == nil {
		time.Sleep(10 * time.Millisecond)
		return
	}
	if err := app.logDB.Init(ctx); err != nil {
		// Continue even if log database is corrupt.
		time.Sleep(10 * time.Millisecond)
		app.Logger.Error().Src("app").Msgf("could not initialize log database: %v", err)
		return
	}
	go app.logDB.SaveLogs(ctx, app.Logger)
	time.Sleep(10 * time.Millisecond)
}

// run records until the session ends or ctx is canceled.
func (app *App) run(ctx context.Context) error {
	defer app.close() //nolint:errcheck

	app.Logger.Info().Src("app").Msg("starting..")

	if err := app.Env.PrepareEnvironment(); err != nil {
		return fmt.Errorf("could not prepare environment: %w", err)
	}

	statusInterval := time.Duration(app.Env.StatusInterval) * time.Second
	sys := system.New(
		func() (storage.DiskUsage, error) { return app.disk.Usage(statusInterval) },
		statusInterval,
		app.Logger,
		func(status system.Status) {
			app.Logger.Info().Src("system").Msg(status.String())
		},
	)

	g, ctx := errgroup.WithContext(ctx)
	statusCtx, stopStatus := context.WithCancel(ctx)

	g.Go(func() error {
		defer stopStatus()
		return app.session.Run(ctx)
	})
	g.Go(func() error {
		sys.StatusLoop(statusCtx)
		return nil
	})
	return g.Wait()
}
