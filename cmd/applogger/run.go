package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/BDisp/app-application-logger/internal/collector"
	"github.com/BDisp/app-application-logger/internal/config"
	"github.com/BDisp/app-application-logger/internal/database"
	"github.com/BDisp/app-application-logger/internal/device"
	"github.com/BDisp/app-application-logger/internal/logfile"
	"github.com/BDisp/app-application-logger/internal/logger"
	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/platform"
	"github.com/BDisp/app-application-logger/internal/queue"
	"github.com/BDisp/app-application-logger/internal/record"
	"github.com/BDisp/app-application-logger/internal/repository"
	"github.com/BDisp/app-application-logger/internal/server"
	"github.com/BDisp/app-application-logger/internal/service"
	"github.com/BDisp/app-application-logger/internal/tracker"
	"github.com/BDisp/app-application-logger/internal/tray"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var withTray bool

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start logging (default command)",
		RunE:  runMonitor,
	}
	cmd.Flags().BoolVar(&withTray, "tray", false, "Show a tray icon with start/stop and open log commands")
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Initialize platform
	platformInstance, err := platform.NewPlatform()
	if err != nil {
		return fmt.Errorf("failed to initialize platform: %w", err)
	}
	defer platformInstance.Close()

	deviceManager := device.NewDeviceManager(platformInstance)
	machine := deviceManager.MachineName(cfg.Machine)
	runID := deviceManager.NewRunID()

	log.Info("Starting application logger",
		zap.String("config_path", configPath),
		zap.String("machine", machine),
		zap.String("run_id", runID),
		zap.String("path", cfg.Path),
	)

	// History is a convenience; logging goes on without it
	var (
		journal service.Journal
		history server.HistoryReader
	)
	if cfg.History.Enabled {
		db, err := database.New(cfg.History.Path, log.Logger)
		if err != nil {
			log.Warn("History disabled, database unavailable", zap.Error(err))
		} else {
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("Failed to close database", zap.Error(err))
				}
			}()
			repo := repository.NewRecordRepository(db.DB)
			journal, history = repo, repo
		}
	}

	state := &models.MonitorState{}
	engine := collector.NewCommitEngine(
		state,
		logfile.NewWriter(),
		logfile.NewResolver(cfg.Path, machine),
		collector.Settings{
			MaxEntries: cfg.MaxQueueEntries,
			MaxAge:     cfg.MaxQueueTime,
			MaxPending: cfg.MaxPendingEntries,
		},
		nil,
		log.Logger,
	)

	monitor := service.NewMonitor(
		state,
		engine,
		record.NewFormatter(machine, nil),
		tracker.NewActivityTracker(platformInstance, cfg.IdleTime, log.Logger),
		tracker.NewWindowTracker(platformInstance, log.Logger),
		journal,
		service.MonitorConfig{CheckInterval: cfg.CheckInterval, RunID: runID},
		nil,
		log.Logger,
	)

	// Records queued by a previous process before it relaunched
	staging := queue.NewStaging(cfg.StagingFile, log.Logger)
	if _, err := monitor.ReplayStaging(staging); err != nil {
		log.Warn("Failed to replay staging file", zap.Error(err))
	}

	monitor.Start()

	var controlServer *http.Server
	if cfg.Control.Enabled {
		addr := fmt.Sprintf("localhost:%d", cfg.Control.Port)
		controlServer = &http.Server{
			Addr:         addr,
			Handler:      server.NewControlServer(monitor, history, log.Logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Info("Starting control API", zap.String("address", addr))
			if err := controlServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Control API error", zap.Error(err))
			}
		}()
	}

	if watcher, err := config.NewWatcher(configPath, log.Logger); err != nil {
		log.Warn("Config changes will not be reported", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	// Wait for a signal, or for Exit in the tray
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(quit)

	sig := waitForExit(quit, platformInstance, monitor, log)

	if controlServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := controlServer.Shutdown(ctx); err != nil {
			log.Warn("Control API shutdown error", zap.Error(err))
		}
	}

	if sig == syscall.SIGHUP {
		if err := monitor.Handoff(staging); err != nil {
			log.Error("Handoff failed, stopping instead", zap.Error(err))
			monitor.Stop()
			return nil
		}
		return relaunch(log)
	}

	monitor.Stop()
	log.Info("Application logger stopped")
	return nil
}

// waitForExit blocks until a signal arrives or, in tray mode, Exit is
// chosen. It returns the signal, or nil for a tray exit.
func waitForExit(quit chan os.Signal, opener tray.Opener, monitor *service.Monitor, log *logger.Logger) os.Signal {
	if !withTray {
		sig := <-quit
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
		return sig
	}

	trayUI := tray.NewTray(monitor, opener, log.Logger)
	received := make(chan os.Signal, 1)
	go func() {
		sig, ok := <-quit
		if ok {
			received <- sig
		}
		trayUI.Close()
	}()
	trayUI.Run(nil)

	select {
	case sig := <-received:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
		return sig
	default:
		return nil
	}
}

// relaunch starts a fresh copy of this process with the same arguments.
// The new process replays the staging file on start.
func relaunch(log *logger.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable: %w", err)
	}

	child := exec.Command(exe, os.Args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to relaunch: %w", err)
	}

	log.Info("Relaunched", zap.Int("pid", child.Process.Pid))
	return child.Process.Release()
}
