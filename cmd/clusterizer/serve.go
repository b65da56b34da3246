package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/clusterizer/internal/retention"
	"github.com/hyperjump/clusterizer/internal/runner"
	"github.com/hyperjump/clusterizer/internal/server"
	"github.com/hyperjump/clusterizer/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API. The model artifacts are loaded before listening; a missing or
invalid artifact stops the command. Configured drop folders are watched and old runs
are purged on the retention schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Load eagerly so bad artifacts fail here rather than on the first request.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	info, err := components.Pipeline.Info(loadCtx)
	loadCancel()
	if err != nil {
		logger.Fatal("Failed to load model artifacts", zap.Error(err))
	}
	logger.Info("model ready",
		zap.Int("clusters", info.NClusters),
		zap.Int("features", info.Features),
		zap.Int("references", info.References),
		zap.String("reference_date", info.ReferenceDate))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []server.Option{
		server.WithStorage(components.Storage),
		server.WithClientIndex(components.ClientIndex),
	}

	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		run := components.Runner
		exts := cfg.Watch.Extensions
		watchSvc = watcher.New(cfg.Watch.Directories, exts,
			func(ctx context.Context, path string) {
				if _, err := run.ClusterFile(ctx, path, exts); err != nil {
					logger.Warn("watch cluster file failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
			watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
			watcher.WithIgnore(runner.IsOutputFile),
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		queued := watchSvc.SyncExisting()
		logger.Info("drop folder sync queued", zap.Strings("directories", watchSvc.Directories()), zap.Int("queued", queued))
		opts = append(opts, server.WithWatch(watchSvc))
	}

	if cfg.Storage.RetentionDays > 0 {
		sched, err := retention.New(components.Runner, cfg.Storage.RetentionDays, cfg.Storage.RetentionSchedule,
			retention.WithLogger(logger))
		if err != nil {
			logger.Fatal("Invalid retention schedule", zap.Error(err))
		}
		if err := sched.Start(); err != nil {
			logger.Fatal("Failed to start retention scheduler", zap.Error(err))
		}
		defer sched.Stop()
		opts = append(opts, server.WithRetention(sched))
	}

	srv := server.NewServer(components.Pipeline, components.Runner, cfg, logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}
