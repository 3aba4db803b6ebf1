package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wavepulse/wavepulse/internal/backup"
	"github.com/wavepulse/wavepulse/internal/config"
	"github.com/wavepulse/wavepulse/internal/ledger"
	"github.com/wavepulse/wavepulse/internal/lifecycle"
	"github.com/wavepulse/wavepulse/internal/logging"
	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/server"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wavepulse",
	Short: "WavePulse - scheduled radio stream recording and analysis pipeline",
	Long:  "WavePulse records live internet radio streams on a weekly timetable, hands segments to transcription and classification, and archives the durable store nightly.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full recording pipeline",
	Long:  "Start the scheduler, recorders, listeners, and status server, cycling through the configured daily repetitions.",
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it).
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

// newRunState builds the configured run-state store.
func newRunState() runstate.Store {
	if cfg.RunStateBackend == config.RunStateRedis {
		return runstate.NewRedisStore(runstate.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	}
	return runstate.NewFileStore(cfg.RunStateFile)
}

// newBackupTarget builds the configured archive target, or nil when backup
// is disabled.
func newBackupTarget(ctx context.Context) (backup.Target, error) {
	if !cfg.BackupEnabled {
		return nil, nil
	}
	switch cfg.BackupBackend {
	case config.BackupS3:
		return backup.NewS3Target(ctx, backup.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
	default:
		return backup.NewFTPTarget(backup.FTPConfig{
			Host:      cfg.FTPHost,
			Port:      cfg.FTPPort,
			Username:  cfg.FTPUsername,
			Password:  cfg.FTPPassword,
			RemoteDir: cfg.FTPRemoteDir,
		}, logger), nil
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("WavePulse starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	run := newRunState()

	store, err := ledger.Open(filepath.Join(cfg.DataPath(), "wavepulse.db"), logger)
	if err != nil {
		return err
	}

	pipe, err := newPipeline(cfg, run, store, logger)
	if err != nil {
		return err
	}

	// The status server outlives the daily cycles.
	var slots server.Slots
	if pipe.scheduler != nil {
		slots = pipe.scheduler
	}
	srv := server.New(run, slots, store, logger)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
		if err := srv.Start(ctx, addr); err != nil {
			logger.Error().Err(err).Msg("status server stopped")
		}
	}()

	target, err := newBackupTarget(ctx)
	if err != nil {
		return fmt.Errorf("initialize backup target: %w", err)
	}
	var backupFn func(context.Context) error
	if target != nil {
		svc := backup.NewService(target, cfg.Retries, cfg.RetryWait, logger)
		dir := cfg.RecordingsPath()
		backupFn = func(ctx context.Context) error { return svc.Run(ctx, dir) }
	}

	ctrl, err := lifecycle.New(run, pipe, lifecycle.Options{
		Repetitions:  cfg.Repetitions,
		ShutdownTime: cfg.ShutdownTime,
		RestartTime:  cfg.RestartTime,
		DrainWait:    cfg.DrainWait,
		Location:     cfg.Location(),
		Backup:       backupFn,
	}, logger)
	if err != nil {
		return err
	}

	err = ctrl.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	logger.Info().Msg("WavePulse stopped")
	return err
}
