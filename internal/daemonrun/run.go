package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"reelsmith/internal/casting"
	"reelsmith/internal/compose"
	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/preflight"
	"reelsmith/internal/project"
	"reelsmith/internal/script"
	"reelsmith/internal/synthesis"
	"reelsmith/internal/upload"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the reelsmith daemon runtime loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "reelsmith.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	results := preflight.RunAll(signalCtx, cfg)
	logPreflight(logger, results)
	if !preflight.Passed(results) {
		return fmt.Errorf("preflight checks failed; resolve the reported problems and restart")
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "reelsmithd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := project.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer store.Close()

	mgr := pipeline.NewManager(cfg, store, logger)
	registerStages(mgr, cfg, logger)

	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and run database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelsmith daemon shutting down")
	return nil
}

func registerStages(mgr *pipeline.Manager, cfg *config.Config, logger *slog.Logger) {
	if mgr == nil || cfg == nil {
		return
	}
	mgr.ConfigureStages(pipeline.StageSet{
		Script:    script.NewGenerator(cfg, logger),
		Casting:   casting.NewAssigner(cfg, logger),
		Synthesis: synthesis.NewSynthesizer(cfg, logger),
		Compose:   compose.NewComposer(cfg, logger),
		Upload:    upload.NewUploader(cfg, logger),
	})
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, result := range results {
		attrs := []any{
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		}
		switch {
		case result.Passed:
			logger.Info("preflight check passed", attrs...)
		case result.Optional:
			logger.Warn("optional preflight check failed", attrs...)
		default:
			logger.Error("preflight check failed", attrs...)
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
