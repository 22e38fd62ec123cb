package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/config"
	logpkg "github.com/yeleman/anam-desktop/internal/logger"
	"github.com/yeleman/anam-desktop/internal/service"
)

const serviceName = "anam-importer"

// Process exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	// exitPartial some data reached the case database but the run did not
	// complete; the operator must reconcile by hand
	exitPartial = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

type rootOptions struct {
	settings string
	logLevel string
}

// app lazily built collaborators shared by subcommands
type app struct {
	opts    rootOptions
	cfg     *config.Config
	log     *zap.Logger
	svc     *service.ImportService
	closers []func()
}

func (a *app) setup() error {
	cfg, err := config.Load(a.opts.settings)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if a.opts.logLevel != "" {
		cfg.Log.Level = a.opts.logLevel
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.Log.File != "" {
		teed, closeFile, err := logpkg.WithFile(log, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log = teed
		a.closers = append(a.closers, closeFile)
	}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	svc, err := service.NewImportService(cfg, log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		if err := svc.Close(); err != nil {
			log.Warn("Error closing service", zap.Error(err))
		}
	})

	a.cfg, a.log, a.svc = cfg, log, svc
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Import ANAM household surveys into the case database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.setup()
		},
	}

	defaultSettings := os.Getenv("ANAM_SETTINGS")
	if defaultSettings == "" {
		defaultSettings = "anam-desktop.settings"
	}
	cmd.PersistentFlags().StringVar(&a.opts.settings, "settings", defaultSettings, "Settings file (JSON or YAML)")
	cmd.PersistentFlags().StringVar(&a.opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newImportCmd(a),
		newCollectsCmd(a),
		newShowCmd(a),
		newArchiveCmd(a, true),
		newArchiveCmd(a, false),
		newCheckCmd(a),
		newProgressCmd(a),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()

	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}
