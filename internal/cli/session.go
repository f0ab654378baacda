package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/assetgraph/internal/config"
	"github.com/roach88/assetgraph/internal/logging"
	"github.com/roach88/assetgraph/internal/store"
)

// session is what every database command needs: resolved configuration,
// a logger and an open store.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.DBDSN = opts.Database
	}
	if opts.Driver != "" {
		cfg.DBDriver = opts.Driver
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession opens the configured store. Failures are reported through f
// and returned as exit errors.
func openSession(cmd *cobra.Command, opts *RootOptions, f *OutputFormatter, extra ...store.Option) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	log, err := logging.NewWriter(cfg.LogLevel, cfg.LogFormat, f.ErrWriter)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	storeOpts := append([]store.Option{
		store.WithLogger(log),
		store.WithMaxRetries(cfg.MaxRetries),
		store.WithBatchTimeout(cfg.BatchTimeout),
	}, extra...)

	log.Debug("opening store", zap.String("driver", cfg.DBDriver))
	var st *store.Store
	switch cfg.DBDriver {
	case "postgres":
		st, err = store.OpenPostgres(commandContext(cmd), cfg.DBDSN, storeOpts...)
	default:
		st, err = store.Open(cfg.DBDSN, storeOpts...)
	}
	if err != nil {
		_ = f.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &session{cfg: cfg, log: log, store: st}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("error closing database", zap.Error(err))
	}
	_ = s.log.Sync()
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func describeTarget(project, key string) string {
	return fmt.Sprintf("%s/%s", project, key)
}
