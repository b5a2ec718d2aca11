package cli

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/livestore/internal/config"
	"github.com/roach88/livestore/internal/livestore"
)

// loadConfig reads --config (or the defaults) and applies --dir.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return config.Config{}, err
		}
	}
	if opts.Dir != "" {
		cfg.Store.Dir = opts.Dir
	}
	return cfg, config.Validate(cfg)
}

// setupLogging installs the default slog handler on w. --verbose forces
// debug.
func setupLogging(cfg config.Config, verbose bool, w io.Writer) {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	slog.SetDefault(slog.New(handler))
}

// session is an open store plus the registry its metrics live on.
type session struct {
	db  *livestore.DB
	reg *prometheus.Registry
	out *OutputFormatter
}

// openSession loads config, installs logging and opens the store. Failures
// are printed through the formatter and come back as ExitErrors.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeInvalidInput, "invalid configuration", err)
	}
	setupLogging(cfg, opts.Verbose, cmd.ErrOrStderr())

	reg := prometheus.NewRegistry()
	db, err := livestore.Open(cfg, livestore.WithRegisterer(reg))
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeStore, "failed to open store", err)
	}
	out.VerboseLog("opened store at %s", cfg.Store.Dir)
	return &session{db: db, reg: reg, out: out}, nil
}

func (s *session) close() {
	if err := s.db.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}
