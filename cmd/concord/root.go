package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/concord/internal/config"
	"github.com/fyrsmithlabs/concord/internal/coordinator"
	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/logging"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/telemetry"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	output      string
	logLevel    string
	metricsAddr string
	stats       bool
}

// cliConfig is the file layout: every coordinator section plus the demo
// executors.
type cliConfig struct {
	coordinator.Config `koanf:",squash"`

	Executors []ExecutorSpec `koanf:"executors"`
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "concord",
		Short: "Coordinate executors under validation rules and an exploration policy",
		Long: `concord decomposes tasks, routes them to capable executors, validates every
result against a fixed set of principles and picks coordination strategies by
balancing goal-directed and exploratory work.

Configuration is read from ~/.config/concord/config.yaml (or --config) and
CONCORD_* environment variables, e.g. CONCORD_POLICY_TREND_WINDOW=20.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/concord/config.yaml)")
	pf.StringVarP(&flags.output, "output", "o", formatJSON, "output format: json or yaml")
	pf.StringVar(&flags.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address until interrupted")
	pf.BoolVar(&flags.stats, "stats", false, "print the statistics snapshot after the command")

	root.AddCommand(newRunCmd(flags), newDecideCmd(flags), newVersionCmd())
	return root
}

// app is the per-invocation state built from flags and config.
type app struct {
	flags  *globalFlags
	cfg    *cliConfig
	logger *logging.Logger
	tel    *telemetry.Telemetry
	coord  *coordinator.Coordinator
}

func loadConfig(flags *globalFlags) (*cliConfig, error) {
	cfg := &cliConfig{Config: *coordinator.DefaultConfig()}
	if err := config.Load(flags.configPath, cfg); err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		level, err := logging.LevelFromString(flags.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = level
	}
	if len(cfg.Executors) == 0 {
		cfg.Executors = DefaultExecutors()
	}
	return cfg, nil
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	if err := validateFormat(flags.output); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded, using no-op providers", zap.Error(tel.Err()))
	}

	coord, err := coordinator.New(&cfg.Config,
		coordinator.WithLogger(logger),
		coordinator.WithTelemetry(tel),
		coordinator.WithMetrics(metrics.NewMetrics()),
	)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	a := &app{flags: flags, cfg: cfg, logger: logger, tel: tel, coord: coord}
	if err := a.registerExecutors(); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) registerExecutors() error {
	for _, spec := range a.cfg.Executors {
		p, err := NewTemplatePerformer(spec)
		if err != nil {
			return err
		}
		var opts []executor.Option
		if spec.Class != "" {
			opts = append(opts, executor.WithClass(spec.Class))
		}
		e, err := a.coord.NewExecutor(spec.ID, spec.Capabilities, p, opts...)
		if err != nil {
			return fmt.Errorf("executor %q: %w", spec.ID, err)
		}
		if err := a.coord.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// finish prints statistics when asked and serves metrics when configured.
func (a *app) finish(cmd *cobra.Command) error {
	if a.flags.stats {
		if err := render(cmd.OutOrStdout(), a.flags.output, a.coord.Statistics()); err != nil {
			return err
		}
	}
	if a.flags.metricsAddr != "" {
		return a.serveMetrics(cmd.Context())
	}
	return nil
}

// newMetricsServer returns an echo instance exposing Prometheus metrics.
func newMetricsServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

func (a *app) serveMetrics(ctx context.Context) error {
	e := newMetricsServer()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(a.flags.metricsAddr) }()
	a.logger.Info(ctx, "serving metrics",
		zap.String("addr", a.flags.metricsAddr),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func (a *app) close(ctx context.Context) {
	a.logger.Debug(ctx, "shutting down")
	_ = a.logger.Sync()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = a.tel.Shutdown(shutdownCtx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "concord by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
