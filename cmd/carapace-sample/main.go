// Command carapace-sample wires a small window application through carapace:
// a singleton logger, one request context per window and a transient widget.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xraph/carapace"
	"github.com/xraph/carapace/config"
	"github.com/xraph/carapace/debughttp"
	"github.com/xraph/carapace/host"
	"github.com/xraph/carapace/telemetry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("carapace-sample", pflag.ContinueOnError)
	configFile := fs.String("config", "carapace.yml", "config file")
	envFile := fs.String("env-file", ".env", "env file")
	windows := fs.Int("windows", 2, "number of windows to open")
	fs.Bool("validate-scopes", false, "reject captive dependencies")
	fs.Bool("validate-on-build", false, "build every call site at startup")
	fs.Bool("debug", false, "serve the diagnostics endpoint until interrupted")
	fs.String("debug-addr", "", "diagnostics listen address")
	fs.String("log-level", "", "log level")
	fs.String("log-format", "", "log format (json, console)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	bindings := map[string]string{
		"provider.validate_scopes":   "validate-scopes",
		"provider.validate_on_build": "validate-on-build",
		"debug.enabled":              "debug",
		"debug.addr":                 "debug-addr",
		"logging.level":              "log-level",
		"logging.format":             "log-format",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	cfg, err := config.Load(
		config.WithConfigFile(*configFile),
		config.WithEnvFile(*envFile),
		config.WithViper(v),
	)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	listener, err := telemetry.NewListener(meterProvider.Meter("carapace"))
	if err != nil {
		return err
	}

	opts := append(cfg.ProviderOptions(logger), carapace.WithListener(listener))
	provider, err := configureServices(logger).Build(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := host.NewWindowManager(provider, renderWindow, logger)
	for i := range *windows {
		if _, err := manager.Open(ctx, host.WindowConfig{
			Title:    fmt.Sprintf("window-%d", i+1),
			Width:    800,
			Height:   600,
			Centered: true,
		}); err != nil {
			return multierr.Combine(err, manager.CloseAll(), provider.Dispose())
		}
	}

	var serveErr error
	if cfg.Debug.Enabled {
		serveErr = serveDebug(ctx, cfg.Debug.Addr, provider, logger)
	}

	err = multierr.Combine(serveErr, manager.CloseAll(), provider.Dispose())
	reportMetrics(reader, logger)

	return err
}

// consoleWindow stands in for a native window.
type consoleWindow struct {
	title string
}

func (w *consoleWindow) Close() error {
	fmt.Printf("[%s] closed\n", w.title)
	return nil
}

func renderWindow(_ context.Context, scope *carapace.Scope, cfg host.WindowConfig) (host.Window, error) {
	for range 2 {
		widget, err := carapace.Resolve[*carapace.Lazy[*Widget]](scope)
		if err != nil {
			return nil, err
		}

		w, err := widget.Get()
		if err != nil {
			return nil, err
		}
		if err := w.Render(os.Stdout, cfg.Title); err != nil {
			return nil, err
		}
	}

	return &consoleWindow{title: cfg.Title}, nil
}

func serveDebug(ctx context.Context, addr string, provider *carapace.Provider, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           debughttp.NewRouter(provider),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("diagnostics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func reportMetrics(reader *sdkmetric.ManualReader, logger *zap.Logger) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		logger.Warn("collect metrics failed", zap.Error(err))
		return
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			logger.Info("metric", zap.String("name", m.Name), zap.Int64("value", total))
		}
	}
}
