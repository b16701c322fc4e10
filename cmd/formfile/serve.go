package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vango-dev/formfile/internal/config"
	"github.com/vango-dev/formfile/internal/errors"
	"github.com/vango-dev/formfile/pkg/upload"
)

// shutdownTimeout bounds how long in-flight uploads may finish.
const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	configPath  string
	addr        string
	tempDir     string
	destDir     string
	maxFileSize string
	maxBodySize string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload server",
		Long: `Start an HTTP server that accepts multipart uploads.

Routes:
  POST /upload/{field}  store every file sent under field
  POST /echo/{field}    stream the first file of field back
  GET  /health          liveness
  GET  /metrics         Prometheus metrics (see metricsPath)

Settings come from formfile.json (if present) and are overridden by flags.

Examples:
  formfile serve
  formfile serve --addr=:9000 --max-file-size=2MB
  formfile serve --config=/etc/formfile/formfile.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			success(out, "Listening on %s", cfg.Addr)
			info(out, "temp dir:  %s", cfg.TempDir)
			info(out, "dest dir:  %s", cfg.DestDir)
			info(out, "max file:  %s", sizeLabel(cfg.MaxFileSize))
			info(out, "max body:  %s", sizeLabel(cfg.MaxBodySize))

			return runServe(ctx, cfg, slog.Default())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to formfile.json (default ./formfile.json if present)")
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&opts.tempDir, "temp-dir", "", "Directory for in-flight uploads")
	cmd.Flags().StringVar(&opts.destDir, "dest-dir", "", "Directory for stored uploads")
	cmd.Flags().StringVar(&opts.maxFileSize, "max-file-size", "", "Largest accepted file (e.g., 10MB = 10,000,000 bytes, 10MiB, 0 for no limit)")
	cmd.Flags().StringVar(&opts.maxBodySize, "max-body-size", "", "Largest accepted request body (e.g., 64MB, 64MiB, 0 for no limit)")

	return cmd
}

// load reads the config file, applies flag overrides and validates.
func (o *serveOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	if o.addr != "" {
		cfg.Addr = o.addr
	}
	if o.tempDir != "" {
		cfg.TempDir = o.tempDir
	}
	if o.destDir != "" {
		cfg.DestDir = o.destDir
	}
	if o.maxFileSize != "" {
		if cfg.MaxFileSize, err = parseSize("max-file-size", o.maxFileSize); err != nil {
			return nil, err
		}
	}
	if o.maxBodySize != "" {
		if cfg.MaxBodySize, err = parseSize("max-body-size", o.maxBodySize); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSize(flag, v string) (int64, error) {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, errors.New("E102").
			WithDetail("--" + flag + ": " + err.Error()).
			WithSuggestion("Use a size like 512KB, 10MB or 0").
			Wrap(err)
	}
	return int64(n), nil
}

// sizeLabel prints n in the decimal units parseSize reads, so 10MB on the
// command line shows as 10 MB.
func sizeLabel(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.Bytes(uint64(n))
}

// runServe serves until ctx is cancelled, then drains in-flight requests.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger = logger.With("component", "server")

	store, err := upload.NewTempStore(afero.NewOsFs(), cfg.TempDir)
	if err != nil {
		return errors.New("E120").WithDetail(cfg.TempDir + ": " + err.Error()).Wrap(err)
	}
	if err := os.MkdirAll(cfg.DestDir, 0o755); err != nil {
		return errors.New("E121").WithDetail(cfg.DestDir + ": " + err.Error()).Wrap(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &server{
		store:       store,
		uploadCfg:   cfg.UploadConfig(),
		destDir:     cfg.DestDir,
		metricsPath: cfg.MetricsPath,
		gatherer:    registry,
		metrics:     upload.NewMetrics(upload.WithRegistry(registry)),
		logger:      logger,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweepLoop(ctx, store, cfg.SweepEvery(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.New("E122").WithDetail(err.Error()).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.New("E122").WithDetail("shutdown: " + err.Error()).Wrap(err)
	}
	return nil
}

// sweepLoop removes abandoned temp files every interval. Files younger
// than two intervals are kept.
func sweepLoop(ctx context.Context, store *upload.TempStore, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Sweep(2 * interval); err != nil {
				logger.Warn("sweep temp dir", "dir", store.Dir(), "error", err)
			}
		}
	}
}
