package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/farm-survey-etl/internal/adapter/geojson"
	kafkaadapter "github.com/couchcryptid/farm-survey-etl/internal/adapter/kafka"
	"github.com/couchcryptid/farm-survey-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/farm-survey-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/farm-survey-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/farm-survey-etl/internal/config"
	"github.com/couchcryptid/farm-survey-etl/internal/domain"
	"github.com/couchcryptid/farm-survey-etl/internal/observability"
	"github.com/couchcryptid/farm-survey-etl/internal/pipeline"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type options struct {
	input   string
	output  string
	envFile string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		slog.Error("failed to load env file", "path", opts.envFile, "error", err)
		return exitError
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitError
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	stages := pipeline.Stages{
		Extractor: spreadsheet.NewReader(logger),
		Transformer: pipeline.NewTransformer(pipeline.Options{
			Bounds: cfg.Bounds,
			Text:   domain.TextOptions{RepairLatin1: cfg.RepairLatin1},
		}, geocoder, logger),
		Exporter: geojson.NewFileWriter(),
	}

	if cfg.PersistenceEnabled() {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			// The export does not depend on the database.
			metrics.SideChannelFailures.WithLabelValues("persist").Inc()
			logger.Warn("database unavailable, persistence skipped", "driver", cfg.DBDriver, "error", err)
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error("database close error", "error", err)
				}
			}()
			stages.Persister = store
		}
	}

	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		stages.Publisher = writer
	}

	p := pipeline.New(stages, logger, metrics, nil)
	_, runErr := p.Run(ctx, opts.input, opts.output)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return exitError
	}
	return exitOK
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "excel", "", "survey workbook (.xlsx) or CSV export to read (required)")
	fs.StringVar(&opts.output, "export", "", "GeoJSON file to write (required)")
	fs.StringVar(&opts.envFile, "env", ".env", "dotenv file with settings; ignored when missing")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), "usage: etl -excel <input> -export <output.geojson>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.input == "" || opts.output == "" {
		fs.Usage()
		return options{}, errors.New("both -excel and -export are required")
	}
	return opts, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	dsn := cfg.DatabaseURL
	if cfg.DBDriver == config.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	store, err := sqlstore.Open(ctx, cfg.DBDriver, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("persistence enabled", "driver", cfg.DBDriver)
	return store, nil
}
