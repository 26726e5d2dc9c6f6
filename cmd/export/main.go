// Command export writes one CSV file per UTC day of air-quality measurements,
// uploads each to S3, and exits 0 when every day succeeded.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/aq-export-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aq-export-service/internal/adapter/kafka"
	"github.com/couchcryptid/aq-export-service/internal/adapter/mongo"
	"github.com/couchcryptid/aq-export-service/internal/adapter/s3"
	"github.com/couchcryptid/aq-export-service/internal/adapter/sqlite"
	"github.com/couchcryptid/aq-export-service/internal/config"
	"github.com/couchcryptid/aq-export-service/internal/observability"
	"github.com/couchcryptid/aq-export-service/internal/pipeline"
	"github.com/couchcryptid/aq-export-service/internal/schedule"
	"github.com/couchcryptid/aq-export-service/internal/watchdog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	runID := uuid.NewString()
	logger := observability.NewLogger(cfg).With("run_id", runID)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	ctx := context.Background()

	runner := schedule.NewRunner(clock, logger, metrics, schedule.Options{
		RunID:           runID,
		WatchdogTimeout: cfg.WatchdogTimeout,
		OnTimeout:       watchdog.ExitOnTimeout(logger),
	})
	runner.ArmWatchdog()

	source, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open measurement store", "driver", cfg.StoreDriver, "error", err)
		return 1
	}
	defer closeSource()

	sess, err := s3.NewSession(cfg)
	if err != nil {
		logger.Error("failed to create object store session", "error", err)
		return 1
	}
	uploader := s3.NewUploader(sess, cfg.S3Bucket, logger)

	var notifier pipeline.Notifier
	if cfg.NotifyEnabled() {
		n := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = n
		logger.Info("export notifications enabled", "topic", cfg.KafkaTopic)
	}

	exporter := pipeline.New(source, uploader, notifier, logger, metrics, pipeline.Options{
		Dir:       cfg.ExportDir,
		QueueSize: cfg.QueueSize,
	})
	return export(ctx, cfg, runner, exporter, clock, logger)
}

// export runs every day of the configured range and maps the outcome to the
// process exit status. The ops server, when enabled, lives for the run.
func export(ctx context.Context, cfg *config.Config, runner *schedule.Runner, exporter schedule.DayExporter, clock clockwork.Clock, logger *slog.Logger) int {
	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	_, err := runner.Run(ctx, exporter, cfg.RangeStart(clock.Now()))
	return exitCode(err)
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.RecordSource, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite measurement store", "path", cfg.SQLitePath)
		return sqlite.NewSource(db, logger), func() {
			if err := db.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		}, nil
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using mongodb measurement store", "database", cfg.MongoDatabase, "collection", cfg.MongoCollection)
		return mongo.NewSource(client, cfg, logger), func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongodb disconnect error", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
