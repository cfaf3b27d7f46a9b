// Command crmprtd ingests raw weather and hydrometric observations into
// the crmp database. One-shot mode downloads (or reads) a single feed,
// aligns it, and exits; interval mode repeats the run on a timer and
// serves health and metrics endpoints while doing so.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	httpadapter "github.com/bhawesh96/crmprtd/internal/adapter/http"
	"github.com/bhawesh96/crmprtd/internal/config"
	"github.com/bhawesh96/crmprtd/internal/domain"
	"github.com/bhawesh96/crmprtd/internal/normalize"
	"github.com/bhawesh96/crmprtd/internal/observability"
	"github.com/bhawesh96/crmprtd/internal/pipeline"
	"github.com/bhawesh96/crmprtd/internal/report"
	"github.com/bhawesh96/crmprtd/internal/source"
	"github.com/bhawesh96/crmprtd/internal/source/kafka"
	"github.com/bhawesh96/crmprtd/internal/store"
)

func main() {
	var (
		network    = flag.String("network", "", "network to ingest for (e.g. ENV-AQN, MoTIe)")
		input      = flag.String("input", "", "feed file path or http(s) URL")
		fromReport = flag.String("from-report", "", "re-process rejected records from an error report CSV")
		fromKafka  = flag.Bool("kafka", false, "consume raw records from the configured Kafka topic")
		diagnostic = flag.Bool("diagnostic", false, "align and report without committing any inserts")
		interval   = flag.Duration("interval", 0, "repeat the run on this period; 0 runs once and exits")
	)
	flag.Parse()

	// Optional: local development environments keep the DSN in a .env file.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	src, closeSrc, err := buildSource(cfg, logger, *network, *input, *fromReport, *fromKafka)
	if err != nil {
		logger.Error("invalid source configuration", "error", err)
		os.Exit(1)
	}
	defer closeSrc()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	var reporter pipeline.Reporter
	if cfg.ErrorReportPath != "" {
		w, f, err := report.OpenFile(cfg.ErrorReportPath, runID)
		if err != nil {
			logger.Error("failed to open error report", "path", cfg.ErrorReportPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		reporter = w
	}

	runner := pipeline.NewRunner(st, src, reporter, logger, metrics, *network, *diagnostic)

	if *interval <= 0 {
		if _, err := runner.Run(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	runForever(ctx, cfg, logger, runner, *interval)
}

// buildSource picks the record source for this invocation. Exactly one of
// input, fromReport, or fromKafka must be set.
func buildSource(cfg *config.Config, logger *slog.Logger, network, input, fromReport string, fromKafka bool) (pipeline.RecordSource, func(), error) {
	set := 0
	for _, on := range []bool{input != "", fromReport != "", fromKafka} {
		if on {
			set++
		}
	}
	if set != 1 {
		return nil, nil, errors.New("exactly one of -input, -from-report, or -kafka is required")
	}

	switch {
	case fromKafka:
		r := kafka.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
		s := &kafkaSource{reader: r, max: cfg.KafkaBatchMax, wait: cfg.KafkaBatchWait}
		return s, func() {
			if err := r.Close(); err != nil {
				logger.Error("kafka reader close error", "error", err)
			}
		}, nil
	case fromReport != "":
		return &reportSource{path: fromReport}, func() {}, nil
	default:
		norm, ok := normalize.ForNetwork(network)
		if !ok {
			return nil, nil, fmt.Errorf("no normalizer for network %q", network)
		}
		client := &http.Client{Timeout: cfg.FetchTimeout}
		s := &feedSource{input: input, norm: norm, client: client, logger: logger}
		return s, func() {}, nil
	}
}

// feedSource downloads or opens one feed and normalizes it.
type feedSource struct {
	input  string
	norm   normalize.Normalizer
	client *http.Client
	logger *slog.Logger
}

func (s *feedSource) Records(ctx context.Context) ([]domain.RawRecord, int, error) {
	rc, err := source.Open(ctx, s.client, s.logger, s.input)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()
	return s.norm.Normalize(rc, s.logger)
}

// reportSource re-processes the records of a previous run's error report.
type reportSource struct {
	path string
}

func (s *reportSource) Records(_ context.Context) ([]domain.RawRecord, int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return report.Read(f)
}

// kafkaSource drains one bounded batch from the raw-record topic per run.
type kafkaSource struct {
	reader *kafka.Reader
	max    int
	wait   time.Duration
}

func (s *kafkaSource) Records(ctx context.Context) ([]domain.RawRecord, int, error) {
	return s.reader.FetchBatch(ctx, s.max, s.wait)
}

// CommitRead releases the batch's consumer offsets once the run's
// transaction has committed.
func (s *kafkaSource) CommitRead(ctx context.Context) error {
	return s.reader.CommitRead(ctx)
}

// runForever repeats ingestion runs on the given period, serving the
// operational HTTP endpoints until a termination signal arrives.
func runForever(ctx context.Context, cfg *config.Config, logger *slog.Logger, runner *pipeline.Runner, interval time.Duration) {
	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for done := false; !done; {
		if _, err := runner.Run(ctx); err != nil {
			// A failed run rolls back cleanly; the next tick retries.
			logger.Error("run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			done = true
		case <-ticker.C:
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
