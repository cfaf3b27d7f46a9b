// Package pipeline orchestrates one ingestion run: obtain raw records
// from a source, align each against the canonical store, bulk-insert the
// accepted observations, and route rejections to the error report.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bhawesh96/crmprtd/internal/align"
	"github.com/bhawesh96/crmprtd/internal/domain"
	"github.com/bhawesh96/crmprtd/internal/insert"
	"github.com/bhawesh96/crmprtd/internal/observability"
	"github.com/bhawesh96/crmprtd/internal/store"
)

// RecordSource produces the raw records for one run. The int counts
// malformed entries the source skipped.
type RecordSource interface {
	Records(ctx context.Context) ([]domain.RawRecord, int, error)
}

// Tx is the transactional surface one run needs: entity resolution,
// per-row inserts, and the final commit-or-rollback. *store.Tx satisfies
// it.
type Tx interface {
	align.Store
	WithSavepoint(ctx context.Context, fn func() error) error
	InsertObservation(ctx context.Context, obs domain.Observation) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB opens the transaction a run executes inside.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

// storeDB adapts *store.Store's concrete Begin to the DB interface.
type storeDB struct {
	store *store.Store
}

func (s storeDB) Begin(ctx context.Context) (Tx, error) {
	return s.store.Begin(ctx)
}

// OffsetCommitter is implemented by sources that hold back consumer
// offsets until the batch is durably stored, such as the Kafka reader.
// CommitRead is called only after the run's transaction has committed.
type OffsetCommitter interface {
	CommitRead(ctx context.Context) error
}

// Reporter receives rejected records with their reasons.
type Reporter interface {
	Add(rec domain.RawRecord, reason string) error
	Flush() error
}

// Summary is the per-run outcome: successes are rows actually inserted,
// skips are duplicate rows, failures are rejected records routed to the
// error report.
type Summary struct {
	Read       int
	Malformed  int
	Aligned    int
	Inserted   int
	Duplicates int
	Failures   int
}

// Runner executes ingestion runs against the canonical store. Records are
// processed sequentially in stream order; entity creation within a run is
// visible to subsequent records of the same run.
type Runner struct {
	db         DB
	source     RecordSource
	reporter   Reporter
	logger     *slog.Logger
	metrics    *observability.Metrics
	network    string
	diagnostic bool
	ready      atomic.Bool
}

// NewRunner wires a Runner. network names the network this run ingests
// for; it enables the per-batch lookup caches when it exists in the
// store. With diagnostic set, the run reports what it would insert and
// rolls the whole transaction back at the end.
func NewRunner(s *store.Store, src RecordSource, rep Reporter, logger *slog.Logger, metrics *observability.Metrics, network string, diagnostic bool) *Runner {
	return newRunner(storeDB{store: s}, src, rep, logger, metrics, network, diagnostic)
}

func newRunner(db DB, src RecordSource, rep Reporter, logger *slog.Logger, metrics *observability.Metrics, network string, diagnostic bool) *Runner {
	return &Runner{
		db:         db,
		source:     src,
		reporter:   rep,
		logger:     logger,
		metrics:    metrics,
		network:    network,
		diagnostic: diagnostic,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no ingestion run has completed yet")
	}
	return nil
}

// Run executes one complete normalize-align-insert cycle. The returned
// error is infrastructure-level: the transaction has been rolled back and
// the process should exit non-zero.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	r.metrics.RunActive.Set(1)
	defer r.metrics.RunActive.Set(0)

	var sum Summary

	recs, malformed, err := r.source.Records(ctx)
	if err != nil {
		return sum, err
	}
	sum.Read = len(recs)
	sum.Malformed = malformed
	r.metrics.RecordsRead.Add(float64(len(recs)))
	r.metrics.RecordsSkipped.Add(float64(malformed))
	r.metrics.BatchSize.Observe(float64(len(recs)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return sum, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	engine := align.NewEngine(tx, r.logger)
	if caches := r.buildCaches(ctx, tx, recs); caches != nil {
		engine.UseCaches(caches)
	}

	var obs []domain.Observation
	for _, rec := range recs {
		res, err := engine.Align(ctx, rec)
		if err != nil {
			return sum, err
		}
		if !res.Accepted {
			r.metrics.RecordsRejected.WithLabelValues(string(res.Reason)).Inc()
			sum.Failures++
			if r.reporter != nil {
				if err := r.reporter.Add(rec, string(res.Reason)); err != nil {
					return sum, err
				}
			}
			continue
		}
		r.metrics.RecordsAligned.Inc()
		sum.Aligned++
		obs = append(obs, res.Obs)
	}

	inserted, skipped, err := insert.Observations(ctx, tx, r.logger, obs)
	if err != nil {
		return sum, err
	}
	sum.Inserted = inserted
	sum.Duplicates = skipped
	r.metrics.ObsInserted.Add(float64(inserted))
	r.metrics.DuplicatesSkipped.Add(float64(skipped))

	if r.diagnostic {
		r.logger.Info("diagnostic mode, rolling back the run",
			"would_insert", inserted, "would_skip", skipped)
		if err := tx.Rollback(ctx); err != nil {
			return sum, err
		}
	} else {
		if err := tx.Commit(ctx); err != nil {
			return sum, err
		}
		// The batch is durable; only now may the source release its
		// offsets. Diagnostic runs never reach here, so their messages
		// stay queued for a real run.
		if oc, ok := r.source.(OffsetCommitter); ok {
			if err := oc.CommitRead(ctx); err != nil {
				return sum, err
			}
		}
	}

	if r.reporter != nil {
		if err := r.reporter.Flush(); err != nil {
			return sum, err
		}
	}

	r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	r.ready.Store(true)
	r.logger.Info("run complete",
		"read", sum.Read, "malformed", sum.Malformed,
		"successes", sum.Inserted, "skips", sum.Duplicates,
		"failures", sum.Failures, "diagnostic", r.diagnostic)
	return sum, nil
}

// buildCaches runs the per-batch pre-pass when the target network exists.
// A missing network is not fatal here: each record is then rejected
// individually with unknown_network.
func (r *Runner) buildCaches(ctx context.Context, tx Tx, recs []domain.RawRecord) *align.Caches {
	if r.network == "" || len(recs) == 0 {
		return nil
	}
	if _, ok, err := tx.NetworkByName(ctx, r.network); err != nil || !ok {
		return nil
	}
	caches, err := align.BuildCaches(ctx, tx, r.logger, r.network, recs)
	if err != nil {
		r.logger.Warn("batch cache build failed, falling back to per-record lookups",
			"network", r.network, "error", err)
		return nil
	}
	return caches
}
