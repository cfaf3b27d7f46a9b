// Package insert batches resolved observations into the canonical store,
// isolating per-row duplicate-key failures so one duplicate never rolls
// back the rest of the batch.
package insert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bhawesh96/crmprtd/internal/domain"
	"github.com/bhawesh96/crmprtd/internal/store"
)

// Tx is the transactional surface the bulk insert needs. *store.Tx
// satisfies it.
type Tx interface {
	WithSavepoint(ctx context.Context, fn func() error) error
	InsertObservation(ctx context.Context, obs domain.Observation) error
}

// Observations inserts a batch of resolved observations, each row under
// its own savepoint. Duplicate (obs_time, history_id, vars_id) rows are
// rolled back and skipped silently — duplicates are expected on re-runs.
// Any other persistence error is fatal for the batch. Returns the counts
// of rows actually inserted and rows skipped as duplicates.
func Observations(ctx context.Context, tx Tx, logger *slog.Logger, obs []domain.Observation) (inserted, skipped int, err error) {
	logger.Info("starting mass insertion", "count", len(obs))

	for _, o := range obs {
		insertErr := tx.WithSavepoint(ctx, func() error {
			return tx.InsertObservation(ctx, o)
		})
		switch {
		case insertErr == nil:
			inserted++
		case errors.Is(insertErr, store.ErrUniqueViolation):
			skipped++
		default:
			return inserted, skipped, insertErr
		}
	}

	logger.Info("mass insertion finished", "inserted", inserted, "skipped", skipped)
	return inserted, skipped, nil
}
