// Package store provides pgx-backed access to the canonical CRMP schema:
// networks, stations, station histories, variables, and observations.
// All mutation happens through Tx; savepoints isolate per-entity and
// per-row failures from the enclosing transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUniqueViolation wraps a Postgres 23505 error on observation insert.
// Duplicates are expected on re-runs and must be skipped, not failed.
var ErrUniqueViolation = errors.New("unique violation")

// ErrStationExists reports that a concurrent run created the same station
// first. The caller recovers by requerying.
var ErrStationExists = errors.New("station already exists")

// Network is reference data, created out-of-band. Lookup-only here.
type Network struct {
	ID   int64
	Name string
}

// Station belongs to one network and is identified by (network, native_id).
type Station struct {
	ID        int64
	NetworkID int64
	NativeID  string
}

// History is a station's metadata validity window: optional location and
// optional (sdate, edate) interval. A station may carry several across
// relocations, or several concurrent rows when records lacked
// disambiguating info.
type History struct {
	ID          int64
	StationID   int64
	StationName string
	Lat         *float64
	Lon         *float64
	SDate       *time.Time
	EDate       *time.Time
}

// Active reports whether the history window is currently in effect:
// a start date with no end date.
func (h History) Active() bool {
	return h.SDate != nil && h.EDate == nil
}

// Variable is reference data scoped to a network, carrying the canonical
// unit string for its observations.
type Variable struct {
	ID        int64
	NetworkID int64
	Name      string
	Unit      string
}

// Store wraps a pgx connection pool over the canonical schema.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against the given DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin opens the outer transaction for one ingestion run.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Exec runs a statement outside any transaction, used by tests and setup.
func (s *Store) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

// CountObservations returns the total number of persisted observations.
func (s *Store) CountObservations(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM obs_raw`).Scan(&n)
	return n, err
}

// DatumsForHistory returns the stored datum values for one history in
// observation-time order.
func (s *Store) DatumsForHistory(ctx context.Context, historyID int64) ([]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT datum FROM obs_raw WHERE history_id = $1 ORDER BY obs_time`, historyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datums []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		datums = append(datums, d)
	}
	return datums, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
