package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bhawesh96/crmprtd/internal/domain"
)

// Tx is the unit-of-work handle for one ingestion run. Resolvers receive
// it by reference; entity creation and per-row observation inserts each
// run under their own savepoint so a failure never poisons the outer
// transaction.
type Tx struct {
	tx      pgx.Tx
	spCount int
}

// Commit finishes the outer transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback abandons the outer transaction. Safe to call after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// WithSavepoint runs fn inside a savepoint, releasing it when fn returns
// nil and rolling back to it when fn fails. The fn error is returned
// unchanged so callers can inspect it.
func (t *Tx) WithSavepoint(ctx context.Context, fn func() error) error {
	t.spCount++
	name := fmt.Sprintf("sp_%d", t.spCount)
	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return err
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// NetworkByName looks up a network by its unique name.
func (t *Tx) NetworkByName(ctx context.Context, name string) (Network, bool, error) {
	var n Network
	err := t.tx.QueryRow(ctx,
		`SELECT network_id, network_name FROM meta_network WHERE network_name = $1`,
		name).Scan(&n.ID, &n.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Network{}, false, nil
	}
	if err != nil {
		return Network{}, false, fmt.Errorf("query network %q: %w", name, err)
	}
	return n, true, nil
}

// HistoriesForStation returns every history joined through the station
// identified by (network name, native id), oldest first.
func (t *Tx) HistoriesForStation(ctx context.Context, networkName, nativeID string) ([]History, error) {
	rows, err := t.tx.Query(ctx, `
SELECT h.history_id, h.station_id, COALESCE(h.station_name, ''), h.lat, h.lon, h.sdate, h.edate
FROM meta_history h
JOIN meta_station s ON s.station_id = h.station_id
JOIN meta_network n ON n.network_id = s.network_id
WHERE n.network_name = $1 AND s.native_id = $2
ORDER BY h.history_id`, networkName, nativeID)
	if err != nil {
		return nil, fmt.Errorf("query histories for %s/%s: %w", networkName, nativeID, err)
	}
	defer rows.Close()

	var hists []History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.StationID, &h.StationName, &h.Lat, &h.Lon, &h.SDate, &h.EDate); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		hists = append(hists, h)
	}
	return hists, rows.Err()
}

// CreateStationAndHistory inserts a new station and its first history row
// as one atomic pair under a savepoint. When a concurrent run won the race
// on (network_id, native_id), the savepoint is rolled back and
// ErrStationExists is returned; the caller requeries and uses the winner's
// rows. The pair is never partially created.
func (t *Tx) CreateStationAndHistory(ctx context.Context, networkID int64, nativeID string, lat, lon *float64) (History, error) {
	var h History
	err := t.WithSavepoint(ctx, func() error {
		var stationID int64
		err := t.tx.QueryRow(ctx,
			`INSERT INTO meta_station (network_id, native_id) VALUES ($1, $2) RETURNING station_id`,
			networkID, nativeID).Scan(&stationID)
		if err != nil {
			return err
		}
		return t.tx.QueryRow(ctx,
			`INSERT INTO meta_history (station_id, lat, lon) VALUES ($1, $2, $3)
			 RETURNING history_id, station_id, lat, lon, sdate, edate`,
			stationID, lat, lon).Scan(&h.ID, &h.StationID, &h.Lat, &h.Lon, &h.SDate, &h.EDate)
	})
	if isUniqueViolation(err) {
		return History{}, fmt.Errorf("%w: %s", ErrStationExists, nativeID)
	}
	if err != nil {
		return History{}, fmt.Errorf("create station %s: %w", nativeID, err)
	}
	return h, nil
}

// CreateHistory attaches a new history row to an existing station, used
// when a station reports from beyond the proximity threshold of every
// known location and is treated as physically relocated.
func (t *Tx) CreateHistory(ctx context.Context, stationID int64, lat, lon *float64) (History, error) {
	var h History
	err := t.tx.QueryRow(ctx,
		`INSERT INTO meta_history (station_id, lat, lon) VALUES ($1, $2, $3)
		 RETURNING history_id, station_id, lat, lon, sdate, edate`,
		stationID, lat, lon).Scan(&h.ID, &h.StationID, &h.Lat, &h.Lon, &h.SDate, &h.EDate)
	if err != nil {
		return History{}, fmt.Errorf("create history for station %d: %w", stationID, err)
	}
	return h, nil
}

// VariableByName looks up a variable scoped to (network name, variable
// name). Variables are reference data and never created here.
func (t *Tx) VariableByName(ctx context.Context, networkName, varName string) (Variable, bool, error) {
	var v Variable
	err := t.tx.QueryRow(ctx, `
SELECT v.vars_id, v.network_id, v.net_var_name, v.unit
FROM meta_vars v
JOIN meta_network n ON n.network_id = v.network_id
WHERE n.network_name = $1 AND v.net_var_name = $2`,
		networkName, varName).Scan(&v.ID, &v.NetworkID, &v.Name, &v.Unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variable{}, false, nil
	}
	if err != nil {
		return Variable{}, false, fmt.Errorf("query variable %s/%s: %w", networkName, varName, err)
	}
	return v, true, nil
}

// InsertObservation writes one canonical observation. A duplicate
// (obs_time, history_id, vars_id) surfaces as ErrUniqueViolation.
func (t *Tx) InsertObservation(ctx context.Context, obs domain.Observation) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO obs_raw (history_id, vars_id, obs_time, datum) VALUES ($1, $2, $3, $4)`,
		obs.HistoryID, obs.VarsID, obs.Time, obs.Datum)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: history=%d vars=%d time=%s",
			ErrUniqueViolation, obs.HistoryID, obs.VarsID, obs.Time)
	}
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}
