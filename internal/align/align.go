// Package align implements the Align phase: reconciling loosely-typed raw
// observation records against the canonical store. It resolves or lazily
// creates stations and their histories, looks up network-scoped variables,
// reconciles units, and emits a canonical observation or a rejection with
// a reason. Rejections are per-record and expected; only infrastructure
// failures surface as errors.
package align

import (
	"context"

	"github.com/bhawesh96/crmprtd/internal/store"
)

// DistanceThresholdMeters bounds the proximity tie-break: an ambiguous
// record with coordinates matches an existing history only when one lies
// within this distance of the reported point.
const DistanceThresholdMeters = 800.0

// Store is the transactional view of the canonical store the alignment
// engine requires. *store.Tx satisfies it; tests use an in-memory fake.
type Store interface {
	NetworkByName(ctx context.Context, name string) (store.Network, bool, error)
	HistoriesForStation(ctx context.Context, networkName, nativeID string) ([]store.History, error)
	CreateStationAndHistory(ctx context.Context, networkID int64, nativeID string, lat, lon *float64) (store.History, error)
	CreateHistory(ctx context.Context, stationID int64, lat, lon *float64) (store.History, error)
	VariableByName(ctx context.Context, networkName, varName string) (store.Variable, bool, error)
}
