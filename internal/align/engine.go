package align

import (
	"context"
	"log/slog"

	"github.com/bhawesh96/crmprtd/internal/domain"
	"github.com/bhawesh96/crmprtd/internal/store"
)

// Engine runs the per-record alignment state machine. Each record
// terminates as Accepted(Observation) or Rejected(reason); the checks are
// fixed-order and short-circuiting. Station/History creation in the
// resolution step is intentionally retained even when a later step
// rejects: a newly observed station is worth keeping even if this
// particular reading is bad.
type Engine struct {
	store  Store
	logger *slog.Logger
	caches *Caches
}

// NewEngine creates an Engine over the given transactional store view.
func NewEngine(s Store, logger *slog.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

// UseCaches installs per-batch lookup caches built by BuildCaches. Pass
// nil to disable.
func (e *Engine) UseCaches(c *Caches) {
	e.caches = c
}

// Align reconciles one raw record against the canonical store. The error
// return is reserved for infrastructure failures, which abort the run;
// every per-record condition is reported through the Result.
func (e *Engine) Align(ctx context.Context, rec domain.RawRecord) (domain.Result, error) {
	if !rec.Complete() {
		e.logger.Warn("record missing required fields",
			"network", rec.NetworkName, "native_id", rec.StationID,
			"variable", rec.VariableName)
		return domain.Rejected(domain.RejectMissingFields), nil
	}

	network, ok, err := e.resolveNetwork(ctx, rec.NetworkName)
	if err != nil {
		return domain.Result{}, err
	}
	if !ok {
		e.logger.Warn("observation requires a valid network name",
			"network", rec.NetworkName)
		return domain.Rejected(domain.RejectUnknownNetwork), nil
	}

	hist, ok, err := e.resolveHistory(ctx, network, rec)
	if err != nil {
		return domain.Result{}, err
	}
	if !ok {
		return domain.Rejected(domain.RejectUnresolvedStation), nil
	}

	variable, ok, err := e.resolveVariable(ctx, rec)
	if err != nil {
		return domain.Result{}, err
	}
	if !ok {
		return domain.Rejected(domain.RejectUnknownVariable), nil
	}

	datum, convErr := domain.CheckUnits(*rec.Value, rec.Unit, variable.Unit)
	if convErr != nil {
		// Cannot confirm the data's units; reject rather than propagate.
		e.logger.Warn("unit reconciliation failed",
			"network", rec.NetworkName, "native_id", rec.StationID,
			"variable", rec.VariableName, "error", convErr)
		return domain.Rejected(domain.RejectUnitMismatch), nil
	}

	return domain.Accepted(domain.Observation{
		HistoryID: hist.ID,
		VarsID:    variable.ID,
		Time:      rec.Time,
		Datum:     datum,
	}), nil
}

func (e *Engine) resolveNetwork(ctx context.Context, name string) (store.Network, bool, error) {
	if e.caches != nil && e.caches.Network.Name == name {
		return e.caches.Network, true, nil
	}
	return e.store.NetworkByName(ctx, name)
}

func (e *Engine) resolveHistory(ctx context.Context, network store.Network, rec domain.RawRecord) (store.History, bool, error) {
	if e.caches != nil && e.caches.Network.Name == rec.NetworkName {
		if h, ok := e.caches.Histories[rec.StationID]; ok {
			return h, true, nil
		}
	}
	return ResolveHistory(ctx, e.store, e.logger, network, rec)
}

func (e *Engine) resolveVariable(ctx context.Context, rec domain.RawRecord) (store.Variable, bool, error) {
	if e.caches != nil && e.caches.Network.Name == rec.NetworkName {
		if v, ok := e.caches.Variables[rec.VariableName]; ok {
			return v, true, nil
		}
	}
	return ResolveVariable(ctx, e.store, e.logger, rec.NetworkName, rec.VariableName)
}
