package align

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bhawesh96/crmprtd/internal/domain"
	"github.com/bhawesh96/crmprtd/internal/store"
)

// Caches holds per-batch lookup maps for one network, built once before a
// high-volume batch to avoid a store round-trip per record. Only
// unambiguous matches are cached; stations that are absent or ambiguous
// fall through to full resolution.
type Caches struct {
	Network   store.Network
	Histories map[string]store.History  // native id -> history
	Variables map[string]store.Variable // variable name -> variable
}

// BuildCaches performs the pre-pass over a batch: it resolves the set of
// distinct station ids and variable names appearing in recs against the
// store and returns the lookup maps. The network must exist.
func BuildCaches(ctx context.Context, s Store, logger *slog.Logger, networkName string, recs []domain.RawRecord) (*Caches, error) {
	network, ok, err := s.NetworkByName(ctx, networkName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("network %q does not exist", networkName)
	}

	c := &Caches{
		Network:   network,
		Histories: make(map[string]store.History),
		Variables: make(map[string]store.Variable),
	}

	stationIDs := make(map[string]struct{})
	varNames := make(map[string]struct{})
	for _, rec := range recs {
		if rec.NetworkName != networkName {
			continue
		}
		if rec.StationID != "" {
			stationIDs[rec.StationID] = struct{}{}
		}
		if rec.VariableName != "" {
			varNames[rec.VariableName] = struct{}{}
		}
	}

	for nativeID := range stationIDs {
		hists, err := s.HistoriesForStation(ctx, networkName, nativeID)
		if err != nil {
			return nil, err
		}
		// Cache only the unambiguous case; zero or multiple matches are
		// left for the resolver's tie-break policy.
		if len(hists) == 1 {
			c.Histories[nativeID] = hists[0]
		}
	}

	for name := range varNames {
		v, ok, err := s.VariableByName(ctx, networkName, name)
		if err != nil {
			return nil, err
		}
		if ok {
			c.Variables[name] = v
		}
	}

	logger.Debug("built batch caches",
		"network", networkName,
		"stations", len(stationIDs), "cached_histories", len(c.Histories),
		"variables", len(varNames), "cached_variables", len(c.Variables))
	return c, nil
}
