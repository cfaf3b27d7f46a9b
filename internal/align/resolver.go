package align

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/bhawesh96/crmprtd/internal/domain"
	"github.com/bhawesh96/crmprtd/internal/store"
)

// ResolveHistory finds the station history a raw record belongs to,
// creating a new station and history when no match exists. The caller
// must have verified the network already. The boolean is false when
// ambiguity cannot be resolved; the record is then rejected, never
// errored.
func ResolveHistory(ctx context.Context, s Store, logger *slog.Logger, network store.Network, rec domain.RawRecord) (store.History, bool, error) {
	hists, err := s.HistoriesForStation(ctx, rec.NetworkName, rec.StationID)
	if err != nil {
		return store.History{}, false, err
	}

	if len(hists) == 0 {
		h, err := s.CreateStationAndHistory(ctx, network.ID, rec.StationID, rec.Lat, rec.Lon)
		if errors.Is(err, store.ErrStationExists) {
			// A concurrent run created the station first. Requery and
			// disambiguate against the winner's rows.
			hists, err = s.HistoriesForStation(ctx, rec.NetworkName, rec.StationID)
			if err != nil {
				return store.History{}, false, err
			}
			return pickHistory(ctx, s, logger, rec, hists)
		}
		if err != nil {
			return store.History{}, false, err
		}
		logger.Info("created new station and history",
			"network", rec.NetworkName, "native_id", rec.StationID, "history_id", h.ID)
		return h, true, nil
	}

	return pickHistory(ctx, s, logger, rec, hists)
}

// pickHistory applies the tie-break policy to one or more candidates.
func pickHistory(ctx context.Context, s Store, logger *slog.Logger, rec domain.RawRecord, hists []store.History) (store.History, bool, error) {
	switch len(hists) {
	case 0:
		logger.Warn("no station history after requery",
			"network", rec.NetworkName, "native_id", rec.StationID)
		return store.History{}, false, nil
	case 1:
		return hists[0], true, nil
	}

	if rec.HasCoords() {
		if h, ok := nearestWithinThreshold(hists, *rec.Lat, *rec.Lon); ok {
			return h, true, nil
		}
		// No candidate within the threshold: the station physically
		// relocated. Attach a new history to the existing station; a
		// second meta_station row would violate (network_id, native_id)
		// uniqueness.
		h, err := s.CreateHistory(ctx, hists[0].StationID, rec.Lat, rec.Lon)
		if err != nil {
			return store.History{}, false, err
		}
		logger.Info("created new history for relocated station",
			"network", rec.NetworkName, "native_id", rec.StationID, "history_id", h.ID)
		return h, true, nil
	}

	// No coordinates: fall back to the single currently-active window.
	// Multiple active rows violate the well-formedness invariant and are
	// treated as unresolvable ambiguity.
	var active []store.History
	for _, h := range hists {
		if h.Active() {
			active = append(active, h)
		}
	}
	if len(active) == 1 {
		return active[0], true, nil
	}
	logger.Warn("ambiguous station histories",
		"network", rec.NetworkName, "native_id", rec.StationID,
		"candidates", len(hists), "active", len(active))
	return store.History{}, false, nil
}

// nearestWithinThreshold returns the geographically closest candidate
// within DistanceThresholdMeters of the reported point, skipping
// candidates without a stored location.
func nearestWithinThreshold(hists []store.History, lat, lon float64) (store.History, bool) {
	best := store.History{}
	bestDist := math.Inf(1)
	for _, h := range hists {
		if h.Lat == nil || h.Lon == nil {
			continue
		}
		d := haversineMeters(lat, lon, *h.Lat, *h.Lon)
		if d <= DistanceThresholdMeters && d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// haversineMeters computes the great-circle distance between two WGS-84
// points in meters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
