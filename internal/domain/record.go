package domain

import "time"

// RawRecord is the normalized observation tuple produced by the per-network
// normalizers, prior to reconciliation against the canonical store.
type RawRecord struct {
	NetworkName  string    `json:"network_name"`
	StationID    string    `json:"station_id"` // provider-assigned native id, unique within a network
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	VariableName string    `json:"variable_name"`
	Unit         string    `json:"unit,omitempty"`
	Value        *float64  `json:"value"`
	Time         time.Time `json:"time"`
}

// HasCoords reports whether the record carries a usable coordinate pair.
func (r RawRecord) HasCoords() bool {
	return r.Lat != nil && r.Lon != nil
}

// Complete reports whether all fields required by the alignment engine are
// present. Coordinates and unit are optional by contract.
func (r RawRecord) Complete() bool {
	return r.NetworkName != "" && r.StationID != "" &&
		r.VariableName != "" && r.Value != nil && !r.Time.IsZero()
}

// Observation is the canonical output artifact of a successful alignment.
// Identity is enforced by the store's (obs_time, history_id, vars_id)
// uniqueness constraint, not generated here.
type Observation struct {
	HistoryID int64
	VarsID    int64
	Time      time.Time
	Datum     float64
}

// RejectionReason is the closed enumeration of per-record alignment
// failures.
type RejectionReason string

const (
	RejectMissingFields     RejectionReason = "missing_fields"
	RejectUnknownNetwork    RejectionReason = "unknown_network"
	RejectUnresolvedStation RejectionReason = "unresolved_station"
	RejectUnknownVariable   RejectionReason = "unknown_variable"
	RejectUnitMismatch      RejectionReason = "unit_mismatch"
)

// Result is the outcome of aligning one RawRecord: either an accepted
// Observation or a rejection with a reason.
type Result struct {
	Obs      Observation
	Reason   RejectionReason
	Accepted bool
}

// Accepted wraps a canonical observation in a successful Result.
func Accepted(obs Observation) Result {
	return Result{Obs: obs, Accepted: true}
}

// Rejected produces a failed Result carrying the rejection reason.
func Rejected(reason RejectionReason) Result {
	return Result{Reason: reason}
}
