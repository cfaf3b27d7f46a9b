// Package domain models the provider-agnostic observation record and the
// outcome of the Align phase.
//
// # Raw records
//
// Each government data provider (environment agencies, ministries of
// transportation, air-quality networks) publishes observations in its own
// transport and encoding. The per-network normalizers reduce all of them to
// the common RawRecord shape: network name, provider-assigned station id,
// optional coordinates, variable name, optional unit, value, and timestamp.
// A RawRecord is consumed exactly once by the alignment engine and then
// discarded.
//
// # Alignment results
//
// Align classifies every record as either accepted, carrying the canonical
// Observation to persist, or rejected with a closed set of reasons:
//
//	missing_fields      required field absent (network, time, value, variable)
//	unknown_network     network is reference data and does not exist
//	unresolved_station  no station history could be matched or created
//	unknown_variable    variable is reference data and does not exist
//	unit_mismatch       observed unit could not be reconciled with the
//	                    variable's canonical unit
//
// Rejections are expected, per-record conditions; they are values, not
// errors, and never abort a run.
//
// # Units
//
// Providers spell units inconsistently ("% RH", "°C", "mb", "Deg").
// Convert parses both unit expressions against a dimensional table and
// converts between compatible units; CheckUnits implements the pass-through
// policy for unit-less data. Incompatible or unparsable units yield a
// ConversionError, which callers downgrade to a unit_mismatch rejection.
package domain
