package store

import _ "embed"

// Schema is the canonical DDL, applied by integration tests and local
// development setups. Production schemas are managed out-of-band.
//
//go:embed schema.sql
var Schema string
