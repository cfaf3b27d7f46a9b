// Package normalize converts provider-specific payloads (CSV and XML
// dialects) into the common raw-record shape consumed by the alignment
// engine. Malformed individual entries are logged and skipped; a
// normalizer never aborts its whole sequence for one bad entry.
package normalize

import (
	"io"
	"log/slog"

	"github.com/bhawesh96/crmprtd/internal/domain"
)

// Normalizer turns one provider's byte stream into raw records. The int
// return counts malformed entries that were skipped.
type Normalizer interface {
	Network() string
	Normalize(r io.Reader, logger *slog.Logger) ([]domain.RawRecord, int, error)
}

// ForNetwork returns the normalizer registered for a network name.
func ForNetwork(name string) (Normalizer, bool) {
	switch name {
	case NetworkENVAQN:
		return ENVAQN{}, true
	case NetworkMoTI:
		return MoTI{}, true
	}
	return nil, false
}
