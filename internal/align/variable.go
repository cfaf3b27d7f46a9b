package align

import (
	"context"
	"log/slog"

	"github.com/bhawesh96/crmprtd/internal/store"
)

// ResolveVariable looks up the canonical variable definition scoped to a
// network. Variables are reference data: absence is a rejection for the
// record, never a creation.
func ResolveVariable(ctx context.Context, s Store, logger *slog.Logger, networkName, varName string) (store.Variable, bool, error) {
	v, ok, err := s.VariableByName(ctx, networkName, varName)
	if err != nil {
		return store.Variable{}, false, err
	}
	if !ok {
		logger.Warn("no matching variable",
			"network", networkName, "variable", varName)
		return store.Variable{}, false, nil
	}
	return v, true, nil
}
