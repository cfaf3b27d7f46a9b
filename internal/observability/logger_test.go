package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level      string
		debugShown bool
		errorShown bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, true},
		{"nonsense defaults to info", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logger := NewLogger(tc.level, "text")
			assert.Equal(t, tc.debugShown, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, tc.errorShown, logger.Enabled(context.Background(), slog.LevelError))
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	assert.NotNil(t, NewLogger("info", "json"))
	assert.NotNil(t, NewLogger("info", "text"))
	assert.NotNil(t, NewLogger("info", ""))
}
