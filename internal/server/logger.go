package server

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a JSON production logger at the given level. The "debug"
// level switches to the human-readable development encoder.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	return cfg.Build()
}
