// Package logging builds the structured logger used by the daemon, the
// reconciliation pipeline, and every background worker (poller, webhook
// receiver, watcher). CLI commands print user-facing
// results with fmt, per SPEC_FULL.md §11.1; this logger is for internal
// diagnostics only.
//
// Grounded on theRebelliousNerd-codenerd/cmd/nerd/main.go's
// zap.NewProductionConfig()/AtomicLevelAt(DebugLevel) construction,
// generalized into a standalone constructor instead of an inline
// PersistentPreRunE block.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-mode zap logger, or a development-mode one
// (human-readable, caller info, debug level) when verbose is true.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Nop returns a no-op logger, used in tests and anywhere logging is not
// yet configured.
func Nop() *zap.Logger {
	return zap.NewNop()
}
