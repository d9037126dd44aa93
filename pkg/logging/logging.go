// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Output is JSON on stderr; verbose enables
// V(1) messages, which is where the library packages put their progress logs.
func New(verbose bool) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	if verbose {
		// zapr maps logr V(n) to zap level -n
		cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// ContextWithLogger returns a copy of ctx carrying logger.
func ContextWithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// LoggerFromContext returns the logger stored in ctx, or a discard logger when
// the caller never attached one. Library code can log unconditionally.
func LoggerFromContext(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}
