// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package log is this module's stand-in for Boulder's blog package, whose
// source was never part of this module's dependency corpus: cmd/shell.go
// still expects a small Logger interface with leveled, templated methods
// and a process-wide default, so this package reproduces that shape on top
// of zap, the structured logger the rest of the example corpus reaches for
// (sigstore-policy-controller wires zap the same way: one *zap.SugaredLogger
// built at startup and threaded through every component).
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Logger is the leveled logging surface every component in this module
// takes as a dependency, mirroring blog.Logger's templated methods.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errf(format string, args ...interface{})
	AuditInfof(format string, args ...interface{})
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger backed by a production zap configuration: JSON
// output, info level and above, caller annotated.
func New() (Logger, error) {
	cfg := zap.NewProductionConfig()
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("log: building zap logger: %w", err)
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

// NewDevelopment builds a Logger tuned for local runs: human-readable
// console output, debug level enabled.
func NewDevelopment() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("log: building development zap logger: %w", err)
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

func (z *zapLogger) Debugf(format string, args ...interface{})    { z.sugar.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})     { z.sugar.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...interface{})     { z.sugar.Warnf(format, args...) }
func (z *zapLogger) Errf(format string, args ...interface{})      { z.sugar.Errorf(format, args...) }
func (z *zapLogger) AuditInfof(format string, args ...interface{}) {
	z.sugar.Infow(fmt.Sprintf(format, args...), "audit", true)
}
func (z *zapLogger) Sync() error { return z.sugar.Sync() }

var (
	defaultMu     sync.Mutex
	defaultLogger Logger
)

// Set installs l as the process-wide default logger, the same role
// blog.Set plays for cmd/shell.go's panic and signal handlers.
func Set(l Logger) { defaultMu.Lock(); defaultLogger = l; defaultMu.Unlock() }

// Get returns the process-wide default logger, or a development logger if
// none was installed - callers in tests and short-lived tools should not
// have to call Set first.
func Get() Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		l, err := NewDevelopment()
		if err != nil {
			panic(err)
		}
		defaultLogger = l
	}
	return defaultLogger
}
