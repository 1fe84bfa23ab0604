// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"github.com/go-logr/logr"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals
var (
	// note that these globals have no locks on purpose - they are expected to be set at init and then again after config parsing.
	globalLevel  zap.AtomicLevel
	globalLogger logr.Logger
	globalFlush  func()
)

//nolint:gochecknoinits
func init() {
	// make sure we always have a functional global logger
	globalLevel = zap.NewAtomicLevelAt(0) // log at the 0 verbosity level to start with, i.e. the "always" logs
	setGlobalLoggers(newStderrLogr("json"))
}

// Logr returns the current global logr.Logger. Most code should use New instead.
func Logr() logr.Logger {
	return globalLogger
}

// Setup returns a function which flushes any buffered logs. Call it with defer from main.
func Setup() func() {
	return func() {
		globalFlush()
	}
}

// setGlobalLoggers sets the plog global logger.  it is *not* go routine safe.
func setGlobalLoggers(log logr.Logger, flush func()) {
	globalLogger = log
	globalFlush = flush
}
