// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"go.uber.org/zap/zapcore"
)

// LogLevel is an enum that controls verbosity of logs.
// Valid values in order of increasing verbosity are leaving it unset, info, debug, trace and all.
type LogLevel string

const (
	// LevelWarning (i.e. leaving the log level unset) maps to logr verbosity 0.
	LevelWarning LogLevel = ""
	// LevelInfo maps to logr verbosity 2.
	LevelInfo LogLevel = "info"
	// LevelDebug maps to logr verbosity 4.
	LevelDebug LogLevel = "debug"
	// LevelTrace maps to logr verbosity 6.
	LevelTrace LogLevel = "trace"
	// LevelAll maps to logr verbosity 108 (conceptually it is verbosity 8).
	LevelAll LogLevel = "all"
)

const (
	klogLevelWarning = iota * 2
	klogLevelInfo
	klogLevelDebug
	klogLevelTrace
	klogLevelAll
)

// verbosityForLevel returns -1 for unknown levels.
func verbosityForLevel(level LogLevel) int {
	switch level {
	case LevelWarning:
		return klogLevelWarning // unset means minimal logs (Error and Warning)
	case LevelInfo:
		return klogLevelInfo
	case LevelDebug:
		return klogLevelDebug
	case LevelTrace:
		return klogLevelTrace
	case LevelAll:
		return klogLevelAll + 100 // make all really mean all
	default:
		return -1
	}
}

// Enabled returns whether the provided plog level is enabled, i.e., whether print statements at the
// provided level will show up.
func Enabled(level LogLevel) bool {
	v := verbosityForLevel(level)
	if v < 0 {
		return false
	}
	// logr verbosity levels are inverted when zap handles them
	return globalLevel.Enabled(zapcore.Level(-v)) //nolint:gosec // the range for v is [0,108]
}

func zapLevelToPlogLevel(l zapcore.Level) LogLevel {
	if l > 0 {
		// best effort mapping, the zap levels do not really translate to logr verbosity
		// but this is correct for "error" level which is all we need for logr
		return LogLevel(l.String())
	}

	switch {
	case -l >= klogLevelAll:
		return LevelAll
	case -l >= klogLevelTrace:
		return LevelTrace
	case -l >= klogLevelDebug:
		return LevelDebug
	case -l >= klogLevelInfo:
		return LevelInfo
	default:
		return "" // warning is handled via a custom key since verbosity 0 is ambiguous
	}
}
