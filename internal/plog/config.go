// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap/zapcore"
)

type LogFormat string

func (l *LogFormat) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `""`, `"json"`:
		*l = FormatJSON
	case `"text"`:
		*l = FormatText
	default:
		return errInvalidLogFormat
	}
	return nil
}

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

var (
	errInvalidLogLevel  = errors.New("invalid log level, valid choices are the empty string, info, debug, trace and all")
	errInvalidLogFormat = errors.New("invalid log format, valid choices are the empty string, 'json' or 'text'")
)

var _ json.Unmarshaler = func() *LogFormat {
	var f LogFormat
	return &f
}()

type LogSpec struct {
	Level  LogLevel  `json:"level,omitempty"`
	Format LogFormat `json:"format,omitempty"`
}

// ValidateAndSetLogLevelAndFormatGlobally replaces the global logger. It is not safe to call concurrently
// with logging, so it should only be called during process startup.
func ValidateAndSetLogLevelAndFormatGlobally(spec LogSpec) error {
	v := verbosityForLevel(spec.Level)
	if v < 0 {
		return errInvalidLogLevel
	}

	var encoding string
	switch spec.Format {
	case "", FormatJSON:
		encoding = "json"
	case FormatText:
		encoding = "text"
	default:
		return errInvalidLogFormat
	}

	globalLevel.SetLevel(zapcore.Level(-v)) //nolint:gosec // the range for v is [0,108]

	setGlobalLoggers(newStderrLogr(encoding))

	return nil
}
