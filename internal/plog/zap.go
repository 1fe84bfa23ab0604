// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rfc3339Micro is human-readable and machine parsable with microsecond precision.
const rfc3339Micro = "2006-01-02T15:04:05.000000Z07:00"

func newLogr(w io.Writer, encoding string, level zapcore.LevelEnabler, f func(*zapcore.EncoderConfig), opts ...zap.Option) (logr.Logger, func()) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		TimeKey:          "timestamp",
		NameKey:          "logger",
		CallerKey:        "caller",
		FunctionKey:      zapcore.OmitKey, // included in caller
		StacktraceKey:    "stacktrace",
		SkipLineEnding:   false,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout(rfc3339Micro),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     callerEncoder,
		ConsoleSeparator: "  ",
	}

	if encoding == "text" {
		encoderConfig.LevelKey = zapcore.OmitKey
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoderConfig.EncodeTime = humanTimeEncoder
	}

	if f != nil {
		f(&encoderConfig)
	}

	var encoder zapcore.Encoder
	if encoding == "text" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// the writer may be shared between goroutines so make sure it is safe for concurrent use
	sink := zapcore.Lock(zapcore.AddSync(w))

	opts = append([]zap.Option{zap.AddCaller(), zap.ErrorOutput(sink)}, opts...)
	log := zap.New(zapcore.NewCore(encoder, sink, level), opts...)

	return zapr.NewLogger(log), func() { _ = log.Sync() }
}

func newStderrLogr(encoding string) (logr.Logger, func()) {
	// when using the trace or all log levels, an error log will contain the full stack.
	return newLogr(os.Stderr, encoding, globalLevel, nil, zap.AddStacktrace(stackLevelEnabler{}))
}

// stackLevelEnabler adds stack traces to error logs only when the global level is trace or more verbose.
type stackLevelEnabler struct{}

func (stackLevelEnabler) Enabled(l zapcore.Level) bool {
	return l >= zapcore.ErrorLevel && Enabled(LevelTrace)
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	plogLevel := zapLevelToPlogLevel(l)

	if len(plogLevel) == 0 {
		enc.AppendString("info")
		return
	}

	enc.AppendString(string(plogLevel))
}

func callerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(caller.TrimmedPath() + funcEncoder(caller))
}

func funcEncoder(caller zapcore.EntryCaller) string {
	funcName := caller.Function
	if idx := strings.LastIndexByte(funcName, '/'); idx != -1 {
		funcName = funcName[idx+1:] // keep everything after the last /
	}
	return "$" + funcName
}

func humanTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Local().Format(time.RFC1123))
}
