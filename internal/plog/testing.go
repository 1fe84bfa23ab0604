// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"
)

// TestLogger returns a Logger which logs everything as JSON into the returned buffer, with a static
// timestamp and a caller that does not include line numbers, to make assertions less painful to write.
func TestLogger(t *testing.T) (Logger, *bytes.Buffer) {
	t.Helper()

	var log bytes.Buffer

	return New().(pLogger).withLogrMod(func(l logr.Logger) logr.Logger {
			return l.WithSink(testZapr(t, &log).GetSink())
		}),
		&log
}

func testZapr(t *testing.T, w *bytes.Buffer) logr.Logger {
	t.Helper()

	now, err := time.Parse(time.RFC3339Nano, "2099-08-08T13:57:36.123456789Z")
	require.NoError(t, err)

	zl, _ := newLogr(w, "json",
		zap.NewAtomicLevelAt(math.MinInt8), // log everything during tests
		func(config *zapcore.EncoderConfig) {
			config.EncodeCaller = func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
				trimmed := caller.TrimmedPath()
				if idx := strings.LastIndexByte(trimmed, ':'); idx != -1 {
					trimmed = trimmed[:idx+1] + "<line>"
				}
				enc.AppendString(trimmed + funcEncoder(caller))
			}
		},
		zap.WithClock(ZapClock(clocktesting.NewFakeClock(now))), // have the clock be static during tests
	)

	return zl
}

var _ zapcore.Clock = &clockAdapter{}

type clockAdapter struct {
	clock clock.Clock
}

func (c *clockAdapter) Now() time.Time {
	return c.clock.Now()
}

func (c *clockAdapter) NewTicker(duration time.Duration) *time.Ticker {
	return &time.Ticker{C: c.clock.Tick(duration)}
}

func ZapClock(c clock.Clock) zapcore.Clock {
	return &clockAdapter{clock: c}
}
