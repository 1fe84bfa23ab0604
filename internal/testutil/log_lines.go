// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type WantedLog struct {
	Level   string
	Message string
	Params  map[string]any
}

func WantLog(level, message string, params map[string]any) WantedLog {
	return WantedLog{
		Level:   level,
		Message: message,
		Params:  params,
	}
}

// CompareLogs compares JSON log lines written by plog.TestLogger against the wanted logs, ignoring the
// caller and the static timestamp.
func CompareLogs(t *testing.T, wantLogs []WantedLog, actualLogsOneLiner string) {
	t.Helper()

	// There are tests that verify that nothing was logged
	if len(wantLogs) == 0 {
		require.Empty(t, actualLogsOneLiner, "no logs were expected, but some were found")
		return
	}

	wantJSONLogs := make([]map[string]any, 0)
	wantMessages := make([]string, 0)
	for _, wantLog := range wantLogs {
		wantJSONLog := make(map[string]any)
		wantJSONLog["level"] = wantLog.Level
		wantJSONLog["message"] = wantLog.Message
		wantMessages = append(wantMessages, wantLog.Message)
		wantJSONLog["timestamp"] = "2099-08-08T13:57:36.123456Z"
		for k, v := range wantLog.Params {
			wantJSONLog[k] = v
		}
		wantJSONLogs = append(wantJSONLogs, wantJSONLog)
	}

	actualJSONLogs := make([]map[string]any, 0)
	actualMessages := make([]string, 0)
	actualLogs := strings.Split(actualLogsOneLiner, "\n")
	require.GreaterOrEqual(t, len(actualLogs), 2)
	actualLogs = actualLogs[:len(actualLogs)-1] // trim off the last ""
	for _, actualLog := range actualLogs {
		actualJSONLog := make(map[string]any)
		err := json.Unmarshal([]byte(actualLog), &actualJSONLog)
		require.NoError(t, err)

		// we don't care to test exact equality on the caller - just make sure it is a non-empty string
		caller, ok := actualJSONLog["caller"]
		require.True(t, ok)
		require.NotEmpty(t, caller, "caller for message %q must not be empty", actualJSONLog["message"])
		delete(actualJSONLog, "caller")
		actualJSONLogs = append(actualJSONLogs, actualJSONLog)

		actualMessage, ok := actualJSONLog["message"].(string)
		require.True(t, ok, "actual message is not a string, instead %+v", actualJSONLog["message"])
		actualMessages = append(actualMessages, actualMessage)
	}

	// We should check array indices first so that we don't exceed any boundaries.
	// But we also want to be sure to indicate to the caller what went wrong, so compare the messages.
	require.Equal(t, wantMessages, actualMessages)

	for i := range wantJSONLogs {
		// compare each item individually so we know which message it is
		require.Equal(t, wantJSONLogs[i], actualJSONLogs[i],
			"log for message %q does not match", wantJSONLogs[i]["message"])
	}
}
