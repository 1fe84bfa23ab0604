// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pversion

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func swapBuildInfo(t *testing.T, version string, settings ...debug.BuildSetting) {
	t.Helper()

	originalGitVersion := gitVersion
	t.Cleanup(func() {
		gitVersion = originalGitVersion
		readBuildInfo = debug.ReadBuildInfo
	})

	gitVersion = version
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if settings == nil {
			return nil, false
		}
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestGet(t *testing.T) {
	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)

	tests := []struct {
		name       string
		gitVersion string
		settings   []debug.BuildSetting
		wantInfo   Info
	}{
		{
			name: "no build info and no linker flag",
			wantInfo: Info{
				Major:        "0",
				Minor:        "0",
				GitVersion:   "v0.0.0",
				GitTreeState: "dirty",
				GoVersion:    runtime.Version(),
				Compiler:     runtime.Compiler,
				Platform:     platform,
			},
		},
		{
			name:       "release build",
			gitVersion: "v1.4.0",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
				{Key: "vcs.modified", Value: "false"},
				{Key: "other", Value: "ignored"},
			},
			wantInfo: Info{
				Major:        "1",
				Minor:        "4",
				GitVersion:   "v1.4.0",
				GitCommit:    "abc123",
				GitTreeState: "clean",
				BuildDate:    "2024-05-01T10:00:00Z",
				GoVersion:    runtime.Version(),
				Compiler:     runtime.Compiler,
				Platform:     platform,
			},
		},
		{
			name: "development build without a linker flag",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "384850953501b7d66d466b4ca4d13a81bc54a7c3"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantInfo: Info{
				Major:        "0",
				Minor:        "0",
				GitVersion:   "v0.0.0-38485095-dirty",
				GitCommit:    "384850953501b7d66d466b4ca4d13a81bc54a7c3",
				GitTreeState: "dirty",
				GoVersion:    runtime.Version(),
				Compiler:     runtime.Compiler,
				Platform:     platform,
			},
		},
		{
			name:       "linker flag which is not semver",
			gitVersion: "main",
			wantInfo: Info{
				Major:        "0",
				Minor:        "0",
				GitVersion:   "v0.0.0",
				GitTreeState: "dirty",
				GoVersion:    runtime.Version(),
				Compiler:     runtime.Compiler,
				Platform:     platform,
			},
		},
	}

	// These tests cannot be done in Parallel due to side effects
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			swapBuildInfo(t, test.gitVersion, test.settings...)

			require.Equal(t, test.wantInfo, Get())
			require.Equal(t, test.wantInfo.GitVersion, Get().String())
		})
	}
}

func TestUserAgent(t *testing.T) {
	swapBuildInfo(t, "v1.4.0")

	require.Equal(t, fmt.Sprintf("credential-relay/v1.4.0 (%s/%s)", runtime.GOOS, runtime.GOARCH), UserAgent("credential-relay"))
	require.Equal(t, "crm-web/1.0", UserAgent("crm-web/1.0"))
}
