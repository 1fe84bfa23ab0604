// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"go.credrelay.dev/internal/relay/server"
)

func main() {
	server.Main()
}
