// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command envstress verifies the synchronized environment accessor under load.
package main

import (
	"os"

	"github.com/stacklok/syncenv/cmd/envstress/app"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(app.Execute(version, buildTime))
}
