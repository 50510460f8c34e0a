// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is the entry point for the customfields administration CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/holomush/customfields/internal/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		logging.LogError(context.Background(), nil, "command failed", err)
		os.Exit(1)
	}
}
