// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stacklok/syncenv/exitcode"
	"github.com/stacklok/syncenv/stress"
)

func newBenchCmd() *cobra.Command {
	var (
		rounds  int
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time copying the process environment into a private table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rounds < 1 {
				return exitcode.Errorf(exitcode.ConfigError, "--rounds must be positive")
			}
			results, err := stress.Bench(rounds)
			if err != nil {
				return err
			}
			stress.NewReporter(cmd.OutOrStdout(), !noColor && !color.NoColor).Bench(results)
			return nil
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 100, "Copies per benchmark")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}
