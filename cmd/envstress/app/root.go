// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stacklok/syncenv/exitcode"
)

// NewRootCmd builds the envstress command tree.
func NewRootCmd(version, buildTime string) *cobra.Command {
	root := &cobra.Command{
		Use:   "envstress",
		Short: "Stress the synchronized environment accessor",
		Long: `envstress hammers the environment accessor from many goroutines and
checks that no update is lost, no removed variable is still visible and no
value is ever observed half-written.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newVersionCmd(version, buildTime))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(version, buildTime string) int {
	return execute(NewRootCmd(version, buildTime), os.Args[1:])
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	code := exitcode.Code(err)
	if err != nil && code != exitcode.Violations {
		root.PrintErrln("Error:", err)
	}
	return code
}
