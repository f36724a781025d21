// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package logging provides a pre-configured [log/slog.Logger] factory.

# Defaults

  - Format: JSON ([FormatJSON]) via [log/slog.JSONHandler]
  - Level: INFO ([log/slog.LevelInfo])
  - Output: [os.Stderr]
  - Timestamps: [time.RFC3339]

# Basic Usage

	logger := logging.New()
	logger.Info("accessor ready", "mode", "rw")

# Configuration From the Environment

[FromEnv] reads LOG_LEVEL and LOG_FORMAT through an [env.Reader]. Passing the
synchronized accessor keeps the read inside the environment guard:

	opts, err := logging.FromEnv(env.Default())
	if err != nil {
		// malformed values are reported; parsed options are still returned
	}
	logger := logging.New(opts...)

	acc := env.New(env.WithLogger(logger))

# Testing

Inject a buffer to capture log output in tests:

	var buf bytes.Buffer
	logger := logging.New(logging.WithOutput(&buf))
*/
package logging
