// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the zap-backed console logger used by the envstress command.
package logger

import (
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stacklok/syncenv/env"
)

// EnvUnstructuredLogs selects plain console output when true or unset.
const EnvUnstructuredLogs = "UNSTRUCTURED_LOGS"

// Debugf logs a message at debug level using the singleton logger.
func Debugf(msg string, args ...any) {
	zap.S().Debugf(msg, args...)
}

// Debugw logs a message at debug level using the singleton logger with additional key-value pairs.
func Debugw(msg string, keysAndValues ...any) {
	zap.S().Debugw(msg, keysAndValues...)
}

// Infof logs a message at info level using the singleton logger.
func Infof(msg string, args ...any) {
	zap.S().Infof(msg, args...)
}

// Infow logs a message at info level using the singleton logger with additional key-value pairs.
func Infow(msg string, keysAndValues ...any) {
	zap.S().Infow(msg, keysAndValues...)
}

// Warnw logs a message at warning level using the singleton logger with additional key-value pairs.
func Warnw(msg string, keysAndValues ...any) {
	zap.S().Warnw(msg, keysAndValues...)
}

// Errorw logs a message at error level using the singleton logger with additional key-value pairs.
func Errorw(msg string, keysAndValues ...any) {
	zap.S().Errorw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = zap.L().Sync()
}

// DebugProvider is an interface for checking if debug mode is enabled.
type DebugProvider interface {
	IsDebug() bool
}

// DebugFlag is a DebugProvider backed by a plain bool, e.g. a cobra flag.
type DebugFlag bool

// IsDebug reports the flag value.
func (d DebugFlag) IsDebug() bool {
	return bool(d)
}

// Initialize configures the global zap logger from the process environment,
// read through the synchronized accessor.
func Initialize(debug DebugProvider) {
	InitializeWithOptions(env.Default(), debug)
}

// InitializeWithOptions configures the global zap logger. If UNSTRUCTURED_LOGS
// is unset or true it writes plain console lines to stderr; otherwise JSON
// to stdout.
func InitializeWithOptions(envReader env.Reader, debugProvider DebugProvider) {
	zap.ReplaceGlobals(zap.Must(buildConfig(envReader, debugProvider).Build()))
}

func buildConfig(envReader env.Reader, debugProvider DebugProvider) zap.Config {
	var config zap.Config
	if unstructuredLogsWithEnv(envReader) {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.Kitchen)
		config.OutputPaths = []string{"stderr"}
		config.DisableStacktrace = true
		config.DisableCaller = true
	} else {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
	}

	if debugProvider != nil && debugProvider.IsDebug() {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return config
}

func unstructuredLogsWithEnv(envReader env.Reader) bool {
	unstructuredLogs, err := strconv.ParseBool(envReader.Getenv(EnvUnstructuredLogs))
	if err != nil {
		// unset, empty or malformed: default to unstructured output
		return true
	}
	return unstructuredLogs
}
