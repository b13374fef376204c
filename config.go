// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The default configuration is secure by default: the limits are the
// single-entity bundle limits of [CharXLimits], the input size is bounded and
// existing files are never overwritten.
type Config struct {
	// createDestination creates the destination directory if it does not exist
	createDestination bool

	// customCreateDirMode is the file mode for created directories (respecting umask)
	customCreateDirMode fs.FileMode

	// customFileMode is the file mode for written entries (respecting umask)
	customFileMode fs.FileMode

	// limits bounds the extraction of a single archive
	limits Limits

	// logger stream for classification and extraction
	logger logger

	// maxInputSize is the maximum size of the raw input buffer
	maxInputSize int64

	// overwrite existing files in the destination
	overwrite bool

	// telemetryHook is a function to consume telemetry data after finished extraction
	telemetryHook TelemetryHook
}

// CreateDestination returns true if the destination directory should be
// created if it does not exist.
func (c *Config) CreateDestination() bool {
	return c.createDestination
}

// CustomCreateDirMode returns the file mode for created directories.
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomFileMode returns the file mode for written entries.
func (c *Config) CustomFileMode() fs.FileMode {
	return c.customFileMode
}

// Limits returns the extraction limits.
func (c *Config) Limits() Limits {
	return c.limits
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxInputSize returns the maximum size of the raw input.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// Overwrite returns true if files should be overwritten in the destination.
func (c *Config) Overwrite() bool {
	return c.overwrite
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// CheckInputSize returns a [KindLimit] error if size exceeds the configured
// maximum input size.
func (c *Config) CheckInputSize(size int64) error {
	if size > c.maxInputSize {
		return &Error{
			Kind:      KindLimit,
			Op:        "input",
			Limit:     LimitMaxTotalSize,
			Phase:     PhasePreflight,
			TotalSize: size,
			MaxSize:   c.maxInputSize,
		}
	}
	return nil
}

const (
	defaultCreateDestination   = false         // don't create destination directory
	defaultCustomCreateDirMode = 0750          // default directory permissions rwxr-x---
	defaultCustomFileMode      = 0640          // default file permissions rw-r-----
	defaultMaxInputSize        = 1 << (10 * 3) // 1 Gb
	defaultOverwrite           = false         // don't overwrite existing files
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {
	config := &Config{
		createDestination:   defaultCreateDestination,
		customCreateDirMode: defaultCustomCreateDirMode,
		customFileMode:      defaultCustomFileMode,
		limits:              DefaultLimits(),
		logger:              defaultLogger,
		maxInputSize:        defaultMaxInputSize,
		overwrite:           defaultOverwrite,
		telemetryHook:       defaultTelemetryHook,
	}

	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCreateDestination options pattern function to create
// destination directory if it does not exist.
func WithCreateDestination(create bool) ConfigOption {
	return func(c *Config) {
		c.createDestination = create
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for created directories. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomFileMode options pattern function to set the file mode for
// written entries. (respecting umask)
func WithCustomFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customFileMode = mode
	}
}

// WithLimits options pattern function to replace all extraction limits.
func WithLimits(l Limits) ConfigOption {
	return func(c *Config) {
		c.limits = l.normalized()
	}
}

// WithMaxFileSize options pattern function to set the maximum decompressed
// size of a single entry. Negative values are treated as zero.
func WithMaxFileSize(maxFileSize int64) ConfigOption {
	return func(c *Config) {
		c.limits.MaxFileSize = nonNegative(maxFileSize)
	}
}

// WithMaxTotalSize options pattern function to set the maximum decompressed
// size over all entries. Negative values are treated as zero.
func WithMaxTotalSize(maxTotalSize int64) ConfigOption {
	return func(c *Config) {
		c.limits.MaxTotalSize = nonNegative(maxTotalSize)
	}
}

// WithMaxFiles options pattern function to set the maximum number of entries
// in an archive. Negative values are treated as zero.
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.limits.MaxFiles = nonNegative(maxFiles)
	}
}

// WithMaxInputSize options pattern function to set the maximum size of the raw input.
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = nonNegative(maxInputSize)
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithOverwrite options pattern function specify if files should be overwritten in the destination.
func WithOverwrite(enable bool) ConfigOption {
	return func(c *Config) {
		c.overwrite = enable
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after extraction.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
