// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/cardforge/go-cardzip"
)

// Exit codes of the cardzip binary.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitLimitExceeded = 2
	ExitMalformed     = 3
	ExitPathTraversal = 4
)

// CLI are the cli parameters for the cardzip binary
type CLI struct {
	MaxFileSize  int64            `optional:"" default:"-1" help:"Maximum size of a single entry (in bytes). (profile value: -1)"`
	MaxFiles     int64            `optional:"" default:"-1" help:"Maximum number of entries in an archive. (profile value: -1)"`
	MaxInputSize int64            `optional:"" default:"1073741824" help:"Maximum input size that allowed is (in bytes)."`
	MaxTotalSize int64            `optional:"" default:"-1" help:"Maximum size of all entries together (in bytes). (profile value: -1)"`
	Metrics      bool             `short:"M" optional:"" default:"false" help:"Print telemetry data to log after each operation."`
	Profile      string           `short:"p" optional:"" help:"Limit profile (charx, voxta or one defined in --profiles). Defaults to the profile of the detected format."`
	Profiles     string           `optional:"" type:"existingfile" help:"YAML file with additional or adjusted limit profiles."`
	Verbose      bool             `short:"v" optional:"" help:"Verbose logging."`
	Version      kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`

	Inspect InspectCmd `cmd:"" help:"Detect the format of card files."`
	List    ListCmd    `cmd:"" help:"List the entries of a card archive."`
	Extract ExtractCmd `cmd:"" help:"Extract a card archive into a directory."`
}

// Run the entrypoint into cardzip as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("cardzip"),
		kong.Description("Secure inspection and extraction of character cards"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	a, err := newApp(&cli, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitFailure)
	}

	err = kctx.Run(a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}

// ExitCode maps err to the exit code of the binary.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *cardzip.Error
	if !errors.As(err, &e) {
		return ExitFailure
	}
	switch e.Kind {
	case cardzip.KindLimit:
		return ExitLimitExceeded
	case cardzip.KindParse:
		return ExitMalformed
	case cardzip.KindPathTraversal:
		return ExitPathTraversal
	default:
		return ExitFailure
	}
}

// app holds what the commands share.
type app struct {
	cli      *CLI
	logger   *slog.Logger
	out      io.Writer
	profiles Profiles
}

// newApp sets up logging and loads the limit profiles.
func newApp(cli *CLI, stdout, stderr io.Writer) (*app, error) {
	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	profiles := DefaultProfiles()
	if cli.Profiles != "" {
		f, err := os.Open(cli.Profiles)
		if err != nil {
			return nil, fmt.Errorf("open profiles: %w", err)
		}
		defer f.Close()
		if profiles, err = LoadProfiles(f); err != nil {
			return nil, err
		}
	}
	if cli.Profile != "" {
		if _, ok := profiles[cli.Profile]; !ok {
			return nil, fmt.Errorf("unknown profile %q", cli.Profile)
		}
	}

	return &app{cli: cli, logger: logger, out: stdout, profiles: profiles}, nil
}

// config returns the library configuration for an input of the given format.
func (a *app) config(format cardzip.Format, opts ...cardzip.ConfigOption) (*cardzip.Config, error) {
	limits, err := a.profiles.Resolve(a.cli.Profile, format)
	if err != nil {
		return nil, err
	}
	if a.cli.MaxFileSize >= 0 {
		limits.MaxFileSize = a.cli.MaxFileSize
	}
	if a.cli.MaxTotalSize >= 0 {
		limits.MaxTotalSize = a.cli.MaxTotalSize
	}
	if a.cli.MaxFiles >= 0 {
		limits.MaxFiles = a.cli.MaxFiles
	}
	a.logger.Debug("using limits", "format", format, "limits", limits)

	base := []cardzip.ConfigOption{
		cardzip.WithLimits(limits),
		cardzip.WithLogger(a.logger),
		cardzip.WithMaxInputSize(a.cli.MaxInputSize),
		cardzip.WithTelemetryHook(a.telemetry),
	}
	return cardzip.NewConfig(append(base, opts...)...), nil
}

// telemetry logs the telemetry data if requested.
func (a *app) telemetry(ctx context.Context, d *cardzip.TelemetryData) {
	if a.cli.Metrics {
		a.logger.Info("operation finished", "telemetry", d)
	}
}

// readInput reads the file at path ("-" for STDIN) without exceeding the
// maximum input size.
func (a *app) readInput(path string) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input failed: %w", err)
		}
		defer f.Close()
		r = f
	}

	maxSize := max(a.cli.MaxInputSize, 0)
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading input failed: %w", err)
	}
	if err := cardzip.NewConfig(cardzip.WithMaxInputSize(maxSize)).CheckInputSize(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}
