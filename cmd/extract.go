// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cardforge/go-cardzip"
	"github.com/dustin/go-humanize"
)

// ExtractCmd extracts a card archive into a directory.
type ExtractCmd struct {
	File              string `arg:"" name:"file" help:"Card archive. (\"-\" for STDIN)"`
	Destination       string `arg:"" name:"destination" default:"." help:"Output directory."`
	CreateDestination bool   `short:"c" help:"Create destination directory if it does not exist."`
	DryRun            bool   `short:"n" help:"Check the archive and its entry paths without writing to disk."`
	MaxExtractionTime int64  `optional:"" default:"60" help:"Maximum time that an extraction should take (in seconds). (disable check: -1)"`
	Overwrite         bool   `short:"O" help:"Overwrite if exist."`
}

// Run extracts the archive under the profile of its detected format and
// writes the entries below the destination.
func (c *ExtractCmd) Run(a *app) error {
	data, err := a.readInput(c.File)
	if err != nil {
		return err
	}
	if _, err := cardzip.Locate(data); err != nil {
		return err
	}

	det := cardzip.Classify(data)
	a.logger.Info("detected format", "format", det.Format, "confidence", det.Confidence, "reason", det.Reason)
	cfg, err := a.config(det.Format,
		cardzip.WithCreateDestination(c.CreateDestination),
		cardzip.WithOverwrite(c.Overwrite),
	)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if c.MaxExtractionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(c.MaxExtractionTime))
		defer cancel()
	}

	entries, err := cardzip.ExtractWithConfig(ctx, data, cfg)
	if err != nil {
		return err
	}
	if c.DryRun {
		if err := cardzip.WriteEntriesTo(ctx, cardzip.NewTargetMemory(), "", entries, cfg); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "would extract %d entries (%s) of %s archive to %s\n",
			len(entries), humanize.IBytes(uint64(entries.TotalSize())), det.Format, c.Destination)
		return nil
	}
	if err := cardzip.WriteEntries(ctx, c.Destination, entries, cfg); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "extracted %d entries (%s) of %s archive to %s\n",
		len(entries), humanize.IBytes(uint64(entries.TotalSize())), det.Format, c.Destination)
	return nil
}
