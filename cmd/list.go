// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cardforge/go-cardzip"
	"github.com/dustin/go-humanize"
)

// ListCmd lists the central directory of a card archive.
type ListCmd struct {
	File string `arg:"" name:"file" help:"Card archive. (\"-\" for STDIN)"`
}

// Run preflights the archive under the profile of its detected format and
// prints its entries.
func (c *ListCmd) Run(a *app) error {
	data, err := a.readInput(c.File)
	if err != nil {
		return err
	}
	det := cardzip.Classify(data)
	cfg, err := a.config(det.Format)
	if err != nil {
		return err
	}

	res, err := cardzip.PreflightWithConfig(data, cfg)
	if err != nil {
		return err
	}
	entries, _, err := cardzip.ListEntries(data)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMETHOD\tSIZE\tCOMPRESSED\tMODIFIED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Name,
			cardzip.MethodName(e.Method),
			humanize.IBytes(uint64(e.UncompressedSize)),
			humanize.IBytes(uint64(e.CompressedSize)),
			e.Modified.Format(time.DateTime),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d entries, %s declared, %s at offset %d\n",
		res.FileCount, humanize.IBytes(uint64(res.TotalUncompressedSize)), det.Format, res.Offset)
	return nil
}
