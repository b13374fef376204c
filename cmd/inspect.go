// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cardforge/go-cardzip"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// InspectCmd detects the format of card files.
type InspectCmd struct {
	Files []string `arg:"" name:"file" help:"Card files to inspect. (\"-\" for STDIN)"`
	Jobs  int      `short:"j" default:"4" help:"Number of files inspected concurrently."`
}

// inspectReport is the outcome of inspecting one file.
type inspectReport struct {
	Path      string
	Codec     string
	Detection cardzip.DetectionResult
	Name      string
	CardSpec  string
	Err       error
}

// Run inspects all files with bounded concurrency and prints one line per
// file in input order. The first failure determines the returned error.
func (c *InspectCmd) Run(a *app) error {
	reports := make([]inspectReport, len(c.Files))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(c.Jobs, 1))
	for i, path := range c.Files {
		i, path := i, path
		g.Go(func() error {
			reports[i] = a.inspect(ctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var firstErr error
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\terror\t\t%v\n", r.Path, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		format := string(r.Detection.Format)
		if r.Codec != "" {
			format = fmt.Sprintf("%s+%s", format, r.Codec)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s", r.Path, format, r.Detection.Confidence, r.Detection.Reason)
		if r.Name != "" {
			fmt.Fprintf(tw, "\tname=%q", r.Name)
		}
		if r.CardSpec != "" {
			fmt.Fprintf(tw, "\tspec=%s", r.CardSpec)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return firstErr
}

// inspect classifies the file at path. Input without a known signature is
// unwrapped first if it is a compressed stream.
func (a *app) inspect(ctx context.Context, path string) inspectReport {
	r := inspectReport{Path: path}
	data, err := a.readInput(path)
	if err != nil {
		r.Err = err
		return r
	}

	r.Detection = cardzip.Classify(data)
	if cardzip.Sniff(data).Kind == cardzip.KindUnknown {
		cfg, err := a.config(cardzip.FormatUnknown)
		if err != nil {
			r.Err = err
			return r
		}
		u, err := cardzip.Unwrap(data, cfg)
		if err != nil {
			r.Err = err
			return r
		}
		if u.Codec != "" {
			r.Codec = u.Codec
			data = u.Data
			r.Detection = cardzip.Classify(data)
		}
	}

	r.Name, r.CardSpec, r.Err = a.manifest(ctx, data, r.Detection)
	return r
}

// voxtaCharacter is the character descriptor of a Voxta package.
const voxtaCharacter = "Characters/*/character.json"

// manifest returns the card name and the card spec of JSON cards, CharX
// bundles and the first character of a Voxta package.
func (a *app) manifest(ctx context.Context, data []byte, det cardzip.DetectionResult) (string, string, error) {
	var doc []byte
	switch det.Format {
	case cardzip.FormatJSON:
		doc = data
	case cardzip.FormatCharX, cardzip.FormatVoxta:
		cfg, err := a.config(det.Format)
		if err != nil {
			return "", "", err
		}
		entries, err := cardzip.ExtractWithConfig(ctx, data, cfg)
		if err != nil {
			return "", "", err
		}
		if det.Format == cardzip.FormatCharX {
			doc = entries[det.Marker]
			break
		}
		for _, name := range entries.Names() {
			if ok, _ := doublestar.Match(voxtaCharacter, name); ok || name == "character.json" {
				doc = entries[name]
				break
			}
		}
	default:
		return "", "", nil
	}

	if !gjson.ValidBytes(doc) {
		a.logger.Debug("manifest is not valid json", "format", det.Format)
		return "", "", nil
	}
	var name string
	for _, p := range []string{"data.name", "name", "Name"} {
		if v := gjson.GetBytes(doc, p); v.Exists() {
			name = v.String()
			break
		}
	}
	return name, gjson.GetBytes(doc, "spec").String(), nil
}
