// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"io"
	"math"
)

// PreflightResult summarizes the declared central directory of an archive. It
// does not guarantee that the archive can be extracted.
type PreflightResult struct {
	// TotalUncompressedSize is the sum of the declared uncompressed sizes.
	TotalUncompressedSize int64

	// FileCount is the number of central directory records, directories included.
	FileCount int64

	// Offset is the length of the prefix in front of the archive.
	Offset int64
}

// Preflight walks only the central directory of the archive in data and
// rejects it as soon as the declared entry count, a declared entry size or the
// running declared total exceeds limits. No entry is decompressed. Limit
// violations are [KindLimit] errors, structural problems [KindParse] errors.
//
// An archive can under-report in its directory, so Preflight never replaces
// the checks [Extract] performs on the produced bytes.
func Preflight(data []byte, limits Limits) (PreflightResult, error) {
	return PreflightWithConfig(data, NewConfig(WithLimits(limits)))
}

// PreflightWithConfig is [Preflight] with limits, input size bound and logger
// taken from cfg.
func PreflightWithConfig(data []byte, cfg *Config) (PreflightResult, error) {
	if err := cfg.CheckInputSize(int64(len(data))); err != nil {
		return PreflightResult{}, err
	}
	loc, err := Locate(data)
	if err != nil {
		return PreflightResult{}, err
	}
	cfg.Logger().Debug("located zip", "offset", loc.Offset, "entries", loc.Entries, "zip64", loc.Zip64)

	res, _, err := preflight(data, loc, cfg.Limits(), nil)
	return res, err
}

// preflight walks the directory at loc and enforces limits on the declared
// values. If keep is non-nil every record is appended to it and returned.
func preflight(data []byte, loc Location, limits Limits, keep []*EntryInfo) (PreflightResult, []*EntryInfo, error) {
	res := PreflightResult{Offset: loc.Offset}

	// the declared count alone can already reject the archive
	if err := limits.checkFiles(PhasePreflight, loc.Entries); err != nil {
		return res, nil, err
	}

	w := newDirectoryWalker(data, loc)
	for {
		e, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, nil, err
		}
		if err := limits.checkFiles(PhasePreflight, w.Count()); err != nil {
			return res, nil, err
		}
		if err := limits.checkEntry(PhasePreflight, e.Name, e.UncompressedSize); err != nil {
			return res, nil, err
		}
		res.TotalUncompressedSize = addSaturated(res.TotalUncompressedSize, e.UncompressedSize)
		if err := limits.checkTotal(PhasePreflight, e.Name, res.TotalUncompressedSize); err != nil {
			return res, nil, err
		}
		if keep != nil {
			keep = append(keep, e)
		}
	}
	res.FileCount = w.Count()
	return res, keep, nil
}

// addSaturated adds two non-negative values without wrapping around.
func addSaturated(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
