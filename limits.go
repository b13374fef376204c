// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

// Limits bounds the work of a single extraction. A limit of 0 rejects every
// entry that would need it; there is no value meaning "unlimited".
type Limits struct {
	// MaxFileSize is the maximum decompressed size of a single entry.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// MaxTotalSize is the maximum decompressed size over all entries.
	MaxTotalSize int64 `yaml:"max_total_size" json:"max_total_size"`

	// MaxFiles is the maximum number of entries, directories included.
	MaxFiles int64 `yaml:"max_files" json:"max_files"`
}

const (
	mib = 1 << 20
	gib = 1 << 30
)

// CharXLimits returns the limits for single-character bundles.
func CharXLimits() Limits {
	return Limits{
		MaxFileSize:  50 * mib,
		MaxTotalSize: 200 * mib,
		MaxFiles:     10000,
	}
}

// VoxtaLimits returns the limits for multi-entity packages, which carry many
// characters, books and scenarios and are allowed a larger total.
func VoxtaLimits() Limits {
	return Limits{
		MaxFileSize:  50 * mib,
		MaxTotalSize: 1 * gib,
		MaxFiles:     50000,
	}
}

// DefaultLimits returns the limits used by [NewConfig] and the limit-taking
// entry points when no limits are given.
func DefaultLimits() Limits {
	return CharXLimits()
}

// LimitsFor returns the preset limits for a detected format.
func LimitsFor(f Format) Limits {
	if f == FormatVoxta {
		return VoxtaLimits()
	}
	return CharXLimits()
}

// normalized returns l with negative values clamped to zero.
func (l Limits) normalized() Limits {
	return Limits{
		MaxFileSize:  nonNegative(l.MaxFileSize),
		MaxTotalSize: nonNegative(l.MaxTotalSize),
		MaxFiles:     nonNegative(l.MaxFiles),
	}
}

// checkFiles returns a limit error if counter exceeds MaxFiles.
func (l Limits) checkFiles(phase Phase, counter int64) error {
	if counter > l.MaxFiles {
		return &Error{Kind: KindLimit, Op: string(phase), Limit: LimitMaxFiles, Phase: phase, Files: counter, MaxFiles: l.MaxFiles}
	}
	return nil
}

// checkEntry returns a limit error if size exceeds MaxFileSize.
func (l Limits) checkEntry(phase Phase, name string, size int64) error {
	if size > l.MaxFileSize {
		return &Error{Kind: KindLimit, Op: string(phase), Limit: LimitMaxFileSize, Phase: phase, Entry: name, EntrySize: size, MaxEntrySize: l.MaxFileSize}
	}
	return nil
}

// checkTotal returns a limit error if total exceeds MaxTotalSize.
func (l Limits) checkTotal(phase Phase, name string, total int64) error {
	if total > l.MaxTotalSize {
		return &Error{Kind: KindLimit, Op: string(phase), Limit: LimitMaxTotalSize, Phase: phase, Entry: name, TotalSize: total, MaxSize: l.MaxTotalSize}
	}
	return nil
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
