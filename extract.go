// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
)

const (
	// chunkSize is the largest amount of decompressed data produced between
	// two budget checks.
	chunkSize = 32 << 10

	// maxEmptyReads is the number of consecutive empty reads after which a
	// decompressor is considered stuck.
	maxEmptyReads = 100

	// maxInitialEntryCap bounds the buffer allocated up front for an entry.
	maxInitialEntryCap = 1 << 20
)

// Entries maps archive-relative entry names to their decompressed bytes.
// Names are forward-slash separated and case-sensitive. They are not
// validated; use [IsSafe] or [WriteEntries] before touching a filesystem.
type Entries map[string][]byte

// Names returns the entry names in lexical order.
func (e Entries) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalSize returns the sum of all entry sizes.
func (e Entries) TotalSize() int64 {
	var total int64
	for _, b := range e {
		total += int64(len(b))
	}
	return total
}

// Extract decompresses every file entry of the zip archive in data under
// limits. See [ExtractWithConfig].
func Extract(data []byte, limits Limits) (Entries, error) {
	return ExtractWithConfig(context.Background(), data, NewConfig(WithLimits(limits)))
}

// ExtractWithConfig locates the zip archive in data, rejects it on its
// declared central directory and then decompresses entry by entry. The
// produced bytes are counted in chunks of at most 32 KiB and checked against
// the per-entry and cumulative limits before they are kept, so an archive that
// lies about its sizes is stopped as soon as it crosses a limit.
//
// Directory entries and entries declaring zero bytes are skipped, the latter
// only after their compressed data, if any, decoded to nothing. The result
// is all-or-nothing: on error no entries are returned. Limit violations are
// [KindLimit] errors, everything structurally wrong (unsupported or encrypted
// entries, checksum mismatches, lying local headers) is a [KindParse] error.
//
// The context is handed to the telemetry hook and checked between entries.
func ExtractWithConfig(ctx context.Context, data []byte, cfg *Config) (Entries, error) {
	// prepare telemetry capturing
	m := &TelemetryData{Operation: "extract", InputSize: int64(len(data))}
	defer cfg.TelemetryHook()(ctx, m)
	defer captureExtractionDuration(m, now())

	entries, err := extractZip(ctx, data, cfg, m)
	if err != nil {
		return nil, handleError(cfg, m, "cannot extract zip", err)
	}
	return entries, nil
}

func extractZip(ctx context.Context, data []byte, cfg *Config, m *TelemetryData) (Entries, error) {
	if err := cfg.CheckInputSize(int64(len(data))); err != nil {
		return nil, err
	}

	cfg.Logger().Info("extracting zip", "size", len(data))
	loc, err := Locate(data)
	if err != nil {
		return nil, err
	}
	m.ArchiveOffset = loc.Offset
	m.DetectedFormat = string(classifyZip(data, loc).Format)

	limits := cfg.Limits()
	records := make([]*EntryInfo, 0, min(loc.Entries, 1024))
	res, records, err := preflight(data, loc, limits, records)
	if err != nil {
		return nil, err
	}
	m.EntriesListed = res.FileCount

	var (
		out   = make(Entries, len(records))
		total int64
		chunk = make([]byte, chunkSize)
	)
	for _, e := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context error: %w", err)
		}

		// the local header is verified for skipped entries too
		body, err := entryData(data, loc, e)
		if err != nil {
			return nil, err
		}
		if e.IsDir() {
			cfg.Logger().Debug("skip directory", "name", e.Name)
			m.SkippedDirs++
			continue
		}
		if e.UncompressedSize == 0 && e.CompressedSize == 0 {
			cfg.Logger().Debug("skip empty entry", "name", e.Name)
			m.SkippedEmpty++
			continue
		}
		if e.IsEncrypted() {
			return nil, parseError("extract", e.Name, "encrypted entries are not supported")
		}
		if e.UncompressedSize == 0 {
			// an empty entry with compressed data must still decode to nothing
			if _, err := readEntry(body, e, limits, total, chunk); err != nil {
				return nil, err
			}
			cfg.Logger().Debug("skip empty entry", "name", e.Name)
			m.SkippedEmpty++
			continue
		}
		if _, dup := out[e.Name]; dup {
			return nil, parseError("extract", e.Name, "duplicate entry name")
		}

		cfg.Logger().Debug("extract entry", "name", e.Name, "method", MethodName(e.Method), "declared", e.UncompressedSize)
		b, err := readEntry(body, e, limits, total, chunk)
		if err != nil {
			return nil, err
		}
		total += int64(len(b))
		out[e.Name] = b
		m.ExtractedFiles++
		m.ExtractionSize = total
	}

	return out, nil
}

// entryData verifies the local file header of e and returns the compressed
// bytes of the entry. The data must end before the central directory starts.
func entryData(data []byte, loc Location, e *EntryInfo) ([]byte, error) {
	if e.LocalHeaderOffset > loc.DirectoryOffset-loc.Offset-fileHeaderLen {
		return nil, parseError("extract", e.Name, "local header offset %d out of bounds", e.LocalHeaderOffset)
	}
	start := loc.Offset + e.LocalHeaderOffset
	if !hasSignature(data, start, fileHeaderSignature) {
		return nil, parseError("extract", e.Name, "bad local header signature at offset %d", start)
	}

	h := record(data[start : start+fileHeaderLen])
	nameLen := int64(h.u16(lfNameLen))
	extraLen := int64(h.u16(lfExtraLen))

	nameStart := start + fileHeaderLen
	dataStart := nameStart + nameLen + extraLen
	if dataStart > loc.DirectoryOffset {
		return nil, parseError("extract", e.Name, "local header overruns the central directory")
	}
	if string(data[nameStart:nameStart+nameLen]) != e.Name {
		return nil, parseError("extract", e.Name, "local header name %q differs from central directory", data[nameStart:nameStart+nameLen])
	}
	if e.CompressedSize > loc.DirectoryOffset-dataStart {
		return nil, parseError("extract", e.Name, "entry data overruns the central directory")
	}
	return data[dataStart : dataStart+e.CompressedSize], nil
}

// readEntry decompresses body chunk by chunk. Each chunk passes the budgets of
// a limitErrorReader before it is appended, and the output buffer never grows
// beyond MaxFileSize. Size and checksum of the output must match the record.
func readEntry(body []byte, e *EntryInfo, limits Limits, total int64, chunk []byte) ([]byte, error) {
	method, ok := zipMethods[e.Method]
	if !ok {
		return nil, parseError("extract", e.Name, "unsupported compression method %d", e.Method)
	}
	rc, err := method.Decompress(body, e, limits)
	if err != nil {
		return nil, parseError("extract", e.Name, "cannot start %s decompression: %w", method.Name, err)
	}
	defer rc.Close()

	lr := newLimitErrorReader(rc, limits, e.Name, total)
	out := make([]byte, 0, min(e.UncompressedSize, limits.MaxFileSize, maxInitialEntryCap))
	out, err = readChunks(lr, chunk, out, limits.MaxFileSize)
	if err != nil {
		if _, ok := AsError(err); ok {
			return nil, err
		}
		return nil, parseError("extract", e.Name, "%s: %w", method.Name, err)
	}

	if int64(len(out)) != e.UncompressedSize {
		return nil, parseError("extract", e.Name, "produced %d bytes, %d declared", len(out), e.UncompressedSize)
	}
	if sum := crc32.ChecksumIEEE(out); sum != e.CRC32 {
		return nil, parseError("extract", e.Name, "checksum mismatch: got %08x, want %08x", sum, e.CRC32)
	}
	return out, nil
}

// readChunks reads r to the end in pieces of len(chunk) bytes and appends
// them to out. The capacity of out never grows beyond maxCap; r must fail
// before more than maxCap bytes are produced.
func readChunks(r io.Reader, chunk []byte, out []byte, maxCap int64) ([]byte, error) {
	for empty := 0; ; {
		n, err := r.Read(chunk)
		if n > 0 {
			empty = 0
			out = growEntry(out, n, maxCap)
			out = append(out, chunk[:n]...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return nil, io.ErrNoProgress
			}
		}
	}
}

// growEntry makes room for n more bytes in b without letting the capacity
// exceed limit. The caller guarantees len(b)+n <= limit.
func growEntry(b []byte, n int, limit int64) []byte {
	need := int64(len(b) + n)
	if need <= int64(cap(b)) {
		return b
	}
	size := max(2*int64(cap(b)), need)
	if size > limit {
		size = limit
	}
	nb := make([]byte, len(b), size)
	copy(nb, b)
	return nb
}
