// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import "io"

// limitErrorReader counts the bytes produced by the underlying reader and
// returns a [KindLimit] error as soon as a read would push the entry past
// MaxFileSize or the running total past MaxTotalSize. The bytes of the
// offending read are dropped and reported as zero, so callers never see
// output beyond the budget.
type limitErrorReader struct {
	R      io.Reader // underlying reader
	limits Limits    // budgets
	phase  Phase     // reported phase
	name   string    // entry name for error detail
	base   int64     // bytes produced before this reader, counted against MaxTotalSize
	N      int64     // number of bytes read
}

// Read reads from the underlying reader into p and enforces the budgets.
func (l *limitErrorReader) Read(p []byte) (int, error) {
	n, err := l.R.Read(p)
	if n <= 0 {
		return n, err
	}

	produced := l.N + int64(n)
	if lerr := l.limits.checkEntry(l.phase, l.name, produced); lerr != nil {
		return 0, lerr
	}
	if lerr := l.limits.checkTotal(l.phase, l.name, addSaturated(l.base, produced)); lerr != nil {
		return 0, lerr
	}
	l.N = produced
	return n, err
}

// ReadBytes returns how many bytes have been read from the underlying reader
func (l *limitErrorReader) ReadBytes() int64 {
	return l.N
}

// newLimitErrorReader returns a new limitErrorReader for the entry name that
// reads from r. base is the cumulative size of the entries read before.
func newLimitErrorReader(r io.Reader, limits Limits, name string, base int64) *limitErrorReader {
	return &limitErrorReader{R: r, limits: limits, phase: PhaseExtract, name: name, base: base}
}
