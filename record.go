// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"encoding/binary"
	"time"
)

// record is a zip structure read in place. Field offsets count from the
// first byte of the signature; callers check the length first.
type record []byte

func (r record) u16(off int) uint16 { return binary.LittleEndian.Uint16(r[off:]) }
func (r record) u32(off int) uint32 { return binary.LittleEndian.Uint32(r[off:]) }
func (r record) u64(off int) uint64 { return binary.LittleEndian.Uint64(r[off:]) }

// central directory header fields
const (
	cdFlags       = 8
	cdMethod      = 10
	cdModTime     = 12
	cdModDate     = 14
	cdCRC32       = 16
	cdCompressed  = 20
	cdSize        = 24
	cdNameLen     = 28
	cdExtraLen    = 30
	cdCommentLen  = 32
	cdLocalOffset = 42
)

// local file header fields
const (
	lfNameLen  = 26
	lfExtraLen = 28
)

// end of central directory fields
const (
	eocdDisk          = 4
	eocdDirDisk       = 6
	eocdRecordsOnDisk = 8
	eocdRecords       = 10
	eocdDirSize       = 12
	eocdDirOffset     = 16
	eocdCommentLen    = 20
)

// zip64 locator and zip64 end record fields
const (
	z64LocDisk      = 4
	z64LocEndOffset = 8
	z64LocDisks     = 16

	z64EndRecordsOnDisk = 24
	z64EndRecords       = 32
	z64EndDirSize       = 40
	z64EndDirOffset     = 48
)

// hasSignature reports whether data holds the little-endian signature sig at pos.
func hasSignature(data []byte, pos int64, sig uint32) bool {
	if pos < 0 || pos+4 > int64(len(data)) {
		return false
	}
	return record(data[pos:]).u32(0) == sig
}

// dosDateTime decodes an MS-DOS date and time stamp as UTC. Seconds are
// stored halved, so the resolution is two seconds.
func dosDateTime(date, clock uint16) time.Time {
	field := func(v uint16, shift, width uint) int {
		return int(v>>shift) & (1<<width - 1)
	}
	year := 1980 + field(date, 9, 7)
	month := time.Month(field(date, 5, 4))
	day := field(date, 0, 5)
	hour := field(clock, 11, 5)
	minute := field(clock, 5, 6)
	second := 2 * field(clock, 0, 5)
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}
