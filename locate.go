// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"errors"
	"math"
)

// ErrZipNotFound is returned by [Locate] when the buffer carries no coherent
// end of central directory record.
var ErrZipNotFound = errors.New("no zip end of central directory found")

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50

	fileHeaderLen      = 30 // + filename + extra
	directoryHeaderLen = 46 // + filename + extra + comment
	directoryEndLen    = 22 // + comment
	directory64LocLen  = 20
	directory64EndLen  = 56 // + extra

	// maxCommentLen bounds the zip comment, so the end record is always
	// within the last directoryEndLen+maxCommentLen bytes.
	maxCommentLen = math.MaxUint16
)

// Location describes where a zip archive sits inside a larger buffer. All
// offsets are absolute positions in the buffer.
type Location struct {
	// Offset is the length of the prefix in front of the archive. Offsets
	// stored inside the archive are relative to this position.
	Offset int64

	// DirectoryOffset is the position of the first central directory record.
	DirectoryOffset int64

	// DirectorySize is the declared size of the central directory.
	DirectorySize int64

	// Entries is the declared number of central directory records.
	Entries int64

	// EndOffset is the position of the end of central directory record.
	EndOffset int64

	// Comment is the archive comment.
	Comment string

	// Zip64 is true if the sizes were taken from a zip64 end record.
	Zip64 bool
}

// Locate finds the zip structure inside data by scanning backwards from the
// end for the end of central directory record. The scan is bounded to the last
// directoryEndLen+maxCommentLen bytes. The prefix length is derived from the
// declared size and offset of the central directory, so self-extracting stubs
// and image hybrids are found at their true offset. Candidates whose declared
// values are inconsistent with the buffer are skipped; if none is left an
// error wrapping [ErrZipNotFound] is returned.
func Locate(data []byte) (Location, error) {
	size := int64(len(data))
	if size < directoryEndLen {
		return Location{}, &Error{Kind: KindParse, Op: "locate", Err: ErrZipNotFound}
	}

	start := size - (directoryEndLen + maxCommentLen)
	if start < 0 {
		start = 0
	}
	for i := size - directoryEndLen; i >= start; i-- {
		// 'P' 'K' 0x05 0x06
		if data[i] != 'P' || data[i+1] != 'K' || data[i+2] != 0x05 || data[i+3] != 0x06 {
			continue
		}
		if loc, ok := readDirectoryEnd(data, i); ok {
			return loc, nil
		}
	}
	return Location{}, &Error{Kind: KindParse, Op: "locate", Err: ErrZipNotFound}
}

// readDirectoryEnd decodes the end record at pos and checks that the
// directory it describes fits into data.
func readDirectoryEnd(data []byte, pos int64) (Location, bool) {
	size := int64(len(data))
	h := record(data[pos : pos+directoryEndLen])
	diskNbr := h.u16(eocdDisk)
	dirDiskNbr := h.u16(eocdDirDisk)
	dirRecordsThisDisk := h.u16(eocdRecordsOnDisk)
	dirRecords := h.u16(eocdRecords)
	dirSize := h.u32(eocdDirSize)
	dirOffset := h.u32(eocdDirOffset)
	commentLen := int64(h.u16(eocdCommentLen))

	if pos+directoryEndLen+commentLen > size {
		return Location{}, false
	}
	// multi disk archives are not supported
	if diskNbr != 0 || dirDiskNbr != 0 || dirRecordsThisDisk != dirRecords {
		return Location{}, false
	}

	loc := Location{
		DirectorySize: int64(dirSize),
		Entries:       int64(dirRecords),
		EndOffset:     pos,
		Comment:       string(data[pos+directoryEndLen : pos+directoryEndLen+commentLen]),
	}
	dirEnd := pos
	relOffset := uint64(dirOffset)
	z64Offset := int64(-1)

	// saturated values point to a zip64 end record
	if dirRecords == 0xffff || dirSize == 0xffffffff || dirOffset == 0xffffffff {
		if z, p, ok := readDirectory64End(data, pos); ok {
			if z.records > math.MaxInt64 || z.size > math.MaxInt64 || z.endOffset > uint64(p) {
				return Location{}, false
			}
			loc.Entries = int64(z.records)
			loc.DirectorySize = int64(z.size)
			loc.Zip64 = true
			relOffset = z.offset
			dirEnd = p
			z64Offset = p - int64(z.endOffset)
		}
	}

	// the central directory ends where the end record starts
	if loc.DirectorySize > dirEnd {
		return Location{}, false
	}
	loc.DirectoryOffset = dirEnd - loc.DirectorySize
	if relOffset > uint64(loc.DirectoryOffset) {
		return Location{}, false
	}
	loc.Offset = loc.DirectoryOffset - int64(relOffset)
	if loc.Zip64 && z64Offset != loc.Offset {
		return Location{}, false
	}

	// every record needs at least directoryHeaderLen bytes
	if loc.Entries > loc.DirectorySize/directoryHeaderLen {
		return Location{}, false
	}
	if loc.Entries > 0 && !hasSignature(data, loc.DirectoryOffset, directoryHeaderSignature) {
		return Location{}, false
	}
	if loc.Entries == 0 && loc.DirectorySize != 0 {
		return Location{}, false
	}
	return loc, true
}

// directory64End holds the fields of a zip64 end record.
type directory64End struct {
	records   uint64
	size      uint64
	offset    uint64
	endOffset uint64 // relative offset of the zip64 end record itself
}

// readDirectory64End reads the zip64 locator in front of the end record at
// pos and the zip64 end record it points to. It returns the record and its
// absolute position.
func readDirectory64End(data []byte, pos int64) (directory64End, int64, bool) {
	locPos := pos - directory64LocLen
	if !hasSignature(data, locPos, directory64LocSignature) {
		return directory64End{}, 0, false
	}
	l := record(data[locPos:pos])
	if l.u32(z64LocDisk) != 0 || l.u32(z64LocDisks) != 1 {
		return directory64End{}, 0, false
	}

	// the zip64 end record directly precedes the locator
	recPos := locPos - directory64EndLen
	if !hasSignature(data, recPos, directory64EndSignature) {
		return directory64End{}, 0, false
	}
	r := record(data[recPos:locPos])
	if r.u64(z64EndRecordsOnDisk) != r.u64(z64EndRecords) {
		return directory64End{}, 0, false
	}
	return directory64End{
		records:   r.u64(z64EndRecords),
		size:      r.u64(z64EndDirSize),
		offset:    r.u64(z64EndDirOffset),
		endOffset: l.u64(z64LocEndOffset),
	}, recPos, true
}
