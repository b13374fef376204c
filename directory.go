// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"io"
	"math"
	"strings"
	"time"
)

const (
	flagEncrypted = 0x1
	flagLZMAEOS   = 0x2

	zip64ExtraID = 0x0001
)

// EntryInfo is the central directory record of one archive entry. Sizes are
// the declared values and may be falsified.
type EntryInfo struct {
	Name              string
	Method            uint16
	Flags             uint16
	CRC32             uint32
	CompressedSize    int64
	UncompressedSize  int64
	LocalHeaderOffset int64 // relative to Location.Offset
	Modified          time.Time
}

// IsDir reports whether the entry names a directory.
func (e *EntryInfo) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// IsEncrypted reports whether the entry data is encrypted.
func (e *EntryInfo) IsEncrypted() bool {
	return e.Flags&flagEncrypted != 0
}

// directoryWalker walks the central directory records described by a
// [Location] without touching any entry data.
type directoryWalker struct {
	data []byte
	loc  Location
	pos  int64
	end  int64
	n    int64
}

func newDirectoryWalker(data []byte, loc Location) *directoryWalker {
	return &directoryWalker{
		data: data,
		loc:  loc,
		pos:  loc.DirectoryOffset,
		end:  loc.DirectoryOffset + loc.DirectorySize,
	}
}

// Count returns the number of records read so far.
func (w *directoryWalker) Count() int64 {
	return w.n
}

// Next returns the next record. After the declared number of records it
// returns io.EOF, provided the records consumed exactly the declared
// directory size. Any disagreement between the declared count, the declared
// size and the records found is a [KindParse] error.
func (w *directoryWalker) Next() (*EntryInfo, error) {
	if w.n == w.loc.Entries {
		if w.pos != w.end {
			return nil, parseError("directory", "", "%d bytes left after %d declared records", w.end-w.pos, w.loc.Entries)
		}
		return nil, io.EOF
	}
	if w.end-w.pos < directoryHeaderLen {
		return nil, parseError("directory", "", "directory holds %d records, %d declared", w.n, w.loc.Entries)
	}
	if !hasSignature(w.data, w.pos, directoryHeaderSignature) {
		return nil, parseError("directory", "", "bad record signature at offset %d", w.pos)
	}

	h := record(w.data[w.pos : w.pos+directoryHeaderLen])
	e := &EntryInfo{
		Flags:    h.u16(cdFlags),
		Method:   h.u16(cdMethod),
		CRC32:    h.u32(cdCRC32),
		Modified: dosDateTime(h.u16(cdModDate), h.u16(cdModTime)),
	}
	compressed := uint64(h.u32(cdCompressed))
	uncompressed := uint64(h.u32(cdSize))
	offset := uint64(h.u32(cdLocalOffset))
	nameLen := int64(h.u16(cdNameLen))
	extraLen := int64(h.u16(cdExtraLen))
	commentLen := int64(h.u16(cdCommentLen))

	recLen := directoryHeaderLen + nameLen + extraLen + commentLen
	if w.end-w.pos < recLen {
		return nil, parseError("directory", "", "record %d overruns the directory", w.n)
	}
	rec := w.data[w.pos : w.pos+recLen]
	e.Name = string(rec[directoryHeaderLen : directoryHeaderLen+nameLen])

	// zip64 extra field replaces saturated values, in this order
	needUSize := uncompressed == math.MaxUint32
	needCSize := compressed == math.MaxUint32
	needOffset := offset == math.MaxUint32
	extra := record(rec[directoryHeaderLen+nameLen : directoryHeaderLen+nameLen+extraLen])
	for p := 0; p+4 <= len(extra); {
		tag := extra.u16(p)
		size := int(extra.u16(p + 2))
		p += 4
		if size > len(extra)-p {
			break
		}
		if tag == zip64ExtraID {
			field := extra[p : p+size]
			next := func(need *bool, v *uint64) {
				if *need && len(field) >= 8 {
					*need = false
					*v = field.u64(0)
					field = field[8:]
				}
			}
			next(&needUSize, &uncompressed)
			next(&needCSize, &compressed)
			next(&needOffset, &offset)
		}
		p += size
	}
	if needUSize || needCSize || needOffset {
		return nil, parseError("directory", e.Name, "missing zip64 extra field")
	}
	if uncompressed > math.MaxInt64 || compressed > math.MaxInt64 || offset > math.MaxInt64 {
		return nil, parseError("directory", e.Name, "declared size out of range")
	}
	e.UncompressedSize = int64(uncompressed)
	e.CompressedSize = int64(compressed)
	e.LocalHeaderOffset = int64(offset)

	w.pos += recLen
	w.n++
	return e, nil
}

// ListEntries locates the archive in data and returns all central directory
// records in directory order. No entry data is read.
func ListEntries(data []byte) ([]*EntryInfo, Location, error) {
	loc, err := Locate(data)
	if err != nil {
		return nil, Location{}, err
	}
	w := newDirectoryWalker(data, loc)
	var entries []*EntryInfo
	for {
		e, err := w.Next()
		if err == io.EOF {
			return entries, loc, nil
		}
		if err != nil {
			return nil, loc, err
		}
		entries = append(entries, e)
	}
}
