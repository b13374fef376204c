// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Compression methods understood by the extractor.
const (
	MethodStore      uint16 = 0
	MethodDeflate    uint16 = 8
	MethodBzip2      uint16 = 12
	MethodLZMA       uint16 = 14
	MethodZstdPKWare uint16 = zstd.ZipMethodPKWare
	MethodZstd       uint16 = zstd.ZipMethodWinZip
	MethodXz         uint16 = 95
)

const (
	maxZstdWindowSize  = 128 << 20
	lzmaZipHeaderLen   = 4
	lzmaPropertiesSize = 5
)

// xz stream and block header layout
const (
	xzStreamHeaderLen            = 12
	xzBlockFlagsFilterCount      = 0x03
	xzBlockFlagsReserved         = 0x3c
	xzBlockFlagsCompressedSize   = 0x40
	xzBlockFlagsUncompressedSize = 0x80
	xzFilterLZMA2                = 0x21
)

// decompressFunc returns a reader producing the uncompressed data of e from
// its compressed bytes in src. The returned reader must be closed.
type decompressFunc func(src []byte, e *EntryInfo, limits Limits) (io.ReadCloser, error)

type zipMethod struct {
	Name       string
	Decompress decompressFunc
}

// zipMethods is the read-only collection of supported compression methods.
var zipMethods = map[uint16]zipMethod{
	MethodStore:      {Name: "store", Decompress: decompressStore},
	MethodDeflate:    {Name: "deflate", Decompress: decompressDeflate},
	MethodBzip2:      {Name: "bzip2", Decompress: decompressBzip2},
	MethodLZMA:       {Name: "lzma", Decompress: decompressLZMA},
	MethodZstdPKWare: {Name: "zstd", Decompress: decompressZstd},
	MethodZstd:       {Name: "zstd", Decompress: decompressZstd},
	MethodXz:         {Name: "xz", Decompress: decompressXz},
}

// MethodName returns a readable name for a zip compression method.
func MethodName(method uint16) string {
	if m, ok := zipMethods[method]; ok {
		return m.Name
	}
	return fmt.Sprintf("method(%d)", method)
}

// MethodSupported reports whether entries compressed with method can be extracted.
func MethodSupported(method uint16) bool {
	_, ok := zipMethods[method]
	return ok
}

func decompressStore(src []byte, _ *EntryInfo, _ Limits) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(src)), nil
}

func decompressDeflate(src []byte, _ *EntryInfo, _ Limits) (io.ReadCloser, error) {
	return flate.NewReader(bytes.NewReader(src)), nil
}

func decompressBzip2(src []byte, _ *EntryInfo, _ Limits) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(bytes.NewReader(src))), nil
}

// decompressZstd uses a single-threaded decoder whose window is bounded by
// MaxFileSize, capped at maxZstdWindowSize. Frames declaring a larger window
// fail before the history buffer is allocated.
func decompressZstd(src []byte, _ *EntryInfo, limits Limits) (io.ReadCloser, error) {
	d, err := zstd.NewReader(bytes.NewReader(src),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(zstdWindowSize(limits)),
	)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

func zstdWindowSize(limits Limits) uint64 {
	return uint64(min(max(limits.MaxFileSize, zstd.MinWindowSize), maxZstdWindowSize))
}

// decompressXz refuses streams whose blocks declare a dictionary larger than
// any entry within the limits could use, since the reader allocates the
// declared dictionary up front.
func decompressXz(src []byte, _ *EntryInfo, limits Limits) (io.ReadCloser, error) {
	if err := checkXzDictionary(src, limits); err != nil {
		return nil, err
	}
	r, err := xz.ReaderConfig{SingleStream: true}.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

// checkXzDictionary returns an error if a block header of the xz stream in
// data declares an LZMA2 dictionary above max(MaxFileSize, lzma.MinDictCap).
// Block headers sit at 4-byte aligned offsets and carry a CRC-32, so every
// aligned offset is tried rather than trusting the index.
func checkXzDictionary(data []byte, limits Limits) error {
	limit := max(limits.MaxFileSize, lzma.MinDictCap)
	for pos := xzStreamHeaderLen; pos+8 <= len(data); pos += 4 {
		dictCap, ok := xzBlockDictCap(data[pos:])
		if ok && dictCap > limit {
			return fmt.Errorf("xz block at offset %d declares a %d byte dictionary, at most %d allowed", pos, dictCap, limit)
		}
	}
	return nil
}

// xzBlockDictCap parses the block header at the start of b and returns the
// dictionary capacity of its single LZMA2 filter. It reports false for
// anything that is not a well-formed block header.
func xzBlockDictCap(b []byte) (int64, bool) {
	if b[0] == 0 {
		return 0, false // index indicator
	}
	n := (int(b[0]) + 1) * 4
	if n > len(b) {
		return 0, false
	}
	flags := b[1]
	if flags&(xzBlockFlagsReserved|xzBlockFlagsFilterCount) != 0 {
		return 0, false
	}
	h := b[2 : n-4]
	for _, present := range []byte{xzBlockFlagsCompressedSize, xzBlockFlagsUncompressedSize} {
		if flags&present == 0 {
			continue
		}
		_, k := binary.Uvarint(h)
		if k <= 0 {
			return 0, false
		}
		h = h[k:]
	}
	if len(h) < 3 || h[0] != xzFilterLZMA2 || h[1] != 1 {
		return 0, false
	}
	dictCap, err := lzma.DecodeDictCap(h[2])
	if err != nil {
		return 0, false
	}
	if crc32.ChecksumIEEE(b[:n-4]) != binary.LittleEndian.Uint32(b[n-4:n]) {
		return 0, false
	}
	return dictCap, true
}

// decompressLZMA converts the zip LZMA header (version, properties size,
// properties) into a classic LZMA header. The dictionary capacity taken from
// the properties is clamped to MaxFileSize, as no valid entry within the
// limits can reference data further back than its own size.
func decompressLZMA(src []byte, e *EntryInfo, limits Limits) (io.ReadCloser, error) {
	if len(src) < lzmaZipHeaderLen+lzmaPropertiesSize {
		return nil, fmt.Errorf("read lzma header: %w", io.ErrUnexpectedEOF)
	}
	if n := binary.LittleEndian.Uint16(src[2:]); n != lzmaPropertiesSize {
		return nil, fmt.Errorf("unexpected lzma properties size %d", n)
	}

	h := make([]byte, lzma.HeaderLen)
	copy(h, src[lzmaZipHeaderLen:lzmaZipHeaderLen+lzmaPropertiesSize])
	dictCap := int64(binary.LittleEndian.Uint32(h[1:5]))
	if dictCap > limits.MaxFileSize {
		dictCap = limits.MaxFileSize
	}
	if dictCap < lzma.MinDictCap {
		dictCap = lzma.MinDictCap
	}
	binary.LittleEndian.PutUint32(h[1:5], uint32(dictCap))

	size := uint64(e.UncompressedSize)
	if e.Flags&flagLZMAEOS != 0 {
		size = ^uint64(0) // end marker terminates the stream
	}
	binary.LittleEndian.PutUint64(h[5:], size)

	body := src[lzmaZipHeaderLen+lzmaPropertiesSize:]
	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(h), bytes.NewReader(body)))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}
