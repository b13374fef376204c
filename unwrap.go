// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Codec names accepted by [UnwrapCodec].
const (
	CodecBrotli = "br"
	CodecBzip2  = "bz2"
	CodecGZip   = "gz"
	CodecLZ4    = "lz4"
	CodecSnappy = "sz"
	CodecXz     = "xz"
	CodecZlib   = "zz"
	CodecZstd   = "zst"
)

// UnwrapResult is the outcome of [Unwrap]. Codec is empty if the input was
// not compressed, in which case Data is the input itself.
type UnwrapResult struct {
	Codec string
	Data  []byte
}

// streamFunc returns a reader that decompresses src. Codecs that allocate
// from stream headers bound the allocation with limits.
type streamFunc func(src []byte, limits Limits) (io.ReadCloser, error)

type streamCodec struct {
	Name       string
	Decompress streamFunc
	MagicBytes [][]byte
}

// magicBytesGZip are the magic bytes for gzip compressed files.
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// magicBytesZlib is the magic bytes for Zlib files.
// reference https://www.ietf.org/rfc/rfc1950.txt
var magicBytesZlib = [][]byte{
	{0x78, 0x01},
	{0x78, 0x5e},
	{0x78, 0x9c},
	{0x78, 0xda},
}

// magicBytesZstd is the magic bytes for zstandard files.
// reference: https://www.rfc-editor.org/rfc/rfc8878.html
var magicBytesZstd = [][]byte{
	{0x28, 0xb5, 0x2f, 0xfd},
}

// magicBytesBzip2 are the magic bytes for bzip2 compressed files
// reference: https://en.wikipedia.org/wiki/Bzip2
var magicBytesBzip2 = [][]byte{
	[]byte("BZh1"), []byte("BZh2"), []byte("BZh3"),
	[]byte("BZh4"), []byte("BZh5"), []byte("BZh6"),
	[]byte("BZh7"), []byte("BZh8"), []byte("BZh9"),
}

// magicBytesXz is the magic bytes for xz files.
// reference https://tukaani.org/xz/xz-file-format-1.0.4.txt
var magicBytesXz = [][]byte{
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

// magicBytesLZ4 is the magic bytes for LZ4 frames.
// reference https://android.googlesource.com/platform/external/lz4/+/HEAD/doc/lz4_Frame_format.md
var magicBytesLZ4 = [][]byte{
	{0x04, 0x22, 0x4D, 0x18},
}

// magicBytesSnappy is the stream identifier of framed snappy.
var magicBytesSnappy = [][]byte{
	append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...),
}

// streamCodecs is the read-only collection of single stream codecs, in the
// order their magic bytes are tried. Brotli has no magic bytes.
var streamCodecs = []streamCodec{
	{Name: CodecGZip, Decompress: decompressGZipStream, MagicBytes: magicBytesGZip},
	{Name: CodecZstd, Decompress: decompressZstdStream, MagicBytes: magicBytesZstd},
	{Name: CodecBzip2, Decompress: decompressBzip2Stream, MagicBytes: magicBytesBzip2},
	{Name: CodecXz, Decompress: decompressXzStream, MagicBytes: magicBytesXz},
	{Name: CodecLZ4, Decompress: decompressLZ4Stream, MagicBytes: magicBytesLZ4},
	{Name: CodecSnappy, Decompress: decompressSnappyStream, MagicBytes: magicBytesSnappy},
	{Name: CodecZlib, Decompress: decompressZlibStream, MagicBytes: magicBytesZlib},
	{Name: CodecBrotli, Decompress: decompressBrotliStream},
}

// Unwrap decompresses data if it starts with the magic bytes of a single
// stream codec (gzip, zstd, bzip2, xz, lz4, framed snappy, zlib). The output
// is bounded by the configured MaxFileSize with the same chunked counting as
// [ExtractWithConfig]. Input without known magic bytes is returned unchanged.
func Unwrap(data []byte, cfg *Config) (UnwrapResult, error) {
	if err := cfg.CheckInputSize(int64(len(data))); err != nil {
		return UnwrapResult{}, err
	}
	for _, c := range streamCodecs {
		if matchesMagicBytes(data, 0, c.MagicBytes) {
			return unwrapWith(data, c, cfg)
		}
	}
	return UnwrapResult{Data: data}, nil
}

// UnwrapCodec decompresses data with the named codec regardless of its magic
// bytes. This is the only way to decompress brotli.
func UnwrapCodec(data []byte, codec string, cfg *Config) (UnwrapResult, error) {
	if err := cfg.CheckInputSize(int64(len(data))); err != nil {
		return UnwrapResult{}, err
	}
	for _, c := range streamCodecs {
		if c.Name == codec {
			return unwrapWith(data, c, cfg)
		}
	}
	return UnwrapResult{}, fmt.Errorf("unknown codec %q", codec)
}

func unwrapWith(data []byte, c streamCodec, cfg *Config) (UnwrapResult, error) {
	cfg.Logger().Info("decompress", "codec", c.Name, "size", len(data))

	maxSize := cfg.Limits().MaxFileSize
	limits := Limits{MaxFileSize: maxSize, MaxTotalSize: maxSize}
	r, err := c.Decompress(data, limits)
	if err != nil {
		return UnwrapResult{}, parseError("unwrap", "", "cannot start %s decompression: %w", c.Name, err)
	}
	defer r.Close()

	lr := newLimitErrorReader(r, limits, "", 0)
	out := make([]byte, 0, min(int64(len(data)), maxSize, maxInitialEntryCap))
	out, err = readChunks(lr, make([]byte, chunkSize), out, maxSize)
	if err != nil {
		if _, ok := AsError(err); ok {
			return UnwrapResult{}, err
		}
		return UnwrapResult{}, parseError("unwrap", "", "%s: %w", c.Name, err)
	}
	return UnwrapResult{Codec: c.Name, Data: out}, nil
}

// decompressGZipStream returns an io.ReadCloser that decompresses src with gzip algorithm
func decompressGZipStream(src []byte, _ Limits) (io.ReadCloser, error) {
	return gzip.NewReader(bytes.NewReader(src))
}

// decompressZlibStream returns an io.ReadCloser that decompresses src with zlib algorithm
func decompressZlibStream(src []byte, _ Limits) (io.ReadCloser, error) {
	return zlib.NewReader(bytes.NewReader(src))
}

// decompressZstdStream returns an io.ReadCloser that decompresses src with zstandard algorithm
func decompressZstdStream(src []byte, limits Limits) (io.ReadCloser, error) {
	return decompressZstd(src, nil, limits)
}

// decompressBzip2Stream returns an io.ReadCloser that decompresses src with bzip2 algorithm
func decompressBzip2Stream(src []byte, _ Limits) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(bytes.NewReader(src))), nil
}

// decompressXzStream returns an io.ReadCloser that decompresses src with xz algorithm
func decompressXzStream(src []byte, limits Limits) (io.ReadCloser, error) {
	return decompressXz(src, nil, limits)
}

// decompressLZ4Stream returns an io.ReadCloser that decompresses src with lz4 algorithm
func decompressLZ4Stream(src []byte, _ Limits) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(bytes.NewReader(src))), nil
}

// decompressSnappyStream returns an io.ReadCloser that decompresses src with snappy algorithm
func decompressSnappyStream(src []byte, _ Limits) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(bytes.NewReader(src))), nil
}

// decompressBrotliStream returns an io.ReadCloser that decompresses src with brotli algorithm
func decompressBrotliStream(src []byte, _ Limits) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(bytes.NewReader(src))), nil
}
