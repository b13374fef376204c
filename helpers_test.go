// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip_test

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cardforge/go-cardzip"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// zipFile is one entry of a generated test archive.
type zipFile struct {
	Name   string
	Body   []byte
	Method uint16
	Store  bool
}

// createZip generates an archive with files. Entries use deflate unless a
// method is given or Store is set; zstd and xz are registered.
func createZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(cardzip.MethodZstd, zstd.ZipCompressor(zstd.WithEncoderConcurrency(1), zstd.WithWindowSize(1<<20)))
	w.RegisterCompressor(cardzip.MethodXz, func(out io.Writer) (io.WriteCloser, error) {
		return xzWriter(out)
	})
	for _, f := range files {
		method := f.Method
		if method == 0 && !f.Store && !strings.HasSuffix(f.Name, "/") {
			method = zip.Deflate
		}
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   method,
			Modified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		_, err = fw.Write(f.Body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// xzWriter returns an xz writer with a 1 MiB dictionary, small enough for
// the limits used in tests.
func xzWriter(w io.Writer) (io.WriteCloser, error) {
	return xz.WriterConfig{DictCap: 1 << 20}.NewWriter(w)
}

// createStoredZip generates an archive with uncompressed entries.
func createStoredZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	for i := range files {
		files[i].Method = zip.Store
		files[i].Store = true
	}
	return createZip(t, files...)
}

// rawEntry is an entry written with CreateRaw, so its header can lie.
type rawEntry struct {
	Name             string
	Method           uint16
	Flags            uint16
	Data             []byte // already compressed
	CRC32            uint32
	UncompressedSize uint64
}

// createRawZip generates an archive from raw entries.
func createRawZip(t *testing.T, entries ...rawEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.CreateRaw(&zip.FileHeader{
			Name:               e.Name,
			Method:             e.Method,
			Flags:              e.Flags,
			CRC32:              e.CRC32,
			CompressedSize64:   uint64(len(e.Data)),
			UncompressedSize64: e.UncompressedSize,
		})
		require.NoError(t, err)
		_, err = fw.Write(e.Data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// deflate compresses data with the deflate algorithm.
func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

// bombEntry returns a deflate entry that expands to size zero bytes while
// declaring only declared bytes. The checksum matches the real content.
func bombEntry(t *testing.T, name string, size int, declared uint64) rawEntry {
	t.Helper()
	payload := make([]byte, size)
	return rawEntry{
		Name:             name,
		Method:           zip.Deflate,
		Data:             deflate(t, payload),
		CRC32:            crc32.ChecksumIEEE(payload),
		UncompressedSize: declared,
	}
}

// lzmaEntry returns an entry compressed with zip method 14 and an end marker.
func lzmaEntry(t *testing.T, name string, data []byte) rawEntry {
	t.Helper()
	var buf bytes.Buffer
	lw, err := lzma.WriterConfig{EOSMarker: true}.NewWriter(&buf)
	require.NoError(t, err)
	_, err = lw.Write(data)
	require.NoError(t, err)
	require.NoError(t, lw.Close())

	// classic header: properties (1), dictionary (4), size (8)
	classic := buf.Bytes()
	payload := []byte{9, 20, 5, 0}
	payload = append(payload, classic[:5]...)
	payload = append(payload, classic[lzma.HeaderLen:]...)
	return rawEntry{
		Name:             name,
		Method:           cardzip.MethodLZMA,
		Flags:            0x2,
		Data:             payload,
		CRC32:            crc32.ChecksumIEEE(data),
		UncompressedSize: uint64(len(data)),
	}
}

// xzStream compresses data into a single xz stream.
func xzStream(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xzWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// setXzDictionary rewrites the LZMA2 dictionary byte of the first block
// header of stream and fixes the header checksum.
func setXzDictionary(t *testing.T, stream []byte, code byte) []byte {
	t.Helper()
	out := bytes.Clone(stream)
	const start = 12 // stream header
	n := (int(out[start]) + 1) * 4
	flags := out[start+1]
	require.Zero(t, flags&0x03, "single filter expected")

	pos := start + 2
	for _, present := range []byte{0x40, 0x80} {
		if flags&present != 0 {
			_, k := binary.Uvarint(out[pos:])
			require.Positive(t, k)
			pos += k
		}
	}
	require.Equal(t, []byte{0x21, 0x01}, out[pos:pos+2], "LZMA2 filter expected")
	out[pos+2] = code
	binary.LittleEndian.PutUint32(out[start+n-4:], crc32.ChecksumIEEE(out[start:start+n-4]))
	return out
}

// zstdLargeWindowFrame is a zstd frame declaring a 128 MiB window that
// decodes to the single byte "x".
var zstdLargeWindowFrame = []byte{
	0x28, 0xb5, 0x2f, 0xfd, // magic
	0x00,                   // frame header descriptor: window descriptor follows
	0x88,                   // window log 27
	0x09, 0x00, 0x00,       // last raw block of 1 byte
	'x',
}

// withPrefix returns data with n bytes of garbage in front.
func withPrefix(n int, data []byte) []byte {
	prefix := bytes.Repeat([]byte{0xAB}, n)
	return append(prefix, data...)
}

// directoryEnd returns the position of the last end of central directory record.
func directoryEnd(t *testing.T, data []byte) int {
	t.Helper()
	pos := bytes.LastIndex(data, []byte("PK\x05\x06"))
	require.GreaterOrEqual(t, pos, 0)
	return pos
}

// setDeclaredEntries patches the entry counts of the end record.
func setDeclaredEntries(t *testing.T, data []byte, n uint16) []byte {
	t.Helper()
	out := bytes.Clone(data)
	pos := directoryEnd(t, out)
	binary.LittleEndian.PutUint16(out[pos+8:], n)
	binary.LittleEndian.PutUint16(out[pos+10:], n)
	return out
}

// requireKind asserts that err is a [*cardzip.Error] of kind.
func requireKind(t *testing.T, err error, kind cardzip.ErrorKind) *cardzip.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := cardzip.AsError(err)
	require.True(t, ok, "error %v is not a *cardzip.Error", err)
	require.Equal(t, kind, e.Kind, "unexpected kind for %v", err)
	return e
}
