// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"bytes"
)

// Kind is the probable container kind of a raw buffer.
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindPNG     Kind = "png"
	KindJPEG    Kind = "jpeg"
	KindZip     Kind = "zip"
	KindJSON    Kind = "json"
)

// SniffResult is the outcome of [Sniff]. Offset is the number of bytes in front
// of the zip structure for [KindZip] and 0 otherwise.
type SniffResult struct {
	Kind   Kind
	Offset int64
}

// magicBytesPNG is the 8 byte png signature.
// reference: https://www.w3.org/TR/png/#5PNG-file-signature
var magicBytesPNG = [][]byte{
	{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
}

// magicBytesJPEG is the jpeg start-of-image marker followed by the first marker prefix.
// reference: https://www.w3.org/Graphics/JPEG/itu-t81.pdf (B.1.1.3)
var magicBytesJPEG = [][]byte{
	{0xFF, 0xD8, 0xFF},
}

// utf8BOM is skipped in front of json documents.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// isPNG checks if data starts with the png signature.
func isPNG(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesPNG)
}

// isJPEG checks if data starts with a jpeg start-of-image marker.
func isJPEG(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesJPEG)
}

// looksLikeJSON reports whether the first byte after an optional UTF-8 BOM and
// ASCII whitespace opens an object or an array. The syntax is not validated.
func looksLikeJSON(data []byte) bool {
	data = bytes.TrimPrefix(data, utf8BOM)
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

// IsZip reports whether data contains a coherent zip structure at any offset.
func IsZip(data []byte) bool {
	_, err := Locate(data)
	return err == nil
}

// Sniff classifies the probable kind of data from magic bytes and light
// content sniffing. Images are checked at offset 0, zip structure anywhere in
// the buffer through [Locate], json last.
func Sniff(data []byte) SniffResult {
	switch {
	case len(data) == 0:
		return SniffResult{Kind: KindUnknown}
	case isPNG(data):
		return SniffResult{Kind: KindPNG}
	}

	// a jpeg+zip hybrid starts like a normal jpeg, the archive wins
	if loc, err := Locate(data); err == nil {
		return SniffResult{Kind: KindZip, Offset: loc.Offset}
	}

	switch {
	case isJPEG(data):
		return SniffResult{Kind: KindJPEG}
	case looksLikeJSON(data):
		return SniffResult{Kind: KindJSON}
	}
	return SniffResult{Kind: KindUnknown}
}

// matchesMagicBytes checks if data contains one of magicBytes at offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, mb := range magicBytes {
		if offset+len(mb) > len(data) {
			continue
		}
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}
	return false
}
