// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
)

// Format is the container format of a character card.
type Format string

const (
	FormatPNG     Format = "png"
	FormatCharX   Format = "charx"
	FormatVoxta   Format = "voxta"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

// Confidence is how certain a [DetectionResult] is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DetectionResult reports the probable format of a buffer. It is not a
// guarantee; readers of the format still validate the content.
type DetectionResult struct {
	Format     Format     `json:"format"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`

	// Offset is the length of the prefix in front of a zip archive.
	Offset int64 `json:"offset"`

	// Marker is the zip entry that decided the format, if any.
	Marker string `json:"marker,omitempty"`
}

// charXManifest is the manifest entry of a CharX bundle. It counts in any
// directory; one at the root is preferred.
const (
	charXManifest        = "card.json"
	charXManifestPattern = "**/" + charXManifest
)

// voxtaMarkers are the entry patterns of a Voxta package.
var voxtaMarkers = []string{
	"Characters/*/character.json",
	"character.json",
	"MemoryBooks/*/book.json",
	"Scenarios/*/scenario.json",
}

// Classify decides the container format of data. The first match wins:
// empty input, a png signature at offset 0, a zip archive at any offset
// (inspected for CharX and Voxta marker entries), json-looking content.
//
// For zip archives only the central directory is read, which the locator
// finds from the end of the buffer, so the cost does not depend on the size
// of an image or executable in front of the archive.
func Classify(data []byte) DetectionResult {
	switch {
	case len(data) == 0:
		return DetectionResult{Format: FormatUnknown, Confidence: ConfidenceHigh, Reason: "empty input"}
	case isPNG(data):
		return DetectionResult{Format: FormatPNG, Confidence: ConfidenceHigh, Reason: "PNG signature at offset 0"}
	}

	if loc, err := Locate(data); err == nil {
		return classifyZip(data, loc)
	}

	switch {
	case looksLikeJSON(data):
		return DetectionResult{Format: FormatJSON, Confidence: ConfidenceMedium, Reason: "content starts like a JSON document"}
	case isJPEG(data):
		return DetectionResult{Format: FormatUnknown, Confidence: ConfidenceHigh, Reason: "JPEG image without embedded ZIP archive"}
	}
	return DetectionResult{Format: FormatUnknown, Confidence: ConfidenceHigh, Reason: "no known signature"}
}

// classifyZip walks the central directory at loc for marker entries. The
// CharX manifest takes precedence over Voxta markers.
func classifyZip(data []byte, loc Location) DetectionResult {
	res := DetectionResult{Format: FormatUnknown, Confidence: ConfidenceMedium, Offset: loc.Offset}

	var manifest, voxta string
	w := newDirectoryWalker(data, loc)
	for {
		e, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Confidence = ConfidenceLow
			res.Reason = fmt.Sprintf("ZIP %s with unreadable central directory: %v", placement(loc), err)
			return res
		}
		if e.Name == charXManifest {
			manifest = e.Name
			break
		}
		if manifest == "" && !e.IsDir() {
			if ok, _ := doublestar.Match(charXManifestPattern, e.Name); ok {
				manifest = e.Name
			}
		}
		if voxta == "" && isVoxtaMarker(e.Name) {
			voxta = e.Name
		}
	}

	switch {
	case manifest != "":
		res.Format = FormatCharX
		res.Confidence = ConfidenceHigh
		res.Marker = manifest
		res.Reason = fmt.Sprintf("ZIP %s contains %s", placement(loc), manifest)
	case voxta != "":
		res.Format = FormatVoxta
		res.Confidence = ConfidenceHigh
		res.Marker = voxta
		res.Reason = fmt.Sprintf("ZIP %s contains Voxta entry %s", placement(loc), voxta)
	default:
		res.Reason = fmt.Sprintf("ZIP %s without recognized marker", placement(loc))
	}
	return res
}

// isVoxtaMarker reports whether name matches one of the Voxta patterns.
func isVoxtaMarker(name string) bool {
	for _, pattern := range voxtaMarkers {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// placement describes where the archive starts.
func placement(loc Location) string {
	if loc.Offset == 0 {
		return "at offset 0"
	}
	return fmt.Sprintf("at offset %d (SFX/hybrid)", loc.Offset)
}
