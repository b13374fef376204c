// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TelemetryData holds all telemetry data of an extraction or a disk write.
type TelemetryData struct {
	// ArchiveOffset is the length of the prefix in front of the zip structure
	ArchiveOffset int64 `json:"archive_offset"`

	// DetectedFormat is the format reported by the classifier, if known
	DetectedFormat string `json:"detected_format"`

	// EntriesListed is the number of central directory records
	EntriesListed int64 `json:"entries_listed"`

	// ExtractionDuration is the time it took to extract the archive
	ExtractionDuration time.Duration `json:"extraction_duration"`

	// ExtractionErrors is the number of errors during extraction
	ExtractionErrors int64 `json:"extraction_errors"`

	// ExtractedFiles is the number of extracted or written files
	ExtractedFiles int64 `json:"extracted_files"`

	// ExtractionSize is the number of decompressed or written bytes
	ExtractionSize int64 `json:"extraction_size"`

	// InputSize is the size of the input
	InputSize int64 `json:"input_size"`

	// LastExtractionError is the last error during extraction
	LastExtractionError error `json:"last_extraction_error"`

	// Operation is the operation the data was captured for
	Operation string `json:"operation"`

	// SkippedDirs is the number of skipped directory entries
	SkippedDirs int64 `json:"skipped_dirs"`

	// SkippedEmpty is the number of skipped zero-byte entries
	SkippedEmpty int64 `json:"skipped_empty"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastExtractionError != nil {
		lastError = m.LastExtractionError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastExtractionError string `json:"last_extraction_error"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after an extraction has finished which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// Equals returns true if the given [TelemetryData] is equal to the receiver.
// The duration and the error are not compared.
func (td *TelemetryData) Equals(other *TelemetryData) bool {
	if td == nil && other == nil {
		return true
	}
	if td == nil || other == nil {
		return false
	}
	return td.ArchiveOffset == other.ArchiveOffset &&
		td.DetectedFormat == other.DetectedFormat &&
		td.EntriesListed == other.EntriesListed &&
		td.ExtractionErrors == other.ExtractionErrors &&
		td.ExtractedFiles == other.ExtractedFiles &&
		td.ExtractionSize == other.ExtractionSize &&
		td.InputSize == other.InputSize &&
		td.Operation == other.Operation &&
		td.SkippedDirs == other.SkippedDirs &&
		td.SkippedEmpty == other.SkippedEmpty
}

// now is replaced in tests
var now = time.Now

// captureExtractionDuration captures the duration of the extraction
func captureExtractionDuration(m *TelemetryData, start time.Time) {
	stop := now()
	m.ExtractionDuration = stop.Sub(start)
}

// handleError records err in the telemetry data, logs it and returns it.
func handleError(c *Config, td *TelemetryData, msg string, err error) error {
	td.ExtractionErrors++
	td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)
	c.Logger().Error(msg, "error", err)
	return err
}
