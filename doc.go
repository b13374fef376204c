// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

// Package cardzip identifies character card containers and extracts zip based
// card bundles from untrusted input with bounded work and bounded memory.
//
// [Classify] decides whether a buffer is a PNG card, a CharX bundle, a Voxta
// package, a JSON document or unknown. Zip archives are found with [Locate],
// which anchors on the end of central directory record, so archives appended
// to images or executable stubs are recognized at their true offset.
//
// [Preflight] rejects archives whose declared central directory already
// violates the [Limits]. [Extract] re-enforces the same limits on the bytes
// actually produced while decompressing and returns all entries or none.
// [IsSafe] and [WriteEntries] guard the way from extracted entries to disk.
//
// Configuration is done using the [Config], which carries the limits, the
// logger, the telemetry hook and the target options. All errors of the
// package are of type [*Error]; its Kind tells limit violations, malformed
// input and path traversal apart.
package cardzip
