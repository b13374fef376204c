// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Target specifies all function that are needed to be implemented to write
// extracted entries to a filesystem.
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned. The
	// size of the file must not exceed maxSize. The number of bytes written is returned, also along with an error.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error)

	// CreateDir creates at the specified path with the specified mode. If the directory already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in the extraction path
	// and for zip-slip attacks.
	Lstat(path string) (fs.FileInfo, error)
}

// WriteEntries writes entries below the directory dst on disk. See [WriteEntriesTo].
func WriteEntries(ctx context.Context, dst string, entries Entries, cfg *Config) error {
	return WriteEntriesTo(ctx, NewTargetDisk(), dst, entries, cfg)
}

// WriteEntriesTo writes entries below dst in t, in lexical name order. Every
// name must pass [IsSafe], stay local to dst after joining and must not cross
// a symlink; otherwise a [KindPathTraversal] error is returned and no further
// entry is written. Each file is bounded by the configured MaxFileSize.
// Existing files are only replaced if the config allows overwriting.
func WriteEntriesTo(ctx context.Context, t Target, dst string, entries Entries, cfg *Config) error {
	// prepare telemetry capturing
	m := &TelemetryData{Operation: "write"}
	defer cfg.TelemetryHook()(ctx, m)
	defer captureExtractionDuration(m, now())

	cfg.Logger().Info("writing entries", "dst", dst, "entries", len(entries))
	for _, name := range entries.Names() {
		if err := ctx.Err(); err != nil {
			return handleError(cfg, m, "context error", err)
		}
		data := entries[name]
		m.InputSize += int64(len(data))

		if !IsSafe(name) {
			return handleError(cfg, m, "unsafe entry name", traversalError("write", name, nil))
		}
		n, err := createFile(t, dst, name, bytes.NewReader(data), cfg.CustomFileMode(), cfg.Limits().MaxFileSize, cfg)
		m.ExtractionSize += n
		if err != nil {
			return handleError(cfg, m, "cannot create file", err)
		}
		m.ExtractedFiles++
	}
	return nil
}

// createFile is a wrapper around the CreateFile function
//
// If the directory for the file does not exist, it will be created with the config.CustomCreateDirMode().
//
// If the path contains path traversal or a symlink, the function returns a [KindPathTraversal] error.
//
// If the file is created successfully, the function returns the number of bytes written and nil.
func createFile(t Target, dst string, name string, src io.Reader, mode fs.FileMode, maxSize int64, cfg *Config) (int64, error) {
	// check if a name is provided
	if len(name) == 0 {
		return 0, fmt.Errorf("cannot create file without name")
	}

	// adjust path to by os specific
	parts := strings.Split(strings.ReplaceAll(name, `\`, "/"), "/")
	name = filepath.Join(parts...)

	// ensures that the directory exists and is safe to write to
	if err := createDir(t, dst, filepath.Dir(name), cfg.CustomCreateDirMode(), cfg); err != nil {
		return 0, fmt.Errorf("cannot create directory: %w", err)
	}

	// ensure that if the file exist that it is not a symlink
	if err := securityCheck(t, dst, name); err != nil {
		return 0, err
	}
	path := filepath.Join(dst, name)
	n, err := t.CreateFile(path, src, mode, cfg.Overwrite(), maxSize)
	if err != nil && isSymlinkLoop(err) {
		return n, traversalError("write", name, err)
	}
	return n, err
}

// createDir is a wrapper around the CreateDir function
//
// If the destination does not exist, it is created if config.CreateDestination()
// allows it. If the path contains path traversal or a symlink, the function
// returns a [KindPathTraversal] error.
func createDir(t Target, dst string, name string, mode fs.FileMode, cfg *Config) error {
	// check if dst exists
	if len(dst) > 0 {
		if _, err := t.Lstat(dst); os.IsNotExist(err) {
			if cfg.CreateDestination() {
				if err := t.CreateDir(dst, cfg.CustomCreateDirMode()); err != nil {
					return fmt.Errorf("failed to create destination directory %w", err)
				}
				cfg.Logger().Info("created destination directory", "path", dst)
			} else {
				return fmt.Errorf("destination does not exist")
			}
		}
	}

	// no action needed
	if name == "." {
		return nil
	}

	// perform security check to ensure that the path is safe to write to
	if err := securityCheck(t, dst, name); err != nil {
		return err
	}

	return t.CreateDir(filepath.Join(dst, name), mode)
}

// securityCheck checks if path, relative to dst, contains path traversal
// and if any existing component of it is a symlink.
func securityCheck(t Target, dst string, path string) error {
	// check if dstBase is empty, then targetDirectory should not be an absolute path
	if len(dst) == 0 && filepath.IsAbs(path) {
		return traversalError("write", path, fmt.Errorf("absolute path detected"))
	}

	// get relative path from base to new directory target
	rel, err := filepath.Rel(dst, filepath.Join(dst, path))
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}
	// check if the relative path is local
	if !filepath.IsLocal(rel) {
		return traversalError("write", path, nil)
	}

	// check each dir in path
	targetPathElements := strings.Split(path, string(os.PathSeparator))
	for i := 0; i < len(targetPathElements); i++ {

		// assemble path
		subDirs := filepath.Join(targetPathElements[0 : i+1]...)
		checkDir := filepath.Join(dst, subDirs)

		if len(checkDir) == 0 || checkDir == "." {
			continue
		}

		// check for symlink
		stat, err := t.Lstat(checkDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("invalid path: %w", err)
		}
		if stat.Mode()&os.ModeSymlink == os.ModeSymlink {
			return traversalError("write", path, fmt.Errorf("symlink in path: %s", subDirs))
		}
	}

	return nil
}
