// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TargetMemory is an in-memory [Target]. Written entries can be read back
// through the [fs.FS] interface, which makes it useful for dry runs and
// tests. Permissions are recorded but not enforced.
type TargetMemory struct {
	files sync.Map // map[string]*memoryEntry
}

// NewTargetMemory creates an empty in-memory target.
func NewTargetMemory() *TargetMemory {
	return &TargetMemory{}
}

// memoryEntry is a file or directory of a [TargetMemory].
type memoryEntry struct {
	info memoryFileInfo
	data []byte
}

// CreateFile stores the content of src at path. Existing files are only
// replaced if overwrite is set; writing stops with io.ErrShortWrite once
// maxSize bytes are stored.
func (m *TargetMemory) CreateFile(p string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	p = filepath.ToSlash(p)
	if !fs.ValidPath(p) {
		return 0, fmt.Errorf("%w: %s", fs.ErrInvalid, p)
	}
	if e, ok := m.files.Load(p); ok {
		if e.(*memoryEntry).info.IsDir() {
			return 0, fmt.Errorf("is a directory: %s", p)
		}
		if !overwrite {
			return 0, fmt.Errorf("%w: %s", fs.ErrExist, p)
		}
	}

	var buf bytes.Buffer
	n, err := io.Copy(newLimitErrorWriter(&buf, maxSize), src)
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	m.files.Store(p, &memoryEntry{
		info: memoryFileInfo{name: path.Base(p), size: n, mode: mode.Perm(), modTime: now()},
		data: buf.Bytes(),
	})
	return n, nil
}

// CreateDir records the directory at path. Nothing is done if it exists.
func (m *TargetMemory) CreateDir(p string, mode fs.FileMode) error {
	p = filepath.ToSlash(p)
	if !fs.ValidPath(p) {
		return fmt.Errorf("%w: %s", fs.ErrInvalid, p)
	}
	m.files.LoadOrStore(p, &memoryEntry{
		info: memoryFileInfo{name: path.Base(p), mode: mode.Perm() | fs.ModeDir, modTime: now()},
	})
	return nil
}

// Lstat returns the FileInfo for path.
func (m *TargetMemory) Lstat(p string) (fs.FileInfo, error) {
	p = filepath.ToSlash(p)
	if !fs.ValidPath(p) {
		return nil, &fs.PathError{Op: "lstat", Path: p, Err: fs.ErrInvalid}
	}
	if e, ok := m.files.Load(p); ok {
		return e.(*memoryEntry).info, nil
	}
	return nil, &fs.PathError{Op: "lstat", Path: p, Err: fs.ErrNotExist}
}

// Open implements [fs.FS] for files. Directories cannot be opened.
func (m *TargetMemory) Open(p string) (fs.File, error) {
	if !fs.ValidPath(p) {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrInvalid}
	}
	e, ok := m.files.Load(p)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	me := e.(*memoryEntry)
	if me.info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fmt.Errorf("cannot open directory")}
	}
	return &memoryFile{info: me.info, r: bytes.NewReader(me.data)}, nil
}

// Files returns the paths of all stored files in lexical order.
func (m *TargetMemory) Files() []string {
	var files []string
	m.files.Range(func(k, v any) bool {
		if !v.(*memoryEntry).info.IsDir() {
			files = append(files, k.(string))
		}
		return true
	})
	sort.Strings(files)
	return files
}

// memoryFile is an open file of a [TargetMemory].
type memoryFile struct {
	info memoryFileInfo
	r    *bytes.Reader
}

func (f *memoryFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memoryFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *memoryFile) Close() error               { return nil }

// memoryFileInfo implements [fs.FileInfo] for entries of a [TargetMemory].
type memoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (fi memoryFileInfo) Name() string       { return fi.name }
func (fi memoryFileInfo) Size() int64        { return fi.size }
func (fi memoryFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi memoryFileInfo) ModTime() time.Time { return fi.modTime }
func (fi memoryFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi memoryFileInfo) Sys() any           { return nil }
