// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cardforge/go-cardzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEntries(t *testing.T) {
	dst := t.TempDir()
	entries := cardzip.Entries{
		"card.json":                  []byte(`{}`),
		"assets/icon/image/main.png": []byte("png"),
		`assets\other\win.txt`:       []byte("win"),
	}

	var td *cardzip.TelemetryData
	cfg := cardzip.NewConfig(cardzip.WithTelemetryHook(func(_ context.Context, d *cardzip.TelemetryData) { td = d }))
	require.NoError(t, cardzip.WriteEntries(context.Background(), dst, entries, cfg))

	for name, want := range map[string]string{
		"card.json":                  `{}`,
		"assets/icon/image/main.png": "png",
		"assets/other/win.txt":       "win",
	} {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got))
	}

	require.NotNil(t, td)
	assert.Equal(t, "write", td.Operation)
	assert.Equal(t, int64(3), td.ExtractedFiles)
	assert.Equal(t, int64(8), td.ExtractionSize)
	assert.Equal(t, int64(0), td.ExtractionErrors)
}

func TestWriteEntriesUnsafeNames(t *testing.T) {
	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/abs.txt", `..\evil.txt`, "C:/evil.txt"} {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			dst := filepath.Join(root, "out")
			require.NoError(t, os.Mkdir(dst, 0750))

			err := cardzip.WriteEntries(context.Background(), dst, cardzip.Entries{name: []byte("x")}, cardzip.NewConfig())
			e := requireKind(t, err, cardzip.KindPathTraversal)
			assert.Equal(t, name, e.Path)
			assert.ErrorIs(t, err, cardzip.ErrPathTraversal)

			_, err = os.Stat(filepath.Join(root, "evil.txt"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestWriteEntriesSymlinkInPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	dst := filepath.Join(root, "out")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.Mkdir(dst, 0750))
	require.NoError(t, os.Mkdir(outside, 0750))
	require.NoError(t, os.Symlink(outside, filepath.Join(dst, "link")))

	err := cardzip.WriteEntries(context.Background(), dst, cardzip.Entries{"link/x.txt": []byte("x")}, cardzip.NewConfig())
	requireKind(t, err, cardzip.KindPathTraversal)

	_, err = os.Stat(filepath.Join(outside, "x.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteEntriesSymlinkAsFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	dst := filepath.Join(root, "out")
	target := filepath.Join(root, "target.txt")
	require.NoError(t, os.Mkdir(dst, 0750))
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0640))
	require.NoError(t, os.Symlink(target, filepath.Join(dst, "card.json")))

	cfg := cardzip.NewConfig(cardzip.WithOverwrite(true))
	err := cardzip.WriteEntries(context.Background(), dst, cardzip.Entries{"card.json": []byte("evil")}, cfg)
	requireKind(t, err, cardzip.KindPathTraversal)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestWriteEntriesOverwrite(t *testing.T) {
	dst := t.TempDir()
	path := filepath.Join(dst, "card.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0640))
	entries := cardzip.Entries{"card.json": []byte("new")}

	err := cardzip.WriteEntries(context.Background(), dst, entries, cardzip.NewConfig())
	require.Error(t, err)
	got, _ := os.ReadFile(path)
	assert.Equal(t, "old", string(got))

	require.NoError(t, cardzip.WriteEntries(context.Background(), dst, entries, cardzip.NewConfig(cardzip.WithOverwrite(true))))
	got, _ = os.ReadFile(path)
	assert.Equal(t, "new", string(got))
}

func TestWriteEntriesCreateDestination(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "foo", "bar")
	entries := cardzip.Entries{"card.json": []byte(`{}`)}

	err := cardzip.WriteEntries(context.Background(), dst, entries, cardzip.NewConfig())
	require.Error(t, err)

	require.NoError(t, cardzip.WriteEntries(context.Background(), dst, entries, cardzip.NewConfig(cardzip.WithCreateDestination(true))))
	_, err = os.Stat(filepath.Join(dst, "card.json"))
	assert.NoError(t, err)
}

func TestWriteEntriesMaxFileSize(t *testing.T) {
	dst := t.TempDir()
	cfg := cardzip.NewConfig(cardzip.WithMaxFileSize(4))

	err := cardzip.WriteEntries(context.Background(), dst, cardzip.Entries{"a.txt": []byte("0123456789")}, cfg)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestWriteEntriesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cardzip.WriteEntries(ctx, t.TempDir(), cardzip.Entries{"a.txt": []byte("a")}, cardzip.NewConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
