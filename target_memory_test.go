// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip_test

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/cardforge/go-cardzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetMemory(t *testing.T) {
	tm := cardzip.NewTargetMemory()

	n, err := tm.CreateFile("a.txt", strings.NewReader("hello"), 0640, false, 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = tm.CreateFile("a.txt", strings.NewReader("again"), 0640, false, 1024)
	assert.ErrorIs(t, err, fs.ErrExist)

	_, err = tm.CreateFile("a.txt", strings.NewReader("again"), 0640, true, 1024)
	require.NoError(t, err)
	got, err := fs.ReadFile(tm, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "again", string(got))

	_, err = tm.CreateFile("big.txt", strings.NewReader("0123456789"), 0640, false, 4)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	_, err = tm.CreateFile("../x", strings.NewReader("x"), 0640, false, 4)
	assert.ErrorIs(t, err, fs.ErrInvalid)

	require.NoError(t, tm.CreateDir("dir", 0750))
	fi, err := tm.Lstat("dir")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	_, err = tm.Open("dir")
	assert.Error(t, err)

	_, err = tm.Lstat("missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWriteEntriesToMemory(t *testing.T) {
	archive := createZip(t,
		zipFile{Name: "card.json", Body: []byte(`{}`)},
		zipFile{Name: "assets/"},
		zipFile{Name: "assets/icon/image/main.png", Body: bytes.Repeat([]byte("p"), 100)},
	)
	entries, err := cardzip.Extract(archive, cardzip.DefaultLimits())
	require.NoError(t, err)

	tm := cardzip.NewTargetMemory()
	require.NoError(t, cardzip.WriteEntriesTo(context.Background(), tm, "", entries, cardzip.NewConfig()))
	assert.Equal(t, []string{"assets/icon/image/main.png", "card.json"}, tm.Files())

	fi, err := tm.Lstat("assets/icon/image")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestWriteEntriesToMemoryTraversal(t *testing.T) {
	tm := cardzip.NewTargetMemory()
	err := cardzip.WriteEntriesTo(context.Background(), tm, "", cardzip.Entries{"a/../../x": []byte("x")}, cardzip.NewConfig())
	requireKind(t, err, cardzip.KindPathTraversal)
	assert.Empty(t, tm.Files())
}
