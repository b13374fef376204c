// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/cardforge/go-cardzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEntries(t *testing.T) {
	archive := createZip(t,
		zipFile{Name: "card.json", Body: []byte(`{"name":"x"}`)},
		zipFile{Name: "assets/"},
		zipFile{Name: "assets/a.bin", Body: bytes.Repeat([]byte{1}, 4096), Method: cardzip.MethodZstd},
		zipFile{Name: "raw.txt", Body: []byte("raw"), Store: true},
	)

	entries, loc, err := cardzip.ListEntries(withPrefix(10, archive))
	require.NoError(t, err)
	assert.Equal(t, int64(10), loc.Offset)
	require.Len(t, entries, 4)

	assert.Equal(t, "card.json", entries[0].Name)
	assert.Equal(t, cardzip.MethodDeflate, entries[0].Method)
	assert.Equal(t, int64(12), entries[0].UncompressedSize)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), entries[0].Modified)
	assert.False(t, entries[0].IsDir())

	assert.True(t, entries[1].IsDir())

	assert.Equal(t, cardzip.MethodZstd, entries[2].Method)
	assert.Equal(t, int64(4096), entries[2].UncompressedSize)
	assert.Less(t, entries[2].CompressedSize, int64(4096))

	assert.Equal(t, cardzip.MethodStore, entries[3].Method)
	assert.Equal(t, entries[3].CompressedSize, entries[3].UncompressedSize)
	assert.False(t, entries[3].IsEncrypted())
}

func TestListEntriesCountMismatch(t *testing.T) {
	archive := createZip(t,
		zipFile{Name: "a.txt", Body: []byte("a")},
		zipFile{Name: "b.txt", Body: []byte("b")},
		zipFile{Name: "c.txt", Body: []byte("c")},
	)

	// fewer declared records than the directory holds
	_, _, err := cardzip.ListEntries(setDeclaredEntries(t, archive, 2))
	requireKind(t, err, cardzip.KindParse)

	// more declared records than the directory holds
	_, _, err = cardzip.ListEntries(setDeclaredEntries(t, archive, 4))
	requireKind(t, err, cardzip.KindParse)
}

func TestListEntriesBadRecord(t *testing.T) {
	archive := createZip(t,
		zipFile{Name: "a.txt", Body: []byte("a")},
		zipFile{Name: "b.txt", Body: []byte("b")},
	)
	data := bytes.Clone(archive)
	second := bytes.LastIndex(data, []byte("PK\x01\x02"))
	data[second+3] = 0xff

	_, _, err := cardzip.ListEntries(data)
	requireKind(t, err, cardzip.KindParse)
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "deflate", cardzip.MethodName(cardzip.MethodDeflate))
	assert.Equal(t, "zstd", cardzip.MethodName(cardzip.MethodZstdPKWare))
	assert.Equal(t, "lzma", cardzip.MethodName(cardzip.MethodLZMA))
	assert.Equal(t, "method(99)", cardzip.MethodName(99))
	assert.True(t, cardzip.MethodSupported(cardzip.MethodXz))
	assert.False(t, cardzip.MethodSupported(99))
}
