// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"
	"testing"

	"github.com/cardforge/go-cardzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfiles(t *testing.T) {
	input := `
profiles:
  charx:
    max_total_size: 1048576
  strict:
    max_file_size: 1024
    max_total_size: 4096
    max_files: 8
  partial:
    max_files: 1
`
	profiles, err := LoadProfiles(strings.NewReader(input))
	require.NoError(t, err)

	charx := cardzip.CharXLimits()
	charx.MaxTotalSize = 1 << 20
	assert.Equal(t, charx, profiles[ProfileCharX])
	assert.Equal(t, cardzip.VoxtaLimits(), profiles[ProfileVoxta])
	assert.Equal(t, cardzip.Limits{MaxFileSize: 1024, MaxTotalSize: 4096, MaxFiles: 8}, profiles["strict"])

	partial := cardzip.DefaultLimits()
	partial.MaxFiles = 1
	assert.Equal(t, partial, profiles["partial"])
}

func TestLoadProfilesEmpty(t *testing.T) {
	profiles, err := LoadProfiles(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultProfiles(), profiles)
}

func TestLoadProfilesInvalid(t *testing.T) {
	cases := map[string]string{
		"negative value": "profiles:\n  strict:\n    max_files: -1\n",
		"unknown field":  "profiles:\n  strict:\n    max_size: 1\n",
		"unknown key":    "limits: {}\n",
		"not yaml":       "profiles: [",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProfiles(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestProfilesResolve(t *testing.T) {
	profiles := DefaultProfiles()
	profiles["strict"] = cardzip.Limits{MaxFileSize: 1, MaxTotalSize: 1, MaxFiles: 1}

	got, err := profiles.Resolve("", cardzip.FormatVoxta)
	require.NoError(t, err)
	assert.Equal(t, cardzip.VoxtaLimits(), got)

	got, err = profiles.Resolve("", cardzip.FormatUnknown)
	require.NoError(t, err)
	assert.Equal(t, cardzip.CharXLimits(), got)

	got, err = profiles.Resolve("strict", cardzip.FormatVoxta)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MaxFiles)

	_, err = profiles.Resolve("missing", cardzip.FormatCharX)
	assert.Error(t, err)
}

func TestNewAppProfiles(t *testing.T) {
	path := writeFile(t, "profiles.yaml", []byte("profiles:\n  strict:\n    max_files: 2\n"))

	cli := testCLI()
	cli.Profiles = path
	cli.Profile = "strict"
	a := testApp(t, cli, &strings.Builder{})

	cfg, err := a.config(cardzip.FormatCharX)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cfg.Limits().MaxFiles)

	cli = testCLI()
	cli.Profile = "strict"
	_, err = newApp(cli, &strings.Builder{}, &strings.Builder{})
	assert.Error(t, err)
}

func TestAppConfigOverrides(t *testing.T) {
	cli := testCLI()
	cli.MaxFileSize = 10
	cli.MaxFiles = 0
	a := testApp(t, cli, &strings.Builder{})

	cfg, err := a.config(cardzip.FormatVoxta)
	require.NoError(t, err)
	assert.Equal(t, cardzip.Limits{
		MaxFileSize:  10,
		MaxTotalSize: cardzip.VoxtaLimits().MaxTotalSize,
		MaxFiles:     0,
	}, cfg.Limits())
}
