// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/cardforge/go-cardzip"
	"gopkg.in/yaml.v3"
)

// Profile names built into the binary.
const (
	ProfileCharX = "charx"
	ProfileVoxta = "voxta"
)

// Profiles maps profile names to extraction limits.
type Profiles map[string]cardzip.Limits

// DefaultProfiles returns the built-in profiles.
func DefaultProfiles() Profiles {
	return Profiles{
		ProfileCharX: cardzip.CharXLimits(),
		ProfileVoxta: cardzip.VoxtaLimits(),
	}
}

// profilesFile is the YAML layout of a profiles file:
//
//	profiles:
//	  charx:
//	    max_total_size: 104857600
//	  strict:
//	    max_file_size: 1048576
//	    max_total_size: 4194304
//	    max_files: 64
type profilesFile struct {
	Profiles map[string]limitsOverride `yaml:"profiles"`
}

// limitsOverride holds the limits set in a profiles file. Unset values keep
// the value of the built-in profile of the same name, or the default limits.
type limitsOverride struct {
	MaxFileSize  *int64 `yaml:"max_file_size"`
	MaxTotalSize *int64 `yaml:"max_total_size"`
	MaxFiles     *int64 `yaml:"max_files"`
}

// LoadProfiles reads a profiles file from r and merges it onto the built-in
// profiles. Unknown keys and negative limits are rejected.
func LoadProfiles(r io.Reader) (Profiles, error) {
	var f profilesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	profiles := DefaultProfiles()
	for name, o := range f.Profiles {
		if name == "" {
			return nil, fmt.Errorf("profile without name")
		}
		limits, ok := profiles[name]
		if !ok {
			limits = cardzip.DefaultLimits()
		}
		for _, v := range []struct {
			key string
			src *int64
			dst *int64
		}{
			{"max_file_size", o.MaxFileSize, &limits.MaxFileSize},
			{"max_total_size", o.MaxTotalSize, &limits.MaxTotalSize},
			{"max_files", o.MaxFiles, &limits.MaxFiles},
		} {
			if v.src == nil {
				continue
			}
			if *v.src < 0 {
				return nil, fmt.Errorf("profile %q: %s must not be negative", name, v.key)
			}
			*v.dst = *v.src
		}
		profiles[name] = limits
	}
	return profiles, nil
}

// Resolve returns the limits of the named profile. Without a name the
// profile matching format is used.
func (p Profiles) Resolve(name string, format cardzip.Format) (cardzip.Limits, error) {
	if name == "" {
		name = ProfileCharX
		if format == cardzip.FormatVoxta {
			name = ProfileVoxta
		}
	}
	limits, ok := p[name]
	if !ok {
		return cardzip.Limits{}, fmt.Errorf("unknown profile %q", name)
	}
	return limits, nil
}
