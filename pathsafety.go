// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import "strings"

// IsSafe reports whether the archive entry name path can be joined to an
// extraction root without escaping it. Backslashes are treated as
// separators. Rejected are empty names, names containing a NUL byte, absolute
// names (a leading separator or a drive letter) and names with a ".."
// segment. The check is purely lexical; it cannot see symlinks, so writers
// must also verify the joined path against the root, as [WriteEntries] does.
func IsSafe(path string) bool {
	if path == "" || strings.IndexByte(path, 0) >= 0 {
		return false
	}

	path = strings.ReplaceAll(path, `\`, "/")
	if strings.HasPrefix(path, "/") || hasDriveLetter(path) {
		return false
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}

// hasDriveLetter reports whether path starts like "C:".
func hasDriveLetter(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
