// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package cardzip

import "os"

// openFileFlags are the flags for created files. Symlinks are caught by the
// security check only.
const openFileFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC

// isSymlinkLoop is always false on platforms without O_NOFOLLOW.
func isSymlinkLoop(error) bool {
	return false
}
