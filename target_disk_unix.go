// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package cardzip

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// openFileFlags refuse to open a symlink that appeared after the security check.
const openFileFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC | unix.O_NOFOLLOW

// isSymlinkLoop reports whether err stems from opening a symlink with O_NOFOLLOW.
func isSymlinkLoop(err error) bool {
	return errors.Is(err, unix.ELOOP)
}
