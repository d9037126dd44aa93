// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

//go:build unix

package validators

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

const (
	accessRead    = unix.R_OK
	accessWrite   = unix.W_OK
	accessExecute = unix.X_OK
)

// canAccess asks the kernel whether the calling user has mode access to path.
func canAccess(path string, _ fs.FileInfo, mode uint32) bool {
	return unix.Access(path, mode) == nil
}
