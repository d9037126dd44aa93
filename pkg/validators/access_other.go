// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

//go:build !unix

package validators

import (
	"io/fs"
)

const (
	accessRead    = 0x4
	accessWrite   = 0x2
	accessExecute = 0x1
)

// canAccess approximates an access check from the owner permission bits.
func canAccess(_ string, info fs.FileInfo, mode uint32) bool {
	owner := uint32(info.Mode().Perm()>>6) & 0x7
	return owner&mode == mode
}
