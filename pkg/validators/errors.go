// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"fmt"
)

// InvalidArgumentValueError reports user input that fails a validation rule.
type InvalidArgumentValueError struct {
	Message string
}

func (e *InvalidArgumentValueError) Error() string {
	return e.Message
}

// FileOperationError reports a filesystem problem (permissions, unreadable
// content, size limits) as opposed to a malformed argument.
type FileOperationError struct {
	Message string
	Err     error
}

func (e *FileOperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s. Error: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FileOperationError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...any) error {
	return &InvalidArgumentValueError{Message: fmt.Sprintf(format, args...)}
}

func fileErrorf(cause error, format string, args ...any) error {
	return &FileOperationError{Message: fmt.Sprintf(format, args...), Err: cause}
}
