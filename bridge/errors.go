// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrPathNotFound = errors.New("path not found")
	ErrInvalidIndex = errors.New("invalid enum index")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrCallFailure  = errors.New("call failed")
)

// Error is returned by every Interface operation. It records the operation
// and the path it targeted; Err wraps one of the sentinel errors above or
// an error raised by the object tree.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
