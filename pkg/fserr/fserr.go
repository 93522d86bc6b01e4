// Copyright 2024 The CNFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fserr defines the error taxonomy shared by the VFS core and
// backend filesystems. Callers match kinds with errors.Is; backend failures
// that carry adapter context are represented by InternalError and matched
// with IsInternal.
package fserr

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidPath indicates an empty or malformed path.
	ErrInvalidPath = errors.New("invalid path")

	// ErrPathNotFound indicates that resolution failed at some component,
	// or that the target dentry has been removed.
	ErrPathNotFound = errors.New("path not found")

	// ErrAlreadyExisted is surfaced by backends on duplicate creates.
	ErrAlreadyExisted = errors.New("already existed")

	// ErrAlreadyMountedPath indicates a mount collision.
	ErrAlreadyMountedPath = errors.New("the path has already mounted a filesystem")

	// ErrNoMountedFilesystem indicates an unmount of an empty slot.
	ErrNoMountedFilesystem = errors.New("there is no filesystem mounted on the path")

	// ErrNotImplemented indicates that a backend declined a capability.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnexpected is the catch-all kind.
	ErrUnexpected = errors.New("unexpected error")
)

// InternalError is a backend-originated failure annotated with adapter
// context. The cause is preserved for errors.Is/As chains.
type InternalError struct {
	Desc string
	Err  error
}

// Error implements error.
func (e *InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("internal filesystem error: %s", e.Desc)
	}
	return fmt.Sprintf("internal filesystem error: %s: %v", e.Desc, e.Err)
}

// Unwrap returns the backend cause.
func (e *InternalError) Unwrap() error {
	return e.Err
}

// Internal wraps err with adapter context. A nil err yields nil.
func Internal(err error, desc string) error {
	if err == nil {
		return nil
	}
	return &InternalError{Desc: desc, Err: err}
}

// Internalf is Internal with a formatted description.
func Internalf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &InternalError{Desc: fmt.Sprintf(format, args...), Err: err}
}

// IsInternal reports whether any error in err's chain is an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
