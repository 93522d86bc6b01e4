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

package fserr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestInternalWrapping(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Internal(cause, "stdfs: write")
	assert.True(t, IsInternal(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "stdfs: write")
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestInternalNil(t *testing.T) {
	assert.NoError(t, Internal(nil, "whatever"))
	assert.NoError(t, Internalf(nil, "op %d", 7))
}

func TestIsInternalThroughWrap(t *testing.T) {
	err := errors.Wrap(Internalf(errors.New("boom"), "fat: cluster %d", 3), "outer")
	assert.True(t, IsInternal(err))
	assert.False(t, IsInternal(ErrPathNotFound))
}

func TestKindsAreDistinct(t *testing.T) {
	kinds := []error{
		ErrInvalidPath, ErrPathNotFound, ErrAlreadyExisted, ErrAlreadyMountedPath,
		ErrNoMountedFilesystem, ErrNotImplemented, ErrUnexpected,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
