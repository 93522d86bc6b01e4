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

package vfs

import (
	"github.com/sirupsen/logrus"

	"github.com/caozhanhao/cnfs/pkg/fserr"
	"github.com/caozhanhao/cnfs/pkg/fspath"
)

// Mount grafts a filesystem's root inode into the namespace at a path.
type Mount struct {
	point fspath.Path
	fs    FileSystem
}

// Point returns the mount point path.
func (m *Mount) Point() fspath.Path {
	return m.point
}

func mountLess(a, b *Mount) bool {
	return a.point.Compare(b.point) < 0
}

// Mount grafts fs at point. Non-root mount points must already resolve;
// their cache entry is then invalidated so future lookups observe the new
// mount's root inode. Mounting over an existing mount point fails with
// fserr.ErrAlreadyMountedPath.
func (vfs *VirtualFilesystem) Mount(fs FileSystem, point fspath.Path) error {
	if point.Len() == 0 {
		return fserr.ErrInvalidPath
	}
	if !point.IsRoot() {
		d, err := vfs.lookupDentry(point)
		if err != nil {
			return err
		}
		vfs.removeDCache(d.Path())
	}
	vfs.mountMu.Lock()
	defer vfs.mountMu.Unlock()
	if _, ok := vfs.mounts.Get(&Mount{point: point}); ok {
		return fserr.ErrAlreadyMountedPath
	}
	vfs.mounts.ReplaceOrInsert(&Mount{point: point, fs: fs})
	logrus.WithField("point", point.String()).Info("vfs: mounted filesystem")
	return nil
}

// Umount removes the mount at point. Dentries and vinodes already held
// remain usable; fresh lookups that must traverse the removed mount fail
// with fserr.ErrPathNotFound.
func (vfs *VirtualFilesystem) Umount(point fspath.Path) error {
	vfs.mountMu.Lock()
	defer vfs.mountMu.Unlock()
	if _, ok := vfs.mounts.Delete(&Mount{point: point}); !ok {
		return fserr.ErrNoMountedFilesystem
	}
	logrus.WithField("point", point.String()).Info("vfs: unmounted filesystem")
	return nil
}

// getMount returns the filesystem mounted exactly at point, or nil.
func (vfs *VirtualFilesystem) getMount(point fspath.Path) FileSystem {
	vfs.mountMu.Lock()
	defer vfs.mountMu.Unlock()
	if m, ok := vfs.mounts.Get(&Mount{point: point}); ok {
		return m.fs
	}
	return nil
}

// mountPrefixOf returns the shallowest mount whose point is a prefix of
// path. Ascending order visits a prefix before any of its extensions, so
// the first match is the shallowest.
func (vfs *VirtualFilesystem) mountPrefixOf(path fspath.Path) (fspath.Path, FileSystem) {
	vfs.mountMu.Lock()
	defer vfs.mountMu.Unlock()
	var (
		point fspath.Path
		fs    FileSystem
	)
	vfs.mounts.Ascend(func(m *Mount) bool {
		if path.HasPrefix(m.point) {
			point, fs = m.point, m.fs
			return false
		}
		return true
	})
	return point, fs
}
