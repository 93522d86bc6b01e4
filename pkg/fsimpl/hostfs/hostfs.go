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

// Package hostfs implements a passthrough backend over an afero.Fs.
// Running it over afero.NewOsFs exposes a host directory tree through the
// VFS; over afero.NewMemMapFs it doubles as a hermetic test backend.
//
// Backend failures surface as fserr.InternalError naming the failing
// operation.
package hostfs

import (
	"io"
	"os"
	gopath "path"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/caozhanhao/cnfs/pkg/fserr"
	"github.com/caozhanhao/cnfs/pkg/vfs"
)

// Filesystem exposes the subtree of an afero.Fs rooted at root.
type Filesystem struct {
	fs   afero.Fs
	root string
}

// New wraps fs rooted at root. An empty root means the fs's own root.
func New(fs afero.Fs, root string) *Filesystem {
	if root == "" {
		root = "/"
	}
	return &Filesystem{fs: fs, root: root}
}

// RootInode implements vfs.FileSystem.RootInode.
func (fs *Filesystem) RootInode() vfs.Inode {
	return &dirInode{fs: fs.fs, path: fs.root}
}

// dirInode is a host directory. Byte I/O is declined.
type dirInode struct {
	vfs.UnimplementedInode

	fs   afero.Fs
	path string
}

// Lookup implements vfs.Inode.Lookup.
func (d *dirInode) Lookup(name string) (vfs.Inode, error) {
	target := gopath.Join(d.path, name)
	info, err := d.fs.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fserr.ErrPathNotFound
		}
		return nil, fserr.Internal(errors.Wrap(err, "hostfs"), "lookup "+target)
	}
	if info.IsDir() {
		return &dirInode{fs: d.fs, path: target}, nil
	}
	return &fileInode{fs: d.fs, path: target}, nil
}

// Create implements vfs.Inode.Create.
func (d *dirInode) Create(name string, typ vfs.InodeType) (vfs.Inode, error) {
	target := gopath.Join(d.path, name)
	if _, err := d.fs.Stat(target); err == nil {
		return nil, fserr.ErrAlreadyExisted
	}
	switch typ {
	case vfs.InodeTypeDir:
		if err := d.fs.Mkdir(target, 0o755); err != nil {
			return nil, fserr.Internal(errors.Wrap(err, "hostfs"), "mkdir "+target)
		}
	case vfs.InodeTypeFile:
		f, err := d.fs.Create(target)
		if err != nil {
			return nil, fserr.Internal(errors.Wrap(err, "hostfs"), "create "+target)
		}
		f.Close()
	default:
		return nil, fserr.ErrUnexpected
	}
	return d.Lookup(name)
}

// Remove implements vfs.Inode.Remove.
func (d *dirInode) Remove(name string) error {
	target := gopath.Join(d.path, name)
	if _, err := d.fs.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return fserr.ErrPathNotFound
		}
		return fserr.Internal(errors.Wrap(err, "hostfs"), "stat "+target)
	}
	if err := d.fs.Remove(target); err != nil {
		return fserr.Internal(errors.Wrap(err, "hostfs"), "remove "+target)
	}
	return nil
}

// fileInode is a host regular file. Child operations are declined.
type fileInode struct {
	vfs.UnimplementedInode

	fs   afero.Fs
	path string
}

// Read implements vfs.Inode.Read.
func (f *fileInode) Read(offset uint64, buf []byte) (int, error) {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return 0, fserr.Internal(errors.Wrap(err, "hostfs"), "open "+f.path)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, fserr.Internal(errors.Wrap(err, "hostfs"), "stat "+f.path)
	}
	if int64(offset) >= info.Size() {
		// At or past EOF.
		return 0, nil
	}
	n, err := file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return 0, fserr.Internal(errors.Wrap(err, "hostfs"), "read "+f.path)
	}
	return n, nil
}

// Write implements vfs.Inode.Write.
func (f *fileInode) Write(offset uint64, buf []byte) (int, error) {
	file, err := f.fs.OpenFile(f.path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fserr.Internal(errors.Wrap(err, "hostfs"), "open "+f.path)
	}
	defer file.Close()
	n, err := file.WriteAt(buf, int64(offset))
	if err != nil {
		return 0, fserr.Internal(errors.Wrap(err, "hostfs"), "write "+f.path)
	}
	return n, nil
}

// Sync implements vfs.Inode.Sync.
func (f *fileInode) Sync() error {
	file, err := f.fs.OpenFile(f.path, os.O_RDWR, 0o644)
	if err != nil {
		return fserr.Internal(errors.Wrap(err, "hostfs"), "open "+f.path)
	}
	defer file.Close()
	if err := file.Sync(); err != nil {
		return fserr.Internal(errors.Wrap(err, "hostfs"), "sync "+f.path)
	}
	return nil
}
