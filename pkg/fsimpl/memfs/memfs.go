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

// Package memfs implements an in-memory backend filesystem. Directories
// hold their children in a map; regular files hold a flat byte slice.
// There is no durable storage, so Sync on a regular file is trivially
// satisfied; directories decline Sync along with byte I/O.
package memfs

import (
	"sync"

	"github.com/caozhanhao/cnfs/pkg/fserr"
	"github.com/caozhanhao/cnfs/pkg/vfs"
)

// Filesystem is an in-memory filesystem rooted at a single directory.
type Filesystem struct {
	root *dirInode
}

// New returns an empty in-memory filesystem.
func New() *Filesystem {
	return &Filesystem{root: newDir()}
}

// RootInode implements vfs.FileSystem.RootInode.
func (fs *Filesystem) RootInode() vfs.Inode {
	return fs.root
}

// dirInode is a directory node. Byte I/O is declined.
type dirInode struct {
	vfs.UnimplementedInode

	mu       sync.Mutex
	children map[string]vfs.Inode
}

func newDir() *dirInode {
	return &dirInode{children: make(map[string]vfs.Inode)}
}

// Lookup implements vfs.Inode.Lookup.
func (d *dirInode) Lookup(name string) (vfs.Inode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children[name]
	if !ok {
		return nil, fserr.ErrPathNotFound
	}
	return child, nil
}

// Create implements vfs.Inode.Create.
func (d *dirInode) Create(name string, typ vfs.InodeType) (vfs.Inode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[name]; ok {
		return nil, fserr.ErrAlreadyExisted
	}
	var child vfs.Inode
	switch typ {
	case vfs.InodeTypeDir:
		child = newDir()
	case vfs.InodeTypeFile:
		child = &fileInode{}
	default:
		return nil, fserr.ErrUnexpected
	}
	d.children[name] = child
	return child, nil
}

// Remove implements vfs.Inode.Remove.
func (d *dirInode) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[name]; !ok {
		return fserr.ErrPathNotFound
	}
	delete(d.children, name)
	return nil
}

// fileInode is a regular file node backed by a byte slice. Child
// operations are declined.
type fileInode struct {
	vfs.UnimplementedInode

	mu   sync.Mutex
	data []byte
}

// Read implements vfs.Inode.Read.
func (f *fileInode) Read(offset uint64, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= uint64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[offset:]), nil
}

// Write implements vfs.Inode.Write.
func (f *fileInode) Write(offset uint64, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if end := offset + uint64(len(buf)); end > uint64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:], buf)
	return len(buf), nil
}

// Sync implements vfs.Inode.Sync. Memory is as durable as memfs gets.
func (f *fileInode) Sync() error {
	return nil
}

// Size returns the current file length. Test hook.
func (f *fileInode) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}
