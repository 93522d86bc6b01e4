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

import "github.com/caozhanhao/cnfs/pkg/fserr"

// InodeType distinguishes directory inodes from regular file inodes.
type InodeType uint8

const (
	// InodeTypeDir is a directory.
	InodeTypeDir InodeType = iota

	// InodeTypeFile is a regular file.
	InodeTypeFile
)

// String implements fmt.Stringer.
func (t InodeType) String() string {
	switch t {
	case InodeTypeDir:
		return "dir"
	case InodeTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// Inode is the contract a mounted filesystem's nodes implement. It is the
// VFS's only source of truth for bytes and children.
//
// Every capability is fallible; backends that do not support an operation
// return fserr.ErrNotImplemented, which the VFS surfaces unchanged.
// Implementations are expected to serialize their own internal state.
type Inode interface {
	// Read copies bytes at offset into buf and returns the count. A return
	// of 0 signals EOF.
	Read(offset uint64, buf []byte) (int, error)

	// Write copies buf to offset and returns the count written. Partial
	// writes are allowed.
	Write(offset uint64, buf []byte) (int, error)

	// Sync flushes the inode to durable storage.
	Sync() error

	// Lookup resolves the named child.
	Lookup(name string) (Inode, error)

	// Create makes a new child of the given type and returns its inode.
	Create(name string, typ InodeType) (Inode, error)

	// Remove deletes the named child.
	Remove(name string) error
}

// FileSystem is the contract a mountable backend implements.
type FileSystem interface {
	// RootInode returns the root directory of the filesystem.
	RootInode() Inode
}

// UnimplementedInode declines every Inode capability with
// fserr.ErrNotImplemented. Backends embed it and override the operations
// they support, mirroring how directory inodes decline byte I/O and file
// inodes decline child operations.
type UnimplementedInode struct{}

// Read implements Inode.Read.
func (UnimplementedInode) Read(uint64, []byte) (int, error) {
	return 0, fserr.ErrNotImplemented
}

// Write implements Inode.Write.
func (UnimplementedInode) Write(uint64, []byte) (int, error) {
	return 0, fserr.ErrNotImplemented
}

// Sync implements Inode.Sync.
func (UnimplementedInode) Sync() error {
	return fserr.ErrNotImplemented
}

// Lookup implements Inode.Lookup.
func (UnimplementedInode) Lookup(string) (Inode, error) {
	return nil, fserr.ErrNotImplemented
}

// Create implements Inode.Create.
func (UnimplementedInode) Create(string, InodeType) (Inode, error) {
	return nil, fserr.ErrNotImplemented
}

// Remove implements Inode.Remove.
func (UnimplementedInode) Remove(string) error {
	return fserr.ErrNotImplemented
}
