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
)

// FileMode is the set of open-mode flags.
type FileMode uint32

const (
	// ModeRead opens for reading.
	ModeRead FileMode = 1 << iota

	// ModeWrite opens for writing, creating the file if absent.
	ModeWrite
)

// File is an open handle on a dentry. It carries its own byte offset and a
// write-coalescing buffer that stages small writes before paying a page
// cache traversal; the vinode's page cache in turn stages page-aligned
// writes before paying a backend call.
//
// A File is not safe for concurrent use.
type File struct {
	dentry        *Dentry
	mode          FileMode
	buffer        []byte
	maxBufferSize int
	offset        uint64
}

func newFile(d *Dentry, mode FileMode, maxBufferSize int) *File {
	return &File{
		dentry:        d,
		mode:          mode,
		maxBufferSize: maxBufferSize,
	}
}

// Dentry returns the dentry this handle is open on.
func (f *File) Dentry() *Dentry {
	return f.dentry
}

// Offset returns the handle's current byte offset.
func (f *File) Offset() uint64 {
	return f.offset
}

// Write stages src for writing and returns how many bytes were accepted.
// Input that would overflow the buffer is flushed first; oversized input
// bypasses the buffer and goes straight through the vinode. Bytes left in
// the buffer are considered accepted, so barring a flush or bypass-write
// error the return is len(src).
func (f *File) Write(src []byte) (int, error) {
	if len(f.buffer)+len(src) > f.maxBufferSize {
		if err := f.Sync(); err != nil {
			return 0, err
		}
	}
	written := 0
	for len(src)-written > f.maxBufferSize {
		n, err := f.dentry.VInode().Write(f.offset, src[written:])
		if err != nil {
			if written != 0 {
				return written, nil
			}
			return 0, err
		}
		written += n
		f.offset += uint64(n)
	}
	f.buffer = append(f.buffer, src[written:]...)
	return len(src), nil
}

// WriteAll loops Write until all of data is accepted.
func (f *File) WriteAll(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := f.Write(data[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// Read pulls bytes at the current offset into dest and returns the count.
// Buffered writes are flushed first so reads never observe stale staged
// bytes. A vinode read of 0 bytes is EOF; an error after partial progress
// returns the short count.
func (f *File) Read(dest []byte) (int, error) {
	if err := f.Sync(); err != nil {
		return 0, err
	}
	nread := 0
	for nread < len(dest) {
		n, err := f.dentry.VInode().Read(f.offset, dest[nread:])
		if err != nil {
			if nread != 0 {
				return nread, nil
			}
			return 0, err
		}
		if n == 0 {
			break
		}
		nread += n
		f.offset += uint64(n)
	}
	return nread, nil
}

// ReadToEnd reads from the current offset until a vinode read returns 0
// bytes, and returns everything read.
func (f *File) ReadToEnd() ([]byte, error) {
	if err := f.Sync(); err != nil {
		return nil, err
	}
	var out []byte
	chunk := make([]byte, 256)
	for {
		n, err := f.dentry.VInode().Read(f.offset, chunk)
		if err != nil {
			if len(out) != 0 {
				return out, nil
			}
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, chunk[:n]...)
		f.offset += uint64(n)
	}
}

// Seek flushes buffered writes and moves the offset.
func (f *File) Seek(offset uint64) error {
	if err := f.Sync(); err != nil {
		return err
	}
	f.offset = offset
	return nil
}

// Sync flushes the write buffer through the vinode, advancing the offset by
// each write's return, and then syncs the vinode's pages to the backend.
// The backend sync is skipped once the dentry is tombstoned. An empty
// buffer makes Sync a no-op.
func (f *File) Sync() error {
	if len(f.buffer) == 0 {
		return nil
	}
	if f.mode&ModeWrite != 0 {
		written := 0
		for written < len(f.buffer) {
			n, err := f.dentry.VInode().Write(f.offset, f.buffer[written:])
			if err != nil {
				return err
			}
			written += n
			f.offset += uint64(n)
		}
	}
	f.buffer = f.buffer[:0]
	if f.dentry.IsDead() {
		return nil
	}
	return f.dentry.VInode().Sync()
}

// Close flushes the handle. Unlike Sync it always attempts a final vinode
// sync while the dentry is alive, even when the buffer is already empty.
func (f *File) Close() error {
	if err := f.Sync(); err != nil {
		logrus.WithError(err).Warn("vfs: flush on close failed")
		return err
	}
	if f.dentry.IsDead() {
		return nil
	}
	return f.dentry.VInode().Sync()
}
