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

// Package vfs presents a single hierarchical namespace composed of
// heterogeneous backing filesystems mounted at distinct points.
//
// The namespace is resolved through three tiers of caching: each open File
// carries a write-coalescing buffer, each resolved node wraps its backend
// inode in a VInode with a bounded write-back page cache, and resolved
// bindings themselves are kept in a bounded dentry cache keyed by basename.
//
// Lock ordering: the mount table lock and the dentry cache lock are leaf
// locks taken in bounded scopes and never held across a backend call.
package vfs

import (
	"strconv"
	"sync"

	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/caozhanhao/cnfs/pkg/config"
	"github.com/caozhanhao/cnfs/pkg/fserr"
	"github.com/caozhanhao/cnfs/pkg/fspath"
)

// VirtualFilesystem owns the mount table and the dentry cache of one
// namespace. Methods dispatch to the backend filesystems registered with
// Mount.
type VirtualFilesystem struct {
	cfg *config.Config

	// mountMu protects mounts.
	mountMu sync.Mutex
	mounts  *btree.BTreeG[*Mount]

	// cacheMu protects dcache bucket contents, cached, and evicted. The
	// lru's own eviction order doubles as the buckets' insertion order
	// because reads go through Peek and never refresh recency.
	cacheMu sync.Mutex
	dcache  *lru.Cache[string, *dcacheBucket]
	cached  int
	evicted []*Dentry
}

// New builds an empty namespace. A nil cfg selects the defaults.
func New(cfg *config.Config) *VirtualFilesystem {
	if cfg == nil {
		cfg = config.Default()
	}
	vfs := &VirtualFilesystem{
		cfg:    cfg,
		mounts: btree.NewG[*Mount](8, mountLess),
	}
	dcache, err := lru.NewWithEvict[string, *dcacheBucket](cfg.DCacheSize,
		func(_ string, b *dcacheBucket) {
			vfs.cached -= len(b.dentries)
			vfs.evicted = append(vfs.evicted, b.dentries...)
		})
	if err != nil {
		panic("vfs: invalid dcache size " + strconv.Itoa(cfg.DCacheSize))
	}
	vfs.dcache = dcache
	return vfs
}

// lookupDentry resolves path to a dentry.
//
// The walk has three stages: an anchor search from the full path toward
// root consulting the mount table (mounts shadow cached dentries) and then
// the dentry cache at each level; a fallback seeding from the shallowest
// mount prefix; and a component-wise descent from the anchor through
// backend lookups, caching every prefix resolved on the way.
func (vfs *VirtualFilesystem) lookupDentry(path fspath.Path) (*Dentry, error) {
	if path.Len() == 0 {
		return nil, fserr.ErrInvalidPath
	}

	var anchor *Dentry
	curr := path
	for {
		if fs := vfs.getMount(curr); fs != nil {
			anchor = NewDentry(curr, NewVInode(fs.RootInode(), vfs.cfg))
			break
		}
		if d := vfs.findCached(curr); d != nil {
			anchor = d
			break
		}
		parent, ok := curr.Parent()
		if !ok {
			break
		}
		curr = parent
	}
	if anchor == nil {
		if point, fs := vfs.mountPrefixOf(path); fs != nil {
			anchor = NewDentry(point, NewVInode(fs.RootInode(), vfs.cfg))
			vfs.insertDCache(anchor)
		}
	}
	if anchor == nil {
		return nil, fserr.ErrPathNotFound
	}

	d := anchor
	for {
		if path.Equal(d.Path()) {
			if d.IsDead() {
				return nil, fserr.ErrPathNotFound
			}
			return d, nil
		}
		name := path.Component(d.Path().Len())
		inode, err := d.VInode().Lookup(name)
		if err != nil {
			return nil, fserr.ErrPathNotFound
		}
		d = NewDentry(path.Prefix(d.Path().Len()+1), NewVInode(inode, vfs.cfg))
		vfs.insertDCache(d)
	}
}

// createDentry makes a node of the given type at path through the parent's
// backend inode and caches the resulting dentry.
func (vfs *VirtualFilesystem) createDentry(path fspath.Path, typ InodeType) (*Dentry, error) {
	if path.Len() == 0 {
		return nil, fserr.ErrInvalidPath
	}
	parent, ok := path.Parent()
	if !ok {
		// The root always exists; creating it is a path error.
		return nil, fserr.ErrInvalidPath
	}
	pd, err := vfs.lookupDentry(parent)
	if err != nil {
		return nil, err
	}
	inode, err := pd.VInode().Create(path.Basename(), typ)
	if err != nil {
		return nil, err
	}
	d := NewDentry(path, NewVInode(inode, vfs.cfg))
	vfs.insertDCache(d)
	logrus.WithFields(logrus.Fields{
		"path": path.String(),
		"type": typ.String(),
	}).Debug("vfs: created dentry")
	return d, nil
}

// removeDentry tombstones the dentry at path and removes the node through
// the parent's backend inode. Handles still holding the dentry keep their
// direct I/O path; fresh lookups observe fserr.ErrPathNotFound.
func (vfs *VirtualFilesystem) removeDentry(path fspath.Path) error {
	d, err := vfs.lookupDentry(path)
	if err != nil {
		return err
	}
	parent, ok := path.Parent()
	if !ok {
		return fserr.ErrInvalidPath
	}
	d.setDead()
	pd, err := vfs.lookupDentry(parent)
	if err != nil {
		return err
	}
	vfs.removeDCache(path)
	logrus.WithField("path", path.String()).Debug("vfs: removed dentry")
	return pd.VInode().Remove(path.Basename())
}

// Open resolves path into a File handle. If resolution fails with
// fserr.ErrPathNotFound and mode includes ModeWrite, a regular file is
// created at path first. Other resolution errors propagate.
func (vfs *VirtualFilesystem) Open(path fspath.Path, mode FileMode) (*File, error) {
	d, err := vfs.lookupDentry(path)
	if err != nil {
		if !errors.Is(err, fserr.ErrPathNotFound) || mode&ModeWrite == 0 {
			return nil, err
		}
		d, err = vfs.createDentry(path, InodeTypeFile)
		if err != nil {
			return nil, err
		}
	}
	return newFile(d, mode, vfs.cfg.FileBufferSize), nil
}

// Close flushes and releases the file handle.
func (vfs *VirtualFilesystem) Close(f *File) error {
	return f.Close()
}

// Read opens path for reading and performs a single read into dest.
func (vfs *VirtualFilesystem) Read(path fspath.Path, dest []byte) (int, error) {
	f, err := vfs.Open(path, ModeRead)
	if err != nil {
		return 0, err
	}
	n, err := f.Read(dest)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return n, err
}

// ReadAll opens path for reading and returns its entire contents.
func (vfs *VirtualFilesystem) ReadAll(path fspath.Path) ([]byte, error) {
	f, err := vfs.Open(path, ModeRead)
	if err != nil {
		return nil, err
	}
	data, err := f.ReadToEnd()
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return data, err
}

// WriteAll opens path for writing (creating it if absent) and writes all of
// data, flushing on close.
func (vfs *VirtualFilesystem) WriteAll(path fspath.Path, data []byte) error {
	f, err := vfs.Open(path, ModeWrite)
	if err != nil {
		return err
	}
	if err := f.WriteAll(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CreateDirectory makes a directory at path.
func (vfs *VirtualFilesystem) CreateDirectory(path fspath.Path) error {
	_, err := vfs.createDentry(path, InodeTypeDir)
	return err
}

// Remove deletes the file or directory at path.
func (vfs *VirtualFilesystem) Remove(path fspath.Path) error {
	return vfs.removeDentry(path)
}

// Exists reports whether path resolves. fserr.ErrPathNotFound maps to
// false; any other resolution error propagates.
func (vfs *VirtualFilesystem) Exists(path fspath.Path) (bool, error) {
	if _, err := vfs.lookupDentry(path); err != nil {
		if errors.Is(err, fserr.ErrPathNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
