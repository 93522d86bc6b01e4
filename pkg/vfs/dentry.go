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
	"sync"

	"github.com/caozhanhao/cnfs/pkg/fspath"
)

// Dentry binds a resolved path to a vinode. Dentries are freely shared:
// the dentry cache, open file handles, and concurrent lookups may all hold
// the same one.
//
// A dentry is immutable apart from its dead bit. Removal tombstones the
// dentry instead of invalidating it, so handles already holding it keep
// their I/O path while fresh lookups observe the removal.
type Dentry struct {
	path   fspath.Path
	vinode *VInode

	// mu protects dead.
	mu   sync.Mutex
	dead bool
}

// NewDentry binds path to vinode.
func NewDentry(path fspath.Path, vinode *VInode) *Dentry {
	return &Dentry{path: path, vinode: vinode}
}

// Path returns the full path this dentry resolves.
func (d *Dentry) Path() fspath.Path {
	return d.path
}

// VInode returns the vinode this dentry wraps.
func (d *Dentry) VInode() *VInode {
	return d.vinode
}

// IsDead returns true if the file behind d has been removed.
func (d *Dentry) IsDead() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dead
}

func (d *Dentry) setDead() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dead = true
}

// dcacheBucket groups the cached dentries sharing one basename. Within a
// bucket no two dentries share the same full path.
type dcacheBucket struct {
	dentries []*Dentry
}

// insertDCache adds d to the cache, evicting the oldest-inserted buckets
// wholesale until the total dentry count is under the limit. Duplicate full
// paths within a bucket are not added.
//
// Vinodes belonging to evicted dentries are released after the cache lock
// is dropped, so the lock is never held across a backend call.
func (vfs *VirtualFilesystem) insertDCache(d *Dentry) {
	vfs.cacheMu.Lock()
	for vfs.cached >= vfs.cfg.DCacheSize && vfs.dcache.Len() > 0 {
		vfs.dcache.RemoveOldest()
	}
	name := d.Path().Basename()
	b, ok := vfs.dcache.Peek(name)
	if !ok {
		b = &dcacheBucket{}
		vfs.dcache.Add(name, b)
	}
	dup := false
	for _, e := range b.dentries {
		if e.Path().Equal(d.Path()) {
			dup = true
			break
		}
	}
	if !dup {
		b.dentries = append(b.dentries, d)
		vfs.cached++
	}
	released := vfs.evicted
	vfs.evicted = nil
	vfs.cacheMu.Unlock()

	for _, old := range released {
		old.VInode().Release()
	}
}

// removeDCache drops the cache entry for path, if any. The bucket itself
// stays, possibly empty.
func (vfs *VirtualFilesystem) removeDCache(path fspath.Path) {
	vfs.cacheMu.Lock()
	defer vfs.cacheMu.Unlock()
	b, ok := vfs.dcache.Peek(path.Basename())
	if !ok {
		return
	}
	kept := b.dentries[:0]
	for _, d := range b.dentries {
		if d.Path().Equal(path) {
			vfs.cached--
			continue
		}
		kept = append(kept, d)
	}
	b.dentries = kept
}

// findCached returns the cached dentry for exactly path, or nil.
func (vfs *VirtualFilesystem) findCached(path fspath.Path) *Dentry {
	vfs.cacheMu.Lock()
	defer vfs.cacheMu.Unlock()
	b, ok := vfs.dcache.Peek(path.Basename())
	if !ok {
		return nil
	}
	for _, d := range b.dentries {
		if d.Path().Equal(path) {
			return d
		}
	}
	return nil
}
