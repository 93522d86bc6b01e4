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

	"github.com/google/btree"
	"github.com/sirupsen/logrus"

	"github.com/caozhanhao/cnfs/pkg/config"
)

// pageNumber indexes the page cache: offset / PageSize.
type pageNumber uint64

// page is one fixed-size byte window of the backing inode. All resident
// pages are PageSize long except possibly the last, whose data reflects the
// backend EOF observed at load time.
type page struct {
	num   pageNumber
	dirty bool
	data  []byte
}

// VInode wraps one backend inode with a bounded write-back page cache. It
// is the mandatory intermediary between a File handle and the backend.
//
// mu guards the cache for the entire duration of each Read, Write, or Sync,
// so a handle operation observes a consistent cache. Multiple dentries or
// handles may share one VInode.
type VInode struct {
	mu sync.Mutex

	// inode is the backing inode. Immutable.
	inode Inode

	// cache maps page numbers to resident pages. len <= maxPages.
	cache *btree.BTreeG[*page]

	pageSize int
	maxPages int
}

// NewVInode wraps inode with an empty page cache sized by cfg.
func NewVInode(inode Inode, cfg *config.Config) *VInode {
	return &VInode{
		inode: inode,
		cache: btree.NewG[*page](8, func(a, b *page) bool {
			return a.num < b.num
		}),
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
}

func (vi *VInode) pageFor(offset uint64) (pageNumber, int) {
	return pageNumber(offset / uint64(vi.pageSize)), int(offset % uint64(vi.pageSize))
}

func (n pageNumber) offset(pageSize int) uint64 {
	return uint64(n) * uint64(pageSize)
}

// Read copies bytes at offset into buf through the page cache and returns
// the count read. Hitting EOF or a backend error after some bytes were
// copied returns the short count instead of the error.
func (vi *VInode) Read(offset uint64, buf []byte) (int, error) {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	curr, pageOff := vi.pageFor(offset)
	nread := 0
	for {
		pg, err := vi.loadPage(curr)
		if err != nil {
			vi.dropPage(curr)
			if nread != 0 {
				return nread, nil
			}
			return 0, err
		}
		if len(pg.data) == 0 {
			// EOF at this page; an empty page must not stay resident.
			vi.dropPage(curr)
			return nread, nil
		}
		avail := len(pg.data) - pageOff
		n := len(buf) - nread
		if n > avail {
			n = avail
		}
		if n > 0 {
			copy(buf[nread:nread+n], pg.data[pageOff:pageOff+n])
			nread += n
		}
		if nread < len(buf) {
			curr++
			pageOff = 0
		} else {
			break
		}
	}
	return nread, nil
}

// Write copies buf to offset through the page cache, dirtying the touched
// pages, and returns the count written. A backend error after a partial
// write returns the short count instead of the error.
func (vi *VInode) Write(offset uint64, buf []byte) (int, error) {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	curr, pageOff := vi.pageFor(offset)
	nwritten := 0
	for {
		pg, err := vi.loadPage(curr)
		if err != nil {
			vi.dropPage(curr)
			if nwritten != 0 {
				return nwritten, nil
			}
			return 0, err
		}
		// Grow the page just far enough for this write. Capping at the page
		// size keeps the fixed-size invariant; including pageOff keeps a
		// tail write inside its own page.
		want := pageOff + (len(buf) - nwritten)
		if want > vi.pageSize {
			want = vi.pageSize
		}
		if len(pg.data) < want {
			pg.data = append(pg.data, make([]byte, want-len(pg.data))...)
		}
		pg.dirty = true
		avail := len(pg.data) - pageOff
		n := len(buf) - nwritten
		if n > avail {
			n = avail
		}
		if n > 0 {
			copy(pg.data[pageOff:pageOff+n], buf[nwritten:nwritten+n])
			nwritten += n
		}
		if nwritten < len(buf) {
			curr++
			pageOff = 0
		} else {
			break
		}
	}
	return nwritten, nil
}

// Sync writes every dirty page back to the backend at its page offset,
// clears the dirty flags, and then syncs the backend inode.
func (vi *VInode) Sync() error {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	return vi.syncLocked()
}

func (vi *VInode) syncLocked() error {
	var err error
	vi.cache.Ascend(func(pg *page) bool {
		if !pg.dirty {
			return true
		}
		if _, werr := vi.inode.Write(pg.num.offset(vi.pageSize), pg.data); werr != nil {
			err = werr
			return false
		}
		pg.dirty = false
		return true
	})
	if err != nil {
		return err
	}
	return vi.inode.Sync()
}

// Release drops the vinode's claim on its cache: a best-effort Sync whose
// failure is logged and swallowed. Called on dentry cache eviction; open
// handles on the evicted dentry may still use the vinode afterwards.
func (vi *VInode) Release() {
	if err := vi.Sync(); err != nil {
		logrus.WithError(err).Debug("vfs: vinode sync on release failed")
	}
}

// Lookup resolves a child through the backend inode.
func (vi *VInode) Lookup(name string) (Inode, error) {
	return vi.inode.Lookup(name)
}

// Create makes a child through the backend inode.
func (vi *VInode) Create(name string, typ InodeType) (Inode, error) {
	return vi.inode.Create(name, typ)
}

// Remove deletes a child through the backend inode.
func (vi *VInode) Remove(name string) error {
	return vi.inode.Remove(name)
}

func (vi *VInode) dropPage(n pageNumber) {
	vi.cache.Delete(&page{num: n})
}

// loadPage returns the resident page n, paging it in from the backend if
// needed. At capacity a victim is chosen first: the first clean page other
// than n, falling back to the first page other than n. A dirty victim is
// written back before removal; if that write-back fails the victim stays
// resident and the error is returned.
func (vi *VInode) loadPage(n pageNumber) (*page, error) {
	if pg, ok := vi.cache.Get(&page{num: n}); ok {
		return pg, nil
	}
	if vi.cache.Len() >= vi.maxPages {
		var victim *page
		vi.cache.Ascend(func(pg *page) bool {
			if pg.num == n {
				return true
			}
			if victim == nil {
				victim = pg
			}
			if !pg.dirty {
				victim = pg
				return false
			}
			return true
		})
		if victim.dirty {
			if _, err := vi.inode.Write(victim.num.offset(vi.pageSize), victim.data); err != nil {
				return nil, err
			}
		}
		vi.cache.Delete(victim)
	}
	pg := &page{num: n, data: make([]byte, vi.pageSize)}
	nread, err := vi.inode.Read(n.offset(vi.pageSize), pg.data)
	if err != nil {
		return nil, err
	}
	pg.data = pg.data[:nread]
	vi.cache.ReplaceOrInsert(pg)
	return pg, nil
}
