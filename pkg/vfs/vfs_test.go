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

package vfs_test

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caozhanhao/cnfs/pkg/config"
	"github.com/caozhanhao/cnfs/pkg/fserr"
	"github.com/caozhanhao/cnfs/pkg/fsimpl/hostfs"
	"github.com/caozhanhao/cnfs/pkg/fsimpl/memfs"
	"github.com/caozhanhao/cnfs/pkg/fspath"
	"github.com/caozhanhao/cnfs/pkg/vfs"
)

const testData = "cnss{th1s_i5_my_vfs_t3st}"

func newVFS(t *testing.T) *vfs.VirtualFilesystem {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return vfs.New(cfg)
}

// testDirectoryLifecycle is the shared directory scenario: absent, created,
// present, removed, absent again.
func testDirectoryLifecycle(t *testing.T, v *vfs.VirtualFilesystem, dir fspath.Path) {
	t.Helper()
	ok, err := v.Exists(dir)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.CreateDirectory(dir))
	ok, err = v.Exists(dir)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, v.Remove(dir))
	ok, err = v.Exists(dir)
	require.NoError(t, err)
	require.False(t, ok)
}

// testFileRoundTrip is the shared file scenario: small round-trip followed
// by the 10,000-repeat workload that overflows the page cache.
func testFileRoundTrip(t *testing.T, v *vfs.VirtualFilesystem, path fspath.Path) {
	t.Helper()
	data := []byte(testData)

	f, err := v.Open(path, vfs.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, f.WriteAll(data))
	require.NoError(t, f.Sync())

	require.NoError(t, f.Seek(0))
	dest := make([]byte, len(data))
	n, err := f.Read(dest)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, dest)

	require.NoError(t, f.Seek(0))
	for i := 0; i < 10000; i++ {
		require.NoError(t, f.WriteAll(data))
	}
	require.NoError(t, f.Sync())
	require.NoError(t, f.Seek(0))
	for i := 0; i < 10000; i++ {
		for j := range dest {
			dest[j] = 0
		}
		n, err := f.Read(dest)
		require.NoError(t, err, "iteration %d", i)
		require.Equal(t, len(data), n, "iteration %d", i)
		require.True(t, bytes.Equal(data, dest), "iteration %d", i)
	}
	require.NoError(t, f.Close())

	ok, err := v.Exists(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, v.Remove(path))
	ok, err = v.Exists(path)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemfsDirectoryLifecycle(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))
	testDirectoryLifecycle(t, v, fspath.MustParse("/test_directory"))
}

func TestMemfsFileRoundTrip(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))
	testFileRoundTrip(t, v, fspath.MustParse("/test_file"))
}

func TestHostfsDirectoryLifecycle(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(hostfs.New(afero.NewMemMapFs(), "/"), fspath.Root()))
	testDirectoryLifecycle(t, v, fspath.MustParse("/test_directory"))
}

func TestHostfsFileRoundTrip(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(hostfs.New(afero.NewMemMapFs(), "/"), fspath.Root()))
	testFileRoundTrip(t, v, fspath.MustParse("/test_file"))
}

func TestMixedMounts(t *testing.T) {
	v := newVFS(t)
	host := afero.NewMemMapFs()
	require.NoError(t, v.Mount(hostfs.New(host, "/"), fspath.Root()))

	mnt := fspath.MustParse("/mnt")
	require.NoError(t, v.CreateDirectory(mnt))
	require.NoError(t, v.Mount(memfs.New(), mnt))

	testDirectoryLifecycle(t, v, fspath.MustParse("/test_directory"))
	testDirectoryLifecycle(t, v, fspath.MustParse("/mnt/test_directory"))
	testFileRoundTrip(t, v, fspath.MustParse("/test_file"))
	testFileRoundTrip(t, v, fspath.MustParse("/mnt/test_file"))

	// Host-side writes land on the host filesystem, not the mounted one.
	require.NoError(t, v.WriteAll(fspath.MustParse("/only_host"), []byte("host")))
	_, err := host.Stat("/only_host")
	assert.NoError(t, err)
	ok, err := v.Exists(fspath.MustParse("/mnt/only_host"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteAllReadAll(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	path := fspath.MustParse("/blob")
	data := bytes.Repeat([]byte("0123456789"), 5000) // more than one page-cache fill
	require.NoError(t, v.WriteAll(path, data))

	got, err := v.ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadIntoBuffer(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	path := fspath.MustParse("/small")
	require.NoError(t, v.WriteAll(path, []byte(testData)))

	dest := make([]byte, 10)
	n, err := v.Read(path, dest)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []byte(testData[:10]), dest)
}

func TestOpenReadMissingFails(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	_, err := v.Open(fspath.MustParse("/nope"), vfs.ModeRead)
	assert.ErrorIs(t, err, fserr.ErrPathNotFound)
}

func TestOpenWriteCreates(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	path := fspath.MustParse("/fresh")
	f, err := v.Open(path, vfs.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ok, err := v.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenWriteMissingParentFails(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	_, err := v.Open(fspath.MustParse("/no_dir/f"), vfs.ModeWrite)
	assert.ErrorIs(t, err, fserr.ErrPathNotFound)
}

func TestTombstone(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	path := fspath.MustParse("/f")
	f, err := v.Open(path, vfs.ModeRead|vfs.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, f.WriteAll([]byte(testData)))
	require.NoError(t, f.Sync())

	require.NoError(t, v.Remove(path))

	// Fresh lookups observe the removal.
	_, err = v.Open(path, vfs.ModeRead)
	assert.ErrorIs(t, err, fserr.ErrPathNotFound)
	ok, err := v.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	// The held handle keeps its I/O path.
	require.NoError(t, f.Seek(0))
	dest := make([]byte, len(testData))
	n, err := f.Read(dest)
	require.NoError(t, err)
	assert.Equal(t, len(testData), n)
	assert.Equal(t, []byte(testData), dest)
	require.NoError(t, f.WriteAll([]byte("still writable")))
	require.NoError(t, f.Close())
}

func TestExistsWithNothingMounted(t *testing.T) {
	v := newVFS(t)
	// Nothing mounted at all: resolution cannot even start.
	ok, err := v.Exists(fspath.MustParse("/x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveMissingFails(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))
	assert.ErrorIs(t, v.Remove(fspath.MustParse("/ghost")), fserr.ErrPathNotFound)
}

func TestNotImplementedSurfaces(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	dir := fspath.MustParse("/d")
	require.NoError(t, v.CreateDirectory(dir))

	// Byte I/O on a directory reaches the backend's declined capability.
	f, err := v.Open(dir, vfs.ModeRead)
	require.NoError(t, err)
	_, err = f.Read(make([]byte, 4))
	assert.ErrorIs(t, err, fserr.ErrNotImplemented)
}

func TestPageCacheTransparency(t *testing.T) {
	// After a sync, reading through the VFS matches the backend contents
	// at arbitrary offsets.
	v := newVFS(t)
	host := afero.NewMemMapFs()
	require.NoError(t, v.Mount(hostfs.New(host, "/"), fspath.Root()))

	path := fspath.MustParse("/t")
	data := bytes.Repeat([]byte("abcdefgh"), 1024)
	require.NoError(t, v.WriteAll(path, data))

	direct, err := afero.ReadFile(host, "/t")
	require.NoError(t, err)
	require.Equal(t, data, direct)

	f, err := v.Open(path, vfs.ModeRead)
	require.NoError(t, err)
	defer f.Close()
	for _, span := range []struct{ off, n int }{{0, 16}, {511, 2}, {512, 512}, {8000, 192}} {
		require.NoError(t, f.Seek(uint64(span.off)))
		got := make([]byte, span.n)
		n, err := f.Read(got)
		require.NoError(t, err)
		assert.Equal(t, span.n, n, "span %+v", span)
		assert.Equal(t, direct[span.off:span.off+span.n], got, "span %+v", span)
	}
}

func TestLargeWriteIdempotence(t *testing.T) {
	v := newVFS(t)
	require.NoError(t, v.Mount(memfs.New(), fspath.Root()))

	path := fspath.MustParse("/rep")
	data := []byte(testData)
	f, err := v.Open(path, vfs.ModeWrite)
	require.NoError(t, err)
	const repeats = 500
	for i := 0; i < repeats; i++ {
		require.NoError(t, f.WriteAll(data))
	}
	require.NoError(t, f.Close())

	got, err := v.ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat(data, repeats), got)
}
