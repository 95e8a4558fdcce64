// Package cache implements the process-wide inode table and per-directory
// readdir/DNLC cache.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handle is an opaque server file handle, compared byte-wise.
type Handle string

// Attr is the subset of cached attributes the inode table tracks. It
// mirrors the wire attributes returned by GETATTR3/LOOKUP3/etc.
type Attr struct {
	Type   uint32
	Mode   uint32
	Size   uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Nlink  uint32
	Uid    uint32
	Gid    uint32
	Fsid   uint64
	Fileid uint64
}

// Inode is one record per distinct live server handle.
type Inode struct {
	Handle  Handle
	FuseIno uint64

	mu            sync.RWMutex
	attr          Attr
	attrExpiryMs  int64

	lookupCnt     atomic.Int64
	dirCacheCnt   atomic.Int64
	forgetExpected atomic.Int64

	// ReaddirCache is present only for directories.
	ReaddirCache *DirCache

	// Readahead is an opaque per-inode predictor handle, populated by the
	// client package on first read of a regular file. The cache package
	// does not know its concrete type.
	Readahead any
}

// RootFuseIno is the fixed fuse_ino of the root inode (invariant I4).
const RootFuseIno uint64 = 1

func newInode(handle Handle, fuseIno uint64) *Inode {
	return &Inode{Handle: handle, FuseIno: fuseIno}
}

// Attr returns a copy of the cached attributes and whether they are still
// within their expiry window.
func (i *Inode) Attr() (Attr, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	fresh := time.Now().UnixMilli() < i.attrExpiryMs
	return i.attr, fresh
}

// SetAttr updates the cached attributes and their expiry.
func (i *Inode) SetAttr(a Attr, ttl time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.attr = a
	i.attrExpiryMs = time.Now().Add(ttl).UnixMilli()
}

// LookupCnt returns the current kernel-bridge reference count.
func (i *Inode) LookupCnt() int64 { return i.lookupCnt.Load() }

// DirCacheCnt returns the current directory-cache reference count.
func (i *Inode) DirCacheCnt() int64 { return i.dirCacheCnt.Load() }

// destroyable reports invariant I1: lookupcnt == 0 && dircachecnt == 0.
func (i *Inode) destroyable() bool {
	return i.lookupCnt.Load() == 0 && i.dirCacheCnt.Load() == 0
}

// DirCacheOrInit returns the inode's directory cache, constructing it via
// newFn on first use. Concurrent FUSE worker threads calling this for the
// same directory inode (spec §5) must observe the same *DirCache, so the
// check-and-install is guarded by i.mu rather than left racy.
func (i *Inode) DirCacheOrInit(newFn func() *DirCache) *DirCache {
	i.mu.RLock()
	dc := i.ReaddirCache
	i.mu.RUnlock()
	if dc != nil {
		return dc
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ReaddirCache == nil {
		i.ReaddirCache = newFn()
	}
	return i.ReaddirCache
}

// ReadaheadOrInit returns the inode's readahead predictor, constructing it
// via newFn on first use. Guarded the same way as DirCacheOrInit so that
// concurrent reads of the same file share one predictor instead of each
// installing (and silently discarding) their own.
func (i *Inode) ReadaheadOrInit(newFn func() any) any {
	i.mu.RLock()
	ra := i.Readahead
	i.mu.RUnlock()
	if ra != nil {
		return ra
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.Readahead == nil {
		i.Readahead = newFn()
	}
	return i.Readahead
}

// GetReadahead returns the inode's readahead predictor, or nil if a read
// has never populated it. Synchronized against ReadaheadOrInit so a
// concurrent first-read's lazy install is never observed half-written.
func (i *Inode) GetReadahead() any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.Readahead
}
