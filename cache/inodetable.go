package cache

import (
	"sync"
	"sync/atomic"
)

// Table is the process-wide mapping from server handle to inode record.
// Map mutations are guarded by mu; refcount updates on individual inodes
// are lock-free atomics.
type Table struct {
	mu       sync.Mutex
	byHandle map[Handle]*Inode
	byIno    map[uint64]*Inode
	nextIno  atomic.Uint64
}

// NewTable constructs an inode table with the root inode preinstalled at
// fuse_ino 1 (invariant I4).
func NewTable(rootHandle Handle) *Table {
	t := &Table{byHandle: make(map[Handle]*Inode), byIno: make(map[uint64]*Inode)}
	t.nextIno.Store(RootFuseIno + 1)
	root := newInode(rootHandle, RootFuseIno)
	t.byHandle[rootHandle] = root
	t.byIno[RootFuseIno] = root
	return t
}

// Root returns the preinstalled root inode.
func (t *Table) Root(rootHandle Handle) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byHandle[rootHandle]
}

// GetOrCreate returns the existing record for handle, or constructs a new
// one with lookupcnt=0, dircachecnt=0.
func (t *Table) GetOrCreate(handle Handle) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if in, ok := t.byHandle[handle]; ok {
		return in
	}

	ino := t.nextIno.Add(1) - 1
	in := newInode(handle, ino)
	t.byHandle[handle] = in
	t.byIno[ino] = in
	return in
}

// Get returns the existing record for handle without creating one.
func (t *Table) Get(handle Handle) (*Inode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byHandle[handle]
	return in, ok
}

// GetByIno returns the existing record for a fuse_ino, as exposed
// upstream. Used by the client package to translate kernel-bridge inode
// numbers back into handles.
func (t *Table) GetByIno(ino uint64) (*Inode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byIno[ino]
	return in, ok
}

// Incref increments lookupcnt.
func (t *Table) Incref(inode *Inode) {
	inode.lookupCnt.Add(1)
}

// Decref decrements lookupcnt and destroys the inode if both counts have
// reached zero.
func (t *Table) Decref(inode *Inode) {
	inode.lookupCnt.Add(-1)
	t.maybeDestroy(inode)
}

// Forget decrements lookupcnt by n (FUSE FORGET/BATCH_FORGET) and destroys
// the inode if both counts have reached zero.
func (t *Table) Forget(inode *Inode, n uint64) {
	inode.lookupCnt.Add(-int64(n))
	t.maybeDestroy(inode)
}

// IncrDirCache increments dircachecnt on behalf of a directory-cache entry
// that now references this inode (invariant I2).
func (t *Table) IncrDirCache(inode *Inode) {
	inode.dirCacheCnt.Add(1)
}

// DropDircacheRef releases one dircachecnt unit held by a directory-cache
// entry. It uses the incref -> decrement -> decref pattern so destruction
// is always gated through the standard Decref path and cannot race with a
// concurrent lookup going through the directory cache.
func (t *Table) DropDircacheRef(inode *Inode) {
	t.Incref(inode)
	inode.dirCacheCnt.Add(-1)
	t.Decref(inode)
}

// maybeDestroy removes inode from the map if it is destroyable, guarding
// against a concurrent GetOrCreate/destroy race by re-checking under the
// table mutex.
func (t *Table) maybeDestroy(inode *Inode) {
	if !inode.destroyable() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.byHandle[inode.Handle]; ok && cur == inode && inode.destroyable() {
		delete(t.byHandle, inode.Handle)
		delete(t.byIno, inode.FuseIno)
	}
}

// Len reports the number of live inodes, for diagnostics and tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle)
}
