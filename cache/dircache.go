package cache

import (
	"sync"
	"time"
)

// MaxCacheSizeLimit is the soft per-directory cache-size cap (bytes,
// estimated). Once reached, Add stops inserting new entries.
const MaxCacheSizeLimit = 8 << 20 // 8 MiB

// synthCookieBase is the first synthetic cookie handed out for entries
// inserted without a server-assigned cookie (DNLC promotions).
const synthCookieBase uint64 = 1 << 63

// entrySize is the flat per-entry byte estimate used to maintain cache_size.
const entrySize = 128

// DirEntry is one cached directory entry.
type DirEntry struct {
	Name          string
	Cookie        uint64
	Attr          Attr
	HasAttributes bool
	Inode         *Inode
}

// DirCache is the per-directory readdir/DNLC cache described in the spec's
// directory-cache component. All mutating and reading operations are
// synchronized by a single RWMutex.
type DirCache struct {
	table *Table

	mu             sync.RWMutex
	byCookie       map[uint64]*DirEntry
	byName         map[string]*DirEntry
	eof            bool
	eofCookie      uint64
	seqLastCookie  uint64
	confirmedMsecs int64
	cookieVerifier [8]byte
	cacheSize      int
	nextSynthetic  uint64
}

// NewDirCache constructs an empty directory cache bound to inode table t,
// used to drive the refcounting discipline on Add/Remove/Clear.
func NewDirCache(t *Table) *DirCache {
	return &DirCache{
		table:         t,
		byCookie:      make(map[uint64]*DirEntry),
		byName:        make(map[string]*DirEntry),
		nextSynthetic: synthCookieBase,
	}
}

// Add inserts entry e under cookie c. If by_name[e.Name] already maps to a
// different cookie, that stale entry is removed first (rename/recreate).
// Returns false without inserting if the cache is already at its size cap.
func (d *DirCache) Add(c uint64, e *DirEntry) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(c, e)
}

func (d *DirCache) addLocked(c uint64, e *DirEntry) bool {
	if d.cacheSize >= MaxCacheSizeLimit {
		if d.confirmedMsecs != 0 {
			d.confirmedMsecs = 0
		}
		return false
	}

	if old, ok := d.byName[e.Name]; ok && old.Cookie != c {
		d.removeLocked(old.Cookie)
	}

	e.Cookie = c
	d.byCookie[c] = e
	d.byName[e.Name] = e
	d.cacheSize += entrySize

	if c == d.seqLastCookie+1 {
		d.seqLastCookie = c
		// Cascade over any successors already present from an earlier,
		// out-of-order insert, so the contiguous run extends as far as it
		// actually reaches rather than by exactly one.
		for {
			if _, ok := d.byCookie[d.seqLastCookie+1]; !ok {
				break
			}
			d.seqLastCookie++
		}
	}
	return true
}

// DNLCAdd promotes a successful lookup/create/mkdir result into the cache
// without a server-issued cookie. inode must already carry one unit of
// dircachecnt taken on the caller's behalf (the "consistency check" ref);
// DNLCAdd either consumes it in place or drops it, per case.
func (d *DirCache) DNLCAdd(name string, inode *Inode, attr Attr) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.byName[name]; ok {
		switch {
		case existing.Inode == inode:
			// Caller's ref is redundant; drop it.
			d.table.DropDircacheRef(inode)
			return
		case existing.Inode == nil:
			existing.Inode = inode
			existing.Attr = attr
			existing.HasAttributes = true
			return
		default:
			d.removeLocked(existing.Cookie)
		}
	}

	c := d.nextSynthetic
	d.nextSynthetic++
	if !d.addLocked(c, &DirEntry{Name: name, Attr: attr, HasAttributes: true, Inode: inode}) {
		// Over the size cap: nothing took ownership of the caller's ref.
		d.table.DropDircacheRef(inode)
	}
}

// Lookup returns the entry for cookie or name (exactly one must be
// non-zero/non-empty). If the entry has an inode, the caller receives one
// unit of dircachecnt and must release it.
func (d *DirCache) Lookup(cookie uint64, name string) (*DirEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var e *DirEntry
	var ok bool
	if name != "" {
		e, ok = d.byName[name]
	} else {
		e, ok = d.byCookie[cookie]
	}
	if !ok {
		return nil, false
	}
	if e.Inode != nil {
		d.table.IncrDirCache(e.Inode)
	}
	return e, true
}

// DNLCLookup resolves name to an inode via the negative-lookup-capable
// name index. If found with an inode, the dircachecnt borrowed by Lookup
// is converted into a fresh lookupcnt. If found without an inode (a
// readdir-only stub), returns (nil, false): caller must issue a real
// LOOKUP. If absent, returns (nil, IsConfirmed()).
func (d *DirCache) DNLCLookup(name string) (inode *Inode, negativeConfirmed bool) {
	d.mu.Lock()
	e, ok := d.byName[name]
	if !ok {
		confirmed := d.isConfirmedLocked()
		d.mu.Unlock()
		return nil, confirmed
	}
	if e.Inode == nil {
		d.mu.Unlock()
		return nil, false
	}
	in := e.Inode
	d.table.IncrDirCache(in)
	d.mu.Unlock()

	d.table.Incref(in)
	d.table.DropDircacheRef(in)
	return in, false
}

// Remove erases the entry for cookie or name (exactly one must be
// non-zero/non-empty).
func (d *DirCache) Remove(cookie uint64, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name != "" {
		if e, ok := d.byName[name]; ok {
			d.removeLocked(e.Cookie)
		}
		return
	}
	d.removeLocked(cookie)
}

func (d *DirCache) removeLocked(cookie uint64) {
	e, ok := d.byCookie[cookie]
	if !ok {
		return
	}
	delete(d.byCookie, cookie)
	delete(d.byName, e.Name)
	d.cacheSize -= entrySize
	if d.cacheSize < 0 {
		d.cacheSize = 0
	}

	// The removed cookie may have been part of the contiguous run
	// seq_last_cookie tracks; if so, the run's tail now ends just before
	// it, so a later SetEOF can't falsely confirm past a hole.
	if cookie != 0 && cookie <= d.seqLastCookie {
		d.seqLastCookie = cookie - 1
	} else if cookie == 0 {
		d.seqLastCookie = 0
	}

	if e.Inode != nil {
		d.table.DropDircacheRef(e.Inode)
	}
}

// Clear empties the cache, releasing every held dircachecnt, and resets
// eof/cache_size/cookie_verifier/seq_last_cookie/confirmed_msecs.
func (d *DirCache) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for c := range d.byCookie {
		d.removeLocked(c)
	}
	d.eof = false
	d.eofCookie = 0
	d.seqLastCookie = 0
	d.confirmedMsecs = 0
	d.cookieVerifier = [8]byte{}
	d.cacheSize = 0
}

// SetEOF records that the server signaled end-of-directory at lastCookie.
// The cache becomes confirmed iff nothing was ever evicted or skipped,
// i.e. seq_last_cookie == lastCookie.
func (d *DirCache) SetEOF(lastCookie uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eof = true
	d.eofCookie = lastCookie
	if d.seqLastCookie == lastCookie {
		d.confirmedMsecs = time.Now().UnixMilli()
	}
}

// IsConfirmed reports whether the cache is within its confirmed window.
func (d *DirCache) IsConfirmed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isConfirmedLocked()
}

func (d *DirCache) isConfirmedLocked() bool {
	if d.confirmedMsecs == 0 {
		return false
	}
	return time.Now().UnixMilli() < d.confirmedMsecs+actimeoMsecs.Load()
}

// Verifier returns the cookie verifier to echo on the next READDIR call,
// and seq_last_cookie, the greatest cookie C such that every cookie in
// [1, C] is cached.
func (d *DirCache) Verifier() ([8]byte, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cookieVerifier, d.seqLastCookie
}

// SetVerifier stores the verifier returned by the server for the most
// recent READDIR/READDIRPLUS call.
func (d *DirCache) SetVerifier(v [8]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookieVerifier = v
}

// EOF reports whether the server has signaled end-of-directory, and at
// which cookie.
func (d *DirCache) EOF() (bool, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.eof, d.eofCookie
}
