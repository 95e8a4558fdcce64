package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirCacheAddAndLookupByCookieAndName(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	in := tbl.GetOrCreate("child")
	tbl.IncrDirCache(in)

	ok := dc.Add(5, &DirEntry{Name: "a", Inode: in})
	require.True(t, ok)

	e, ok := dc.Lookup(5, "")
	require.True(t, ok)
	assert.Equal(t, "a", e.Name)
	assert.Equal(t, int64(2), in.DirCacheCnt()) // Add's ref + Lookup's ref
	tbl.DropDircacheRef(in)

	e2, ok := dc.Lookup(0, "a")
	require.True(t, ok)
	assert.Equal(t, uint64(5), e2.Cookie)
	tbl.DropDircacheRef(in)
}

func TestDirCacheAddReplacesStaleCookieOnRename(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	in := tbl.GetOrCreate("child")
	tbl.IncrDirCache(in)
	dc.Add(1, &DirEntry{Name: "a", Inode: in})

	tbl.IncrDirCache(in)
	dc.Add(2, &DirEntry{Name: "a", Inode: in})

	_, ok := dc.Lookup(1, "")
	assert.False(t, ok, "old cookie must be gone")
	e, ok := dc.Lookup(2, "")
	require.True(t, ok)
	assert.Equal(t, "a", e.Name)
	tbl.DropDircacheRef(in)
}

func TestDNLCAddPromotesStubEntry(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)

	// A readdir-only stub: no inode.
	dc.Add(1, &DirEntry{Name: "a"})

	in := tbl.GetOrCreate("child")
	tbl.IncrDirCache(in) // caller's consistency-check ref
	dc.DNLCAdd("a", in, Attr{Fileid: 42})

	e, ok := dc.Lookup(0, "a")
	require.True(t, ok)
	assert.Same(t, in, e.Inode)
	assert.True(t, e.HasAttributes)
	tbl.DropDircacheRef(in)
}

func TestDNLCAddNoOpWhenSameInode(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	in := tbl.GetOrCreate("child")
	tbl.IncrDirCache(in)
	dc.DNLCAdd("a", in, Attr{})

	before := in.DirCacheCnt()
	tbl.IncrDirCache(in) // simulate caller's borrowed ref
	dc.DNLCAdd("a", in, Attr{})
	assert.Equal(t, before, in.DirCacheCnt(), "redundant ref must be dropped")
}

func TestDNLCLookupConvertsToLookupcnt(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	in := tbl.GetOrCreate("child")
	tbl.IncrDirCache(in)
	dc.DNLCAdd("a", in, Attr{})

	got, negConfirmed := dc.DNLCLookup("a")
	require.NotNil(t, got)
	assert.False(t, negConfirmed)
	assert.Equal(t, int64(1), in.LookupCnt())
}

func TestDNLCLookupNegativeOnConfirmedEmptyDir(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	dc.SetEOF(0) // seq_last_cookie starts at 0, matches -> confirmed

	in, negConfirmed := dc.DNLCLookup("missing")
	assert.Nil(t, in)
	assert.True(t, negConfirmed)
}

func TestRemoveDropsDircacheRef(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	in := tbl.GetOrCreate("child")
	tbl.IncrDirCache(in)
	dc.Add(1, &DirEntry{Name: "a", Inode: in})

	dc.Remove(1, "")
	assert.Equal(t, int64(0), in.DirCacheCnt())
	_, ok := dc.Lookup(1, "")
	assert.False(t, ok)
}

func TestClearReleasesAllRefs(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	in1 := tbl.GetOrCreate("a")
	in2 := tbl.GetOrCreate("b")
	tbl.IncrDirCache(in1)
	tbl.IncrDirCache(in2)
	dc.Add(1, &DirEntry{Name: "a", Inode: in1})
	dc.Add(2, &DirEntry{Name: "b", Inode: in2})

	dc.Clear()
	assert.Equal(t, int64(0), in1.DirCacheCnt())
	assert.Equal(t, int64(0), in2.DirCacheCnt())
	_, ok := dc.Lookup(1, "")
	assert.False(t, ok)
}

func TestSizeCapRejectsInsertAndUnconfirms(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	dc.SetEOF(0)
	require.True(t, dc.IsConfirmed())

	dc.cacheSize = MaxCacheSizeLimit

	ok := dc.Add(99, &DirEntry{Name: "z"})
	assert.False(t, ok)
	assert.False(t, dc.IsConfirmed())
}

func TestSetEOFConfirmsOnlyWhenSequentiallyComplete(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	dc.Add(1, &DirEntry{Name: "a"})
	// gap at cookie 2: seq_last_cookie stays at 1
	dc.Add(3, &DirEntry{Name: "b"})

	dc.SetEOF(3)
	assert.False(t, dc.IsConfirmed(), "gap in cookies must prevent confirmation")
}

func TestAddCascadesSeqLastCookieOverOutOfOrderSuccessors(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)

	dc.Add(2, &DirEntry{Name: "b"}) // out of order: gap at 1, seq_last_cookie stays 0
	require.Equal(t, uint64(0), dc.seqLastCookie)

	dc.Add(1, &DirEntry{Name: "a"}) // fills the gap; must cascade through 2
	assert.Equal(t, uint64(2), dc.seqLastCookie)
}

func TestRemoveRollsBackSeqLastCookie(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)

	dc.Add(1, &DirEntry{Name: "a"})
	dc.Add(2, &DirEntry{Name: "b"})
	dc.Add(3, &DirEntry{Name: "c"})
	require.Equal(t, uint64(3), dc.seqLastCookie)

	dc.Remove(2, "")
	assert.Equal(t, uint64(1), dc.seqLastCookie, "removing a cookie inside the run must roll the tail back")

	dc.SetEOF(3)
	assert.False(t, dc.IsConfirmed(), "a hole left by the removal must prevent false confirmation")
}

func TestByCookieByNameSizesStayInSync(t *testing.T) {
	tbl := NewTable("root")
	dc := NewDirCache(tbl)
	dc.Add(1, &DirEntry{Name: "a"})
	dc.Add(2, &DirEntry{Name: "b"})
	dc.Remove(0, "a")

	assert.Equal(t, len(dc.byCookie), len(dc.byName))
}
