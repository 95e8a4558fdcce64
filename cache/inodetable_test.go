package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootInodePreinstalled(t *testing.T) {
	tbl := NewTable("root-handle")
	root, ok := tbl.Get("root-handle")
	assert.True(t, ok)
	assert.Equal(t, RootFuseIno, root.FuseIno)
}

func TestGetOrCreateAssignsDistinctInos(t *testing.T) {
	tbl := NewTable("root")
	a := tbl.GetOrCreate("a")
	b := tbl.GetOrCreate("b")
	assert.NotEqual(t, a.FuseIno, b.FuseIno)
	assert.NotEqual(t, RootFuseIno, a.FuseIno)

	again := tbl.GetOrCreate("a")
	assert.Same(t, a, again)
}

func TestDecrefDestroysAtZero(t *testing.T) {
	tbl := NewTable("root")
	in := tbl.GetOrCreate("a")
	tbl.Incref(in)
	tbl.Incref(in)
	assert.Equal(t, 2, tbl.Len()) // root + a

	tbl.Decref(in)
	_, ok := tbl.Get("a")
	assert.True(t, ok, "still referenced once")

	tbl.Decref(in)
	_, ok = tbl.Get("a")
	assert.False(t, ok, "should be destroyed once both counts hit zero")
}

func TestDircacheRefKeepsInodeAliveAfterForget(t *testing.T) {
	tbl := NewTable("root")
	in := tbl.GetOrCreate("a")
	tbl.Incref(in)
	tbl.IncrDirCache(in)

	tbl.Forget(in, 1)
	_, ok := tbl.Get("a")
	assert.True(t, ok, "dircachecnt>0 keeps the inode alive (invariant I3)")

	tbl.DropDircacheRef(in)
	_, ok = tbl.Get("a")
	assert.False(t, ok)
}

func TestForgetByN(t *testing.T) {
	tbl := NewTable("root")
	in := tbl.GetOrCreate("a")
	tbl.Incref(in)
	tbl.Incref(in)

	tbl.Forget(in, 2)
	_, ok := tbl.Get("a")
	assert.False(t, ok)
}
