package nfs3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderOpaquePadsToFourBytes(t *testing.T) {
	e := NewEncoder()
	e.Opaque([]byte("abc"))
	// 4-byte length prefix + 3 bytes + 1 pad byte = 8 bytes total.
	assert.Len(t, e.Bytes(), 8)

	d := NewDecoder(e.Bytes())
	assert.Equal(t, []byte("abc"), d.Opaque())
	require.NoError(t, d.Err())
}

func TestStringRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.String("hello world")
	d := NewDecoder(e.Bytes())
	assert.Equal(t, "hello world", d.String())
}

func TestHandleRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.Handle(FileHandle("some-opaque-handle"))
	d := NewDecoder(e.Bytes())
	assert.Equal(t, FileHandle("some-opaque-handle"), d.Handle())
}

func TestFattrRoundTrip(t *testing.T) {
	a := Fattr{Type: 1, Mode: 0o644, Nlink: 1, Uid: 1000, Gid: 1000, Size: 4096, Fileid: 99}
	e := NewEncoder()
	e.Fattr(a)
	d := NewDecoder(e.Bytes())
	assert.Equal(t, a, d.Fattr())
}

func TestDecoderReportsShortBuffer(t *testing.T) {
	d := NewDecoder([]byte{0, 0})
	d.Uint32()
	assert.Error(t, d.Err())
}

func TestLookupArgsMarshalAndGetattrResultUnmarshal(t *testing.T) {
	args := LookupArgs{Dir: FileHandle("dir-handle"), Name: "child"}
	data := args.Marshal()
	assert.NotEmpty(t, data)

	e := NewEncoder()
	e.Uint32(uint32(NFS3_OK))
	e.Fattr(Fattr{Fileid: 7})
	r, err := UnmarshalGetattrResult(e.Bytes())
	require.NoError(t, err)
	assert.True(t, r.Status.IsOK())
	assert.Equal(t, uint64(7), r.Attr.Fileid)
}

func TestLookupResultUnmarshalWithNoentStatus(t *testing.T) {
	e := NewEncoder()
	e.Uint32(uint32(NFS3ERR_NOENT))
	e.Bool(false) // no wcc pre
	e.Bool(false) // no wcc post
	r, err := UnmarshalLookupResult(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, NFS3ERR_NOENT, r.Status)
}

func TestWriteArgsAndResultRoundTrip(t *testing.T) {
	args := WriteArgs{Handle: "fh", Offset: 128, Stable: Unstable, Data: []byte("payload")}
	data := args.Marshal()
	assert.NotEmpty(t, data)

	e := NewEncoder()
	e.Uint32(uint32(NFS3_OK))
	e.Bool(false)
	e.Bool(false)
	e.Uint32(7)
	e.Uint32(uint32(Unstable))
	e.OpaqueFixed(make([]byte, 8))
	r, err := UnmarshalWriteResult(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(7), r.Count)
}

func TestReaddirplusResultUnmarshal(t *testing.T) {
	e := NewEncoder()
	e.Uint32(uint32(NFS3_OK))
	e.Bool(false) // dir attrs
	e.OpaqueFixed(make([]byte, 8))
	e.Bool(true) // entry 1
	e.Uint64(42)
	e.String("a")
	e.Uint64(1)
	e.Bool(true) // has attr
	e.Fattr(Fattr{Fileid: 42})
	e.Bool(true) // has handle
	e.Handle(FileHandle("h1"))
	e.Bool(false) // no more entries
	e.Bool(true)  // eof

	r, err := UnmarshalReaddirplusResult(e.Bytes())
	require.NoError(t, err)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, "a", r.Entries[0].Name)
	assert.True(t, r.Entries[0].HasHandle)
	assert.True(t, r.EOF)
}
