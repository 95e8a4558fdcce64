package nfs3

// MaxHandleSize is the NFSv3 upper bound on an opaque file handle (nfs_fh3).
const MaxHandleSize = 64

// FileHandle is an opaque server file handle, compared byte-wise.
type FileHandle string

// Fattr is the wire attribute struct (fattr3), Go-cased.
type Fattr struct {
	Type    uint32
	Mode    uint32
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Size    uint64
	Used    uint64
	Rdev    uint64
	Fsid    uint64
	Fileid  uint64
	Atime   uint64
	AtimeNs uint32
	Mtime   uint64
	MtimeNs uint32
	Ctime   uint64
	CtimeNs uint32
}

// WccData is the weak cache consistency data (wcc_data) many NFSv3
// results carry so the client can update cached attributes without a
// separate GETATTR round-trip.
type WccData struct {
	HasPre  bool
	PreSize uint64
	HasPost bool
	Post    Fattr
}
