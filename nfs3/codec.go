package nfs3

import (
	"encoding/binary"
	"fmt"
)

// Encoder builds an XDR byte stream. XDR (RFC 4506) is big-endian with
// 4-byte alignment; every primitive below pads to that boundary.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder { return &Encoder{buf: make([]byte, 0, 256)} }

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Opaque encodes variable-length opaque data: a length prefix followed by
// the bytes, padded to a 4-byte boundary.
func (e *Encoder) Opaque(data []byte) {
	e.Uint32(uint32(len(data)))
	e.buf = append(e.buf, data...)
	if pad := (4 - len(data)%4) % 4; pad != 0 {
		e.buf = append(e.buf, make([]byte, pad)...)
	}
}

// OpaqueFixed encodes fixed-length opaque data with no length prefix,
// padded to a 4-byte boundary.
func (e *Encoder) OpaqueFixed(data []byte) {
	e.buf = append(e.buf, data...)
	if pad := (4 - len(data)%4) % 4; pad != 0 {
		e.buf = append(e.buf, make([]byte, pad)...)
	}
}

func (e *Encoder) String(s string) {
	e.Opaque([]byte(s))
}

func (e *Encoder) Handle(h FileHandle) {
	e.Opaque([]byte(h))
}

// Decoder reads an XDR byte stream produced by an Encoder (or a server).
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(data []byte) *Decoder { return &Decoder{buf: data} }

func (d *Decoder) Err() error { return d.err }

// Remaining returns the unconsumed tail of the buffer.
func (d *Decoder) Remaining() []byte { return d.buf[d.off:] }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if d.off+n > len(d.buf) {
		d.fail(fmt.Errorf("nfs3: short xdr buffer: need %d bytes at offset %d, have %d", n, d.off, len(d.buf)))
		return false
	}
	return true
}

func (d *Decoder) Uint32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *Decoder) Uint64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v
}

func (d *Decoder) Bool() bool {
	return d.Uint32() != 0
}

func (d *Decoder) Status() Status {
	return Status(d.Uint32())
}

// PeekStatus reads only the leading nfsstat3 field of an RPC result, for
// routing the reply through the retry/reply state machine before the
// operation-specific unmarshal runs.
func PeekStatus(data []byte) Status {
	return NewDecoder(data).Status()
}

func (d *Decoder) Opaque() []byte {
	n := int(d.Uint32())
	if n < 0 || !d.need(n) {
		return nil
	}
	v := make([]byte, n)
	copy(v, d.buf[d.off:d.off+n])
	d.off += n
	if pad := (4 - n%4) % 4; pad != 0 {
		d.need(pad)
		d.off += pad
	}
	return v
}

func (d *Decoder) OpaqueFixed(n int) []byte {
	if !d.need(n) {
		return nil
	}
	v := make([]byte, n)
	copy(v, d.buf[d.off:d.off+n])
	d.off += n
	if pad := (4 - n%4) % 4; pad != 0 {
		d.need(pad)
		d.off += pad
	}
	return v
}

func (d *Decoder) String() string {
	return string(d.Opaque())
}

func (d *Decoder) Handle() FileHandle {
	return FileHandle(d.Opaque())
}

// Fattr encoding/decoding.

func (e *Encoder) Fattr(a Fattr) {
	e.Uint32(a.Type)
	e.Uint32(a.Mode)
	e.Uint32(a.Nlink)
	e.Uint32(a.Uid)
	e.Uint32(a.Gid)
	e.Uint64(a.Size)
	e.Uint64(a.Used)
	e.Uint64(a.Rdev)
	e.Uint64(a.Fsid)
	e.Uint64(a.Fileid)
	e.Uint64(a.Atime)
	e.Uint32(a.AtimeNs)
	e.Uint64(a.Mtime)
	e.Uint32(a.MtimeNs)
	e.Uint64(a.Ctime)
	e.Uint32(a.CtimeNs)
}

func (d *Decoder) Fattr() Fattr {
	var a Fattr
	a.Type = d.Uint32()
	a.Mode = d.Uint32()
	a.Nlink = d.Uint32()
	a.Uid = d.Uint32()
	a.Gid = d.Uint32()
	a.Size = d.Uint64()
	a.Used = d.Uint64()
	a.Rdev = d.Uint64()
	a.Fsid = d.Uint64()
	a.Fileid = d.Uint64()
	a.Atime = d.Uint64()
	a.AtimeNs = d.Uint32()
	a.Mtime = d.Uint64()
	a.MtimeNs = d.Uint32()
	a.Ctime = d.Uint64()
	a.CtimeNs = d.Uint32()
	return a
}

func (d *Decoder) WccData() WccData {
	var w WccData
	w.HasPre = d.Bool()
	if w.HasPre {
		w.PreSize = d.Uint64()
		d.Uint64() // pre_mtime
		d.Uint64() // pre_ctime
	}
	w.HasPost = d.Bool()
	if w.HasPost {
		w.Post = d.Fattr()
	}
	return w
}

// Marshal/Unmarshal for the dispatched procedure subset.

func (a LookupArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Dir)
	e.String(a.Name)
	return e.Bytes()
}

func UnmarshalLookupResult(data []byte) (LookupResult, error) {
	d := NewDecoder(data)
	var r LookupResult
	r.Status = d.Status()
	if r.Status.IsOK() {
		r.Handle = d.Handle()
		if d.Bool() {
			r.Attr = d.Fattr()
		}
	}
	r.DirAttr = d.WccData()
	return r, d.Err()
}

func (a GetattrArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Handle)
	return e.Bytes()
}

func UnmarshalGetattrResult(data []byte) (GetattrResult, error) {
	d := NewDecoder(data)
	var r GetattrResult
	r.Status = d.Status()
	if r.Status.IsOK() {
		r.Attr = d.Fattr()
	}
	return r, d.Err()
}

// FATTR3_* bits, mirrored from the kernel-bridge SETATTR mask so the
// setattr dispatcher can pass proto.Fattr* values straight through.
const (
	FattrMode  uint32 = 1 << 0
	FattrUid   uint32 = 1 << 1
	FattrGid   uint32 = 1 << 2
	FattrSize  uint32 = 1 << 3
	FattrAtime uint32 = 1 << 4
	FattrMtime uint32 = 1 << 5
)

func (a SetattrArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Handle)

	e.Bool(a.FattrMask&FattrMode != 0)
	if a.FattrMask&FattrMode != 0 {
		e.Uint32(a.Mode)
	}
	e.Bool(a.FattrMask&FattrUid != 0)
	if a.FattrMask&FattrUid != 0 {
		e.Uint32(a.Uid)
	}
	e.Bool(a.FattrMask&FattrGid != 0)
	if a.FattrMask&FattrGid != 0 {
		e.Uint32(a.Gid)
	}
	e.Bool(a.FattrMask&FattrSize != 0)
	if a.FattrMask&FattrSize != 0 {
		e.Uint64(a.Size)
	}
	// set_atime / set_mtime enums: 0=don't change, 2=client time (SET_TO_CLIENT_TIME)
	if a.FattrMask&FattrAtime != 0 {
		e.Uint32(2)
		e.Uint64(a.Atime)
		e.Uint32(a.AtimeNs)
	} else {
		e.Uint32(0)
	}
	if a.FattrMask&FattrMtime != 0 {
		e.Uint32(2)
		e.Uint64(a.Mtime)
		e.Uint32(a.MtimeNs)
	} else {
		e.Uint32(0)
	}
	e.Bool(a.Guard)
	if a.Guard {
		e.Uint64(a.GuardCtime)
	}
	return e.Bytes()
}

func UnmarshalSetattrResult(data []byte) (SetattrResult, error) {
	d := NewDecoder(data)
	var r SetattrResult
	r.Status = d.Status()
	r.Wcc = d.WccData()
	return r, d.Err()
}

func (a CreateArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Dir)
	e.String(a.Name)
	e.Uint32(uint32(a.Mode))
	switch a.Mode {
	case Exclusive:
		e.OpaqueFixed(a.Verf[:])
	default:
		// sattr3: only mode is set on create, matching the dispatcher's
		// contract of submitting the caller's requested permission bits.
		e.Bool(true)
		e.Uint32(a.Attr.Mode)
		e.Bool(false) // uid
		e.Bool(false) // gid
		e.Bool(false) // size
		e.Uint32(0)   // atime: don't change
		e.Uint32(0)   // mtime: don't change
	}
	return e.Bytes()
}

func UnmarshalCreateResult(data []byte) (CreateResult, error) {
	d := NewDecoder(data)
	var r CreateResult
	r.Status = d.Status()
	if r.Status.IsOK() {
		if d.Bool() {
			r.Handle = d.Handle()
		}
		if d.Bool() {
			r.Attr = d.Fattr()
		}
	}
	r.DirWcc = d.WccData()
	return r, d.Err()
}

func (a MkdirArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Dir)
	e.String(a.Name)
	e.Bool(true)
	e.Uint32(a.Attr.Mode)
	e.Bool(false)
	e.Bool(false)
	e.Bool(false)
	e.Uint32(0)
	e.Uint32(0)
	return e.Bytes()
}

func UnmarshalMkdirResult(data []byte) (MkdirResult, error) {
	d := NewDecoder(data)
	var r MkdirResult
	r.Status = d.Status()
	if r.Status.IsOK() {
		if d.Bool() {
			r.Handle = d.Handle()
		}
		if d.Bool() {
			r.Attr = d.Fattr()
		}
	}
	r.DirWcc = d.WccData()
	return r, d.Err()
}

func (a ReaddirArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Dir)
	e.Uint64(a.Cookie)
	e.OpaqueFixed(a.Verifier[:])
	e.Uint32(a.Count)
	if a.Plus {
		e.Uint32(a.Count) // dircount == maxcount for our purposes
	}
	return e.Bytes()
}

func unmarshalReaddirResultCommon(d *Decoder, plus bool) ReaddirResult {
	var r ReaddirResult
	r.Status = d.Status()
	if !r.Status.IsOK() {
		return r
	}
	if d.Bool() {
		_ = d.Fattr() // dir_attributes present but unused by callers today
	}
	copy(r.Verifier[:], d.OpaqueFixed(8))

	for d.Bool() {
		var e ReaddirEntry
		e.Fileid = d.Uint64()
		e.Name = d.String()
		e.Cookie = d.Uint64()
		if plus {
			if d.Bool() {
				e.HasAttr = true
				e.Attr = d.Fattr()
			}
			if d.Bool() {
				e.HasHandle = true
				e.Handle = d.Handle()
			}
		}
		r.Entries = append(r.Entries, e)
		if d.Err() != nil {
			break
		}
	}
	r.EOF = d.Bool()
	return r
}

func UnmarshalReaddirResult(data []byte) (ReaddirResult, error) {
	d := NewDecoder(data)
	r := unmarshalReaddirResultCommon(d, false)
	return r, d.Err()
}

func UnmarshalReaddirplusResult(data []byte) (ReaddirResult, error) {
	d := NewDecoder(data)
	r := unmarshalReaddirResultCommon(d, true)
	return r, d.Err()
}

func (a ReadArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Handle)
	e.Uint64(a.Offset)
	e.Uint32(a.Count)
	return e.Bytes()
}

func UnmarshalReadResult(data []byte) (ReadResult, error) {
	d := NewDecoder(data)
	var r ReadResult
	r.Status = d.Status()
	if d.Bool() {
		r.Attr = d.Fattr()
	}
	if r.Status.IsOK() {
		count := d.Uint32()
		r.EOF = d.Bool()
		r.Data = d.Opaque()
		if uint32(len(r.Data)) > count {
			r.Data = r.Data[:count]
		}
	}
	return r, d.Err()
}

func (a WriteArgs) Marshal() []byte {
	e := NewEncoder()
	e.Handle(a.Handle)
	e.Uint64(a.Offset)
	e.Uint32(uint32(len(a.Data)))
	e.Uint32(uint32(a.Stable))
	e.Opaque(a.Data)
	return e.Bytes()
}

func UnmarshalWriteResult(data []byte) (WriteResult, error) {
	d := NewDecoder(data)
	var r WriteResult
	r.Status = d.Status()
	r.Wcc = d.WccData()
	if r.Status.IsOK() {
		r.Count = d.Uint32()
		r.Stable = StableHow(d.Uint32())
		copy(r.Verf[:], d.OpaqueFixed(8))
	}
	return r, d.Err()
}
