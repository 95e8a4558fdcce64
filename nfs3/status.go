// Package nfs3 implements the narrow slice of the NFSv3 (RFC 1813) wire
// protocol this client actually dispatches: status codes, the argument and
// result structs for the operations named in the component-design
// dispatchers, and their XDR encoding.
//
// Only the PROC values LOOKUP, GETATTR, SETATTR, CREATE, MKDIR, READDIR,
// READDIRPLUS, READ and WRITE are wired to a dispatcher. The remaining
// RFC 1813 procedures are represented here (status/errno tables, Proc
// constants) for completeness but are never submitted.
package nfs3

import "syscall"

// Status is an NFSv3 status code (nfsstat3).
type Status uint32

const (
	NFS3_OK             Status = 0
	NFS3ERR_PERM        Status = 1
	NFS3ERR_NOENT       Status = 2
	NFS3ERR_IO          Status = 5
	NFS3ERR_NXIO        Status = 6
	NFS3ERR_ACCES       Status = 13
	NFS3ERR_EXIST       Status = 17
	NFS3ERR_XDEV        Status = 18
	NFS3ERR_NODEV       Status = 19
	NFS3ERR_NOTDIR      Status = 20
	NFS3ERR_ISDIR       Status = 21
	NFS3ERR_INVAL       Status = 22
	NFS3ERR_FBIG        Status = 27
	NFS3ERR_NOSPC       Status = 28
	NFS3ERR_ROFS        Status = 30
	NFS3ERR_MLINK       Status = 31
	NFS3ERR_NAMETOOLONG Status = 63
	NFS3ERR_NOTEMPTY    Status = 66
	NFS3ERR_DQUOT       Status = 69
	NFS3ERR_STALE       Status = 70
	NFS3ERR_REMOTE      Status = 71
	NFS3ERR_BADHANDLE   Status = 10001
	NFS3ERR_NOT_SYNC    Status = 10002
	NFS3ERR_BAD_COOKIE  Status = 10003
	NFS3ERR_NOTSUPP     Status = 10004
	NFS3ERR_TOOSMALL    Status = 10005
	NFS3ERR_SERVERFAULT Status = 10006
	NFS3ERR_BADTYPE     Status = 10007
	NFS3ERR_JUKEBOX     Status = 10008
)

// IsOK reports whether the status is NFS3_OK.
func (s Status) IsOK() bool { return s == NFS3_OK }

var errnoTable = map[Status]syscall.Errno{
	NFS3ERR_PERM:        syscall.EPERM,
	NFS3ERR_NOENT:       syscall.ENOENT,
	NFS3ERR_IO:          syscall.EIO,
	NFS3ERR_NXIO:        syscall.ENXIO,
	NFS3ERR_ACCES:       syscall.EACCES,
	NFS3ERR_EXIST:       syscall.EEXIST,
	NFS3ERR_XDEV:        syscall.EXDEV,
	NFS3ERR_NODEV:       syscall.ENODEV,
	NFS3ERR_NOTDIR:      syscall.ENOTDIR,
	NFS3ERR_ISDIR:       syscall.EISDIR,
	NFS3ERR_INVAL:       syscall.EINVAL,
	NFS3ERR_FBIG:        syscall.EFBIG,
	NFS3ERR_NOSPC:       syscall.ENOSPC,
	NFS3ERR_ROFS:        syscall.EROFS,
	NFS3ERR_MLINK:       syscall.EMLINK,
	NFS3ERR_NAMETOOLONG: syscall.ENAMETOOLONG,
	NFS3ERR_NOTEMPTY:    syscall.ENOTEMPTY,
	NFS3ERR_DQUOT:       syscall.EDQUOT,
	NFS3ERR_STALE:       syscall.ESTALE,
	NFS3ERR_REMOTE:      syscall.EREMOTE,
	NFS3ERR_BADHANDLE:   syscall.EBADF,
	NFS3ERR_NOT_SYNC:    syscall.EINVAL,
	NFS3ERR_BAD_COOKIE:  syscall.EINVAL,
	NFS3ERR_NOTSUPP:     syscall.ENOTSUP,
	NFS3ERR_TOOSMALL:    syscall.EINVAL,
	NFS3ERR_SERVERFAULT: syscall.EIO,
	NFS3ERR_BADTYPE:     syscall.EINVAL,
	NFS3ERR_JUKEBOX:     syscall.EAGAIN,
}

// Errno maps the status to the POSIX errno reported upstream.
func (s Status) Errno() syscall.Errno {
	if s.IsOK() {
		return 0
	}
	if e, ok := errnoTable[s]; ok {
		return e
	}
	return syscall.EIO
}

var retryableSet = map[Status]bool{
	NFS3ERR_IO:          true,
	NFS3ERR_SERVERFAULT: true,
	NFS3ERR_ROFS:        true,
	NFS3ERR_PERM:        true,
}

// Retryable reports whether the status is in the idempotent-retry set
// {IO, SERVERFAULT, ROFS, PERM}.
func (s Status) Retryable() bool {
	return retryableSet[s]
}
