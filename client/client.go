// Package client implements the operation dispatchers (component D): the
// kbridge.Filesystem wired to the connection pool, task slot pool, retry
// state machine, inode table, directory cache and readahead predictor.
package client

import (
	"context"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blobnfs/aznfsc/cache"
	"github.com/blobnfs/aznfsc/kbridge"
	"github.com/blobnfs/aznfsc/logging"
	"github.com/blobnfs/aznfsc/metrics"
	"github.com/blobnfs/aznfsc/nfs3"
	"github.com/blobnfs/aznfsc/rpcconn"
	"github.com/blobnfs/aznfsc/tasks"
)

// LookupCachePolicy selects which DNLC outcomes Lookup may serve without a
// wire round trip, mirroring config.LookupCache.
type LookupCachePolicy string

const (
	LookupCacheAll      LookupCachePolicy = "all"
	LookupCacheNone     LookupCachePolicy = "none"
	LookupCachePos      LookupCachePolicy = "pos"
	LookupCachePositive LookupCachePolicy = "positive"
)

// ConsistencyPolicy scales how long cached attributes are trusted before
// revalidation, mirroring config.Consistency.
type ConsistencyPolicy string

const (
	ConsistencySoloWriter  ConsistencyPolicy = "solowriter"
	ConsistencyStandardNFS ConsistencyPolicy = "standardnfs"
	ConsistencyAzureMPA    ConsistencyPolicy = "azurempa"
)

// Client implements kbridge.Filesystem against an NFSv3 server.
type Client struct {
	kbridge.FilesystemBase

	pool       *rpcconn.Pool
	taskPool   *tasks.Pool
	inodes     *cache.Table
	rootHandle nfs3.FileHandle

	actimeo     time.Duration
	readaheadKB uint64
	lookupCache LookupCachePolicy

	log *zap.Logger
	met *metrics.Metrics
}

// Options configures a Client.
type Options struct {
	Pool        *rpcconn.Pool
	RootHandle  nfs3.FileHandle
	Actimeo     time.Duration
	ReadaheadKB uint64
	TaskSlots   int // 0 means tasks.MaxOutstandingRPCTasks

	// LookupCache selects the DNLC policy; empty defaults to
	// LookupCacheAll. Consistency scales Actimeo before it's applied;
	// empty defaults to ConsistencyStandardNFS (no scaling).
	LookupCache LookupCachePolicy
	Consistency ConsistencyPolicy

	// Logger and Metrics are optional; a nil Logger logs nowhere and a nil
	// Metrics records nothing.
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// New constructs a Client. The root inode is preinstalled in the inode
// table under RootHandle with fuse_ino 1.
func New(opts Options) *Client {
	slots := opts.TaskSlots
	if slots == 0 {
		slots = tasks.MaxOutstandingRPCTasks
	}
	actimeo := opts.Actimeo
	if actimeo == 0 {
		actimeo = 60 * time.Second
	}
	switch opts.Consistency {
	case ConsistencySoloWriter:
		// A single known writer (solowriter) can trust its own cache far
		// longer than a shared export would allow.
		actimeo *= 10
	case ConsistencyAzureMPA:
		// Multi-protocol-access exports need more aggressive revalidation
		// since another client may mutate the file out of band.
		actimeo /= 4
	}
	cache.SetActimeo(int(actimeo / time.Second))

	lookupCache := opts.LookupCache
	if lookupCache == "" {
		lookupCache = LookupCacheAll
	}

	c := &Client{
		pool:        opts.Pool,
		taskPool:    tasks.NewPool(slots),
		inodes:      cache.NewTable(cache.Handle(opts.RootHandle)),
		rootHandle:  opts.RootHandle,
		actimeo:     actimeo,
		readaheadKB: opts.ReadaheadKB,
		lookupCache: lookupCache,
		log:         opts.Logger,
		met:         opts.Metrics,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.met != nil {
		c.met.TaskSlotsCapacity.Set(float64(slots))
	}
	return c
}

// dnlcEnabled reports whether Lookup may consult the DNLC at all.
func (c *Client) dnlcEnabled() bool {
	return c.lookupCache != LookupCacheNone
}

// dnlcNegativeEnabled reports whether a confirmed-negative DNLC result may
// be served without a wire round trip.
func (c *Client) dnlcNegativeEnabled() bool {
	return c.lookupCache == LookupCacheAll
}

func (c *Client) Init(ctx kbridge.Context, config *kbridge.Config) error {
	return nil
}

func (c *Client) Destroy(ctx kbridge.Context) {}

func (c *Client) Access(ctx kbridge.Context, ino kbridge.Inode, mask uint32) error {
	return nil
}

func (c *Client) StatFS(ctx kbridge.Context, ino kbridge.Inode) (*kbridge.StatFS, error) {
	return &kbridge.StatFS{Bsize: 65536, Frsize: 65536, Namelen: 255}, nil
}

func (c *Client) Open(ctx kbridge.Context, ino kbridge.Inode, flags uint32) (*kbridge.OpenResponse, error) {
	return &kbridge.OpenResponse{Handle: kbridge.FileHandle(ino)}, nil
}

func (c *Client) Release(ctx kbridge.Context, ino kbridge.Inode, fh kbridge.FileHandle) error {
	return nil
}

func (c *Client) OpenDir(ctx kbridge.Context, ino kbridge.Inode, flags uint32) (*kbridge.OpenResponse, error) {
	return &kbridge.OpenResponse{Handle: kbridge.FileHandle(ino)}, nil
}

func (c *Client) ReleaseDir(ctx kbridge.Context, ino kbridge.Inode, fh kbridge.FileHandle) error {
	return nil
}

func (c *Client) Forget(ctx kbridge.Context, ino kbridge.Inode, nlookup uint64) {
	if in, ok := c.inodes.GetByIno(uint64(ino)); ok {
		c.inodes.Forget(in, nlookup)
	}
}

func (c *Client) BatchForget(ctx kbridge.Context, entries []kbridge.ForgetEntry) {
	for _, e := range entries {
		c.Forget(ctx, e.Ino, e.Nlookup)
	}
}

// inodeOf resolves a kernel-bridge inode number back to its cache record.
func (c *Client) inodeOf(ino kbridge.Inode) (*cache.Inode, error) {
	in, ok := c.inodes.GetByIno(uint64(ino))
	if !ok {
		return nil, syscall.ESTALE
	}
	return in, nil
}

// call acquires a task slot (component B, providing admission
// backpressure) and drives one RPC through the retry/reply state machine
// (component C) and the connection pool (component A). idempotent selects
// whether NFS status codes in the retryable set are retried.
// submitTransient failures (no healthy connection) are retried
// indefinitely with capped backoff and do not count against
// MAX_ERRNO_RETRIES.
func (c *Client) call(ctx context.Context, proc nfs3.Proc, idempotent bool, args []byte) ([]byte, error) {
	slot, err := c.taskPool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.taskPool.Release(slot.Index)
	if c.met != nil {
		c.met.TaskSlotsInUse.Set(float64(c.taskPool.Len()))
		defer c.met.TaskSlotsInUse.Set(float64(c.taskPool.Len() - 1))
	}

	retries := 0
	transient := 0
	for {
		conn := c.pool.Conn()
		if conn == nil {
			transient++
			if err := sleepOrDone(ctx, tasks.Backoff(transient)); err != nil {
				return nil, err
			}
			continue
		}

		result, rpcErr := conn.Call(ctx, proc, args)

		var status nfs3.Status
		if rpcErr == nil {
			status = nfs3.PeekStatus(result)
		}

		outcome, ferr := tasks.Classify(rpcErr, status, idempotent, retries)
		switch outcome {
		case tasks.Retry:
			kind := "transport"
			if rpcErr == nil {
				kind = "nfs"
			}
			if c.met != nil {
				c.met.RPCRetriesTotal.WithLabelValues(proc.String(), kind).Inc()
			}
			logging.WithOp(c.log, proc.String()).Warn("retrying RPC",
				zap.Int("retries", retries),
				zap.Error(rpcErr),
				zap.Uint32("nfsStatus", uint32(status)),
			)
			retries++
			if err := sleepOrDone(ctx, tasks.Backoff(retries)); err != nil {
				return nil, err
			}
			continue
		case tasks.Ok:
			return result, nil
		default: // tasks.Fail
			if c.met != nil {
				c.met.RPCFailuresTotal.WithLabelValues(proc.String()).Inc()
			}
			logging.WithOp(c.log, proc.String()).Warn("RPC failed",
				zap.Int("retries", retries),
				zap.Error(ferr),
				zap.Uint32("nfsStatus", uint32(status)),
			)
			return result, ferr
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- attribute conversions shared by dispatchers ---

func toCacheAttr(f nfs3.Fattr) cache.Attr {
	return cache.Attr{
		Type:   f.Type,
		Mode:   f.Mode,
		Size:   f.Size,
		Atime:  time.Unix(int64(f.Atime), int64(f.AtimeNs)),
		Mtime:  time.Unix(int64(f.Mtime), int64(f.MtimeNs)),
		Ctime:  time.Unix(int64(f.Ctime), int64(f.CtimeNs)),
		Nlink:  f.Nlink,
		Uid:    f.Uid,
		Gid:    f.Gid,
		Fsid:   f.Fsid,
		Fileid: f.Fileid,
	}
}

func toKbridgeAttr(ino kbridge.Inode, f nfs3.Fattr) *kbridge.Attr {
	return &kbridge.Attr{
		Ino:     ino,
		Size:    f.Size,
		Blocks:  (f.Size + 511) / 512,
		Atime:   time.Unix(int64(f.Atime), int64(f.AtimeNs)),
		Mtime:   time.Unix(int64(f.Mtime), int64(f.MtimeNs)),
		Ctime:   time.Unix(int64(f.Ctime), int64(f.CtimeNs)),
		Mode:    modeFromNFSType(f.Type, f.Mode),
		Nlink:   f.Nlink,
		Uid:     f.Uid,
		Gid:     f.Gid,
		Blksize: 65536,
	}
}

// NFSv3 ftype3 values (RFC 1813 §2.5).
const (
	nf3reg  = 1
	nf3dir  = 2
	nf3blk  = 3
	nf3chr  = 4
	nf3lnk  = 5
	nf3sock = 6
	nf3fifo = 7
)

func modeFromNFSType(ftype uint32, perm uint32) os.FileMode {
	mode := os.FileMode(perm & 0o7777)
	switch ftype {
	case nf3dir:
		mode |= os.ModeDir
	case nf3lnk:
		mode |= os.ModeSymlink
	case nf3fifo:
		mode |= os.ModeNamedPipe
	case nf3sock:
		mode |= os.ModeSocket
	case nf3chr:
		mode |= os.ModeDevice | os.ModeCharDevice
	case nf3blk:
		mode |= os.ModeDevice
	}
	return mode
}

func unixModeOf(mode uint32) uint32 { return mode & 0o7777 }

// fromCacheAttr reconstructs the wire-shaped Fattr needed by mode
// conversion from a cached Attr, since the cache stores the decomposed
// fields directly rather than round-tripping through nfs3.Fattr.
func fromCacheAttr(f cache.Attr) nfs3.Fattr {
	atSec, atNs := splitTime(f.Atime)
	mtSec, mtNs := splitTime(f.Mtime)
	ctSec, ctNs := splitTime(f.Ctime)
	return nfs3.Fattr{
		Type:    f.Type,
		Mode:    f.Mode,
		Nlink:   f.Nlink,
		Uid:     f.Uid,
		Gid:     f.Gid,
		Size:    f.Size,
		Fsid:    f.Fsid,
		Fileid:  f.Fileid,
		Atime:   atSec,
		AtimeNs: atNs,
		Mtime:   mtSec,
		MtimeNs: mtNs,
		Ctime:   ctSec,
		CtimeNs: ctNs,
	}
}

func splitTime(t time.Time) (uint64, uint32) {
	return uint64(t.Unix()), uint32(t.Nanosecond())
}

func toKbridgeEntry(in *cache.Inode, f nfs3.Fattr, actimeo time.Duration) *kbridge.Entry {
	ino := kbridge.Inode(in.FuseIno)
	return &kbridge.Entry{
		Ino:          ino,
		Attr:         *toKbridgeAttr(ino, f),
		AttrTimeout:  actimeo,
		EntryTimeout: actimeo,
	}
}
