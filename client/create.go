package client

import (
	"encoding/binary"
	"syscall"
	"time"

	"github.com/blobnfs/aznfsc/cache"
	"github.com/blobnfs/aznfsc/kbridge"
	"github.com/blobnfs/aznfsc/nfs3"
	"github.com/blobnfs/aznfsc/tasks"
)

// addToParentDNLC promotes a successful create/mkdir/lookup-after-retry
// result into the parent's DNLC.
func (c *Client) addToParentDNLC(pin *cache.Inode, name string, in *cache.Inode, attr cache.Attr) {
	dc := c.dirCacheOf(pin)
	c.inodes.IncrDirCache(in)
	dc.DNLCAdd(name, in, attr)
}

// queryCreateLanded issues a LOOKUP3 for name in parent to discover
// whether a prior, transport-failed CREATE actually landed on the
// server (scenario 7: exclusive-create retry).
func (c *Client) queryCreateLanded(ctx kbridge.Context, pin *cache.Inode, name string) (*cache.Inode, bool) {
	args := nfs3.LookupArgs{Dir: nfs3.FileHandle(pin.Handle), Name: name}
	body, err := c.call(ctx, nfs3.NFSPROC3_LOOKUP, true, args.Marshal())
	if err != nil {
		return nil, false
	}
	res, uerr := nfs3.UnmarshalLookupResult(body)
	if uerr != nil || !res.Status.IsOK() {
		return nil, false
	}

	in := c.inodes.GetOrCreate(cache.Handle(res.Handle))
	c.inodes.Incref(in)
	in.SetAttr(toCacheAttr(res.Attr), c.actimeo)
	return in, true
}

// Create implements the create(parent, name, mode, file) dispatcher.
func (c *Client) Create(ctx kbridge.Context, parent kbridge.Inode, name string, mode uint32, flags uint32) (*kbridge.Entry, *kbridge.OpenResponse, error) {
	pin, err := c.inodeOf(parent)
	if err != nil {
		return nil, nil, err
	}

	exclusive := flags&syscall.O_EXCL != 0

	args := nfs3.CreateArgs{
		Dir:  nfs3.FileHandle(pin.Handle),
		Name: name,
		Attr: nfs3.Fattr{Mode: unixModeOf(mode)},
	}
	if exclusive {
		args.Mode = nfs3.Exclusive
		binary.BigEndian.PutUint64(args.Verf[:], uint64(time.Now().UnixNano()))
	} else {
		args.Mode = nfs3.Unchecked
	}

	var in *cache.Inode
	var resAttr nfs3.Fattr

	if !exclusive {
		body, callErr := c.call(ctx, nfs3.NFSPROC3_CREATE, false, args.Marshal())
		if callErr != nil {
			return nil, nil, callErr
		}
		res, uerr := nfs3.UnmarshalCreateResult(body)
		if uerr != nil {
			return nil, nil, syscall.EIO
		}
		if !res.Status.IsOK() {
			return nil, nil, res.Status.Errno()
		}
		in = c.inodes.GetOrCreate(cache.Handle(res.Handle))
		c.inodes.Incref(in)
		resAttr = res.Attr
		in.SetAttr(toCacheAttr(resAttr), c.actimeo)
	} else {
		var err error
		in, resAttr, err = c.createExclusive(ctx, pin, name, args)
		if err != nil {
			return nil, nil, err
		}
	}

	attr := toCacheAttr(resAttr)
	c.addToParentDNLC(pin, name, in, attr)

	entry := toKbridgeEntry(in, resAttr, c.actimeo)
	open := &kbridge.OpenResponse{Handle: kbridge.FileHandle(in.FuseIno)}
	return entry, open, nil
}

// createExclusive submits CREATE3 in EXCLUSIVE mode (args carries the
// verifier) with the query-before-retry behavior required for O_EXCL
// (scenario 7: a transport failure before the reply lands must not risk
// a duplicate create or a spurious EEXIST on resubmission).
func (c *Client) createExclusive(ctx kbridge.Context, pin *cache.Inode, name string, args nfs3.CreateArgs) (*cache.Inode, nfs3.Fattr, error) {
	slot, err := c.taskPool.Acquire(ctx)
	if err != nil {
		return nil, nfs3.Fattr{}, err
	}
	defer c.taskPool.Release(slot.Index)

	retries := 0
	transient := 0
	for {
		conn := c.pool.Conn()
		if conn == nil {
			transient++
			if err := sleepOrDone(ctx, tasks.Backoff(transient)); err != nil {
				return nil, nfs3.Fattr{}, err
			}
			continue
		}

		body, rpcErr := conn.Call(ctx, nfs3.NFSPROC3_CREATE, args.Marshal())
		if rpcErr != nil {
			if retries >= tasks.MaxErrnoRetries {
				return nil, nfs3.Fattr{}, syscall.EIO
			}
			if in, ok := c.queryCreateLanded(ctx, pin, name); ok {
				attr, _ := in.Attr()
				return in, fromCacheAttr(attr), nil
			}
			retries++
			if err := sleepOrDone(ctx, tasks.Backoff(retries)); err != nil {
				return nil, nfs3.Fattr{}, err
			}
			continue
		}

		res, uerr := nfs3.UnmarshalCreateResult(body)
		if uerr != nil {
			return nil, nfs3.Fattr{}, syscall.EIO
		}
		if !res.Status.IsOK() {
			return nil, nfs3.Fattr{}, res.Status.Errno()
		}

		in := c.inodes.GetOrCreate(cache.Handle(res.Handle))
		c.inodes.Incref(in)
		in.SetAttr(toCacheAttr(res.Attr), c.actimeo)
		return in, res.Attr, nil
	}
}

// Mkdir implements the mkdir(parent, name, mode) dispatcher. MKDIR3 has
// no exclusive variant, so it always uses the straightforward
// transport-retry path.
func (c *Client) Mkdir(ctx kbridge.Context, parent kbridge.Inode, name string, mode uint32) (*kbridge.Entry, error) {
	pin, err := c.inodeOf(parent)
	if err != nil {
		return nil, err
	}

	args := nfs3.MkdirArgs{Dir: nfs3.FileHandle(pin.Handle), Name: name, Attr: nfs3.Fattr{Mode: unixModeOf(mode)}}
	body, callErr := c.call(ctx, nfs3.NFSPROC3_MKDIR, false, args.Marshal())
	if callErr != nil {
		return nil, callErr
	}

	res, uerr := nfs3.UnmarshalMkdirResult(body)
	if uerr != nil {
		return nil, syscall.EIO
	}
	if !res.Status.IsOK() {
		return nil, res.Status.Errno()
	}

	in := c.inodes.GetOrCreate(cache.Handle(res.Handle))
	c.inodes.Incref(in)
	in.SetAttr(toCacheAttr(res.Attr), c.actimeo)
	c.addToParentDNLC(pin, name, in, toCacheAttr(res.Attr))

	return toKbridgeEntry(in, res.Attr, c.actimeo), nil
}
