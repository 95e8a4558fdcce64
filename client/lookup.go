package client

import (
	"syscall"

	"go.uber.org/zap"

	"github.com/blobnfs/aznfsc/cache"
	"github.com/blobnfs/aznfsc/kbridge"
	"github.com/blobnfs/aznfsc/logging"
	"github.com/blobnfs/aznfsc/nfs3"
)

// dirCacheOf returns (creating if needed) the directory cache for a
// directory inode. Lazy init is guarded by the inode's own lock so that
// two FUSE worker threads racing on the same parent's first Lookup/ReadDir
// never install and silently drop two different DirCaches.
func (c *Client) dirCacheOf(parent *cache.Inode) *cache.DirCache {
	return parent.DirCacheOrInit(func() *cache.DirCache { return cache.NewDirCache(c.inodes) })
}

func (c *Client) negativeEntry() *kbridge.Entry {
	return &kbridge.Entry{Ino: 0, EntryTimeout: c.actimeo}
}

// Lookup implements the lookup(parent_ino, name) dispatcher.
func (c *Client) Lookup(ctx kbridge.Context, parent kbridge.Inode, name string) (*kbridge.Entry, error) {
	pin, err := c.inodeOf(parent)
	if err != nil {
		return nil, err
	}
	dc := c.dirCacheOf(pin)
	logging.WithRequest(c.log, ctx.Unique()).Debug("lookup", zap.String("name", name))

	// Fast path: consult the parent's DNLC, subject to the configured
	// lookupcache policy (config.LookupCache / LookupCachePolicy).
	if c.dnlcEnabled() {
		if in, negConfirmed := dc.DNLCLookup(name); in != nil {
			if c.met != nil {
				c.met.DNLCLookupsTotal.WithLabelValues("hit").Inc()
			}
			attr, _ := in.Attr()
			return toKbridgeEntry(in, fromCacheAttr(attr), c.actimeo), nil
		} else if negConfirmed && c.dnlcNegativeEnabled() {
			if c.met != nil {
				c.met.DNLCLookupsTotal.WithLabelValues("negative").Inc()
			}
			return c.negativeEntry(), nil
		}
	}
	if c.met != nil {
		c.met.DNLCLookupsTotal.WithLabelValues("miss").Inc()
	}

	args := nfs3.LookupArgs{Dir: nfs3.FileHandle(pin.Handle), Name: name}
	body, err := c.call(ctx, nfs3.NFSPROC3_LOOKUP, true, args.Marshal())
	if err != nil {
		if err == syscall.ENOENT {
			return c.negativeEntry(), nil
		}
		return nil, err
	}

	res, uerr := nfs3.UnmarshalLookupResult(body)
	if uerr != nil {
		return nil, syscall.EIO
	}
	if !res.Status.IsOK() {
		if res.Status == nfs3.NFS3ERR_NOENT {
			return c.negativeEntry(), nil
		}
		return nil, res.Status.Errno()
	}

	in := c.inodes.GetOrCreate(cache.Handle(res.Handle))
	c.inodes.Incref(in)
	in.SetAttr(toCacheAttr(res.Attr), c.actimeo)

	if c.dnlcEnabled() {
		// DNLCAdd takes ownership of one dircachecnt unit (the
		// "consistency check" ref); provide it before calling.
		c.inodes.IncrDirCache(in)
		dc.DNLCAdd(name, in, toCacheAttr(res.Attr))
	}

	return toKbridgeEntry(in, res.Attr, c.actimeo), nil
}
