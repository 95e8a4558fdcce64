package client

import (
	"syscall"

	"github.com/blobnfs/aznfsc/cache"
	"github.com/blobnfs/aznfsc/kbridge"
	"github.com/blobnfs/aznfsc/nfs3"
)

// populateDirCache implements the readdir population algorithm from the
// directory-cache component: for each server-returned entry, replace any
// stale cookie slot, build a stub or inode-backed cache entry, and update
// EOF/confirmation state.
func (c *Client) populateDirCache(dc *cache.DirCache, res nfs3.ReaddirResult, plus bool) {
	var lastCookie uint64
	for _, e := range res.Entries {
		dc.Remove(e.Cookie, "")

		var entry *cache.DirEntry
		var in *cache.Inode
		if plus && e.HasHandle {
			in = c.inodes.GetOrCreate(cache.Handle(e.Handle))
			if e.HasAttr {
				in.SetAttr(toCacheAttr(e.Attr), c.actimeo)
			}
			c.inodes.IncrDirCache(in)
			entry = &cache.DirEntry{Name: e.Name, Inode: in, HasAttributes: e.HasAttr, Attr: toCacheAttr(e.Attr)}
		} else {
			entry = &cache.DirEntry{Name: e.Name}
		}
		if !dc.Add(e.Cookie, entry) && in != nil {
			// Add declined the insert (cache at its size cap); the
			// dircachecnt unit taken above is now unowned and must be
			// released, or the inode could never satisfy I1.
			c.inodes.DropDircacheRef(in)
		}
		lastCookie = e.Cookie
	}

	dc.SetVerifier(res.Verifier)
	if res.EOF {
		dc.SetEOF(lastCookie)
	}
}

func dirEntryType(attr cache.Attr, hasAttr bool) uint32 {
	if !hasAttr {
		return 0 // DT_UNKNOWN
	}
	switch attr.Type {
	case nf3dir:
		return 4 // DT_DIR
	case nf3lnk:
		return 10 // DT_LNK
	case nf3fifo:
		return 1 // DT_FIFO
	case nf3sock:
		return 12 // DT_SOCK
	case nf3chr:
		return 2 // DT_CHR
	case nf3blk:
		return 6 // DT_BLK
	default:
		return 8 // DT_REG
	}
}

// ReadDir implements the readdir(dir_ino, size, offset, file) dispatcher.
func (c *Client) ReadDir(ctx kbridge.Context, ino kbridge.Inode, fh kbridge.FileHandle, offset int64, size uint32) ([]kbridge.DirEntry, error) {
	pin, err := c.inodeOf(ino)
	if err != nil {
		return nil, err
	}
	dc := c.dirCacheOf(pin)

	verifier, _ := dc.Verifier()
	args := nfs3.ReaddirArgs{Dir: nfs3.FileHandle(pin.Handle), Cookie: uint64(offset), Verifier: verifier, Count: size}
	body, callErr := c.call(ctx, nfs3.NFSPROC3_READDIR, true, args.Marshal())
	if callErr != nil {
		return nil, callErr
	}

	res, uerr := nfs3.UnmarshalReaddirResult(body)
	if uerr != nil {
		return nil, syscall.EIO
	}
	if !res.Status.IsOK() {
		return nil, res.Status.Errno()
	}

	c.populateDirCache(dc, res, false)

	out := make([]kbridge.DirEntry, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, kbridge.DirEntry{
			Offset: e.Cookie,
			Name:   e.Name,
			Type:   dirEntryType(toCacheAttr(e.Attr), e.HasAttr),
		})
	}
	return out, nil
}

// ReadDirPlus implements the readdirplus(dir_ino, size, offset, file)
// dispatcher.
func (c *Client) ReadDirPlus(ctx kbridge.Context, ino kbridge.Inode, fh kbridge.FileHandle, offset int64, size uint32) ([]kbridge.DirEntryPlus, error) {
	pin, err := c.inodeOf(ino)
	if err != nil {
		return nil, err
	}
	dc := c.dirCacheOf(pin)

	verifier, _ := dc.Verifier()
	args := nfs3.ReaddirArgs{Dir: nfs3.FileHandle(pin.Handle), Cookie: uint64(offset), Verifier: verifier, Count: size, Plus: true}
	body, callErr := c.call(ctx, nfs3.NFSPROC3_READDIRPLUS, true, args.Marshal())
	if callErr != nil {
		return nil, callErr
	}

	res, uerr := nfs3.UnmarshalReaddirplusResult(body)
	if uerr != nil {
		return nil, syscall.EIO
	}
	if !res.Status.IsOK() {
		return nil, res.Status.Errno()
	}

	c.populateDirCache(dc, res, true)

	out := make([]kbridge.DirEntryPlus, 0, len(res.Entries))
	for _, e := range res.Entries {
		if !e.HasHandle {
			continue
		}
		in, _ := c.inodes.Get(cache.Handle(e.Handle))
		if in == nil {
			continue
		}
		out = append(out, kbridge.DirEntryPlus{
			Name:  e.Name,
			Entry: *toKbridgeEntry(in, e.Attr, c.actimeo),
		})
	}
	return out, nil
}
