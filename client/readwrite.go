package client

import (
	"syscall"

	"github.com/blobnfs/aznfsc/cache"
	"github.com/blobnfs/aznfsc/kbridge"
	"github.com/blobnfs/aznfsc/nfs3"
	"github.com/blobnfs/aznfsc/readahead"
)

// readaheadOf returns (creating if needed) the per-inode readahead
// predictor for a regular file, populated on first read. Lazy init is
// guarded by the inode's own lock so that two workers reading the same
// file concurrently share one predictor instead of splitting its state.
func (c *Client) readaheadOf(in *cache.Inode) *readahead.State {
	return in.ReadaheadOrInit(func() any { return readahead.New(c.readaheadKB * 1024) }).(*readahead.State)
}

// Read implements the read(ino, fh, offset, size) dispatcher: it reports
// the read to the readahead predictor before submitting READ3, and, if
// the predictor recommends a window, opportunistically fires a second,
// independent READ3 whose result is only used to prime the predictor's
// completion bookkeeping (the data itself is discarded, matching the
// Non-goal on a populated client-side page cache for prefetched bytes).
func (c *Client) Read(ctx kbridge.Context, ino kbridge.Inode, fh kbridge.FileHandle, offset int64, size uint32) ([]byte, error) {
	in, err := c.inodeOf(ino)
	if err != nil {
		return nil, err
	}
	ra := c.readaheadOf(in)
	ra.OnApplicationRead(uint64(offset), uint64(size))

	args := nfs3.ReadArgs{Handle: nfs3.FileHandle(in.Handle), Offset: uint64(offset), Count: size}
	body, callErr := c.call(ctx, nfs3.NFSPROC3_READ, true, args.Marshal())
	if callErr != nil {
		return nil, callErr
	}

	res, uerr := nfs3.UnmarshalReadResult(body)
	if uerr != nil {
		return nil, syscall.EIO
	}
	if !res.Status.IsOK() {
		return nil, res.Status.Errno()
	}

	if raOff := ra.GetNextRA(uint64(size)); raOff != 0 {
		if c.met != nil {
			c.met.ReadaheadActivations.Inc()
		}
		go c.fireReadahead(in, ra, raOff, uint64(size))
	}

	return res.Data, nil
}

func (c *Client) fireReadahead(in *cache.Inode, ra *readahead.State, offset, length uint64) {
	defer ra.OnReadaheadComplete(offset, length)

	args := nfs3.ReadArgs{Handle: nfs3.FileHandle(in.Handle), Offset: offset, Count: uint32(length)}
	// Best-effort: no upstream request is waiting on this call, so a
	// background context with no deadline is appropriate; errors are
	// swallowed since there is no reply channel to report them on.
	_, _ = c.call(noopContext{}, nfs3.NFSPROC3_READ, true, args.Marshal())
}

// Write implements the write(ino, fh, offset, data) dispatcher.
func (c *Client) Write(ctx kbridge.Context, ino kbridge.Inode, fh kbridge.FileHandle, offset int64, data []byte) (uint32, error) {
	in, err := c.inodeOf(ino)
	if err != nil {
		return 0, err
	}

	args := nfs3.WriteArgs{Handle: nfs3.FileHandle(in.Handle), Offset: uint64(offset), Stable: nfs3.Unstable, Data: data}
	body, callErr := c.call(ctx, nfs3.NFSPROC3_WRITE, false, args.Marshal())
	if callErr != nil {
		return 0, callErr
	}

	res, uerr := nfs3.UnmarshalWriteResult(body)
	if uerr != nil {
		return 0, syscall.EIO
	}
	if !res.Status.IsOK() {
		return 0, res.Status.Errno()
	}

	if res.Wcc.HasPost {
		in.SetAttr(toCacheAttr(res.Wcc.Post), c.actimeo)
	}

	// Scenario 8: every successful write invalidates the predictor's
	// sequential-pattern state, whether or not it lands inside an
	// outstanding readahead window, so the next
	// read is satisfied by a fresh, non-prefetched submission rather than
	// stale prefetched bytes. on_readahead_complete still fires normally
	// for any in-flight window when its own RPC returns.
	if ra, ok := in.GetReadahead().(*readahead.State); ok {
		ra.Invalidate()
	}

	return res.Count, nil
}
