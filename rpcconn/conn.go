// Package rpcconn implements the connection pool component: a fixed set
// of independent ONC-RPC transports to the NFSv3 server, each drained by
// its own service goroutine.
package rpcconn

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blobnfs/aznfsc/nfs3"
)

const (
	nfsProgram uint32 = 100003
	nfsVersion uint32 = 3

	msgTypeCall  uint32 = 0
	msgTypeReply uint32 = 1

	replyAccepted uint32 = 0
	acceptSuccess uint32 = 0

	authNone uint32 = 0
)

// Conn wraps one dialed transport plus an ONC-RPC transaction-ID
// allocator and a table of calls awaiting reply; there is one per
// connection-pool slot.
type Conn struct {
	nc net.Conn

	xid atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan rpcReply
	closed  bool

	writeMu sync.Mutex
}

type rpcReply struct {
	body []byte
	err  error
}

// Dial opens a plain TCP connection to addr; this layer does not set up
// TLS.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Conn{nc: nc, pending: make(map[uint32]chan rpcReply)}
	c.xid.Store(uint32(time.Now().UnixNano()))
	return c, nil
}

// Serve drains replies from the transport until ctx is done or the
// connection fails. Intended to run on its own goroutine per the
// connection pool's errgroup.
func (c *Conn) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.readLoop() }()

	select {
	case <-ctx.Done():
		c.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		c.Close()
		return err
	}
}

func (c *Conn) readLoop() error {
	for {
		frame, err := readRecord(c.nc)
		if err != nil {
			c.failAll(err)
			return err
		}
		xid, body, err := parseReplyHeader(frame)
		if err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[xid]
		if ok {
			delete(c.pending, xid)
		}
		c.mu.Unlock()
		if ok {
			ch <- rpcReply{body: body}
		}
	}
}

func (c *Conn) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for xid, ch := range c.pending {
		ch <- rpcReply{err: err}
		delete(c.pending, xid)
	}
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Call issues one ONC-RPC call for proc with the given pre-marshaled
// argument bytes and returns the pre-marshaled result bytes.
func (c *Conn) Call(ctx context.Context, proc nfs3.Proc, args []byte) ([]byte, error) {
	xid := c.xid.Add(1)

	ch := make(chan rpcReply, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	c.pending[xid] = ch
	c.mu.Unlock()

	msg := buildCallMessage(xid, proc, args)
	if err := c.writeRecord(msg); err != nil {
		c.mu.Lock()
		delete(c.pending, xid)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case r := <-ch:
		return r.body, r.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, xid)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Conn) writeRecord(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(msg))|0x80000000) // last fragment
	if _, err := c.nc.Write(header[:]); err != nil {
		return err
	}
	_, err := c.nc.Write(msg)
	return err
}

// readRecord reads one complete RPC record (possibly spanning multiple
// TCP record-marking fragments) from r.
func readRecord(r io.Reader) ([]byte, error) {
	var out []byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		v := binary.BigEndian.Uint32(header[:])
		last := v&0x80000000 != 0
		size := v &^ 0x80000000

		frag := make([]byte, size)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, err
		}
		out = append(out, frag...)
		if last {
			return out, nil
		}
	}
}

// buildCallMessage encodes an ONC-RPC call header (RFC 5531 §9) followed
// by the pre-marshaled procedure arguments.
func buildCallMessage(xid uint32, proc nfs3.Proc, args []byte) []byte {
	e := nfs3.NewEncoder()
	e.Uint32(xid)
	e.Uint32(msgTypeCall)
	e.Uint32(2) // RPC version 2
	e.Uint32(nfsProgram)
	e.Uint32(nfsVersion)
	e.Uint32(uint32(proc))
	// AUTH_NONE credential
	e.Uint32(authNone)
	e.Uint32(0)
	// AUTH_NONE verifier
	e.Uint32(authNone)
	e.Uint32(0)
	b := e.Bytes()
	return append(b, args...)
}

// parseReplyHeader validates an ONC-RPC reply header and returns the xid
// plus the remaining procedure-result bytes.
func parseReplyHeader(frame []byte) (uint32, []byte, error) {
	d := nfs3.NewDecoder(frame)
	xid := d.Uint32()
	msgType := d.Uint32()
	if msgType != msgTypeReply {
		return 0, nil, fmt.Errorf("rpcconn: expected reply, got msg_type %d", msgType)
	}
	replyStat := d.Uint32()
	if replyStat != replyAccepted {
		return xid, nil, fmt.Errorf("rpcconn: call rejected, reject_stat %d", replyStat)
	}
	// verifier
	d.Uint32()
	verfLen := d.Uint32()
	if verfLen > 0 {
		d.OpaqueFixed(int(verfLen))
	}
	acceptStat := d.Uint32()
	if acceptStat != acceptSuccess {
		return xid, nil, fmt.Errorf("rpcconn: accept_stat %d", acceptStat)
	}
	if err := d.Err(); err != nil {
		return xid, nil, err
	}
	return xid, d.Remaining(), nil
}
