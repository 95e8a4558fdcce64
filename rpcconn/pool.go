package rpcconn

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxReconnectBackoff caps the exponential backoff between failed dial
// attempts of a connection's service goroutine.
const MaxReconnectBackoff = 30 * time.Second

// Pool holds nconnect independent RPC connections, each drained by its
// own service goroutine, and hands out a healthy one round-robin.
type Pool struct {
	addr     string
	nconnect int

	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc

	slots []atomic.Pointer[Conn]
	next  atomic.Uint64
}

// NewPool constructs a pool targeting addr with nconnect connections.
// Call Start to dial and begin servicing them.
func NewPool(addr string, nconnect int) *Pool {
	if nconnect < 1 {
		nconnect = 1
	}
	return &Pool{addr: addr, nconnect: nconnect, slots: make([]atomic.Pointer[Conn], nconnect)}
}

// Start launches one service goroutine per connection and returns without
// waiting for any dial. Each goroutine dials its connection, drains its
// replies, and redials at once after a transport failure; only a failed
// dial is followed by exponential backoff.
func (p *Pool) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(p.ctx)
	p.group = g

	for i := 0; i < p.nconnect; i++ {
		i := i
		g.Go(func() error {
			return p.serviceSlot(gctx, i)
		})
	}
	return nil
}

func (p *Pool) serviceSlot(ctx context.Context, slot int) error {
	backoff := 100 * time.Millisecond
	for {
		conn, err := Dial(ctx, p.addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = 100 * time.Millisecond
		p.slots[slot].Store(conn)

		err = conn.Serve(ctx)
		p.slots[slot].Store(nil)
		conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		_ = err // transport failure; loop and redial (backoff only after a failed dial)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > MaxReconnectBackoff {
		return MaxReconnectBackoff
	}
	return d
}

// Stop cancels every service goroutine and waits for them to exit.
func (p *Pool) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return p.group.Wait()
}

// Conn returns a healthy connection, selected round-robin among slots
// that are currently populated. Returns nil if none are healthy.
func (p *Pool) Conn() *Conn {
	n := uint64(len(p.slots))
	start := p.next.Add(1)
	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		if c := p.slots[idx].Load(); c != nil {
			return c
		}
	}
	return nil
}
