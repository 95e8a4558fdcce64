package rpcconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	d := 100 * time.Millisecond
	d = nextBackoff(d)
	assert.Equal(t, 200*time.Millisecond, d)

	d = MaxReconnectBackoff
	assert.Equal(t, MaxReconnectBackoff, nextBackoff(d))
}

func TestPoolConnRoundRobinsAmongHealthySlots(t *testing.T) {
	p := NewPool("unused:0", 3)
	c1 := &Conn{pending: make(map[uint32]chan rpcReply)}
	c2 := &Conn{pending: make(map[uint32]chan rpcReply)}
	p.slots[0].Store(c1)
	p.slots[2].Store(c2)
	// slot 1 left nil: simulates a reconnecting connection.

	seen := map[*Conn]bool{}
	for i := 0; i < 10; i++ {
		c := p.Conn()
		if c != nil {
			seen[c] = true
		}
	}
	assert.True(t, seen[c1])
	assert.True(t, seen[c2])
}

func TestPoolConnReturnsNilWhenAllUnhealthy(t *testing.T) {
	p := NewPool("unused:0", 2)
	assert.Nil(t, p.Conn())
}
