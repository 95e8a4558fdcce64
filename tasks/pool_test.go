package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	p := NewPool(2)
	ctx := context.Background()

	s1, err := p.Acquire(ctx)
	require.NoError(t, err)
	s2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Index, s2.Index)
	assert.Equal(t, 2, p.Len())

	p.Release(s1.Index)
	assert.Equal(t, 1, p.Len())

	s3, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1.Index, s3.Index)
}

func TestPoolResetsSlotAcrossAcquire(t *testing.T) {
	p := NewPool(1)
	ctx := context.Background()

	s, _ := p.Acquire(ctx)
	s.Op = OpWrite
	s.Retries = 2
	s.Payload = "leftover"
	p.Release(s.Index)

	s2, _ := p.Acquire(ctx)
	assert.Equal(t, OpLookup, s2.Op)
	assert.Equal(t, 0, s2.Retries)
	assert.Nil(t, s2.Payload)
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	p := NewPool(1)
	ctx := context.Background()

	s1, _ := p.Acquire(ctx)

	acquired := make(chan *Slot, 1)
	go func() {
		s, err := p.Acquire(ctx)
		if err == nil {
			acquired <- s
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(s1.Index)

	select {
	case s := <-acquired:
		assert.Equal(t, s1.Index, s.Index)
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestPoolAcquireRespectsContextCancellation(t *testing.T) {
	p := NewPool(1)
	ctx := context.Background()
	_, _ = p.Acquire(ctx)

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Acquire(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolNeverExceedsCapacity(t *testing.T) {
	p := NewPool(4)
	ctx := context.Background()
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		s, err := p.Acquire(ctx)
		require.NoError(t, err)
		assert.False(t, seen[s.Index])
		seen[s.Index] = true
	}

	done := make(chan struct{})
	go func() {
		_, _ = p.Acquire(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("acquire should block once capacity is exhausted")
	case <-time.After(50 * time.Millisecond):
	}
}
