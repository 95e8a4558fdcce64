package tasks

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStatus struct {
	ok        bool
	errno     syscall.Errno
	retryable bool
}

func (f fakeStatus) IsOK() bool            { return f.ok }
func (f fakeStatus) Errno() syscall.Errno  { return f.errno }
func (f fakeStatus) Retryable() bool       { return f.retryable }

func TestClassifyTransportRetriesThenFails(t *testing.T) {
	err := assert.AnError
	for retries := 0; retries < MaxErrnoRetries; retries++ {
		outcome, oerr := Classify(err, nil, true, retries)
		assert.Equal(t, Retry, outcome)
		assert.NoError(t, oerr)
	}

	outcome, oerr := Classify(err, nil, true, MaxErrnoRetries)
	assert.Equal(t, Fail, outcome)
	assert.ErrorIs(t, oerr, syscall.EIO)
}

func TestClassifyOk(t *testing.T) {
	outcome, err := Classify(nil, fakeStatus{ok: true}, true, 0)
	assert.Equal(t, Ok, outcome)
	assert.NoError(t, err)
}

func TestClassifyRetryableIdempotent(t *testing.T) {
	st := fakeStatus{ok: false, retryable: true, errno: syscall.EIO}
	outcome, err := Classify(nil, st, true, 0)
	assert.Equal(t, Retry, outcome)
	assert.NoError(t, err)
}

func TestClassifyRetryableButNotIdempotent(t *testing.T) {
	st := fakeStatus{ok: false, retryable: true, errno: syscall.EIO}
	outcome, err := Classify(nil, st, false, 0)
	assert.Equal(t, Fail, outcome)
	assert.ErrorIs(t, err, syscall.EIO)
}

func TestClassifyRetryableExhausted(t *testing.T) {
	st := fakeStatus{ok: false, retryable: true, errno: syscall.EIO}
	outcome, err := Classify(nil, st, true, MaxErrnoRetries)
	assert.Equal(t, Fail, outcome)
	assert.ErrorIs(t, err, syscall.EIO)
}

func TestClassifyTerminalNfsError(t *testing.T) {
	st := fakeStatus{ok: false, retryable: false, errno: syscall.ENOENT}
	outcome, err := Classify(nil, st, true, 0)
	assert.Equal(t, Fail, outcome)
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestBackoffGrowsThenSaturates(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(0))
	assert.Equal(t, 20*time.Millisecond, Backoff(1))
	assert.Equal(t, 100*time.Millisecond, Backoff(5))
	assert.Equal(t, 200*time.Millisecond, Backoff(10))
	assert.Equal(t, 200*time.Millisecond, Backoff(1000))
}
