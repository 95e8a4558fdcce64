package tasks

import (
	"syscall"
	"time"
)

// MaxErrnoRetries bounds the number of times a single task is resubmitted
// after a transport-level (rpcStatus) failure.
const MaxErrnoRetries = 3

// Outcome is the result of classifying one RPC completion.
type Outcome int

const (
	// Retry means the dispatcher should resubmit the same task slot after
	// Backoff. The reply channel must not be touched.
	Retry Outcome = iota
	// Ok means the operation succeeded; the dispatcher should materialize
	// results and reply.
	Ok
	// Fail means the operation is terminally done; the dispatcher should
	// reply with Err and release the slot.
	Fail
)

// nfsStatus is the minimal surface Classify needs from an NFSv3 status
// code. Implemented by nfs3.Status so this package has no dependency on
// the wire codec.
type nfsStatus interface {
	IsOK() bool
	Errno() syscall.Errno
	Retryable() bool
}

// Classify routes one RPC completion through the retry/reply state machine.
// rpcStatus is non-nil for transport-level failures (connection reset,
// timeout, ...); nfsStatus carries the NFSv3 status code of a completed
// call and is only consulted when rpcStatus == nil.
func Classify(rpcStatus error, status nfsStatus, idempotent bool, retries int) (Outcome, error) {
	if rpcStatus != nil {
		if retries < MaxErrnoRetries {
			return Retry, nil
		}
		return Fail, syscall.EIO
	}

	if status.IsOK() {
		return Ok, nil
	}

	if idempotent && retries < MaxErrnoRetries && status.Retryable() {
		return Retry, nil
	}

	return Fail, status.Errno()
}

// Backoff returns the delay to wait before resubmitting a Retry outcome.
// It grows linearly with the retry count and saturates at 200ms; retry
// count itself is not capped by this function.
func Backoff(retries int) time.Duration {
	d := time.Duration(retries) * 20 * time.Millisecond
	if d > 200*time.Millisecond {
		return 200 * time.Millisecond
	}
	return d
}
