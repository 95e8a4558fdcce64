package nfs3

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableSetMatchesSpec(t *testing.T) {
	assert.True(t, NFS3ERR_IO.Retryable())
	assert.True(t, NFS3ERR_SERVERFAULT.Retryable())
	assert.True(t, NFS3ERR_ROFS.Retryable())
	assert.True(t, NFS3ERR_PERM.Retryable())
	assert.False(t, NFS3ERR_NOENT.Retryable())
	assert.False(t, NFS3_OK.Retryable())
}

func TestErrnoMapping(t *testing.T) {
	assert.Equal(t, syscall.Errno(0), NFS3_OK.Errno())
	assert.Equal(t, syscall.ENOENT, NFS3ERR_NOENT.Errno())
	assert.Equal(t, syscall.EEXIST, NFS3ERR_EXIST.Errno())
	assert.Equal(t, syscall.EIO, NFS3ERR_SERVERFAULT.Errno())
}

func TestUnknownStatusFallsBackToEIO(t *testing.T) {
	assert.Equal(t, syscall.EIO, Status(99999).Errno())
}
