package readahead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialReadsAreDetected(t *testing.T) {
	s := New(256 << 10)
	assert.False(t, s.IsSequential())

	s.OnApplicationRead(0, 64<<10)
	s.OnApplicationRead(64<<10, 64<<10)
	assert.False(t, s.IsSequential(), "still only 2 reads")

	s.OnApplicationRead(128<<10, 64<<10)
	assert.True(t, s.IsSequential())
}

func TestLargeGapResetsPattern(t *testing.T) {
	s := New(256 << 10)
	s.OnApplicationRead(0, 64<<10)
	s.OnApplicationRead(64<<10, 64<<10)
	s.OnApplicationRead(128<<10, 64<<10)
	assert.True(t, s.IsSequential())

	s.OnApplicationRead(50<<20, 64<<10) // huge jump, far beyond raBytes
	assert.False(t, s.IsSequential(), "reset must drop the count back to 1")
}

func TestSparseAccessIsNotSequential(t *testing.T) {
	s := New(1 << 20)
	// Reads within raBytes of each other but leaving big holes, so density
	// stays below the threshold despite 3+ reads.
	s.OnApplicationRead(0, 1<<10)
	s.OnApplicationRead(100<<10, 1<<10)
	s.OnApplicationRead(300<<10, 1<<10)
	assert.False(t, s.IsSequential())
}

func TestGetNextRAReturnsZeroWhenNotSequential(t *testing.T) {
	s := New(256 << 10)
	assert.Equal(t, uint64(0), s.GetNextRA(64<<10))
}

func TestGetNextRAAdvancesAndBoundsOngoing(t *testing.T) {
	s := New(128 << 10) // ra_bytes floor
	s.OnApplicationRead(0, 32<<10)
	s.OnApplicationRead(32<<10, 32<<10)
	s.OnApplicationRead(64<<10, 32<<10)
	require := assert.New(t)
	require.True(s.IsSequential())

	off := s.GetNextRA(64 << 10)
	require.NotZero(off)

	// A second concurrent request that would exceed ra_bytes must be
	// refused until the first completes.
	off2 := s.GetNextRA(128 << 10)
	require.Zero(off2)

	s.OnReadaheadComplete(off, 64<<10)
	off3 := s.GetNextRA(64 << 10)
	require.NotZero(off3)
}

func TestGetNextRANeverReturnsSameOffsetTwice(t *testing.T) {
	s := New(1 << 20)
	s.OnApplicationRead(0, 32<<10)
	s.OnApplicationRead(32<<10, 32<<10)
	s.OnApplicationRead(64<<10, 32<<10)

	seen := map[uint64]bool{}
	for i := 0; i < 4; i++ {
		off := s.GetNextRA(64 << 10)
		if off == 0 {
			continue
		}
		assert.False(t, seen[off])
		seen[off] = true
		s.OnReadaheadComplete(off, 64<<10)
	}
}
