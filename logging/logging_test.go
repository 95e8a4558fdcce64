package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("nonsense", true)
	require.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	l, err := New("warn", true)
	require.NoError(t, err)
	assert.NotNil(t, l)
	defer l.Sync()

	child := WithOp(l, "LOOKUP")
	assert.NotNil(t, child)
}
