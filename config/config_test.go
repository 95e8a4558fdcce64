package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagsAndLoad(t *testing.T, set func(*pflag.FlagSet)) (*Config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	if set != nil {
		set(flags)
	}
	return Load(flags)
}

func TestLoadRequiresServerAndMountpoint(t *testing.T) {
	_, err := newFlagsAndLoad(t, nil)
	require.Error(t, err)
}

func TestLoadDefaultsAndValidAccount(t *testing.T) {
	cfg, err := newFlagsAndLoad(t, func(f *pflag.FlagSet) {
		require.NoError(t, f.Set("server", "nfs.example.com"))
		require.NoError(t, f.Set("mountpoint", "/mnt/x"))
		require.NoError(t, f.Set("account", "myaccount1"))
		require.NoError(t, f.Set("container", "my-container"))
	})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Nconnect)
	assert.Equal(t, uint64(15360), cfg.ReadaheadKB)
	assert.Equal(t, LookupCachePositive, cfg.LookupCache)
	assert.Equal(t, ConsistencyStandardNFS, cfg.Consistency)
}

func TestLoadRejectsBadAccount(t *testing.T) {
	_, err := newFlagsAndLoad(t, func(f *pflag.FlagSet) {
		require.NoError(t, f.Set("server", "nfs.example.com"))
		require.NoError(t, f.Set("mountpoint", "/mnt/x"))
		require.NoError(t, f.Set("account", "AB")) // uppercase, too short
	})
	require.Error(t, err)
}

func TestLoadRejectsBadLookupCache(t *testing.T) {
	_, err := newFlagsAndLoad(t, func(f *pflag.FlagSet) {
		require.NoError(t, f.Set("server", "nfs.example.com"))
		require.NoError(t, f.Set("mountpoint", "/mnt/x"))
		require.NoError(t, f.Set("lookupcache", "bogus"))
	})
	require.Error(t, err)
}
