package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirCacheOrInitInstalledOnceUnderConcurrency(t *testing.T) {
	tbl := NewTable("root")
	in := tbl.GetOrCreate("dir")

	const workers = 32
	results := make([]*DirCache, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = in.DirCacheOrInit(func() *DirCache { return NewDirCache(tbl) })
		}()
	}
	wg.Wait()

	first := results[0]
	for _, dc := range results {
		assert.Same(t, first, dc, "concurrent lazy-init must converge on one instance")
	}
}

func TestReadaheadOrInitInstalledOnceUnderConcurrency(t *testing.T) {
	tbl := NewTable("root")
	in := tbl.GetOrCreate("file")

	const workers = 32
	results := make([]any, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = in.ReadaheadOrInit(func() any { return new(int) })
		}()
	}
	wg.Wait()

	first := results[0]
	for _, ra := range results {
		assert.Same(t, first, ra, "concurrent lazy-init must converge on one instance")
	}
	assert.Same(t, first, in.GetReadahead())
}
