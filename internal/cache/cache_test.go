package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvtree/internal/page"
)

func TestCacheGetPutHit(t *testing.T) {
	c := New(MinCapacity, nil)

	p := &page.Page{}
	p.InitLeaf()
	c.Put(1, p)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestCacheMissOnUnknownPage(t *testing.T) {
	c := New(MinCapacity, nil)

	_, ok := c.Get(42)
	assert.False(t, ok)
}

func TestCacheEvictsLRUAndNotifies(t *testing.T) {
	var evicted []page.Num
	c := New(MinCapacity, func(pn page.Num, _ *page.Page) {
		evicted = append(evicted, pn)
	})

	for i := 0; i < MinCapacity; i++ {
		p := &page.Page{}
		p.InitLeaf()
		c.Put(page.Num(i), p)
	}
	// Touch page 0 so it is no longer the least-recently-used entry.
	_, _ = c.Get(0)

	// One more insert must evict something other than page 0.
	p := &page.Page{}
	p.InitLeaf()
	c.Put(page.Num(MinCapacity), p)

	require.NotEmpty(t, evicted)
	assert.NotContains(t, evicted, page.Num(0))
}

func TestCacheRemoveSkipsEvictCallback(t *testing.T) {
	called := false
	c := New(MinCapacity, func(page.Num, *page.Page) {
		called = true
	})

	p := &page.Page{}
	p.InitLeaf()
	c.Put(5, p)
	c.Remove(5)

	_, ok := c.Get(5)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestCachePurgeFlushesAll(t *testing.T) {
	var evicted []page.Num
	c := New(MinCapacity, func(pn page.Num, _ *page.Page) {
		evicted = append(evicted, pn)
	})

	for i := 0; i < MinCapacity; i++ {
		p := &page.Page{}
		p.InitLeaf()
		c.Put(page.Num(i), p)
	}

	c.Purge()
	assert.Len(t, evicted, MinCapacity)
	assert.Equal(t, 0, c.Len())
}
