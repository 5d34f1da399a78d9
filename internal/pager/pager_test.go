package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvtree/internal/page"
)

func open(t *testing.T) (*Pager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path, cacheCapForTest)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(false) })
	return p, path
}

const cacheCapForTest = 8

func TestOpenCreatesFreshFile(t *testing.T) {
	p, _ := open(t)
	assert.EqualValues(t, 1, p.NumPages())
	assert.Equal(t, page.Num(0), p.RootPageNum())
}

func TestOpenRejectsCorruptLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	p, err := Open(path, cacheCapForTest)
	require.NoError(t, err)
	require.NoError(t, p.Close(false))

	// Truncate to a length that isn't HeaderSize + n*Size.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(page.HeaderSize+page.Size+10))
	require.NoError(t, f.Close())

	_, err = Open(path, cacheCapForTest)
	assert.ErrorIs(t, err, ErrCorruptFile)
}

func TestGetPageZeroFillsPastEnd(t *testing.T) {
	p, _ := open(t)

	pg, err := p.GetPage(5)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pg.NumCells())
	assert.EqualValues(t, 6, p.NumPages())
}

func TestMarkDirtyFlushPersists(t *testing.T) {
	p, path := open(t)

	pg, err := p.GetPage(0)
	require.NoError(t, err)
	pg.InitLeaf()
	pg.SetNumCells(3)
	p.MarkDirty(0)
	require.NoError(t, p.Flush(0))
	require.NoError(t, p.Close(false))

	p2, err := Open(path, cacheCapForTest)
	require.NoError(t, err)
	defer p2.Close(false)

	pg2, err := p2.GetPage(0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pg2.NumCells())
}

func TestAllocateAndFreeReusesPage(t *testing.T) {
	p, _ := open(t)

	a, err := p.AllocatePage()
	require.NoError(t, err)
	_, err = p.GetPage(a) // bump numPages for the grow case
	require.NoError(t, err)

	require.NoError(t, p.FreePage(a))
	before := p.NumPages()

	b, err := p.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, a, b, "freed page should be reused before growing the file")
	assert.Equal(t, before, p.NumPages())
}

func TestValidateFreeChainDetectsCycle(t *testing.T) {
	p, _ := open(t)

	pg, err := p.GetPage(1)
	require.NoError(t, err)
	pg.SetFreeNext(1) // points at itself
	p.freeHead = 1
	p.MarkDirty(1)

	err = p.ValidateFreeChain()
	assert.ErrorIs(t, err, ErrFreeChainCycle)
}

func TestFlushUnresidentPageFails(t *testing.T) {
	p, _ := open(t)
	err := p.Flush(99)
	assert.ErrorIs(t, err, ErrNullPage)
}

func TestCloseIsIdempotent(t *testing.T) {
	p, _ := open(t)
	require.NoError(t, p.Close(false))
	assert.NoError(t, p.Close(false))
}

func TestDirtyPageCountTracksMarkAndFlush(t *testing.T) {
	p, _ := open(t)
	assert.Equal(t, 0, p.DirtyPageCount())

	pg, err := p.GetPage(0)
	require.NoError(t, err)
	pg.InitLeaf()
	p.MarkDirty(0)
	assert.Equal(t, 1, p.DirtyPageCount())

	require.NoError(t, p.Flush(0))
	assert.Equal(t, 0, p.DirtyPageCount())
}

func TestFreeChainLengthCountsFreedPages(t *testing.T) {
	p, _ := open(t)

	n, err := p.FreeChainLength()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	a, err := p.AllocatePage()
	require.NoError(t, err)
	_, err = p.GetPage(a)
	require.NoError(t, err)
	b, err := p.AllocatePage()
	require.NoError(t, err)
	_, err = p.GetPage(b)
	require.NoError(t, err)

	require.NoError(t, p.FreePage(a))
	require.NoError(t, p.FreePage(b))

	n, err = p.FreeChainLength()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
