package pager

import "errors"

var (
	// ErrDiskError wraps a read or write failure against the backing file.
	ErrDiskError = errors.New("pager: disk I/O error")

	// ErrOutOfBounds is returned by GetPage for a page number at or past
	// MaxPages.
	ErrOutOfBounds = errors.New("pager: page number out of bounds")

	// ErrCorruptFile is returned by Open when the file length is not
	// exactly HeaderSize + n*Size for some n.
	ErrCorruptFile = errors.New("pager: corrupt file header or length")

	// ErrNullPage is returned by Flush for a page that is not resident in
	// the cache. Reaching this is a programming error: every write path
	// flushes through a page it just fetched with GetPage.
	ErrNullPage = errors.New("pager: flush of a page not in cache")

	// ErrFreeChainCycle is returned by ValidateFreeChain when the free
	// chain revisits a page, exceeds the page count, or names a page
	// number at or past MaxPages.
	ErrFreeChainCycle = errors.New("pager: free chain is cyclic or corrupt")
)
