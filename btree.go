// Package kvtree implements a persistent, single-file, single-writer
// key-value store: a B+Tree of fixed-size pages behind an LRU page
// cache, with point lookup, ordered/range scan, insert-with-split,
// delete-with-rebalance, update-in-place, and structural validation.
package kvtree

import (
	"fmt"

	"kvtree/internal/page"
	"kvtree/internal/pager"
)

// Row is a single record: a 32-bit key plus a bounded username/email
// payload. It is re-exported from the page package so callers never
// need to import internal/page directly.
type Row = page.Row

// DB is the top-level handle for a single database file. It owns the
// pager and is the entry point for every command in the external
// interface (§6 of the storage specification).
type DB struct {
	pager   *pager.Pager
	opts    Options
	closed  bool
	wedged  bool // set after a disk error; every further command fails fast
}

// Open opens the database file at path, creating it if absent.
func Open(path string, opts ...Option) (*DB, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p, err := pager.Open(path, o.cacheCapacity)
	if err != nil {
		o.logger.Error("open failed", "path", path, "err", err)
		return nil, err
	}

	// A newly created file's page 0 is all zeroes: an empty leaf without
	// the root flag. The page at the root page number is always the root.
	rootPg, err := p.GetPage(p.RootPageNum())
	if err != nil {
		_ = p.Close(false)
		o.logger.Error("open failed", "path", path, "err", err)
		return nil, err
	}
	if !rootPg.IsRoot() {
		rootPg.SetIsRoot(true)
		p.MarkDirty(p.RootPageNum())
	}

	o.logger.Info("database opened", "path", path, "num_pages", p.NumPages())
	return &DB{pager: p, opts: o}, nil
}

// Close flushes all dirty pages, writes the file header, and closes the
// file. The DB must not be used afterward.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	err := db.pager.Close(db.opts.syncOnClose)
	if err != nil {
		db.opts.logger.Warn("close failed", "err", err)
	} else {
		db.opts.logger.Info("database closed")
	}
	return err
}

// checkAlive returns ErrClosed or the wedged disk error, if either
// applies, so every command can bail out before touching the pager.
func (db *DB) checkAlive() error {
	if db.closed {
		return ErrClosed
	}
	if db.wedged {
		return fmt.Errorf("%w: database disabled after prior I/O failure", ErrDiskError)
	}
	return nil
}

// fail records a fatal pager error: per §7 of the storage specification,
// the in-memory tree is considered unreliable after a mid-operation I/O
// failure, so this implementation fails all further commands.
func (db *DB) fail(err error) error {
	db.wedged = true
	db.opts.logger.Error("disk error, disabling further commands", "err", err)
	return err
}

// root returns the root page, loading it through the pager.
func (db *DB) root() (*page.Page, page.Num, error) {
	rn := db.pager.RootPageNum()
	pg, err := db.pager.GetPage(rn)
	if err != nil {
		return nil, 0, db.fail(err)
	}
	return pg, rn, nil
}

// leafFind returns the least cell index i such that key <= leaf.key[i],
// or NumCells if key exceeds every key in the leaf.
func leafFind(pg *page.Page, key uint32) int {
	lo, hi := 0, int(pg.NumCells())
	for lo < hi {
		mid := (lo + hi) / 2
		if key <= pg.CellKey(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// internalFind returns the least child index i such that
// key <= internal.key[i], or NumKeys if key exceeds every separator
// (meaning the right_child subtree must be descended into).
func internalFind(pg *page.Page, key uint32) int {
	lo, hi := 0, int(pg.NumKeys())
	for lo < hi {
		mid := (lo + hi) / 2
		if key <= pg.SeparatorKey(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// cursor is a tree position: the leaf page number and the cell index
// within it. It is either positioned on an existing key (cellHasKey) or
// on the point where that key would be inserted.
type cursor struct {
	leaf       page.Num
	cell       int
	cellHasKey bool
}

// tableFind descends from the root to the leaf that would contain key,
// returning a cursor positioned on the key (if present) or its would-be
// insertion point.
func (db *DB) tableFind(key uint32) (cursor, error) {
	pn := db.pager.RootPageNum()

	for {
		pg, err := db.pager.GetPage(pn)
		if err != nil {
			return cursor{}, db.fail(err)
		}

		if pg.IsLeaf() {
			i := leafFind(pg, key)
			has := i < int(pg.NumCells()) && pg.CellKey(i) == key
			return cursor{leaf: pn, cell: i, cellHasKey: has}, nil
		}

		i := internalFind(pg, key)
		child, ok := pg.Child(i)
		if !ok {
			return cursor{}, fmt.Errorf("%w: internal node child %d out of range", ErrValidation, i)
		}
		pn = child
	}
}

// Find returns the row stored under key, or ErrRecordNotFound.
func (db *DB) Find(key uint32) (page.Row, error) {
	if err := db.checkAlive(); err != nil {
		return page.Row{}, err
	}

	c, err := db.tableFind(key)
	if err != nil {
		return page.Row{}, err
	}
	if !c.cellHasKey {
		return page.Row{}, ErrRecordNotFound
	}

	pg, err := db.pager.GetPage(c.leaf)
	if err != nil {
		return page.Row{}, db.fail(err)
	}
	return page.DecodeRow(pg.CellValue(c.cell)), nil
}
