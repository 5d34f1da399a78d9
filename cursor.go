package kvtree

import "kvtree/internal/page"

// Cursor walks the leaf chain in ascending key order, starting from
// wherever it was positioned by Select or RangeScan. It is a
// single-shot forward iterator: once EndOfTable, Next is a no-op.
type Cursor struct {
	db         *DB
	leaf       page.Num
	cell       int
	endOfTable bool
	hi         *uint32 // nil for an unbounded Select scan
}

// tableStart returns a cursor positioned at the first cell of the
// leftmost leaf.
func (db *DB) tableStart() (Cursor, error) {
	pn := db.pager.RootPageNum()
	for {
		pg, err := db.pager.GetPage(pn)
		if err != nil {
			return Cursor{}, db.fail(err)
		}
		if pg.IsLeaf() {
			return Cursor{db: db, leaf: pn, cell: 0, endOfTable: pg.NumCells() == 0}, nil
		}
		child, ok := pg.Child(0)
		if !ok {
			return Cursor{}, ErrValidation
		}
		pn = child
	}
}

// Select returns a cursor over every row, in ascending key order.
func (db *DB) Select() (*Cursor, error) {
	if err := db.checkAlive(); err != nil {
		return nil, err
	}
	c, err := db.tableStart()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RangeScan returns a cursor over every row with lo <= key <= hi. It
// returns ErrInvalidRange if lo > hi.
func (db *DB) RangeScan(lo, hi uint32) (*Cursor, error) {
	if err := db.checkAlive(); err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, ErrInvalidRange
	}

	tc, err := db.tableFind(lo)
	if err != nil {
		return nil, err
	}
	pg, err := db.pager.GetPage(tc.leaf)
	if err != nil {
		return nil, db.fail(err)
	}

	c := &Cursor{db: db, leaf: tc.leaf, cell: tc.cell, hi: &hi}
	c.endOfTable = tc.cell >= int(pg.NumCells()) || pg.CellKey(tc.cell) > hi
	return c, nil
}

// Valid reports whether the cursor is positioned on a live cell.
func (c *Cursor) Valid() bool {
	return !c.endOfTable
}

// Row returns the key and row at the cursor's current position. Must
// only be called when Valid reports true.
func (c *Cursor) Row() (uint32, page.Row, error) {
	pg, err := c.db.pager.GetPage(c.leaf)
	if err != nil {
		return 0, page.Row{}, c.db.fail(err)
	}
	key := pg.CellKey(c.cell)
	if c.hi != nil && key > *c.hi {
		c.endOfTable = true
		return 0, page.Row{}, ErrRecordNotFound
	}
	return key, page.DecodeRow(pg.CellValue(c.cell)), nil
}

// Next advances the cursor to the following cell, crossing into the
// next leaf via the leaf chain when the current leaf is exhausted.
func (c *Cursor) Next() error {
	if c.endOfTable {
		return nil
	}

	pg, err := c.db.pager.GetPage(c.leaf)
	if err != nil {
		return c.db.fail(err)
	}

	c.cell++
	if c.cell < int(pg.NumCells()) {
		c.endOfTable = c.hi != nil && pg.CellKey(c.cell) > *c.hi
		return nil
	}

	next := pg.NextLeaf()
	if next == page.NoPage {
		c.endOfTable = true
		return nil
	}
	c.leaf = next
	c.cell = 0

	nextPg, err := c.db.pager.GetPage(next)
	if err != nil {
		return c.db.fail(err)
	}
	if nextPg.NumCells() == 0 || (c.hi != nil && nextPg.CellKey(0) > *c.hi) {
		c.endOfTable = true
	}
	return nil
}
