package kvtree

import "kvtree/internal/page"

// Update overwrites the row stored under key in place. It returns
// ErrRecordNotFound if key is absent. Because key is unchanged, no tree
// restructuring is needed: the new row is re-encoded into the existing
// cell slot.
func (db *DB) Update(key uint32, row page.Row) error {
	if err := db.checkAlive(); err != nil {
		return err
	}

	var buf [page.RowSize]byte
	if err := row.Encode(buf[:]); err != nil {
		return err
	}

	c, err := db.tableFind(key)
	if err != nil {
		return err
	}
	if !c.cellHasKey {
		return ErrRecordNotFound
	}

	pg, err := db.pager.GetPage(c.leaf)
	if err != nil {
		return db.fail(err)
	}
	pg.SetCell(c.cell, key, buf[:])
	db.pager.MarkDirty(c.leaf)
	return nil
}
