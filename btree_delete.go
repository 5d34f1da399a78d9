package kvtree

import "kvtree/internal/page"

// Delete removes the row stored under key. It returns ErrRecordNotFound
// if key is absent.
func (db *DB) Delete(key uint32) error {
	if err := db.checkAlive(); err != nil {
		return err
	}

	c, err := db.tableFind(key)
	if err != nil {
		return err
	}
	if !c.cellHasKey {
		return ErrRecordNotFound
	}

	return db.leafDelete(c.leaf, c.cell)
}

// leafDelete removes cell i from leaf pn, rebalancing (borrow or merge)
// if the leaf underflows below LeafMin, and fixing ancestor separator
// keys if the removed cell held the leaf's maximum key.
func (db *DB) leafDelete(pn page.Num, i int) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}

	n := int(pg.NumCells())
	removedLast := i == n-1
	pg.ShiftCellsLeft(i+1, n)
	pg.SetNumCells(uint32(n - 1))
	db.pager.MarkDirty(pn)

	if pg.IsRoot() {
		return nil
	}

	if int(pg.NumCells()) >= page.LeafMin {
		if removedLast {
			return db.fixAncestorKeys(pn)
		}
		return nil
	}

	return db.leafUnderflow(pn)
}

// leafUnderflow rebalances an underflowed non-root leaf by borrowing a
// cell from a sibling with slack, or else merging with a sibling.
func (db *DB) leafUnderflow(pn page.Num) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}
	parent := pg.ParentPage()
	parentPg, err := db.pager.GetPage(parent)
	if err != nil {
		return db.fail(err)
	}
	p, err := findChildSlot(parentPg, pn)
	if err != nil {
		return err
	}
	n := int(parentPg.NumKeys())

	if p < n {
		rightPn, _ := parentPg.Child(p + 1)
		rightPg, err := db.pager.GetPage(rightPn)
		if err != nil {
			return db.fail(err)
		}
		if int(rightPg.NumCells()) > page.LeafMin {
			return db.borrowFromRightLeaf(pn, pg, rightPn, rightPg)
		}
	}
	if p > 0 {
		leftPn, _ := parentPg.Child(p - 1)
		leftPg, err := db.pager.GetPage(leftPn)
		if err != nil {
			return db.fail(err)
		}
		if int(leftPg.NumCells()) > page.LeafMin {
			return db.borrowFromLeftLeaf(pn, pg, leftPn, leftPg)
		}
	}

	if p > 0 {
		leftPn, _ := parentPg.Child(p - 1)
		return db.mergeLeaves(leftPn, pn, parent)
	}
	rightPn, _ := parentPg.Child(p + 1)
	return db.mergeLeaves(pn, rightPn, parent)
}

func (db *DB) borrowFromRightLeaf(pn page.Num, pg *page.Page, rightPn page.Num, rightPg *page.Page) error {
	key := rightPg.CellKey(0)
	val := append([]byte(nil), rightPg.CellValue(0)...)

	ln := int(pg.NumCells())
	pg.SetCell(ln, key, val)
	pg.SetNumCells(uint32(ln + 1))

	rn := int(rightPg.NumCells())
	rightPg.ShiftCellsLeft(1, rn)
	rightPg.SetNumCells(uint32(rn - 1))

	db.pager.MarkDirty(pn)
	db.pager.MarkDirty(rightPn)
	return db.fixAncestorKeys(pn)
}

func (db *DB) borrowFromLeftLeaf(pn page.Num, pg *page.Page, leftPn page.Num, leftPg *page.Page) error {
	ln := int(leftPg.NumCells())
	key := leftPg.CellKey(ln - 1)
	val := append([]byte(nil), leftPg.CellValue(ln-1)...)

	pg.ShiftCellsRight(0, int(pg.NumCells()))
	pg.SetCell(0, key, val)
	pg.SetNumCells(pg.NumCells() + 1)
	leftPg.SetNumCells(uint32(ln - 1))

	db.pager.MarkDirty(pn)
	db.pager.MarkDirty(leftPn)
	if err := db.fixAncestorKeys(leftPn); err != nil {
		return err
	}
	return db.fixAncestorKeys(pn)
}

// mergeLeaves absorbs rightPn's cells into leftPn, frees rightPn, and
// removes it from parent, recursing into parent's own underflow
// handling and fixing ancestor keys for leftPn's new (larger) max.
func (db *DB) mergeLeaves(leftPn, rightPn page.Num, parent page.Num) error {
	leftPg, err := db.pager.GetPage(leftPn)
	if err != nil {
		return db.fail(err)
	}
	rightPg, err := db.pager.GetPage(rightPn)
	if err != nil {
		return db.fail(err)
	}

	ln := int(leftPg.NumCells())
	rn := int(rightPg.NumCells())
	for i := 0; i < rn; i++ {
		leftPg.SetCell(ln+i, rightPg.CellKey(i), rightPg.CellValue(i))
	}
	leftPg.SetNumCells(uint32(ln + rn))
	leftPg.SetNextLeaf(rightPg.NextLeaf())
	db.pager.MarkDirty(leftPn)

	if err := db.pager.FreePage(rightPn); err != nil {
		return db.fail(err)
	}
	if err := db.internalRemoveChild(parent, rightPn); err != nil {
		return err
	}
	return db.fixAncestorKeys(leftPn)
}

// internalUnderflow rebalances an underflowed non-root internal node by
// rotating a (key, child) through the parent from a sibling with slack,
// or else merging with a sibling and pulling the parent separator down.
func (db *DB) internalUnderflow(pn page.Num) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}
	parent := pg.ParentPage()
	parentPg, err := db.pager.GetPage(parent)
	if err != nil {
		return db.fail(err)
	}
	p, err := findChildSlot(parentPg, pn)
	if err != nil {
		return err
	}
	n := int(parentPg.NumKeys())

	if p < n {
		rightPn, _ := parentPg.Child(p + 1)
		rightPg, err := db.pager.GetPage(rightPn)
		if err != nil {
			return db.fail(err)
		}
		if int(rightPg.NumKeys()) > page.InternalMinKeys {
			return db.rotateFromRightInternal(pn, pg, rightPn, rightPg, parent, parentPg, p)
		}
	}
	if p > 0 {
		leftPn, _ := parentPg.Child(p - 1)
		leftPg, err := db.pager.GetPage(leftPn)
		if err != nil {
			return db.fail(err)
		}
		if int(leftPg.NumKeys()) > page.InternalMinKeys {
			return db.rotateFromLeftInternal(pn, pg, leftPn, leftPg, parent, parentPg, p)
		}
	}

	if p > 0 {
		leftPn, _ := parentPg.Child(p - 1)
		return db.mergeInternal(leftPn, pn, parent, p-1)
	}
	rightPn, _ := parentPg.Child(p + 1)
	return db.mergeInternal(pn, rightPn, parent, p)
}

func (db *DB) rotateFromRightInternal(pn page.Num, pg *page.Page, rightPn page.Num, rightPg *page.Page, parent page.Num, parentPg *page.Page, p int) error {
	pKeys, pChildren := readInternalNode(pg)
	rKeys, rChildren := readInternalNode(rightPg)
	parentSep := parentPg.SeparatorKey(p)

	newPKeys := append(append([]uint32{}, pKeys...), parentSep)
	newPChildren := append(append([]page.Num{}, pChildren...), rChildren[0])
	newRKeys := append([]uint32{}, rKeys[1:]...)
	newRChildren := append([]page.Num{}, rChildren[1:]...)

	writeInternalNode(pg, newPKeys, newPChildren)
	writeInternalNode(rightPg, newRKeys, newRChildren)
	parentPg.SetSeparatorKey(p, rKeys[0])

	db.pager.MarkDirty(pn)
	db.pager.MarkDirty(rightPn)
	db.pager.MarkDirty(parent)
	return db.reparent(pn, rChildren[0])
}

func (db *DB) rotateFromLeftInternal(pn page.Num, pg *page.Page, leftPn page.Num, leftPg *page.Page, parent page.Num, parentPg *page.Page, p int) error {
	pKeys, pChildren := readInternalNode(pg)
	lKeys, lChildren := readInternalNode(leftPg)
	parentSep := parentPg.SeparatorKey(p - 1)
	last := len(lChildren) - 1

	newPKeys := append([]uint32{parentSep}, pKeys...)
	newPChildren := append([]page.Num{lChildren[last]}, pChildren...)
	newLKeys := append([]uint32{}, lKeys[:len(lKeys)-1]...)
	newLChildren := append([]page.Num{}, lChildren[:last]...)

	writeInternalNode(pg, newPKeys, newPChildren)
	writeInternalNode(leftPg, newLKeys, newLChildren)
	parentPg.SetSeparatorKey(p-1, lKeys[len(lKeys)-1])

	db.pager.MarkDirty(pn)
	db.pager.MarkDirty(leftPn)
	db.pager.MarkDirty(parent)
	return db.reparent(pn, lChildren[last])
}

// mergeInternal absorbs rightPn's keys and children into leftPn, pulling
// the parent separator at sepIdx down as the joining key, then removes
// rightPn from parent (recursing into parent underflow / root collapse)
// and fixes ancestor keys for leftPn's new max.
func (db *DB) mergeInternal(leftPn, rightPn page.Num, parent page.Num, sepIdx int) error {
	leftPg, err := db.pager.GetPage(leftPn)
	if err != nil {
		return db.fail(err)
	}
	rightPg, err := db.pager.GetPage(rightPn)
	if err != nil {
		return db.fail(err)
	}
	parentPg, err := db.pager.GetPage(parent)
	if err != nil {
		return db.fail(err)
	}
	sepKey := parentPg.SeparatorKey(sepIdx)

	lKeys, lChildren := readInternalNode(leftPg)
	rKeys, rChildren := readInternalNode(rightPg)

	mergedKeys := append(append(append([]uint32{}, lKeys...), sepKey), rKeys...)
	mergedChildren := append(append([]page.Num{}, lChildren...), rChildren...)

	writeInternalNode(leftPg, mergedKeys, mergedChildren)
	db.pager.MarkDirty(leftPn)

	for _, c := range rChildren {
		if err := db.reparent(leftPn, c); err != nil {
			return err
		}
	}

	if err := db.pager.FreePage(rightPn); err != nil {
		return db.fail(err)
	}
	if err := db.internalRemoveChild(parent, rightPn); err != nil {
		return err
	}
	return db.fixAncestorKeys(leftPn)
}

// removeChildAt removes the child at index q (and its associated
// separator) from a (keys, children) pair, where len(children) ==
// len(keys)+1 and children[len(keys)] is the implicit right_child.
func removeChildAt(keys []uint32, children []page.Num, q int) ([]uint32, []page.Num) {
	n := len(keys)
	if q < n {
		newKeys := append(append([]uint32{}, keys[:q]...), keys[q+1:]...)
		newChildren := append(append([]page.Num{}, children[:q]...), children[q+1:]...)
		return newKeys, newChildren
	}
	newKeys := append([]uint32{}, keys[:n-1]...)
	newChildren := append([]page.Num{}, children[:n]...)
	return newKeys, newChildren
}

// internalRemoveChild removes removedChild from pn's child list. If pn
// is the root and this leaves it with a single child, that child
// becomes the new root and pn is freed. Otherwise, if pn underflows
// below InternalMinKeys, it is rebalanced.
func (db *DB) internalRemoveChild(pn page.Num, removedChild page.Num) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}

	q, err := findChildSlot(pg, removedChild)
	if err != nil {
		return err
	}
	keys, children := readInternalNode(pg)
	newKeys, newChildren := removeChildAt(keys, children, q)

	if pg.IsRoot() {
		if len(newChildren) == 1 {
			newRootPn := newChildren[0]
			newRootPg, err := db.pager.GetPage(newRootPn)
			if err != nil {
				return db.fail(err)
			}
			newRootPg.SetIsRoot(true)
			newRootPg.SetParentPage(page.NoPage)
			db.pager.MarkDirty(newRootPn)
			db.pager.SetRootPageNum(newRootPn)
			return db.pager.FreePage(pn)
		}
		writeInternalNode(pg, newKeys, newChildren)
		db.pager.MarkDirty(pn)
		return nil
	}

	writeInternalNode(pg, newKeys, newChildren)
	db.pager.MarkDirty(pn)

	if len(newKeys) >= page.InternalMinKeys {
		return nil
	}
	return db.internalUnderflow(pn)
}

// maxKeyDescend returns the greatest key stored under pn's subtree by
// following right_child pointers down to a leaf.
func (db *DB) maxKeyDescend(pn page.Num) (uint32, error) {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return 0, db.fail(err)
	}
	if pg.IsLeaf() {
		n := int(pg.NumCells())
		if n == 0 {
			return 0, nil
		}
		return pg.CellKey(n - 1), nil
	}
	return db.maxKeyDescend(pg.RightChild())
}

// fixAncestorKeys propagates pn's (possibly new) maximum key up through
// its ancestors, stopping as soon as a separator is already correct or
// pn sits on the tree's rightmost spine at the point it stops mattering.
func (db *DB) fixAncestorKeys(pn page.Num) error {
	for {
		pg, err := db.pager.GetPage(pn)
		if err != nil {
			return db.fail(err)
		}
		if pg.IsRoot() {
			return nil
		}

		parent := pg.ParentPage()
		parentPg, err := db.pager.GetPage(parent)
		if err != nil {
			return db.fail(err)
		}
		p, err := findChildSlot(parentPg, pn)
		if err != nil {
			return err
		}
		n := int(parentPg.NumKeys())

		if p == n {
			pn = parent
			continue
		}

		newMax, err := db.maxKeyDescend(pn)
		if err != nil {
			return err
		}
		if parentPg.SeparatorKey(p) == newMax {
			return nil
		}
		parentPg.SetSeparatorKey(p, newMax)
		db.pager.MarkDirty(parent)

		if p == n-1 {
			pn = parent
			continue
		}
		return nil
	}
}
