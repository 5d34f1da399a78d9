package kvtree

import (
	"fmt"

	"kvtree/internal/page"
)

// Insert adds a new row under key. It returns ErrDuplicateKey if key is
// already present, leaving the tree unchanged.
func (db *DB) Insert(key uint32, row page.Row) error {
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
	if c.cellHasKey {
		return ErrDuplicateKey
	}

	return db.leafInsert(c.leaf, c.cell, key, buf[:])
}

// leafInsert inserts (key, value) at cell index i in leaf pn, splitting
// the leaf first if it is already full.
func (db *DB) leafInsert(pn page.Num, i int, key uint32, value []byte) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}

	if int(pg.NumCells()) < page.LeafMax {
		pg.ShiftCellsRight(i, int(pg.NumCells()))
		pg.SetCell(i, key, value)
		pg.SetNumCells(pg.NumCells() + 1)
		db.pager.MarkDirty(pn)
		return nil
	}

	return db.leafSplitInsert(pn, pg, i, key, value)
}

// leafSplitInsert splits a full leaf in two and inserts (key, value) into
// whichever half it belongs in, then links the new leaf into the leaf
// chain and inserts a separator into the parent.
func (db *DB) leafSplitInsert(oldNum page.Num, oldPg *page.Page, i int, key uint32, value []byte) error {
	newNum, err := db.pager.AllocatePage()
	if err != nil {
		return db.fail(err)
	}
	newPg, err := db.pager.GetPage(newNum)
	if err != nil {
		return db.fail(err)
	}
	newPg.InitLeaf()
	newPg.SetParentPage(oldPg.ParentPage())

	total := page.LeafMax + 1
	splitAt := (page.LeafMax + 1) / 2 // s = (n+1)/2, left gets the smaller half

	// Materialize old cells + the new one into a scratch buffer of
	// (LeafMax+1) keys/values, then redistribute.
	type cell struct {
		key   uint32
		value []byte
	}
	cells := make([]cell, 0, total)
	for idx := 0; idx < page.LeafMax; idx++ {
		if idx == i {
			cells = append(cells, cell{key, append([]byte(nil), value...)})
		}
		v := oldPg.CellValue(idx)
		cells = append(cells, cell{oldPg.CellKey(idx), append([]byte(nil), v...)})
	}
	if i == page.LeafMax {
		cells = append(cells, cell{key, append([]byte(nil), value...)})
	}

	oldPg.SetNumCells(0)
	newPg.SetNumCells(0)
	for idx, c := range cells {
		if idx < splitAt {
			oldPg.SetCell(idx, c.key, c.value)
		} else {
			newPg.SetCell(idx-splitAt, c.key, c.value)
		}
	}
	oldPg.SetNumCells(uint32(splitAt))
	newPg.SetNumCells(uint32(total - splitAt))

	newPg.SetNextLeaf(oldPg.NextLeaf())
	oldPg.SetNextLeaf(newNum)

	db.pager.MarkDirty(oldNum)
	db.pager.MarkDirty(newNum)

	maxOldKey := oldPg.CellKey(int(oldPg.NumCells()) - 1)

	if oldPg.IsRoot() {
		return db.createNewRoot(oldNum, newNum, maxOldKey)
	}
	return db.internalInsert(oldPg.ParentPage(), oldNum, newNum, maxOldKey)
}

// createNewRoot allocates a fresh internal root page whose two children
// are leftNum and rightNum, separated by splitKey (the greatest key in
// leftNum's subtree).
func (db *DB) createNewRoot(leftNum, rightNum page.Num, splitKey uint32) error {
	rootNum, err := db.pager.AllocatePage()
	if err != nil {
		return db.fail(err)
	}
	root, err := db.pager.GetPage(rootNum)
	if err != nil {
		return db.fail(err)
	}
	root.InitInternal()
	root.SetIsRoot(true)
	root.SetNumKeys(1)
	root.SetSeparatorKey(0, splitKey)
	root.SetChild(0, leftNum)
	root.SetRightChild(rightNum)
	db.pager.MarkDirty(rootNum)

	left, err := db.pager.GetPage(leftNum)
	if err != nil {
		return db.fail(err)
	}
	left.SetIsRoot(false)
	left.SetParentPage(rootNum)
	db.pager.MarkDirty(leftNum)

	right, err := db.pager.GetPage(rightNum)
	if err != nil {
		return db.fail(err)
	}
	right.SetIsRoot(false)
	right.SetParentPage(rootNum)
	db.pager.MarkDirty(rightNum)

	db.pager.SetRootPageNum(rootNum)
	return nil
}

// internalInsert adds a (separator, child) pair to internal node pn for
// a newly split child, splitting pn itself if it is already full.
//
// childNum is the left (pre-existing) half of the split; newChildNum is
// the newly allocated right half. splitKey is the greatest key under
// childNum after the split. The slot that used to hold childNum is
// found by scanning pn's children; its old separator (or the fact that
// it was the right_child) determines where newChildNum's separator goes.
func (db *DB) internalInsert(pn page.Num, childNum, newChildNum page.Num, splitKey uint32) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}

	p, err := findChildSlot(pg, childNum)
	if err != nil {
		return err
	}

	keys, children := readInternalNode(pg)
	newKeys, newChildren := spliceSeparator(keys, children, p, newChildNum, splitKey)

	if len(newKeys) <= page.InternalMaxKeys {
		writeInternalNode(pg, newKeys, newChildren)
		db.pager.MarkDirty(pn)
		return db.reparent(pn, newChildNum)
	}

	return db.internalSplit(pn, pg, newKeys, newChildren)
}

// findChildSlot returns the index at which childNum currently sits among
// pg's NumKeys+1 children (including the implicit right_child slot).
func findChildSlot(pg *page.Page, childNum page.Num) (int, error) {
	n := int(pg.NumKeys())
	for i := 0; i <= n; i++ {
		c, ok := pg.Child(i)
		if ok && c == childNum {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: child page %d not found in parent", ErrValidation, childNum)
}

// readInternalNode materializes pg's keys and children (len(children) ==
// len(keys)+1, with the last entry being right_child) into plain slices.
func readInternalNode(pg *page.Page) ([]uint32, []page.Num) {
	n := int(pg.NumKeys())
	keys := make([]uint32, n)
	children := make([]page.Num, n+1)
	for i := 0; i < n; i++ {
		keys[i] = pg.SeparatorKey(i)
		c, _ := pg.Child(i)
		children[i] = c
	}
	children[n] = pg.RightChild()
	return keys, children
}

// writeInternalNode writes keys/children (len(children) == len(keys)+1)
// back into pg, overwriting whatever it held before.
func writeInternalNode(pg *page.Page, keys []uint32, children []page.Num) {
	n := len(keys)
	pg.SetNumKeys(0)
	for i := 0; i < n; i++ {
		pg.SetInternalCell(i, children[i], keys[i])
	}
	pg.SetRightChild(children[n])
	pg.SetNumKeys(uint32(n))
}

// spliceSeparator inserts a new (newChild, splitKey) pair into a node
// whose existing child at index p was just split: childNum (at p) kept
// the smaller keys and now maxes out at splitKey, while newChild holds
// the larger keys and inherits whatever separator used to cover p.
func spliceSeparator(keys []uint32, children []page.Num, p int, newChild page.Num, splitKey uint32) ([]uint32, []page.Num) {
	n := len(keys)
	newKeys := make([]uint32, n+1)
	newChildren := make([]page.Num, n+2)

	if p < n {
		oldKey := keys[p]
		copy(newKeys[:p], keys[:p])
		newKeys[p] = splitKey
		newKeys[p+1] = oldKey
		copy(newKeys[p+2:], keys[p+1:])

		copy(newChildren[:p+1], children[:p+1])
		newChildren[p+1] = newChild
		copy(newChildren[p+2:], children[p+1:])
	} else {
		copy(newKeys[:n], keys)
		newKeys[n] = splitKey

		copy(newChildren[:n+1], children[:n+1])
		newChildren[n+1] = newChild
	}

	return newKeys, newChildren
}

// reparent updates the parent pointer of childNum to point at pn.
func (db *DB) reparent(pn, childNum page.Num) error {
	child, err := db.pager.GetPage(childNum)
	if err != nil {
		return db.fail(err)
	}
	child.SetParentPage(pn)
	db.pager.MarkDirty(childNum)
	return nil
}

// internalSplit divides an overfull (keys, children) set between pn
// (left) and a freshly allocated right page, promoting the median
// separator into pn's parent (or creating a new root).
func (db *DB) internalSplit(pn page.Num, pg *page.Page, keys []uint32, children []page.Num) error {
	total := len(keys)
	splitAt := total / 2
	medianKey := keys[splitAt]

	newNum, err := db.pager.AllocatePage()
	if err != nil {
		return db.fail(err)
	}
	newPg, err := db.pager.GetPage(newNum)
	if err != nil {
		return db.fail(err)
	}
	newPg.InitInternal()
	newPg.SetParentPage(pg.ParentPage())
	newPg.SetIsRoot(false)

	wasRoot := pg.IsRoot()
	parent := pg.ParentPage()

	writeInternalNode(pg, keys[:splitAt], children[:splitAt+1])
	writeInternalNode(newPg, keys[splitAt+1:], children[splitAt+1:])

	db.pager.MarkDirty(pn)
	db.pager.MarkDirty(newNum)

	if err := db.reparentAll(pn); err != nil {
		return err
	}
	if err := db.reparentAll(newNum); err != nil {
		return err
	}

	if wasRoot {
		return db.createNewRoot(pn, newNum, medianKey)
	}
	return db.internalInsert(parent, pn, newNum, medianKey)
}

// reparentAll fixes the parent pointer of every child of pn, used after
// a split moves children between pages.
func (db *DB) reparentAll(pn page.Num) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}
	n := int(pg.NumKeys())
	for i := 0; i <= n; i++ {
		c, ok := pg.Child(i)
		if !ok {
			continue
		}
		if err := db.reparent(pn, c); err != nil {
			return err
		}
	}
	return nil
}
