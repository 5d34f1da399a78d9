package kvtree

import (
	"fmt"

	"kvtree/internal/page"
)

// subtreeInfo summarizes one subtree for the recursive post-order walk:
// its minimum key, maximum key, and depth (leaf depth == 0).
type subtreeInfo struct {
	min, max uint32
	depth    int
	empty    bool
}

// Validate walks the whole tree from the root and checks every
// structural invariant: ascending keys within a leaf, correct
// separator/max-key relationships, uniform leaf depth, minimum
// occupancy of non-root nodes, correct parent pointers, and a leaf chain
// that never revisits a page and whose keys ascend strictly. It does not
// check that the leaf chain reaches every leaf. It also validates the
// pager's free-page chain. Returns a wrapped
// ErrValidation naming the offending page on the first violation found.
func (db *DB) Validate() error {
	if err := db.checkAlive(); err != nil {
		return err
	}

	rootNum := db.pager.RootPageNum()
	rootPg, err := db.pager.GetPage(rootNum)
	if err != nil {
		return db.fail(err)
	}

	if _, err := db.validateSubtree(rootNum, rootPg.IsRoot(), page.NoPage); err != nil {
		return err
	}

	if err := db.pager.ValidateFreeChain(); err != nil {
		return err
	}

	return db.validateLeafChain()
}

func (db *DB) validateSubtree(pn page.Num, isRoot bool, expectedParent page.Num) (subtreeInfo, error) {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return subtreeInfo{}, db.fail(err)
	}

	if !isRoot && pg.ParentPage() != expectedParent {
		return subtreeInfo{}, fmt.Errorf("%w: page %d has parent_page=%d, want %d", ErrValidation, pn, pg.ParentPage(), expectedParent)
	}
	if pg.IsRoot() != isRoot {
		return subtreeInfo{}, fmt.Errorf("%w: page %d is_root=%v, want %v", ErrValidation, pn, pg.IsRoot(), isRoot)
	}

	if pg.IsLeaf() {
		return db.validateLeaf(pn, pg, isRoot)
	}
	return db.validateInternal(pn, pg, isRoot)
}

func (db *DB) validateLeaf(pn page.Num, pg *page.Page, isRoot bool) (subtreeInfo, error) {
	n := int(pg.NumCells())
	if n == 0 {
		if !isRoot {
			return subtreeInfo{}, fmt.Errorf("%w: non-root leaf %d is empty", ErrValidation, pn)
		}
		return subtreeInfo{empty: true, depth: 0}, nil
	}

	if !isRoot && n < page.LeafMin {
		return subtreeInfo{}, fmt.Errorf("%w: leaf %d has %d cells, below LeafMin=%d", ErrValidation, pn, n, page.LeafMin)
	}
	if n > page.LeafMax {
		return subtreeInfo{}, fmt.Errorf("%w: leaf %d has %d cells, above LeafMax=%d", ErrValidation, pn, n, page.LeafMax)
	}

	for i := 1; i < n; i++ {
		if pg.CellKey(i-1) >= pg.CellKey(i) {
			return subtreeInfo{}, fmt.Errorf("%w: leaf %d keys not strictly increasing at cell %d", ErrValidation, pn, i)
		}
	}

	return subtreeInfo{min: pg.CellKey(0), max: pg.CellKey(n - 1), depth: 0}, nil
}

func (db *DB) validateInternal(pn page.Num, pg *page.Page, isRoot bool) (subtreeInfo, error) {
	n := int(pg.NumKeys())
	if !isRoot && n < page.InternalMinKeys {
		return subtreeInfo{}, fmt.Errorf("%w: internal %d has %d keys, below InternalMinKeys=%d", ErrValidation, pn, n, page.InternalMinKeys)
	}
	if n > page.InternalMaxKeys {
		return subtreeInfo{}, fmt.Errorf("%w: internal %d has %d keys, above InternalMaxKeys=%d", ErrValidation, pn, n, page.InternalMaxKeys)
	}
	if isRoot && n == 0 {
		return subtreeInfo{}, fmt.Errorf("%w: root %d is internal with zero keys, should have collapsed", ErrValidation, pn)
	}

	var info subtreeInfo
	var prevMax uint32
	havePrev := false

	for i := 0; i <= n; i++ {
		child, ok := pg.Child(i)
		if !ok {
			return subtreeInfo{}, fmt.Errorf("%w: internal %d child %d out of range", ErrValidation, pn, i)
		}
		childInfo, err := db.validateSubtree(child, false, pn)
		if err != nil {
			return subtreeInfo{}, err
		}
		if childInfo.empty {
			return subtreeInfo{}, fmt.Errorf("%w: internal %d child %d (page %d) is an empty non-root leaf", ErrValidation, pn, i, child)
		}

		if i == 0 {
			info.depth = childInfo.depth + 1
			info.min = childInfo.min
		} else if childInfo.depth != info.depth-1 {
			return subtreeInfo{}, fmt.Errorf("%w: internal %d child %d depth mismatch", ErrValidation, pn, i)
		}

		if havePrev && childInfo.min <= prevMax {
			return subtreeInfo{}, fmt.Errorf("%w: internal %d children out of order at %d", ErrValidation, pn, i)
		}
		prevMax = childInfo.max
		havePrev = true

		if i < n {
			if pg.SeparatorKey(i) != childInfo.max {
				return subtreeInfo{}, fmt.Errorf("%w: internal %d key[%d]=%d != max(child)=%d", ErrValidation, pn, i, pg.SeparatorKey(i), childInfo.max)
			}
		}
	}

	info.max = prevMax
	return info, nil
}

// validateLeafChain walks next_leaf from the leftmost leaf and checks
// that no page is visited twice and that keys ascend strictly along the
// chain. The number of leaves reached is not compared with the number of
// leaves in the tree, so a chain that skips or stops before a leaf is
// not detected.
func (db *DB) validateLeafChain() error {
	c, err := db.tableStart()
	if err != nil {
		return err
	}

	visited := make(map[page.Num]struct{})
	var lastKey uint32
	haveLast := false

	for !c.endOfTable {
		if _, seen := visited[c.leaf]; seen {
			return fmt.Errorf("%w: leaf chain revisits page %d", ErrValidation, c.leaf)
		}
		visited[c.leaf] = struct{}{}

		pg, err := db.pager.GetPage(c.leaf)
		if err != nil {
			return db.fail(err)
		}
		n := int(pg.NumCells())
		for i := 0; i < n; i++ {
			key := pg.CellKey(i)
			if haveLast && key <= lastKey {
				return fmt.Errorf("%w: leaf chain not strictly ascending at page %d cell %d", ErrValidation, c.leaf, i)
			}
			lastKey, haveLast = key, true
		}

		next := pg.NextLeaf()
		if next == page.NoPage {
			break
		}
		c.leaf = next
	}

	return nil
}
