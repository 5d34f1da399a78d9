package kvtree

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"kvtree/internal/page"
)

// Constants reports the compiled-in layout constants, for the
// `.constants` diagnostic command.
func Constants() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ROW_SIZE: %d\n", page.RowSize)
	fmt.Fprintf(&b, "COMMON_NODE_HEADER_SIZE: %d\n", 6)
	fmt.Fprintf(&b, "LEAF_NODE_HEADER_SIZE: %d\n", page.LeafHeaderSize)
	fmt.Fprintf(&b, "LEAF_NODE_CELL_SIZE: %d\n", page.LeafCellSize)
	fmt.Fprintf(&b, "LEAF_NODE_MAX_CELLS: %d\n", page.LeafMax)
	fmt.Fprintf(&b, "LEAF_NODE_MIN_CELLS: %d\n", page.LeafMin)
	fmt.Fprintf(&b, "INTERNAL_NODE_HEADER_SIZE: %d\n", page.InternalHeaderSize)
	fmt.Fprintf(&b, "INTERNAL_NODE_CELL_SIZE: %d\n", page.InternalCellSize)
	fmt.Fprintf(&b, "INTERNAL_NODE_MAX_KEYS: %d\n", page.InternalMaxKeys)
	fmt.Fprintf(&b, "INTERNAL_NODE_MIN_KEYS: %d\n", page.InternalMinKeys)
	fmt.Fprintf(&b, "PAGE_SIZE: %d\n", page.Size)
	fmt.Fprintf(&b, "TABLE_MAX_PAGES: %d\n", page.MaxPages)
	return b.String()
}

// Btree renders an indented tree of the database's page structure, for
// the `.btree` diagnostic command.
func (db *DB) Btree() (string, error) {
	if err := db.checkAlive(); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := db.printNode(&b, db.pager.RootPageNum(), 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (db *DB) printNode(b *strings.Builder, pn page.Num, indent int) error {
	pg, err := db.pager.GetPage(pn)
	if err != nil {
		return db.fail(err)
	}
	pad := strings.Repeat("  ", indent)

	if pg.IsLeaf() {
		fmt.Fprintf(b, "%s- leaf (page %d, size %d)\n", pad, pn, pg.NumCells())
		for i := 0; i < int(pg.NumCells()); i++ {
			fmt.Fprintf(b, "%s  - %d\n", pad, pg.CellKey(i))
		}
		return nil
	}

	n := int(pg.NumKeys())
	fmt.Fprintf(b, "%s- internal (page %d, size %d)\n", pad, pn, n)
	for i := 0; i < n; i++ {
		child, _ := pg.Child(i)
		if err := db.printNode(b, child, indent+1); err != nil {
			return err
		}
		fmt.Fprintf(b, "%s  - key %d\n", pad, pg.SeparatorKey(i))
	}
	if err := db.printNode(b, pg.RightChild(), indent+1); err != nil {
		return err
	}
	return nil
}

// Debug reports low-level pager state: the page count, the root page
// number, the dirty page count, the free-chain check and length, and a
// non-persisted xxhash of the root page's bytes, useful for spotting
// unexpected mutation of that page between two fetches during
// development.
func (db *DB) Debug() (string, error) {
	if err := db.checkAlive(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "num_pages: %d\n", db.pager.NumPages())
	fmt.Fprintf(&b, "root_page_num: %d\n", db.pager.RootPageNum())
	fmt.Fprintf(&b, "dirty_pages: %d\n", db.pager.DirtyPageCount())

	if err := db.pager.ValidateFreeChain(); err != nil {
		fmt.Fprintf(&b, "free_chain: INVALID (%v)\n", err)
	} else {
		n, err := db.pager.FreeChainLength()
		if err != nil {
			return "", db.fail(err)
		}
		fmt.Fprintf(&b, "free_chain: ok (%d pages)\n", n)
	}

	rootPg, err := db.pager.GetPage(db.pager.RootPageNum())
	if err != nil {
		return "", db.fail(err)
	}
	fmt.Fprintf(&b, "root_hash: %016x\n", xxhash.Sum64(rootPg.Buf[:]))

	return b.String(), nil
}
