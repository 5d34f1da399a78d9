// Package page implements the fixed 4096-byte on-disk page format: the
// common node header, leaf and internal node layouts, and the narrow
// byte-offset accessors every other package builds on. No field in this
// package performs I/O; it only interprets bytes already in memory.
package page

import "encoding/binary"

const (
	// Size is the fixed size of every page in the file. This format has
	// no reserved meta pages: page 0 is the first root.
	Size = 4096

	// MaxPages bounds how many pages a single file may hold. get_page
	// rejects any page number at or past this bound with ErrOutOfBounds.
	MaxPages = 100_000
)

// Num identifies a page by its position in the file. Page p lives at byte
// offset HeaderSize + p*Size.
type Num uint32

// NoPage is the sentinel used for "no parent", "no next leaf" and
// "end of free chain".
const NoPage Num = 0

// Type distinguishes the two node kinds that occupy allocated pages.
// Free pages carry no Type byte of their own -- membership in the free
// chain is tracked by the pager, not by page content.
type Type uint8

const (
	Leaf Type = iota
	Internal
)

// Page is the raw fixed-size buffer read from and written to disk. Every
// accessor below treats it as a flat byte array and computes offsets
// from the constants declared in this file.
type Page struct {
	Buf [Size]byte
}

// Common node header, 6 bytes, shared by leaf and internal pages.
const (
	offNodeType   = 0 // 1 byte
	offIsRoot     = 1 // 1 byte
	offParentPage = 2 // 4 bytes
	commonHeaderSize = 6
)

// Leaf header, 14 bytes total (6-byte common header + 8).
const (
	offLeafNumCells = commonHeaderSize     // 4 bytes
	offLeafNextLeaf = commonHeaderSize + 4 // 4 bytes
	LeafHeaderSize  = commonHeaderSize + 8

	// LeafCellSize is key(4) + value(RowSize).
	LeafCellSize = 4 + RowSize

	// LeafMax is the maximum number of cells a leaf page can hold.
	LeafMax = 13
	// LeafMin is the minimum occupancy of a non-root leaf.
	LeafMin = LeafMax / 2
)

// Internal header, 14 bytes total (6-byte common header + 8).
const (
	offIntNumKeys    = commonHeaderSize     // 4 bytes
	offIntRightChild = commonHeaderSize + 4 // 4 bytes
	InternalHeaderSize = commonHeaderSize + 8

	// InternalCellSize is child_ptr(4) + separator_key(4).
	InternalCellSize = 8

	// InternalMaxKeys is the maximum number of separator keys an
	// internal node can hold.
	InternalMaxKeys = 510
	// InternalMinKeys is the minimum occupancy of a non-root internal node.
	InternalMinKeys = InternalMaxKeys / 2
)

func init() {
	if LeafHeaderSize+LeafMax*LeafCellSize > Size {
		panic("page: leaf capacity overflows page size")
	}
	if InternalHeaderSize+InternalMaxKeys*InternalCellSize > Size {
		panic("page: internal capacity overflows page size")
	}
}

// --- narrow byte-offset primitives ---

func (p *Page) u8(off int) uint8 {
	return p.Buf[off]
}

func (p *Page) putU8(off int, v uint8) {
	p.Buf[off] = v
}

func (p *Page) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(p.Buf[off : off+4])
}

func (p *Page) putU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(p.Buf[off:off+4], v)
}

func (p *Page) slice(off, n int) []byte {
	return p.Buf[off : off+n]
}

// Zero resets the page buffer to all zeroes, as get_page does for a page
// past the current end of file.
func (p *Page) Zero() {
	p.Buf = [Size]byte{}
}

// --- common header ---

func (p *Page) NodeType() Type {
	return Type(p.u8(offNodeType))
}

func (p *Page) SetNodeType(t Type) {
	p.putU8(offNodeType, uint8(t))
}

func (p *Page) IsLeaf() bool {
	return p.NodeType() == Leaf
}

func (p *Page) IsRoot() bool {
	return p.u8(offIsRoot) != 0
}

func (p *Page) SetIsRoot(v bool) {
	if v {
		p.putU8(offIsRoot, 1)
	} else {
		p.putU8(offIsRoot, 0)
	}
}

func (p *Page) ParentPage() Num {
	return Num(p.u32(offParentPage))
}

func (p *Page) SetParentPage(n Num) {
	p.putU32(offParentPage, uint32(n))
}

// InitLeaf resets the page to an empty leaf node.
func (p *Page) InitLeaf() {
	p.Zero()
	p.SetNodeType(Leaf)
	p.SetNumCells(0)
	p.SetNextLeaf(NoPage)
}

// InitInternal resets the page to an empty internal node.
func (p *Page) InitInternal() {
	p.Zero()
	p.SetNodeType(Internal)
	p.SetNumKeys(0)
	p.SetRightChild(NoPage)
}

// --- leaf header & cells ---

func (p *Page) NumCells() uint32 {
	return p.u32(offLeafNumCells)
}

func (p *Page) SetNumCells(n uint32) {
	p.putU32(offLeafNumCells, n)
}

func (p *Page) NextLeaf() Num {
	return Num(p.u32(offLeafNextLeaf))
}

func (p *Page) SetNextLeaf(n Num) {
	p.putU32(offLeafNextLeaf, uint32(n))
}

func leafCellOffset(i int) int {
	return LeafHeaderSize + i*LeafCellSize
}

// CellKey returns the key of leaf cell i.
func (p *Page) CellKey(i int) uint32 {
	return p.u32(leafCellOffset(i))
}

func (p *Page) setCellKey(i int, key uint32) {
	p.putU32(leafCellOffset(i), key)
}

// CellValue returns a slice over the RowSize-byte payload of leaf cell i.
// The slice aliases the page buffer; callers that need to keep the bytes
// past the next mutation must copy them.
func (p *Page) CellValue(i int) []byte {
	off := leafCellOffset(i) + 4
	return p.slice(off, RowSize)
}

// SetCell writes a full (key, value) cell at index i.
func (p *Page) SetCell(i int, key uint32, value []byte) {
	p.setCellKey(i, key)
	copy(p.CellValue(i), value)
}

// copyCell copies leaf cell src to leaf cell dst within the same page.
func (p *Page) copyCell(dst, src int) {
	copy(p.slice(leafCellOffset(dst), LeafCellSize), p.slice(leafCellOffset(src), LeafCellSize))
}

// ShiftCellsRight shifts leaf cells [from:numCells) right by one slot,
// making room for an insertion at index from. Caller must ensure there is
// capacity for the new cell count.
func (p *Page) ShiftCellsRight(from int, numCells int) {
	for i := numCells; i > from; i-- {
		p.copyCell(i, i-1)
	}
}

// ShiftCellsLeft shifts leaf cells (from:numCells) left by one slot,
// overwriting the cell at from-1 (used after a delete at index from-1).
func (p *Page) ShiftCellsLeft(from int, numCells int) {
	for i := from; i < numCells; i++ {
		p.copyCell(i-1, i)
	}
}

// --- internal header & cells ---

func (p *Page) NumKeys() uint32 {
	return p.u32(offIntNumKeys)
}

func (p *Page) SetNumKeys(n uint32) {
	p.putU32(offIntNumKeys, n)
}

func (p *Page) RightChild() Num {
	return Num(p.u32(offIntRightChild))
}

func (p *Page) SetRightChild(n Num) {
	p.putU32(offIntRightChild, uint32(n))
}

func internalCellOffset(i int) int {
	return InternalHeaderSize + i*InternalCellSize
}

// Child returns child i of an internal node, for i in [0, num_keys]. The
// last child (i == num_keys) is the right_child stored in the header;
// it returns (0, false) if i is out of range.
func (p *Page) Child(i int) (Num, bool) {
	n := int(p.NumKeys())
	if i < 0 || i > n {
		return 0, false
	}
	if i == n {
		return p.RightChild(), true
	}
	return Num(p.u32(internalCellOffset(i))), true
}

// SetChild writes child pointer i in [0, num_keys).
func (p *Page) SetChild(i int, child Num) {
	p.putU32(internalCellOffset(i), uint32(child))
}

// SeparatorKey returns key[i], the maximum key of the subtree rooted at
// child i, for i in [0, num_keys).
func (p *Page) SeparatorKey(i int) uint32 {
	return p.u32(internalCellOffset(i) + 4)
}

func (p *Page) SetSeparatorKey(i int, key uint32) {
	p.putU32(internalCellOffset(i)+4, key)
}

// SetInternalCell writes a full (child, key) cell at index i.
func (p *Page) SetInternalCell(i int, child Num, key uint32) {
	p.SetChild(i, child)
	p.SetSeparatorKey(i, key)
}

func (p *Page) copyInternalCell(dst, src int) {
	copy(p.slice(internalCellOffset(dst), InternalCellSize), p.slice(internalCellOffset(src), InternalCellSize))
}

// ShiftInternalCellsRight shifts cells [from:numKeys) right by one,
// making room for an insertion at from.
func (p *Page) ShiftInternalCellsRight(from int, numKeys int) {
	for i := numKeys; i > from; i-- {
		p.copyInternalCell(i, i-1)
	}
}

// ShiftInternalCellsLeft shifts cells (from:numKeys) left by one,
// overwriting the cell at from-1.
func (p *Page) ShiftInternalCellsLeft(from int, numKeys int) {
	for i := from; i < numKeys; i++ {
		p.copyInternalCell(i-1, i)
	}
}

// --- free page ---

// FreeNext reads the next-pointer stored in the first 4 bytes of a free
// page. The remaining bytes of a free page are undefined by the format.
func (p *Page) FreeNext() Num {
	return Num(p.u32(0))
}

// SetFreeNext writes the next-pointer of a free page.
func (p *Page) SetFreeNext(n Num) {
	p.putU32(0, uint32(n))
}

// --- file header ---

// HeaderSize is the size of the file header preceding page 0.
const HeaderSize = 8

// FileHeader is the 8-byte region at offset 0 of the database file.
type FileHeader struct {
	RootPageNum Num
	FreeHead    Num
}

// Encode writes the file header into an 8-byte buffer.
func (h FileHeader) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.RootPageNum))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.FreeHead))
	return buf
}

// DecodeFileHeader reads the file header from an 8-byte buffer.
func DecodeFileHeader(buf []byte) FileHeader {
	return FileHeader{
		RootPageNum: Num(binary.LittleEndian.Uint32(buf[0:4])),
		FreeHead:    Num(binary.LittleEndian.Uint32(buf[4:8])),
	}
}
