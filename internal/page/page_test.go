package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeafCellShiftRightMakesRoom(t *testing.T) {
	var p Page
	p.InitLeaf()
	p.SetCell(0, 1, rowBytes(1))
	p.SetCell(1, 2, rowBytes(2))
	p.SetNumCells(2)

	p.ShiftCellsRight(1, 2)
	p.SetCell(1, 5, rowBytes(5))
	p.SetNumCells(3)

	assert.EqualValues(t, 1, p.CellKey(0))
	assert.EqualValues(t, 5, p.CellKey(1))
	assert.EqualValues(t, 2, p.CellKey(2))
}

func TestLeafCellShiftLeftClosesGap(t *testing.T) {
	var p Page
	p.InitLeaf()
	p.SetCell(0, 1, rowBytes(1))
	p.SetCell(1, 2, rowBytes(2))
	p.SetCell(2, 3, rowBytes(3))
	p.SetNumCells(3)

	p.ShiftCellsLeft(1, 3)
	p.SetNumCells(2)

	assert.EqualValues(t, 2, p.CellKey(0))
	assert.EqualValues(t, 3, p.CellKey(1))
}

func TestInternalChildOutOfRange(t *testing.T) {
	var p Page
	p.InitInternal()
	p.SetNumKeys(1)
	p.SetSeparatorKey(0, 10)
	p.SetChild(0, 1)
	p.SetRightChild(2)

	_, ok := p.Child(2)
	assert.False(t, ok)

	c, ok := p.Child(1)
	assert.True(t, ok)
	assert.Equal(t, Num(2), c)
}

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{RootPageNum: 3, FreeHead: 9}
	buf := h.Encode()
	got := DecodeFileHeader(buf[:])
	assert.Equal(t, h, got)
}

func TestFreeNextRoundTrip(t *testing.T) {
	var p Page
	p.SetFreeNext(42)
	assert.Equal(t, Num(42), p.FreeNext())
}

func rowBytes(key uint32) []byte {
	var r Row
	r.ID = key
	buf := make([]byte, RowSize)
	_ = r.Encode(buf)
	return buf
}
