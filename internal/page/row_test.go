package page

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowRoundTrip(t *testing.T) {
	r := Row{ID: 7, Username: "alice", Email: "alice@example.com"}
	var buf [RowSize]byte
	require.NoError(t, r.Encode(buf[:]))

	got := DecodeRow(buf[:])
	assert.Equal(t, r, got)
}

func TestRowEncodeRejectsOversizedFields(t *testing.T) {
	r := Row{ID: 1, Username: strings.Repeat("a", MaxUsernameLen), Email: "x"}
	var buf [RowSize]byte
	assert.ErrorIs(t, r.Encode(buf[:]), ErrStringTooLong)

	r2 := Row{ID: 1, Username: "x", Email: strings.Repeat("b", MaxEmailLen)}
	assert.ErrorIs(t, r2.Encode(buf[:]), ErrStringTooLong)
}

func TestRowEncodeZeroFillsUnusedTail(t *testing.T) {
	r := Row{ID: 1, Username: "a", Email: "b"}
	var buf [RowSize]byte
	require.NoError(t, r.Encode(buf[:]))

	got := DecodeRow(buf[:])
	assert.Equal(t, "a", got.Username)
	assert.Equal(t, "b", got.Email)
}
