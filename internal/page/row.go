package page

import (
	"bytes"
	"errors"
)

// Row field widths. Strings are null-terminated within their fixed slot,
// so the maximum stored string length is one byte less than the slot.
const (
	MaxUsernameLen = 32
	MaxEmailLen    = 255

	// RowSize is the constant serialized size of a Row: id(4) +
	// username(32) + email(255).
	RowSize = 4 + MaxUsernameLen + MaxEmailLen
)

// ErrStringTooLong is returned when Username or Email does not fit in its
// fixed slot, including the null terminator.
var ErrStringTooLong = errors.New("page: string too long for row field")

// Row is the fixed-schema payload stored in every leaf cell.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

// Encode writes r into dst, which must be exactly RowSize bytes.
func (r Row) Encode(dst []byte) error {
	if len(dst) != RowSize {
		panic("page: Row.Encode requires a RowSize-length buffer")
	}
	if len(r.Username) >= MaxUsernameLen {
		return ErrStringTooLong
	}
	if len(r.Email) >= MaxEmailLen {
		return ErrStringTooLong
	}

	for i := range dst {
		dst[i] = 0
	}

	dst[0] = byte(r.ID)
	dst[1] = byte(r.ID >> 8)
	dst[2] = byte(r.ID >> 16)
	dst[3] = byte(r.ID >> 24)

	copy(dst[4:4+MaxUsernameLen], r.Username)
	copy(dst[4+MaxUsernameLen:4+MaxUsernameLen+MaxEmailLen], r.Email)
	return nil
}

// DecodeRow reads a Row out of a RowSize-length buffer.
func DecodeRow(src []byte) Row {
	if len(src) != RowSize {
		panic("page: DecodeRow requires a RowSize-length buffer")
	}

	id := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24

	usernameField := src[4 : 4+MaxUsernameLen]
	emailField := src[4+MaxUsernameLen : 4+MaxUsernameLen+MaxEmailLen]

	return Row{
		ID:       id,
		Username: cString(usernameField),
		Email:    cString(emailField),
	}
}

// cString returns the bytes of b up to the first NUL byte, or all of b if
// there is none.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
