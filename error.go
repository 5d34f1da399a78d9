package kvtree

import (
	"errors"

	"kvtree/internal/page"
	"kvtree/internal/pager"
)

// Sentinel errors returned by the public API. Callers compare with
// errors.Is; none of these carry dynamic state.
var (
	// ErrDuplicateKey is returned by Insert when a row with the same id
	// already exists.
	ErrDuplicateKey = errors.New("kvtree: duplicate key")

	// ErrRecordNotFound is returned by Find, Update and Delete for a
	// missing id.
	ErrRecordNotFound = errors.New("kvtree: record not found")

	// ErrStringTooLong is returned by Insert/Update when username or
	// email does not fit in its fixed-width field.
	ErrStringTooLong = page.ErrStringTooLong

	// ErrInvalidRange is returned by RangeScan when lo > hi.
	ErrInvalidRange = errors.New("kvtree: range lo must be <= hi")

	// ErrClosed is returned by any operation performed after Close.
	ErrClosed = errors.New("kvtree: database is closed")

	// Pager-level failures, re-exported so callers never need to import
	// the internal package to compare against them.
	ErrDiskError      = pager.ErrDiskError
	ErrOutOfBounds    = pager.ErrOutOfBounds
	ErrCorruptFile    = pager.ErrCorruptFile
	ErrNullPage       = pager.ErrNullPage
	ErrFreeChainCycle = pager.ErrFreeChainCycle

	// ErrValidation is returned by Validate (and wrapped with the
	// specific invariant that failed).
	ErrValidation = errors.New("kvtree: structural invariant violated")
)
