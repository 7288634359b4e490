package pe

import (
	"errors"
	"fmt"
)

// Error kinds reported by the parsing engine. Callers classify failures with
// errors.Is; the sites that produce them add context with fmt.Errorf and %w.
var (
	// ErrNotPE means the file lacks the MZ or PE\0\0 signature and is not a
	// PE image at all. The driver treats this as "try the magic rules".
	ErrNotPE = errors.New("not a PE file")

	// ErrTruncated means a read ran past the end of the file.
	ErrTruncated = errors.New("truncated read")

	// ErrMalformed means a structural invariant was violated: bad counts,
	// overlapping directory records, a cyclic resource tree.
	ErrMalformed = errors.New("malformed structure")

	// ErrInvalidRVA means a relative virtual address falls outside every
	// section's virtual range.
	ErrInvalidRVA = errors.New("invalid RVA")

	// ErrUnsupported means an optional header magic other than PE32/PE32+.
	ErrUnsupported = errors.New("unsupported image format")
)

func truncatedErr(what string, offset, length int) error {
	return fmt.Errorf("%s at offset 0x%X (+%d): %w", what, offset, length, ErrTruncated)
}

func malformedErr(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrMalformed)...)
}

func invalidRvaErr(rva uint32) error {
	return fmt.Errorf("RVA 0x%X not mapped by any section: %w", rva, ErrInvalidRVA)
}
