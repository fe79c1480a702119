// Package layer models addressable byte sources backed by a memory image.
//
// A Layer is the only way the framework touches image bytes. Layers form a
// stack: a physical file layer at the bottom, with derived layers (for
// example a window into one process's address range) translating offsets
// down to their parent. All reads are bounds checked; a read outside the
// resident range fails with a BoundsError rather than returning short data.
package layer

import (
	"errors"
	"fmt"

	"github.com/marrow-forensics/marrow/internal/safe"
)

// ErrOutOfBounds is the sentinel matched by errors.Is for any failed read
// caused by a non-resident or unmapped range.
var ErrOutOfBounds = errors.New("read outside layer bounds")

// BoundsError reports a read that fell outside a layer's resident range.
type BoundsError struct {
	Layer  string
	Offset uint64
	Length uint64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("layer %q: %d bytes at offset %#x: %v", e.Layer, e.Length, e.Offset, ErrOutOfBounds)
}

func (e *BoundsError) Unwrap() error {
	return ErrOutOfBounds
}

// Layer is an addressable byte source.
//
// Implementations must be safe for concurrent readers; the framework never
// writes through a Layer.
type Layer interface {
	// Name identifies the layer within a Manager.
	Name() string

	// Read returns exactly length bytes starting at offset, or a
	// BoundsError if any part of the range is not resident. A zero
	// length read on a valid offset returns an empty slice.
	Read(offset uint64, length uint64) ([]byte, error)

	// Size is the number of addressable bytes in the layer.
	Size() uint64

	// IsValid reports whether the whole range [offset, offset+length)
	// is resident.
	IsValid(offset uint64, length uint64) bool
}

func checkRange(name string, offset, length, size uint64) error {
	end, wrapped := safe.AddUint64(offset, length)
	if wrapped || end > size {
		return &BoundsError{Layer: name, Offset: offset, Length: length}
	}
	return nil
}
