package layer

import (
	"fmt"
	"io"
	"os"

	"github.com/marrow-forensics/marrow/internal/safe"
)

// FileLayer serves reads from a raw memory image on disk.
type FileLayer struct {
	name string
	f    *os.File
	size uint64
}

// OpenFileLayer opens path read-only and exposes it as a layer.
// The caller owns the returned layer and must Close it.
func OpenFileLayer(name, path string) (*FileLayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat image %s: %w", path, err)
	}
	return &FileLayer{name: name, f: f, size: uint64(fi.Size())}, nil
}

// Name implements Layer.
func (l *FileLayer) Name() string { return l.name }

// Size implements Layer.
func (l *FileLayer) Size() uint64 { return l.size }

// IsValid implements Layer.
func (l *FileLayer) IsValid(offset, length uint64) bool {
	return checkRange(l.name, offset, length, l.size) == nil
}

// Read implements Layer.
func (l *FileLayer) Read(offset, length uint64) ([]byte, error) {
	if err := checkRange(l.name, offset, length, l.size); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if length == 0 {
		return out, nil
	}
	off, clamped := safe.Uint64ToInt64(offset)
	if clamped {
		return nil, &BoundsError{Layer: l.name, Offset: offset, Length: length}
	}
	n, err := l.f.ReadAt(out, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading layer %q at %#x: %w", l.name, offset, err)
	}
	if uint64(n) < length {
		// The file shrank after Stat; the tail is not resident.
		return nil, &BoundsError{Layer: l.name, Offset: offset, Length: length}
	}
	return out, nil
}

// Close releases the underlying file handle.
func (l *FileLayer) Close() error {
	return l.f.Close()
}
