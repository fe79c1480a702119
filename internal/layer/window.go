package layer

// WindowLayer is a derived layer exposing a contiguous window of a parent
// layer under translated addresses. Offset origin in the window maps to
// base in the parent. This is the scoped sub-layer capability: a process's
// private view is a window (or a set of windows) over the base image.
type WindowLayer struct {
	name   string
	parent Layer
	base   uint64
	origin uint64
	length uint64
}

// NewWindowLayer derives a layer from parent. Reads of [origin,
// origin+length) are served from parent at [base, base+length); everything
// outside the window is unmapped.
func NewWindowLayer(name string, parent Layer, base, origin, length uint64) *WindowLayer {
	return &WindowLayer{name: name, parent: parent, base: base, origin: origin, length: length}
}

// Name implements Layer.
func (w *WindowLayer) Name() string { return w.name }

// Size implements Layer. The size is the highest addressable offset, so a
// window starting at a non-zero origin reports origin+length.
func (w *WindowLayer) Size() uint64 { return w.origin + w.length }

// IsValid implements Layer.
func (w *WindowLayer) IsValid(offset, length uint64) bool {
	if offset < w.origin {
		return false
	}
	if checkRange(w.name, offset-w.origin, length, w.length) != nil {
		return false
	}
	return w.parent.IsValid(w.base+(offset-w.origin), length)
}

// Read implements Layer.
func (w *WindowLayer) Read(offset, length uint64) ([]byte, error) {
	if offset < w.origin {
		return nil, &BoundsError{Layer: w.name, Offset: offset, Length: length}
	}
	rel := offset - w.origin
	if err := checkRange(w.name, rel, length, w.length); err != nil {
		return nil, err
	}
	data, err := w.parent.Read(w.base+rel, length)
	if err != nil {
		// Report the failure against this layer's address space.
		return nil, &BoundsError{Layer: w.name, Offset: offset, Length: length}
	}
	return data, nil
}
