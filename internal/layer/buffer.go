package layer

// BufferLayer serves reads from an in-memory byte slice. It is the layer of
// choice for tests and for small carved allocations.
type BufferLayer struct {
	name string
	data []byte
}

// NewBufferLayer wraps data in a layer. The layer aliases data; callers must
// not mutate it afterwards.
func NewBufferLayer(name string, data []byte) *BufferLayer {
	return &BufferLayer{name: name, data: data}
}

// Name implements Layer.
func (b *BufferLayer) Name() string { return b.name }

// Size implements Layer.
func (b *BufferLayer) Size() uint64 { return uint64(len(b.data)) }

// IsValid implements Layer.
func (b *BufferLayer) IsValid(offset, length uint64) bool {
	return checkRange(b.name, offset, length, b.Size()) == nil
}

// Read implements Layer.
func (b *BufferLayer) Read(offset, length uint64) ([]byte, error) {
	if err := checkRange(b.name, offset, length, b.Size()); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b.data[offset:offset+length])
	return out, nil
}
