package objects

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
)

// IntegerKind interprets fixed-width integers. Parameters: size (1, 2, 4
// or 8), signed, endian ("little" or "big", little by default).
type IntegerKind struct{}

// Validate implements Kind.
func (IntegerKind) Validate(params *ordereddict.Dict) error {
	size, err := paramUint64(params, ParamSize)
	if err != nil {
		return err
	}
	switch size {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("unsupported integer width %d", size)
	}
	_, err = paramByteOrder(params)
	return err
}

// TemplateSize implements Kind.
func (IntegerKind) TemplateSize(t Template) (uint64, error) {
	return paramUint64(t.Parameters(), ParamSize)
}

// TemplateChildren implements Kind. Scalars have no children.
func (IntegerKind) TemplateChildren(t Template) []Template { return nil }

// TemplateRelativeChildOffset implements Kind.
func (IntegerKind) TemplateRelativeChildOffset(t Template, name string) (uint64, error) {
	return 0, ErrNotSupported
}

// TemplateReplaceChild implements Kind.
func (IntegerKind) TemplateReplaceChild(t Template, oldChild, newChild Template) error {
	return ErrNotSupported
}

// New implements Kind.
func (IntegerKind) New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error) {
	return &IntegerObject{BaseObject: NewBaseObject(ctx, info, "integer", params)}, nil
}

// IntegerObject reads its value lazily from the layer on each access.
type IntegerObject struct {
	BaseObject
}

func (o *IntegerObject) read() (uint64, uint64, error) {
	size, err := paramUint64(o.Parameters(), ParamSize)
	if err != nil {
		return 0, 0, err
	}
	order, err := paramByteOrder(o.Parameters())
	if err != nil {
		return 0, 0, err
	}
	data, err := o.Info().Layer.Read(o.Info().Offset, size)
	if err != nil {
		return 0, 0, err
	}
	var raw uint64
	switch size {
	case 1:
		raw = uint64(data[0])
	case 2:
		raw = uint64(order.Uint16(data))
	case 4:
		raw = uint64(order.Uint32(data))
	case 8:
		raw = order.Uint64(data)
	}
	return raw, size, nil
}

// Uint returns the value zero-extended to 64 bits.
func (o *IntegerObject) Uint() (uint64, error) {
	raw, _, err := o.read()
	return raw, err
}

// Value returns the value with sign extension applied when the template is
// signed.
func (o *IntegerObject) Value() (int64, error) {
	raw, size, err := o.read()
	if err != nil {
		return 0, err
	}
	if !paramBool(o.Parameters(), ParamSigned) {
		return int64(raw), nil
	}
	shift := 64 - size*8
	return int64(raw<<shift) >> shift, nil
}
