package objects

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
)

// BitfieldKind extracts bits [start_bit, end_bit) from an underlying
// integer base type. Parameters: base_type (an integer Template),
// start_bit, end_bit.
type BitfieldKind struct{}

// Validate implements Kind.
func (BitfieldKind) Validate(params *ordereddict.Dict) error {
	if _, err := paramTemplate(params, ParamBaseType); err != nil {
		return err
	}
	start, err := paramUint64(params, ParamStartBit)
	if err != nil {
		return err
	}
	end, err := paramUint64(params, ParamEndBit)
	if err != nil {
		return err
	}
	if start >= end || end > 64 {
		return fmt.Errorf("bit range [%d, %d) is invalid", start, end)
	}
	return nil
}

// TemplateSize implements Kind. A bitfield occupies its whole base type.
func (BitfieldKind) TemplateSize(t Template) (uint64, error) {
	base, err := paramTemplate(t.Parameters(), ParamBaseType)
	if err != nil {
		return 0, err
	}
	return base.Size()
}

// TemplateChildren implements Kind.
func (BitfieldKind) TemplateChildren(t Template) []Template {
	base, err := paramTemplate(t.Parameters(), ParamBaseType)
	if err != nil {
		return nil
	}
	return []Template{base}
}

// TemplateRelativeChildOffset implements Kind.
func (BitfieldKind) TemplateRelativeChildOffset(t Template, name string) (uint64, error) {
	return 0, ErrNotSupported
}

// TemplateReplaceChild implements Kind.
func (BitfieldKind) TemplateReplaceChild(t Template, oldChild, newChild Template) error {
	base, err := paramTemplate(t.Parameters(), ParamBaseType)
	if err != nil {
		return err
	}
	if base != oldChild {
		return &ChildNotFoundError{Structure: t.StructureName(), Child: oldChild.StructureName()}
	}
	t.Parameters().Set(ParamBaseType, newChild)
	return nil
}

// New implements Kind.
func (BitfieldKind) New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error) {
	return &BitfieldObject{BaseObject: NewBaseObject(ctx, info, "bitfield", params)}, nil
}

// BitfieldObject reads the base integer and masks out its bit range.
type BitfieldObject struct {
	BaseObject
}

// Value returns the extracted bits, shifted down to bit zero.
func (o *BitfieldObject) Value() (uint64, error) {
	params := o.Parameters()
	base, err := paramTemplate(params, ParamBaseType)
	if err != nil {
		return 0, err
	}
	raw, err := base.Construct(o.Context(), o.Info())
	if err != nil {
		return 0, err
	}
	intObj, ok := raw.(*IntegerObject)
	if !ok {
		return 0, fmt.Errorf("bitfield base constructed %T, want *IntegerObject", raw)
	}
	value, err := intObj.Uint()
	if err != nil {
		return 0, err
	}
	start, _ := paramUint64(params, ParamStartBit)
	end, _ := paramUint64(params, ParamEndBit)
	width := end - start
	if width >= 64 {
		return value >> start, nil
	}
	return (value >> start) & ((1 << width) - 1), nil
}
