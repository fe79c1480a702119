package objects

import (
	"github.com/Velocidex/ordereddict"
)

// PointerKind interprets a fixed-width unsigned address pointing at a
// subtype. Parameters: size, endian, subtype (a Template, possibly a
// deferred reference).
type PointerKind struct{}

// Validate implements Kind.
func (PointerKind) Validate(params *ordereddict.Dict) error {
	if err := (IntegerKind{}).Validate(params); err != nil {
		return err
	}
	_, err := paramTemplate(params, ParamSubtype)
	return err
}

// TemplateSize implements Kind.
func (PointerKind) TemplateSize(t Template) (uint64, error) {
	return paramUint64(t.Parameters(), ParamSize)
}

// TemplateChildren implements Kind. The pointed-to template is the sole
// child; it contributes nothing to the pointer's own layout.
func (PointerKind) TemplateChildren(t Template) []Template {
	sub, err := paramTemplate(t.Parameters(), ParamSubtype)
	if err != nil {
		return nil
	}
	return []Template{sub}
}

// TemplateRelativeChildOffset implements Kind. The target lives outside
// the pointer's layout.
func (PointerKind) TemplateRelativeChildOffset(t Template, name string) (uint64, error) {
	return 0, ErrNotSupported
}

// TemplateReplaceChild implements Kind. Swapping the subtype is how a
// forward-declared pointer target gets patched once the real type exists.
func (PointerKind) TemplateReplaceChild(t Template, oldChild, newChild Template) error {
	sub, err := paramTemplate(t.Parameters(), ParamSubtype)
	if err != nil {
		return err
	}
	if sub != oldChild {
		return &ChildNotFoundError{Structure: t.StructureName(), Child: oldChild.StructureName()}
	}
	t.Parameters().Set(ParamSubtype, newChild)
	return nil
}

// New implements Kind.
func (PointerKind) New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error) {
	return &PointerObject{IntegerObject{BaseObject: NewBaseObject(ctx, info, "pointer", params)}}, nil
}

// PointerObject is an integer whose value is an address in the same layer.
type PointerObject struct {
	IntegerObject
}

// Dereference constructs the subtype at the pointed-to address, on the
// same layer the pointer was read from.
func (o *PointerObject) Dereference() (Object, error) {
	target, err := o.Uint()
	if err != nil {
		return nil, err
	}
	sub, err := paramTemplate(o.Parameters(), ParamSubtype)
	if err != nil {
		return nil, err
	}
	return sub.Construct(o.Context(), ObjectInfo{
		Layer:  o.Info().Layer,
		Offset: target,
		Parent: o,
	})
}
