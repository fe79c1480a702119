package objects

import (
	"strconv"

	"github.com/Velocidex/ordereddict"

	"github.com/marrow-forensics/marrow/internal/safe"
)

// ArrayKind interprets count contiguous elements of a subtype.
// Parameters: count, subtype.
type ArrayKind struct{}

// Validate implements Kind.
func (ArrayKind) Validate(params *ordereddict.Dict) error {
	if _, err := paramUint64(params, ParamCount); err != nil {
		return err
	}
	_, err := paramTemplate(params, ParamSubtype)
	return err
}

// TemplateSize implements Kind.
func (ArrayKind) TemplateSize(t Template) (uint64, error) {
	count, err := paramUint64(t.Parameters(), ParamCount)
	if err != nil {
		return 0, err
	}
	sub, err := paramTemplate(t.Parameters(), ParamSubtype)
	if err != nil {
		return 0, err
	}
	elem, err := sub.Size()
	if err != nil {
		return 0, err
	}
	total, wrapped := safe.MulUint64(count, elem)
	if wrapped {
		return 0, &ValidationError{Structure: t.StructureName(), Reason: "array size overflows"}
	}
	return total, nil
}

// TemplateChildren implements Kind.
func (ArrayKind) TemplateChildren(t Template) []Template {
	sub, err := paramTemplate(t.Parameters(), ParamSubtype)
	if err != nil {
		return nil
	}
	return []Template{sub}
}

// TemplateRelativeChildOffset implements Kind. Array children are
// addressed by decimal index.
func (ArrayKind) TemplateRelativeChildOffset(t Template, name string) (uint64, error) {
	idx, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, &ChildNotFoundError{Structure: t.StructureName(), Child: name}
	}
	count, err := paramUint64(t.Parameters(), ParamCount)
	if err != nil {
		return 0, err
	}
	if idx >= count {
		return 0, &ChildNotFoundError{Structure: t.StructureName(), Child: name}
	}
	sub, err := paramTemplate(t.Parameters(), ParamSubtype)
	if err != nil {
		return 0, err
	}
	elem, err := sub.Size()
	if err != nil {
		return 0, err
	}
	return idx * elem, nil
}

// TemplateReplaceChild implements Kind.
func (ArrayKind) TemplateReplaceChild(t Template, oldChild, newChild Template) error {
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
func (ArrayKind) New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error) {
	return &ArrayObject{BaseObject: NewBaseObject(ctx, info, "array", params)}, nil
}

// ArrayObject projects elements on demand.
type ArrayObject struct {
	BaseObject
}

// Count returns the declared element count.
func (o *ArrayObject) Count() (uint64, error) {
	return paramUint64(o.Parameters(), ParamCount)
}

// Element constructs element i, bound at the element's offset.
func (o *ArrayObject) Element(i uint64) (Object, error) {
	sub, err := paramTemplate(o.Parameters(), ParamSubtype)
	if err != nil {
		return nil, err
	}
	count, err := o.Count()
	if err != nil {
		return nil, err
	}
	if i >= count {
		return nil, &ChildNotFoundError{Structure: o.TypeName(), Child: strconv.FormatUint(i, 10)}
	}
	elem, err := sub.Size()
	if err != nil {
		return nil, err
	}
	return sub.Construct(o.Context(), ObjectInfo{
		Layer:  o.Info().Layer,
		Offset: o.Info().Offset + i*elem,
		Member: strconv.FormatUint(i, 10),
		Parent: o,
	})
}
