package objects

import (
	"github.com/Velocidex/ordereddict"

	"github.com/marrow-forensics/marrow/internal/safe"
)

// StructKind interprets a composite structure with named members at fixed
// offsets. Parameters: size (declared byte size, may be zero to mean
// "compute from members"), members (an ordered dict of name -> *Member in
// declaration order).
//
// Members may overlap; unions are expressed that way and are not an error.
type StructKind struct{}

// Validate implements Kind.
func (StructKind) Validate(params *ordereddict.Dict) error {
	members, err := paramMembers(params)
	if err != nil {
		return err
	}
	for _, name := range members.Keys() {
		if _, ok := memberAt(members, name); !ok {
			return &ValidationError{Structure: name, Reason: "member entry is not a *Member"}
		}
	}
	return nil
}

// TemplateSize implements Kind. The declared size wins when present;
// otherwise the size is the highest member end offset.
func (StructKind) TemplateSize(t Template) (uint64, error) {
	params := t.Parameters()
	if declared, err := paramUint64(params, ParamSize); err == nil && declared > 0 {
		return declared, nil
	}
	members, err := paramMembers(params)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, name := range members.Keys() {
		m, _ := memberAt(members, name)
		msize, err := m.Template.Size()
		if err != nil {
			return 0, err
		}
		end, wrapped := safe.AddUint64(m.Offset, msize)
		if wrapped {
			return 0, &ValidationError{Structure: t.StructureName(), Reason: "member offset overflows"}
		}
		if end > total {
			total = end
		}
	}
	return total, nil
}

// TemplateChildren implements Kind. Members come back in declaration
// order, which the ordered dict preserves from the symbol resource.
func (StructKind) TemplateChildren(t Template) []Template {
	members, err := paramMembers(t.Parameters())
	if err != nil {
		return nil
	}
	children := make([]Template, 0, members.Len())
	for _, name := range members.Keys() {
		if m, ok := memberAt(members, name); ok {
			children = append(children, m.Template)
		}
	}
	return children
}

// TemplateRelativeChildOffset implements Kind.
func (StructKind) TemplateRelativeChildOffset(t Template, name string) (uint64, error) {
	members, err := paramMembers(t.Parameters())
	if err != nil {
		return 0, err
	}
	m, ok := memberAt(members, name)
	if !ok {
		return 0, &ChildNotFoundError{Structure: t.StructureName(), Child: name}
	}
	return m.Offset, nil
}

// TemplateReplaceChild implements Kind. Every member slot holding oldChild
// is rewritten; member identity is template identity, so a placeholder
// reference shared by several fields is patched everywhere at once.
func (StructKind) TemplateReplaceChild(t Template, oldChild, newChild Template) error {
	members, err := paramMembers(t.Parameters())
	if err != nil {
		return err
	}
	replaced := false
	for _, name := range members.Keys() {
		m, ok := memberAt(members, name)
		if !ok || m.Template != oldChild {
			continue
		}
		members.Set(name, &Member{Offset: m.Offset, Template: newChild})
		replaced = true
	}
	if !replaced {
		return &ChildNotFoundError{Structure: t.StructureName(), Child: oldChild.StructureName()}
	}
	return nil
}

// New implements Kind.
func (k StructKind) New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error) {
	return &StructObject{BaseObject: NewBaseObject(ctx, info, "struct", params)}, nil
}

// StructObject projects members on demand. Each Member call constructs a
// fresh child object; callers that walk the same field repeatedly may
// cache the result themselves.
type StructObject struct {
	BaseObject
}

// HasMember reports whether the structure declares name.
func (o *StructObject) HasMember(name string) bool {
	members, err := paramMembers(o.Parameters())
	if err != nil {
		return false
	}
	_, ok := memberAt(members, name)
	return ok
}

// Member constructs the named member at its offset within this instance.
func (o *StructObject) Member(name string) (Object, error) {
	members, err := paramMembers(o.Parameters())
	if err != nil {
		return nil, err
	}
	m, ok := memberAt(members, name)
	if !ok {
		return nil, &ChildNotFoundError{Structure: o.TypeName(), Child: name}
	}
	return m.Template.Construct(o.Context(), ObjectInfo{
		Layer:  o.Info().Layer,
		Offset: o.Info().Offset + m.Offset,
		Member: name,
		Parent: o,
	})
}

// MemberNames returns the declared member names in declaration order.
func (o *StructObject) MemberNames() []string {
	members, err := paramMembers(o.Parameters())
	if err != nil {
		return nil
	}
	return members.Keys()
}
