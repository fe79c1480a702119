package objects

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
)

// ObjectTemplate is the direct template variant: it owns the Kind that
// interprets bytes of its shape. The capability contract is checked here,
// at build time, so misuse fails before any analysis starts.
type ObjectTemplate struct {
	name   string
	kind   Kind
	params *ordereddict.Dict
}

// NewObjectTemplate builds a direct template. A nil kind, or parameters the
// kind rejects, yield a ValidationError.
func NewObjectTemplate(kind Kind, structureName string, params *ordereddict.Dict) (*ObjectTemplate, error) {
	if kind == nil {
		return nil, &ValidationError{Structure: structureName, Reason: "no object kind supplied"}
	}
	if params == nil {
		params = ordereddict.NewDict()
	}
	if err := kind.Validate(params); err != nil {
		return nil, &ValidationError{Structure: structureName, Reason: err.Error()}
	}
	return &ObjectTemplate{name: structureName, kind: kind, params: params}, nil
}

// StructureName implements Template.
func (t *ObjectTemplate) StructureName() string { return t.name }

// Parameters implements Template.
func (t *ObjectTemplate) Parameters() *ordereddict.Dict { return t.params }

// Kind returns the object implementation bound to this template.
func (t *ObjectTemplate) Kind() Kind { return t.kind }

// SetKind swaps the object implementation, revalidating the parameters.
// The symbol space uses this to attach richer per-structure behavior after
// load; the shape stays data-driven.
func (t *ObjectTemplate) SetKind(kind Kind) error {
	if kind == nil {
		return &ValidationError{Structure: t.name, Reason: "no object kind supplied"}
	}
	if err := kind.Validate(t.params); err != nil {
		return &ValidationError{Structure: t.name, Reason: err.Error()}
	}
	t.kind = kind
	return nil
}

// Size implements Template.
func (t *ObjectTemplate) Size() (uint64, error) {
	return t.kind.TemplateSize(t)
}

// Children implements Template.
func (t *ObjectTemplate) Children() []Template {
	return t.kind.TemplateChildren(t)
}

// RelativeChildOffset implements Template.
func (t *ObjectTemplate) RelativeChildOffset(name string) (uint64, error) {
	return t.kind.TemplateRelativeChildOffset(t, name)
}

// ReplaceChild implements Template.
func (t *ObjectTemplate) ReplaceChild(oldChild, newChild Template) error {
	return t.kind.TemplateReplaceChild(t, oldChild, newChild)
}

// Construct implements Template. The template's parameters are forwarded to
// the kind verbatim; the kind computes size from those parameters, so the
// template's own size is authoritative over anything a caller supplies.
func (t *ObjectTemplate) Construct(ctx *Context, info ObjectInfo) (Object, error) {
	return t.kind.New(ctx, info, t.params)
}

// ReferenceTemplate is the deferred variant: it carries only a qualified
// structure name and resolves it through the symbol resolver on every
// operation. Resolution is deliberately not memoized, so a registry update
// or a ReplaceChild on the referenced template is observed by the next
// construction.
type ReferenceTemplate struct {
	name     string
	resolver Resolver
}

// NewReferenceTemplate builds a deferred reference to qualifiedName. The
// name does not need to exist in the resolver yet.
func NewReferenceTemplate(qualifiedName string, resolver Resolver) *ReferenceTemplate {
	return &ReferenceTemplate{name: qualifiedName, resolver: resolver}
}

func (t *ReferenceTemplate) resolve() (Template, error) {
	if t.resolver == nil {
		return nil, fmt.Errorf("reference to %q has no resolver", t.name)
	}
	return t.resolver.GetStructure(t.name)
}

// StructureName implements Template.
func (t *ReferenceTemplate) StructureName() string { return t.name }

// Parameters implements Template. A reference carries no attributes of its
// own; the dict is always empty.
func (t *ReferenceTemplate) Parameters() *ordereddict.Dict {
	return ordereddict.NewDict()
}

// Size implements Template by resolving the reference.
func (t *ReferenceTemplate) Size() (uint64, error) {
	real, err := t.resolve()
	if err != nil {
		return 0, err
	}
	return real.Size()
}

// Children implements Template by resolving the reference. An unresolvable
// reference has no children.
func (t *ReferenceTemplate) Children() []Template {
	real, err := t.resolve()
	if err != nil {
		return nil
	}
	return real.Children()
}

// RelativeChildOffset implements Template by resolving the reference.
func (t *ReferenceTemplate) RelativeChildOffset(name string) (uint64, error) {
	real, err := t.resolve()
	if err != nil {
		return 0, err
	}
	return real.RelativeChildOffset(name)
}

// ReplaceChild implements Template by resolving the reference. The swap
// lands on the referenced template, shared by every other reference to it.
func (t *ReferenceTemplate) ReplaceChild(oldChild, newChild Template) error {
	real, err := t.resolve()
	if err != nil {
		return err
	}
	return real.ReplaceChild(oldChild, newChild)
}

// Construct implements Template: resolve, then delegate. A name absent from
// the resolver surfaces the lookup error to the caller; a later
// registration makes the next Construct succeed.
func (t *ReferenceTemplate) Construct(ctx *Context, info ObjectInfo) (Object, error) {
	real, err := t.resolve()
	if err != nil {
		return nil, err
	}
	return real.Construct(ctx, info)
}
