// Package objects implements the typed-object template engine.
//
// A Template is a reusable, introspectable description of a typed structure
// that can construct Objects bound to a layer offset on demand. Templates
// never read image bytes themselves; they carry shape metadata (sizes,
// members, offsets) plus a Kind that knows how to interpret bytes of that
// shape. Objects read lazily from their layer when a value is requested.
//
// Two template variants exist. ObjectTemplate binds a Kind directly.
// ReferenceTemplate carries only a qualified structure name and resolves it
// through a symbol resolver on every call, which is what makes mutually
// recursive structure definitions loadable without a topological order.
package objects

import (
	"errors"
	"fmt"

	"github.com/Velocidex/ordereddict"
	"github.com/rs/zerolog"

	"github.com/marrow-forensics/marrow/internal/layer"
)

// ErrNotSupported is returned by template operations that a Kind does not
// define, such as asking a scalar type for a child offset.
var ErrNotSupported = errors.New("operation not supported by this kind")

// ValidationError reports a template built with a missing or malformed
// object kind. It is raised at template build time, never lazily.
type ValidationError struct {
	Structure string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid template for %q: %s", e.Structure, e.Reason)
}

// ChildNotFoundError reports a child query naming a member the template
// does not contain. The template itself is valid; only the query is not.
type ChildNotFoundError struct {
	Structure string
	Child     string
}

func (e *ChildNotFoundError) Error() string {
	return fmt.Sprintf("structure %q has no child %q", e.Structure, e.Child)
}

// Resolver resolves qualified "table!structure" names to templates. The
// symbol space implements this; templates hold it to resolve deferred
// references at call time.
type Resolver interface {
	GetStructure(qualifiedName string) (Template, error)
}

// Context carries the shared state an object needs to interpret memory:
// the named layers of the analysis and the loaded symbol space.
type Context struct {
	Memory  *layer.Manager
	Symbols Resolver
	Log     zerolog.Logger
}

// ObjectInfo is the binding of an object to a location: a layer plus an
// offset, with optional parentage for diagnostics. The location is
// immutable for the lifetime of the object.
type ObjectInfo struct {
	Layer  layer.Layer
	Offset uint64

	// Member is the name this object has within its parent, if any.
	Member string
	// Parent is the object this one was projected out of, if any.
	Parent Object
}

// Object is a live, address-bound instantiation of a Template. Concrete
// kinds return richer types (IntegerObject, StructObject, ...) behind this
// interface; reads happen lazily when a value is requested.
type Object interface {
	Info() ObjectInfo
	TypeName() string
}

// Template produces Objects on demand and exposes structural metadata
// without materializing anything.
type Template interface {
	// StructureName is the named type this template represents, if any.
	StructureName() string

	// Parameters returns the template's construction arguments. The dict
	// is owned by the template; callers must treat it as read-only and
	// use ReplaceChild for mutation.
	Parameters() *ordereddict.Dict

	// Size is the byte size implied by the template's parameters. It is
	// authoritative; no caller-supplied hint overrides it.
	Size() (uint64, error)

	// Children returns nested member templates in declaration order,
	// empty for scalar types.
	Children() []Template

	// RelativeChildOffset is the offset of the named child within an
	// instance of this template. Returns a ChildNotFoundError for
	// unknown names and ErrNotSupported for kinds without nested layout.
	RelativeChildOffset(name string) (uint64, error)

	// ReplaceChild substitutes newChild for oldChild in place. Every
	// future construction through this template observes the swap;
	// callers needing isolation must clone the template first. Not safe
	// against a concurrent Construct on the same template.
	ReplaceChild(oldChild, newChild Template) error

	// Construct builds an Object bound to info.
	Construct(ctx *Context, info ObjectInfo) (Object, error)
}

// Kind is the object capability contract: everything an object
// implementation must provide for its templates to be introspectable and
// constructible. The contract is checked once, when the template is built.
type Kind interface {
	// Validate fails fast on missing or mistyped parameters.
	Validate(params *ordereddict.Dict) error

	// New constructs the bound object. Parameters are forwarded from the
	// template verbatim; implementations must not mutate the dict.
	New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error)

	TemplateSize(t Template) (uint64, error)
	TemplateChildren(t Template) []Template
	TemplateRelativeChildOffset(t Template, name string) (uint64, error)
	TemplateReplaceChild(t Template, oldChild, newChild Template) error
}

// Member is one named field of a structure: a position plus the template
// that interprets bytes at that position. Overlapping member offsets are
// legal; unions rely on them.
type Member struct {
	Offset   uint64
	Template Template
}

// BaseObject carries the state common to all bound objects.
type BaseObject struct {
	ctx      *Context
	info     ObjectInfo
	typeName string
	params   *ordereddict.Dict
}

// NewBaseObject builds the embedded core of a concrete object.
func NewBaseObject(ctx *Context, info ObjectInfo, typeName string, params *ordereddict.Dict) BaseObject {
	return BaseObject{ctx: ctx, info: info, typeName: typeName, params: params}
}

// Info implements Object.
func (o *BaseObject) Info() ObjectInfo { return o.info }

// TypeName implements Object.
func (o *BaseObject) TypeName() string { return o.typeName }

// Context returns the execution context the object was constructed with.
func (o *BaseObject) Context() *Context { return o.ctx }

// Parameters returns the template parameters the object inherited.
func (o *BaseObject) Parameters() *ordereddict.Dict { return o.params }
