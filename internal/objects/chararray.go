package objects

import (
	"bytes"

	"github.com/Velocidex/ordereddict"
)

// CharArrayKind interprets a fixed-length byte buffer holding a
// NUL-padded string. Parameters: count.
type CharArrayKind struct{}

// Validate implements Kind.
func (CharArrayKind) Validate(params *ordereddict.Dict) error {
	_, err := paramUint64(params, ParamCount)
	return err
}

// TemplateSize implements Kind.
func (CharArrayKind) TemplateSize(t Template) (uint64, error) {
	return paramUint64(t.Parameters(), ParamCount)
}

// TemplateChildren implements Kind.
func (CharArrayKind) TemplateChildren(t Template) []Template { return nil }

// TemplateRelativeChildOffset implements Kind.
func (CharArrayKind) TemplateRelativeChildOffset(t Template, name string) (uint64, error) {
	return 0, ErrNotSupported
}

// TemplateReplaceChild implements Kind.
func (CharArrayKind) TemplateReplaceChild(t Template, oldChild, newChild Template) error {
	return ErrNotSupported
}

// New implements Kind.
func (CharArrayKind) New(ctx *Context, info ObjectInfo, params *ordereddict.Dict) (Object, error) {
	return &StringObject{BaseObject: NewBaseObject(ctx, info, "string", params)}, nil
}

// StringObject reads the buffer and truncates at the first NUL.
type StringObject struct {
	BaseObject
}

// String returns the decoded value. It reads on every call.
func (o *StringObject) String() (string, error) {
	count, err := paramUint64(o.Parameters(), ParamCount)
	if err != nil {
		return "", err
	}
	data, err := o.Info().Layer.Read(o.Info().Offset, count)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}
