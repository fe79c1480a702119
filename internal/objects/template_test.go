package objects

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Velocidex/ordereddict"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marrow-forensics/marrow/internal/layer"
)

func testContext() *Context {
	return &Context{Log: zerolog.Nop()}
}

func uintTemplate(t *testing.T, size uint64) Template {
	t.Helper()
	params := ordereddict.NewDict().Set(ParamSize, size)
	tmpl, err := NewObjectTemplate(IntegerKind{}, fmt.Sprintf("uint%d", size*8), params)
	require.NoError(t, err)
	return tmpl
}

func structTemplate(t *testing.T, name string, size uint64, members *ordereddict.Dict) Template {
	t.Helper()
	params := ordereddict.NewDict().
		Set(ParamSize, size).
		Set(ParamMembers, members)
	tmpl, err := NewObjectTemplate(StructKind{}, name, params)
	require.NoError(t, err)
	return tmpl
}

func TestNewObjectTemplate_Validation(t *testing.T) {
	var vErr *ValidationError

	// Missing kind fails at build, not at use.
	_, err := NewObjectTemplate(nil, "broken", ordereddict.NewDict())
	require.ErrorAs(t, err, &vErr)

	// Parameters the kind rejects also fail at build.
	_, err = NewObjectTemplate(IntegerKind{}, "broken", ordereddict.NewDict())
	require.ErrorAs(t, err, &vErr)

	_, err = NewObjectTemplate(IntegerKind{}, "broken",
		ordereddict.NewDict().Set(ParamSize, uint64(3)))
	require.ErrorAs(t, err, &vErr)
}

func TestTemplateSize_DeterministicAndLocationFree(t *testing.T) {
	members := ordereddict.NewDict().
		Set("a", &Member{Offset: 0, Template: uintTemplate(t, 4)}).
		Set("b", &Member{Offset: 4, Template: uintTemplate(t, 8)})
	tmpl := structTemplate(t, "pair", 0, members)

	first, err := tmpl.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), first)

	// Size never depends on where an instance is bound.
	for i := 0; i < 3; i++ {
		again, err := tmpl.Size()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestStructTemplate_DeclaredSizeWins(t *testing.T) {
	members := ordereddict.NewDict().
		Set("a", &Member{Offset: 0, Template: uintTemplate(t, 4)})
	tmpl := structTemplate(t, "padded", 64, members)

	size, err := tmpl.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(64), size)
}

func TestStructTemplate_ChildrenAndOffsets(t *testing.T) {
	a := uintTemplate(t, 4)
	b := uintTemplate(t, 8)
	members := ordereddict.NewDict().
		Set("a", &Member{Offset: 0, Template: a}).
		Set("b", &Member{Offset: 8, Template: b})
	tmpl := structTemplate(t, "holder", 16, members)

	children := tmpl.Children()
	require.Len(t, children, 2)
	assert.Same(t, a, children[0])
	assert.Same(t, b, children[1])

	size, err := tmpl.Size()
	require.NoError(t, err)
	for _, name := range []string{"a", "b"} {
		offset, err := tmpl.RelativeChildOffset(name)
		require.NoError(t, err)
		assert.Less(t, offset, size)
	}

	var notFound *ChildNotFoundError
	_, err = tmpl.RelativeChildOffset("missing")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Child)
}

func TestStructTemplate_OverlappingMembersAreLegal(t *testing.T) {
	// Unions put several members at the same offset; that must not raise.
	members := ordereddict.NewDict().
		Set("asUint", &Member{Offset: 0, Template: uintTemplate(t, 4)}).
		Set("asWide", &Member{Offset: 0, Template: uintTemplate(t, 8)})
	tmpl := structTemplate(t, "union", 8, members)

	for _, name := range []string{"asUint", "asWide"} {
		offset, err := tmpl.RelativeChildOffset(name)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), offset)
	}
}

func TestScalarTemplate_NoNestedLayout(t *testing.T) {
	tmpl := uintTemplate(t, 4)

	assert.Empty(t, tmpl.Children())
	_, err := tmpl.RelativeChildOffset("anything")
	require.ErrorIs(t, err, ErrNotSupported)
	err = tmpl.ReplaceChild(tmpl, tmpl)
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestReplaceChild_SwapsInPlaceExactlyOnce(t *testing.T) {
	old := uintTemplate(t, 4)
	keep := uintTemplate(t, 8)
	members := ordereddict.NewDict().
		Set("first", &Member{Offset: 0, Template: old}).
		Set("second", &Member{Offset: 8, Template: keep})
	tmpl := structTemplate(t, "patchable", 16, members)

	wide := uintTemplate(t, 8)
	require.NoError(t, tmpl.ReplaceChild(old, wide))

	children := tmpl.Children()
	require.Len(t, children, 2)
	assert.Same(t, wide, children[0], "new child takes the old child's position")
	assert.Same(t, keep, children[1])

	count := 0
	for _, c := range children {
		if c == wide {
			count++
		}
	}
	assert.Equal(t, 1, count)

	var notFound *ChildNotFoundError
	err := tmpl.ReplaceChild(old, wide)
	require.ErrorAs(t, err, &notFound, "old child is gone after the swap")
}

func TestReplaceChild_VisibleThroughSharedReferences(t *testing.T) {
	inner := structTemplate(t, "inner", 0, ordereddict.NewDict().
		Set("v", &Member{Offset: 0, Template: uintTemplate(t, 4)}))

	// An outer structure sharing the inner template observes the swap on
	// its next construction, without rebuilding anything.
	outer := structTemplate(t, "outer", 0, ordereddict.NewDict().
		Set("nested", &Member{Offset: 0, Template: inner}))

	size, err := outer.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size)

	old := inner.Children()[0]
	require.NoError(t, inner.ReplaceChild(old, uintTemplate(t, 8)))

	size, err = outer.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), size)
}

// mapResolver is a minimal registry standing in for the symbol space.
type mapResolver map[string]Template

func (m mapResolver) GetStructure(name string) (Template, error) {
	tmpl, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("structure %q not registered", name)
	}
	return tmpl, nil
}

func TestReferenceTemplate_ResolvesOnEveryCall(t *testing.T) {
	registry := mapResolver{}
	ref := NewReferenceTemplate("test!_THING", registry)

	l := layer.NewBufferLayer("buf", make([]byte, 64))
	info := ObjectInfo{Layer: l, Offset: 0}

	// Construction before registration fails with a lookup error...
	_, err := ref.Construct(testContext(), info)
	require.Error(t, err)

	// ...and the next construction succeeds once the name exists, because
	// resolution is never memoized.
	registry["test!_THING"] = uintTemplate(t, 4)
	obj, err := ref.Construct(testContext(), info)
	require.NoError(t, err)
	assert.IsType(t, &IntegerObject{}, obj)

	// A registry update is observed by the construction after it.
	registry["test!_THING"] = uintTemplate(t, 8)
	size, err := ref.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), size)
}

func TestIntegerObject_Reads(t *testing.T) {
	data := make([]byte, 16)
	data[0] = 0xFE
	data[1] = 0xFF
	data[2] = 0xFF
	data[3] = 0xFF
	l := layer.NewBufferLayer("buf", data)

	unsigned := uintTemplate(t, 4)
	obj, err := unsigned.Construct(testContext(), ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	value, err := obj.(*IntegerObject).Uint()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFE), value)

	params := ordereddict.NewDict().
		Set(ParamSize, uint64(4)).
		Set(ParamSigned, true)
	signed, err := NewObjectTemplate(IntegerKind{}, "long", params)
	require.NoError(t, err)
	obj, err = signed.Construct(testContext(), ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	sValue, err := obj.(*IntegerObject).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(-2), sValue)

	// Reads outside the layer surface bounds errors, not zeroes.
	obj, err = unsigned.Construct(testContext(), ObjectInfo{Layer: l, Offset: 14})
	require.NoError(t, err)
	_, err = obj.(*IntegerObject).Uint()
	require.ErrorIs(t, err, layer.ErrOutOfBounds)
}

func TestPointerObject_Dereference(t *testing.T) {
	data := make([]byte, 64)
	// Pointer at 0 -> address 0x20; target value 0xAABBCCDD at 0x20.
	data[0] = 0x20
	data[0x20] = 0xDD
	data[0x21] = 0xCC
	data[0x22] = 0xBB
	data[0x23] = 0xAA
	l := layer.NewBufferLayer("buf", data)

	params := ordereddict.NewDict().
		Set(ParamSize, uint64(8)).
		Set(ParamSubtype, uintTemplate(t, 4))
	ptr, err := NewObjectTemplate(PointerKind{}, "", params)
	require.NoError(t, err)

	obj, err := ptr.Construct(testContext(), ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	target, err := obj.(*PointerObject).Dereference()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x20), target.Info().Offset)

	value, err := target.(*IntegerObject).Uint()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xAABBCCDD), value)
}

func TestArrayTemplate_SizeOffsetsAndElements(t *testing.T) {
	params := ordereddict.NewDict().
		Set(ParamCount, uint64(4)).
		Set(ParamSubtype, uintTemplate(t, 2))
	arr, err := NewObjectTemplate(ArrayKind{}, "", params)
	require.NoError(t, err)

	size, err := arr.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), size)

	offset, err := arr.RelativeChildOffset("2")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), offset)

	var notFound *ChildNotFoundError
	_, err = arr.RelativeChildOffset("4")
	require.ErrorAs(t, err, &notFound)

	data := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	l := layer.NewBufferLayer("buf", data)
	obj, err := arr.Construct(testContext(), ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)

	elem, err := obj.(*ArrayObject).Element(2)
	require.NoError(t, err)
	value, err := elem.(*IntegerObject).Uint()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), value)

	_, err = obj.(*ArrayObject).Element(4)
	require.ErrorAs(t, err, &notFound)
}

func TestBitfieldObject_Value(t *testing.T) {
	params := ordereddict.NewDict().
		Set(ParamBaseType, uintTemplate(t, 4)).
		Set(ParamStartBit, uint64(4)).
		Set(ParamEndBit, uint64(8))
	bf, err := NewObjectTemplate(BitfieldKind{}, "", params)
	require.NoError(t, err)

	size, err := bf.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size)

	l := layer.NewBufferLayer("buf", []byte{0xA5, 0x00, 0x00, 0x00})
	obj, err := bf.Construct(testContext(), ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	value, err := obj.(*BitfieldObject).Value()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xA), value)
}

func TestStringObject_TruncatesAtNUL(t *testing.T) {
	params := ordereddict.NewDict().Set(ParamCount, uint64(8))
	str, err := NewObjectTemplate(CharArrayKind{}, "", params)
	require.NoError(t, err)

	data := []byte{'h', 'e', 'l', 'l', 'o', 0, 'x', 'x'}
	l := layer.NewBufferLayer("buf", data)
	obj, err := str.Construct(testContext(), ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	value, err := obj.(*StringObject).String()
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestStructObject_MemberConstruction(t *testing.T) {
	members := ordereddict.NewDict().
		Set("pid", &Member{Offset: 0, Template: uintTemplate(t, 8)}).
		Set("flags", &Member{Offset: 8, Template: uintTemplate(t, 4)})
	tmpl := structTemplate(t, "proc", 16, members)

	data := make([]byte, 32)
	data[16] = 42 // pid at instance offset 16
	l := layer.NewBufferLayer("buf", data)

	obj, err := tmpl.Construct(testContext(), ObjectInfo{Layer: l, Offset: 16})
	require.NoError(t, err)
	structObj := obj.(*StructObject)

	assert.Equal(t, []string{"pid", "flags"}, structObj.MemberNames())
	assert.True(t, structObj.HasMember("pid"))
	assert.False(t, structObj.HasMember("nope"))

	pid, err := structObj.Member("pid")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), pid.Info().Offset)
	assert.Equal(t, "pid", pid.Info().Member)

	value, err := pid.(*IntegerObject).Uint()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value)

	var notFound *ChildNotFoundError
	_, err = structObj.Member("nope")
	require.ErrorAs(t, err, &notFound)
}

func TestErrorTaxonomyIsDistinguishable(t *testing.T) {
	members := ordereddict.NewDict().
		Set("a", &Member{Offset: 0, Template: uintTemplate(t, 4)})
	tmpl := structTemplate(t, "s", 4, members)

	// Structural errors are not lookup errors and vice versa.
	_, structural := tmpl.RelativeChildOffset("missing")
	_, lookup := NewReferenceTemplate("test!_GONE", mapResolver{}).Construct(testContext(), ObjectInfo{})

	var notFound *ChildNotFoundError
	assert.True(t, errors.As(structural, &notFound))
	assert.False(t, errors.As(lookup, &notFound))
}
