package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marrow-forensics/marrow/internal/layer"
	"github.com/marrow-forensics/marrow/internal/objects"
	"github.com/marrow-forensics/marrow/internal/testutil"
)

func loadedSpace(t *testing.T) *Space {
	t.Helper()
	space := NewSpace(testutil.Logger(t))
	_, err := space.LoadTable("nt", []byte(testutil.SymbolsJSON))
	require.NoError(t, err)
	return space
}

func TestLoadTable_StructuresResolvable(t *testing.T) {
	space := loadedSpace(t)

	for _, name := range []string{"_LIST_ENTRY", "_MMVAD", "_EPROCESS"} {
		tmpl, err := space.GetStructure("nt!" + name)
		require.NoError(t, err)
		assert.Equal(t, name, tmpl.StructureName())
	}

	table, err := space.Table("nt")
	require.NoError(t, err)
	assert.Equal(t, []string{"_LIST_ENTRY", "_MMVAD", "_EPROCESS"}, table.Structures(),
		"declaration order is preserved")
	assert.NotZero(t, table.Fingerprint())
}

func TestLoadTable_SizesAndOffsets(t *testing.T) {
	space := loadedSpace(t)

	eprocess, err := space.GetStructure("nt!_EPROCESS")
	require.NoError(t, err)

	size, err := eprocess.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(96), size)

	offset, err := eprocess.RelativeChildOffset("ActiveProcessLinks")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), offset)

	offset, err = eprocess.RelativeChildOffset("VadRoot")
	require.NoError(t, err)
	assert.Equal(t, uint64(48), offset)
}

func TestLoadTable_FingerprintStable(t *testing.T) {
	a := NewSpace(testutil.Logger(t))
	ta, err := a.LoadTable("nt", []byte(testutil.SymbolsJSON))
	require.NoError(t, err)

	b := NewSpace(testutil.Logger(t))
	tb, err := b.LoadTable("other", []byte(testutil.SymbolsJSON))
	require.NoError(t, err)

	assert.Equal(t, ta.Fingerprint(), tb.Fingerprint())
}

func TestLoadTable_DuplicateName(t *testing.T) {
	space := loadedSpace(t)
	_, err := space.LoadTable("nt", []byte(testutil.SymbolsJSON))
	require.Error(t, err)
}

func TestTables_LoadOrder(t *testing.T) {
	space := NewSpace(testutil.Logger(t))
	_, err := space.LoadTable("zz", []byte(testutil.SymbolsJSON))
	require.NoError(t, err)
	_, err = space.LoadTable("aa", []byte(testutil.SymbolsJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"zz", "aa"}, space.Tables())
}

func TestGetStructure_LookupErrors(t *testing.T) {
	space := loadedSpace(t)

	_, err := space.GetStructure("nt!_NOPE")
	require.ErrorIs(t, err, ErrNotFound)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "_NOPE", notFound.Structure)

	_, err = space.GetStructure("ghost!_EPROCESS")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = space.GetStructure("unqualified")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound, "malformed names are not lookup misses")
}

func TestSelfReference_ResolvesLazily(t *testing.T) {
	space := loadedSpace(t)

	// _LIST_ENTRY.Flink points at _LIST_ENTRY itself; the member was a
	// deferred reference at declaration time and must resolve now.
	listEntry, err := space.GetStructure("nt!_LIST_ENTRY")
	require.NoError(t, err)

	children := listEntry.Children()
	require.Len(t, children, 2)
	sub := children[0].Children() // pointer's subtype
	require.Len(t, sub, 1)

	size, err := sub[0].Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), size, "deferred self reference resolves to the real structure")
}

func TestDeferredReference_LateRegistration(t *testing.T) {
	space := NewSpace(testutil.Logger(t))

	resource := `{
	  "base_types": {"unsigned long long": {"size": 8, "signed": false, "endian": "little"}},
	  "user_types": {
	    "_WRAPPER": {
	      "size": 8,
	      "fields": {
	        "Next": {"offset": 0, "type": {"kind": "pointer", "size": 8,
	                 "subtype": {"kind": "struct", "name": "other!_LATER"}}}
	      }
	    }
	  }
	}`
	_, err := space.LoadTable("nt", []byte(resource))
	require.NoError(t, err)

	wrapper, err := space.GetStructure("nt!_WRAPPER")
	require.NoError(t, err)

	l := layer.NewBufferLayer("buf", make([]byte, 64))
	ctx := &objects.Context{Symbols: space, Log: testutil.Logger(t)}

	obj, err := wrapper.Construct(ctx, objects.ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	ptr, err := obj.(*objects.StructObject).Member("Next")
	require.NoError(t, err)

	// Dereferencing resolves other!_LATER, which does not exist yet.
	_, err = ptr.(*objects.PointerObject).Dereference()
	require.ErrorIs(t, err, ErrNotFound)

	// Registering the table afterwards makes the next construction
	// succeed; resolution is per call, never cached.
	later := `{
	  "base_types": {"unsigned long long": {"size": 8, "signed": false, "endian": "little"}},
	  "user_types": {
	    "_LATER": {
	      "size": 8,
	      "fields": {"Value": {"offset": 0, "type": {"kind": "base", "name": "unsigned long long"}}}
	    }
	  }
	}`
	_, err = space.LoadTable("other", []byte(later))
	require.NoError(t, err)

	target, err := ptr.(*objects.PointerObject).Dereference()
	require.NoError(t, err)
	assert.IsType(t, &objects.StructObject{}, target)
}

// wideString is a stand-in override kind used to check that overrides
// survive load order in both directions.
type wideString struct {
	objects.StructKind
}

func TestSetTypeOverride_BeforeAndAfterLoad(t *testing.T) {
	l := layer.NewBufferLayer("buf", make([]byte, 64))

	// Override registered before load.
	before := NewSpace(testutil.Logger(t))
	require.NoError(t, before.SetTypeOverride("_LIST_ENTRY", wideString{}))
	_, err := before.LoadTable("nt", []byte(testutil.SymbolsJSON))
	require.NoError(t, err)

	tmpl, err := before.GetStructure("nt!_LIST_ENTRY")
	require.NoError(t, err)
	assert.IsType(t, wideString{}, tmpl.(*objects.ObjectTemplate).Kind())

	// Override registered after load rekindles existing templates.
	after := loadedSpace(t)
	tmpl, err = after.GetStructure("nt!_LIST_ENTRY")
	require.NoError(t, err)
	assert.IsType(t, objects.StructKind{}, tmpl.(*objects.ObjectTemplate).Kind())

	require.NoError(t, after.SetTypeOverride("_LIST_ENTRY", wideString{}))
	assert.IsType(t, wideString{}, tmpl.(*objects.ObjectTemplate).Kind(),
		"the shared template is updated in place")

	// Shape is still data-driven under the override.
	obj, err := tmpl.Construct(&objects.Context{Symbols: after, Log: testutil.Logger(t)},
		objects.ObjectInfo{Layer: l, Offset: 0})
	require.NoError(t, err)
	_, err = obj.(*objects.StructObject).Member("Flink")
	require.NoError(t, err)
}

func TestLoadTable_MalformedResources(t *testing.T) {
	tests := []struct {
		name     string
		resource string
	}{
		{"invalid json", `{`},
		{"unknown kind", `{"user_types": {"_X": {"size": 4, "fields": {"f": {"offset": 0, "type": {"kind": "quux"}}}}}}`},
		{"unknown base type", `{"user_types": {"_X": {"size": 4, "fields": {"f": {"offset": 0, "type": {"kind": "base", "name": "ghost"}}}}}}`},
		{"field without type", `{"user_types": {"_X": {"size": 4, "fields": {"f": {"offset": 0}}}}}`},
		{"bad integer width", `{"base_types": {"odd": {"size": 3}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			space := NewSpace(testutil.Logger(t))
			_, err := space.LoadTable("nt", []byte(tt.resource))
			require.Error(t, err)
		})
	}
}

func TestTableGet_IsResolvable(t *testing.T) {
	space := loadedSpace(t)
	table, err := space.Table("nt")
	require.NoError(t, err)

	tmpl, ok := table.Get("_MMVAD")
	require.True(t, ok)

	// The same template instance is returned through both lookup paths,
	// so a ReplaceChild through one is seen through the other.
	viaSpace, err := space.GetStructure("nt!_MMVAD")
	require.NoError(t, err)
	assert.Same(t, tmpl, viaSpace)
}
