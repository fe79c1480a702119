package symbols

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/zeebo/xxh3"

	"github.com/marrow-forensics/marrow/internal/objects"
)

// Intermediate symbol file layout:
//
//	{
//	  "base_types": {"unsigned long": {"size": 4, "signed": false, "endian": "little"}, ...},
//	  "user_types": {
//	    "_LIST_ENTRY": {
//	      "size": 16,
//	      "fields": {
//	        "Flink": {"offset": 0, "type": {"kind": "pointer", "size": 8,
//	                  "subtype": {"kind": "struct", "name": "_LIST_ENTRY"}}},
//	        ...
//	      }
//	    }, ...
//	  }
//	}
//
// Type descriptors are recursive. kind is one of base, struct, pointer,
// array, bitfield or string. Declaration order of user_types and fields is
// preserved; it defines children() order on the resulting templates.

type parser struct {
	space *Space
	table *Table
}

func parseTable(space *Space, name string, data []byte) (*Table, error) {
	root := ordereddict.NewDict()
	if err := root.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parsing symbol resource: %w", err)
	}

	table := &Table{
		name:        name,
		fingerprint: xxh3.Hash(data),
		baseTypes:   make(map[string]objects.Template),
		structures:  make(map[string]objects.Template),
	}
	p := &parser{space: space, table: table}

	if baseTypes, ok := dictAt(root, "base_types"); ok {
		for _, typeName := range baseTypes.Keys() {
			desc, ok := dictAt(baseTypes, typeName)
			if !ok {
				return nil, fmt.Errorf("base type %q is not an object", typeName)
			}
			tmpl, err := p.baseType(typeName, desc)
			if err != nil {
				return nil, err
			}
			table.baseTypes[typeName] = tmpl
		}
	}

	userTypes, ok := dictAt(root, "user_types")
	if !ok {
		return table, nil
	}
	for _, structName := range userTypes.Keys() {
		desc, ok := dictAt(userTypes, structName)
		if !ok {
			return nil, fmt.Errorf("structure %q is not an object", structName)
		}
		tmpl, err := p.structure(structName, desc)
		if err != nil {
			return nil, err
		}
		table.structures[structName] = tmpl
		table.order = append(table.order, structName)
	}
	return table, nil
}

func (p *parser) baseType(name string, desc *ordereddict.Dict) (objects.Template, error) {
	size, err := uintAt(desc, "size")
	if err != nil {
		return nil, fmt.Errorf("base type %q: %w", name, err)
	}
	params := ordereddict.NewDict().
		Set(objects.ParamSize, size).
		Set(objects.ParamSigned, boolAt(desc, "signed")).
		Set(objects.ParamEndian, stringAt(desc, "endian"))
	tmpl, err := objects.NewObjectTemplate(objects.IntegerKind{}, name, params)
	if err != nil {
		return nil, fmt.Errorf("base type %q: %w", name, err)
	}
	return tmpl, nil
}

func (p *parser) structure(name string, desc *ordereddict.Dict) (objects.Template, error) {
	declaredSize := uint64(0)
	if raw, ok := desc.Get("size"); ok {
		size, err := toUint64(raw)
		if err != nil {
			return nil, fmt.Errorf("structure %q: size: %w", name, err)
		}
		declaredSize = size
	}

	members := ordereddict.NewDict()
	if fields, ok := dictAt(desc, "fields"); ok {
		for _, fieldName := range fields.Keys() {
			field, ok := dictAt(fields, fieldName)
			if !ok {
				return nil, fmt.Errorf("structure %q: field %q is not an object", name, fieldName)
			}
			offset, err := uintAt(field, "offset")
			if err != nil {
				return nil, fmt.Errorf("structure %q: field %q: %w", name, fieldName, err)
			}
			typeDesc, ok := dictAt(field, "type")
			if !ok {
				return nil, fmt.Errorf("structure %q: field %q has no type", name, fieldName)
			}
			fieldTmpl, err := p.typeDescriptor(typeDesc)
			if err != nil {
				return nil, fmt.Errorf("structure %q: field %q: %w", name, fieldName, err)
			}
			members.Set(fieldName, &objects.Member{Offset: offset, Template: fieldTmpl})
		}
	}

	kind := objects.Kind(objects.StructKind{})
	if override, ok := p.space.overrides[name]; ok {
		kind = override
	}
	params := ordereddict.NewDict().
		Set(objects.ParamSize, declaredSize).
		Set(objects.ParamMembers, members)
	tmpl, err := objects.NewObjectTemplate(kind, name, params)
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// typeDescriptor turns a recursive type reference into a template. A
// struct reference that names a structure already declared in this table
// binds directly; anything else becomes a deferred reference resolved
// through the space at construction time.
func (p *parser) typeDescriptor(desc *ordereddict.Dict) (objects.Template, error) {
	kind := stringAt(desc, "kind")
	switch kind {
	case "base":
		typeName := stringAt(desc, "name")
		tmpl, ok := p.table.baseTypes[typeName]
		if !ok {
			return nil, fmt.Errorf("unknown base type %q", typeName)
		}
		return tmpl, nil

	case "struct":
		structName := stringAt(desc, "name")
		if structName == "" {
			return nil, fmt.Errorf("struct reference without a name")
		}
		if tmpl, ok := p.table.structures[structName]; ok {
			return tmpl, nil
		}
		qualified := structName
		if !strings.Contains(structName, "!") {
			qualified = p.table.name + "!" + structName
		}
		return objects.NewReferenceTemplate(qualified, p.space), nil

	case "pointer":
		size := uint64(8)
		if raw, ok := desc.Get("size"); ok {
			s, err := toUint64(raw)
			if err != nil {
				return nil, fmt.Errorf("pointer size: %w", err)
			}
			size = s
		}
		subtypeDesc, ok := dictAt(desc, "subtype")
		if !ok {
			return nil, fmt.Errorf("pointer without a subtype")
		}
		subtype, err := p.typeDescriptor(subtypeDesc)
		if err != nil {
			return nil, err
		}
		params := ordereddict.NewDict().
			Set(objects.ParamSize, size).
			Set(objects.ParamEndian, stringAt(desc, "endian")).
			Set(objects.ParamSubtype, subtype)
		return objects.NewObjectTemplate(objects.PointerKind{}, "", params)

	case "array":
		count, err := uintAt(desc, "count")
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		subtypeDesc, ok := dictAt(desc, "subtype")
		if !ok {
			return nil, fmt.Errorf("array without a subtype")
		}
		subtype, err := p.typeDescriptor(subtypeDesc)
		if err != nil {
			return nil, err
		}
		params := ordereddict.NewDict().
			Set(objects.ParamCount, count).
			Set(objects.ParamSubtype, subtype)
		return objects.NewObjectTemplate(objects.ArrayKind{}, "", params)

	case "bitfield":
		baseName := stringAt(desc, "base_type")
		base, ok := p.table.baseTypes[baseName]
		if !ok {
			return nil, fmt.Errorf("bitfield over unknown base type %q", baseName)
		}
		start, err := uintAt(desc, "start_bit")
		if err != nil {
			return nil, fmt.Errorf("bitfield: %w", err)
		}
		end, err := uintAt(desc, "end_bit")
		if err != nil {
			return nil, fmt.Errorf("bitfield: %w", err)
		}
		params := ordereddict.NewDict().
			Set(objects.ParamBaseType, base).
			Set(objects.ParamStartBit, start).
			Set(objects.ParamEndBit, end)
		return objects.NewObjectTemplate(objects.BitfieldKind{}, "", params)

	case "string":
		count, err := uintAt(desc, "count")
		if err != nil {
			return nil, fmt.Errorf("string: %w", err)
		}
		params := ordereddict.NewDict().Set(objects.ParamCount, count)
		return objects.NewObjectTemplate(objects.CharArrayKind{}, "", params)

	default:
		return nil, fmt.Errorf("unknown type kind %q", kind)
	}
}

// JSON access helpers. The ordered dict preserves declaration order;
// values arrive as *ordereddict.Dict, json.Number, string or bool.

func dictAt(d *ordereddict.Dict, key string) (*ordereddict.Dict, bool) {
	raw, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := raw.(*ordereddict.Dict)
	return sub, ok
}

func stringAt(d *ordereddict.Dict, key string) string {
	raw, ok := d.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

func boolAt(d *ordereddict.Dict, key string) bool {
	raw, ok := d.Get(key)
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

func uintAt(d *ordereddict.Dict, key string) (uint64, error) {
	raw, ok := d.Get(key)
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	return toUint64(raw)
}

func toUint64(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %v", v)
		}
		return uint64(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("negative value %d", i)
		}
		return uint64(i), nil
	default:
		return 0, fmt.Errorf("value has type %T, want integer", raw)
	}
}
