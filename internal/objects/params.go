package objects

import (
	"encoding/binary"
	"fmt"

	"github.com/Velocidex/ordereddict"
)

// Well-known parameter keys shared by the generic kinds.
const (
	ParamSize     = "size"
	ParamSigned   = "signed"
	ParamEndian   = "endian"
	ParamSubtype  = "subtype"
	ParamCount    = "count"
	ParamMembers  = "members"
	ParamBaseType = "base_type"
	ParamStartBit = "start_bit"
	ParamEndBit   = "end_bit"
)

func paramUint64(params *ordereddict.Dict, key string) (uint64, error) {
	raw, ok := params.Get(key)
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("parameter %q is negative", key)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("parameter %q is negative", key)
		}
		return uint64(v), nil
	case float64:
		// JSON-decoded numbers arrive as float64.
		if v < 0 {
			return 0, fmt.Errorf("parameter %q is negative", key)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("parameter %q has type %T, want integer", key, raw)
	}
}

func paramBool(params *ordereddict.Dict, key string) bool {
	raw, ok := params.Get(key)
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

func paramByteOrder(params *ordereddict.Dict) (binary.ByteOrder, error) {
	raw, ok := params.Get(ParamEndian)
	if !ok {
		return binary.LittleEndian, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("parameter %q has type %T, want string", ParamEndian, raw)
	}
	switch s {
	case "", "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown endianness %q", s)
	}
}

func paramTemplate(params *ordereddict.Dict, key string) (Template, error) {
	raw, ok := params.Get(key)
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", key)
	}
	t, ok := raw.(Template)
	if !ok {
		return nil, fmt.Errorf("parameter %q has type %T, want Template", key, raw)
	}
	return t, nil
}

func paramMembers(params *ordereddict.Dict) (*ordereddict.Dict, error) {
	raw, ok := params.Get(ParamMembers)
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", ParamMembers)
	}
	members, ok := raw.(*ordereddict.Dict)
	if !ok {
		return nil, fmt.Errorf("parameter %q has type %T, want *ordereddict.Dict", ParamMembers, raw)
	}
	return members, nil
}

func memberAt(members *ordereddict.Dict, name string) (*Member, bool) {
	raw, ok := members.Get(name)
	if !ok {
		return nil, false
	}
	m, ok := raw.(*Member)
	return m, ok
}
