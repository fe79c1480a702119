package testutil

import (
	"encoding/binary"
)

// SymbolsJSON is a small intermediate symbol resource covering the kinds
// the framework supports: base types, self-referential structures
// (_LIST_ENTRY, _MMVAD), an embedded structure member, a string member
// and a bitfield.
const SymbolsJSON = `{
  "base_types": {
    "unsigned char": {"size": 1, "signed": false, "endian": "little"},
    "unsigned short": {"size": 2, "signed": false, "endian": "little"},
    "long": {"size": 4, "signed": true, "endian": "little"},
    "unsigned long": {"size": 4, "signed": false, "endian": "little"},
    "unsigned long long": {"size": 8, "signed": false, "endian": "little"}
  },
  "user_types": {
    "_LIST_ENTRY": {
      "size": 16,
      "fields": {
        "Flink": {"offset": 0, "type": {"kind": "pointer", "size": 8,
                  "subtype": {"kind": "struct", "name": "_LIST_ENTRY"}}},
        "Blink": {"offset": 8, "type": {"kind": "pointer", "size": 8,
                  "subtype": {"kind": "struct", "name": "_LIST_ENTRY"}}}
      }
    },
    "_MMVAD": {
      "size": 32,
      "fields": {
        "StartingVpn": {"offset": 0, "type": {"kind": "base", "name": "unsigned long long"}},
        "EndingVpn": {"offset": 8, "type": {"kind": "base", "name": "unsigned long long"}},
        "LeftChild": {"offset": 16, "type": {"kind": "pointer", "size": 8,
                      "subtype": {"kind": "struct", "name": "_MMVAD"}}},
        "RightChild": {"offset": 24, "type": {"kind": "pointer", "size": 8,
                       "subtype": {"kind": "struct", "name": "_MMVAD"}}}
      }
    },
    "_EPROCESS": {
      "size": 96,
      "fields": {
        "UniqueProcessId": {"offset": 0, "type": {"kind": "base", "name": "unsigned long long"}},
        "InheritedFromUniqueProcessId": {"offset": 8, "type": {"kind": "base", "name": "unsigned long long"}},
        "ActiveProcessLinks": {"offset": 16, "type": {"kind": "struct", "name": "_LIST_ENTRY"}},
        "ImageFileName": {"offset": 32, "type": {"kind": "string", "count": 16}},
        "VadRoot": {"offset": 48, "type": {"kind": "pointer", "size": 8,
                    "subtype": {"kind": "struct", "name": "_MMVAD"}}},
        "Flags": {"offset": 56, "type": {"kind": "bitfield", "base_type": "unsigned long",
                  "start_bit": 0, "end_bit": 4}}
      }
    }
  }
}`

// PutUint64 writes a little-endian value into an image buffer.
func PutUint64(image []byte, offset uint64, value uint64) {
	binary.LittleEndian.PutUint64(image[offset:offset+8], value)
}

// PutUint32 writes a little-endian value into an image buffer.
func PutUint32(image []byte, offset uint64, value uint32) {
	binary.LittleEndian.PutUint32(image[offset:offset+4], value)
}

// PutString writes a NUL-terminated string into an image buffer.
func PutString(image []byte, offset uint64, s string) {
	copy(image[offset:], s)
	image[offset+uint64(len(s))] = 0
}
