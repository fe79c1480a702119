package winmem

import (
	"fmt"

	"github.com/marrow-forensics/marrow/internal/objects"
)

// Process wraps a bound _EPROCESS with typed accessors.
type Process struct {
	obj *objects.StructObject
}

// Offset is the address the _EPROCESS was found at.
func (p *Process) Offset() uint64 { return p.obj.Info().Offset }

// Object exposes the underlying structure for untyped member access.
func (p *Process) Object() *objects.StructObject { return p.obj }

func (p *Process) memberUint(name string) (uint64, error) {
	member, err := p.obj.Member(name)
	if err != nil {
		return 0, err
	}
	intObj, ok := member.(interface{ Uint() (uint64, error) })
	if !ok {
		return 0, fmt.Errorf("member %q constructed %T, want integer", name, member)
	}
	return intObj.Uint()
}

// PID returns UniqueProcessId.
func (p *Process) PID() (uint64, error) {
	return p.memberUint("UniqueProcessId")
}

// PPID returns InheritedFromUniqueProcessId.
func (p *Process) PPID() (uint64, error) {
	return p.memberUint("InheritedFromUniqueProcessId")
}

// Name returns the short image file name.
func (p *Process) Name() (string, error) {
	member, err := p.obj.Member("ImageFileName")
	if err != nil {
		return "", err
	}
	str, ok := member.(*objects.StringObject)
	if !ok {
		return "", fmt.Errorf("ImageFileName constructed %T, want string", member)
	}
	return str.String()
}

// VadRootOffset returns the address of the root VAD node, zero when the
// process has no VAD tree.
func (p *Process) VadRootOffset() (uint64, error) {
	member, err := p.obj.Member("VadRoot")
	if err != nil {
		return 0, err
	}
	ptr, ok := member.(*objects.PointerObject)
	if !ok {
		return 0, fmt.Errorf("VadRoot constructed %T, want pointer", member)
	}
	return ptr.Uint()
}

// ListProcesses walks the ActiveProcessLinks ring anchored at the list
// head found at listHeadOffset (the PsActiveProcessHead symbol) and passes
// each process to visit, stopping early when visit returns false.
//
// table is the symbol table holding _EPROCESS and _LIST_ENTRY; the
// _LIST_ENTRY override must be registered on the space first.
func ListProcesses(ctx *objects.Context, table, layerName string, listHeadOffset uint64, visit func(*Process) (bool, error)) error {
	l, err := ctx.Memory.Get(layerName)
	if err != nil {
		return err
	}
	eprocess, err := ctx.Symbols.GetStructure(table + "!_EPROCESS")
	if err != nil {
		return err
	}
	listEntry, err := ctx.Symbols.GetStructure(table + "!_LIST_ENTRY")
	if err != nil {
		return err
	}

	head, err := listEntry.Construct(ctx, objects.ObjectInfo{Layer: l, Offset: listHeadOffset})
	if err != nil {
		return err
	}
	headEntry, ok := head.(*ListEntryObject)
	if !ok {
		return fmt.Errorf("_LIST_ENTRY constructed %T; is the override registered?", head)
	}

	return headEntry.Traverse(eprocess, "ActiveProcessLinks", func(obj objects.Object) (bool, error) {
		structObj, ok := obj.(*objects.StructObject)
		if !ok {
			return false, fmt.Errorf("_EPROCESS constructed %T, want struct", obj)
		}
		return visit(&Process{obj: structObj})
	})
}
