// Package winmem layers Windows-specific behavior on top of data-driven
// structure shapes: doubly-linked list traversal, process listing and VAD
// tree walking. Shapes still come entirely from the symbol table; this
// package only attaches richer object implementations and walkers.
package winmem

import (
	"fmt"

	"github.com/Velocidex/ordereddict"

	"github.com/marrow-forensics/marrow/internal/objects"
	"github.com/marrow-forensics/marrow/internal/symbols"
)

// RegisterOverrides attaches the richer kinds this package provides to
// their structure names. Call once per symbol space, before or after the
// table loads.
func RegisterOverrides(space *symbols.Space) error {
	return space.SetTypeOverride("_LIST_ENTRY", ListEntryKind{})
}

// ListEntryKind is a struct kind whose objects know how to walk the Flink
// ring they are part of. The shape (Flink/Blink offsets) stays data-driven.
type ListEntryKind struct {
	objects.StructKind
}

// New implements objects.Kind.
func (k ListEntryKind) New(ctx *objects.Context, info objects.ObjectInfo, params *ordereddict.Dict) (objects.Object, error) {
	return &ListEntryObject{
		StructObject: objects.StructObject{BaseObject: objects.NewBaseObject(ctx, info, "_LIST_ENTRY", params)},
	}, nil
}

// ListEntryObject is a _LIST_ENTRY embedded in some containing structure.
type ListEntryObject struct {
	objects.StructObject
}

func (o *ListEntryObject) flink() (uint64, error) {
	member, err := o.Member("Flink")
	if err != nil {
		return 0, err
	}
	ptr, ok := member.(*objects.PointerObject)
	if !ok {
		return 0, fmt.Errorf("Flink constructed %T, want pointer", member)
	}
	return ptr.Uint()
}

// Traverse walks the Flink ring this entry belongs to, constructing the
// containing structure for every other entry and passing it to visit.
// containing is the template of the structure the list links, memberName
// the name of its _LIST_ENTRY member; each containing object sits at the
// entry address minus that member's relative offset.
//
// The walk stops at the starting entry, at a NULL link, at a revisited
// address (corrupt rings terminate instead of looping), or when visit
// returns false.
func (o *ListEntryObject) Traverse(containing objects.Template, memberName string, visit func(objects.Object) (bool, error)) error {
	reloff, err := containing.RelativeChildOffset(memberName)
	if err != nil {
		return err
	}

	start := o.Info().Offset
	seen := map[uint64]struct{}{start: {}}
	entry := o

	for {
		next, err := entry.flink()
		if err != nil {
			return err
		}
		if next == 0 || next == start {
			return nil
		}
		if _, revisited := seen[next]; revisited {
			return nil
		}
		seen[next] = struct{}{}

		// Back-offsetting below the member offset would wrap around.
		if next < reloff {
			return fmt.Errorf("list entry at %#x sits before the %q member offset %#x", next, memberName, reloff)
		}

		obj, err := containing.Construct(o.Context(), objects.ObjectInfo{
			Layer:  o.Info().Layer,
			Offset: next - reloff,
		})
		if err != nil {
			return err
		}
		cont, err := visit(obj)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}

		holder, ok := obj.(interface {
			Member(string) (objects.Object, error)
		})
		if !ok {
			return fmt.Errorf("containing object %T has no members", obj)
		}
		member, err := holder.Member(memberName)
		if err != nil {
			return err
		}
		entry, ok = member.(*ListEntryObject)
		if !ok {
			return fmt.Errorf("member %q constructed %T, want *ListEntryObject; is the _LIST_ENTRY override registered?",
				memberName, member)
		}
	}
}
