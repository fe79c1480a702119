package winmem

import (
	"fmt"

	"github.com/marrow-forensics/marrow/internal/layer"
	"github.com/marrow-forensics/marrow/internal/objects"
	"github.com/marrow-forensics/marrow/internal/scanner"
)

const pageShift = 12

// VADWalker traverses a process's VAD tree in order and yields one scan
// region per descriptor, lazily: a node's children are only read when the
// scanner asks for the next region. It implements scanner.RegionSource.
//
// Node shape comes from the _MMVAD structure: LeftChild and RightChild
// pointers plus StartingVpn and EndingVpn page numbers. A region spans
// [StartingVpn << 12, (EndingVpn + 1) << 12).
type VADWalker struct {
	ctx       *objects.Context
	vad       objects.Template
	layer     layer.Layer
	layerName string

	stack []*objects.StructObject
	seen  map[uint64]struct{}
	err   error
}

// NewVADWalker builds a walker rooted at rootOffset (the address of the
// root _MMVAD node; zero yields no regions). layerName is the layer the
// tree lives in and the layer the emitted regions name.
func NewVADWalker(ctx *objects.Context, table, layerName string, rootOffset uint64) (*VADWalker, error) {
	l, err := ctx.Memory.Get(layerName)
	if err != nil {
		return nil, err
	}
	vad, err := ctx.Symbols.GetStructure(table + "!_MMVAD")
	if err != nil {
		return nil, err
	}
	w := &VADWalker{
		ctx:       ctx,
		vad:       vad,
		layer:     l,
		layerName: layerName,
		seen:      make(map[uint64]struct{}),
	}
	w.pushLeftSpine(rootOffset)
	return w, w.err
}

// Err reports the first read failure encountered during the walk. The
// walker stops yielding at that point.
func (w *VADWalker) Err() error { return w.err }

func (w *VADWalker) pushLeftSpine(offset uint64) {
	for offset != 0 && w.err == nil {
		if _, revisited := w.seen[offset]; revisited {
			// Corrupt trees terminate instead of looping.
			return
		}
		w.seen[offset] = struct{}{}

		obj, err := w.vad.Construct(w.ctx, objects.ObjectInfo{Layer: w.layer, Offset: offset})
		if err != nil {
			w.err = err
			return
		}
		node, ok := obj.(*objects.StructObject)
		if !ok {
			w.err = fmt.Errorf("_MMVAD constructed %T, want struct", obj)
			return
		}
		w.stack = append(w.stack, node)

		offset, err = w.childOffset(node, "LeftChild")
		if err != nil {
			w.err = err
			return
		}
	}
}

func (w *VADWalker) childOffset(node *objects.StructObject, name string) (uint64, error) {
	member, err := node.Member(name)
	if err != nil {
		return 0, err
	}
	ptr, ok := member.(*objects.PointerObject)
	if !ok {
		return 0, fmt.Errorf("%s constructed %T, want pointer", name, member)
	}
	return ptr.Uint()
}

func (w *VADWalker) vpn(node *objects.StructObject, name string) (uint64, error) {
	member, err := node.Member(name)
	if err != nil {
		return 0, err
	}
	intObj, ok := member.(interface{ Uint() (uint64, error) })
	if !ok {
		return 0, fmt.Errorf("%s constructed %T, want integer", name, member)
	}
	return intObj.Uint()
}

// Next implements scanner.RegionSource.
func (w *VADWalker) Next() (scanner.Region, bool) {
	if w.err != nil || len(w.stack) == 0 {
		return scanner.Region{}, false
	}
	node := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	start, err := w.vpn(node, "StartingVpn")
	if err != nil {
		w.err = err
		return scanner.Region{}, false
	}
	end, err := w.vpn(node, "EndingVpn")
	if err != nil {
		w.err = err
		return scanner.Region{}, false
	}

	right, err := w.childOffset(node, "RightChild")
	if err != nil {
		w.err = err
		return scanner.Region{}, false
	}
	w.pushLeftSpine(right)
	if w.err != nil {
		return scanner.Region{}, false
	}

	return scanner.Region{
		LayerName: w.layerName,
		Start:     start << pageShift,
		End:       (end + 1) << pageShift,
	}, true
}
