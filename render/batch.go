package render

import (
	"sort"

	"github.com/kungfusheep/dualview/bounds"
)

// Fragment is a target-specific drawing, opaque to the compositor.
type Fragment any

// Layer is one fragment at its z position.
type Layer struct {
	Z        float64
	Fragment Fragment
}

// Batch is everything one node drew: its fragments in ascending, unique z
// order, and the rectangle they occupy. Empty batches occupy nothing and do
// not advance the flow position of following siblings.
type Batch struct {
	Layers []Layer
	Rect   bounds.Rect
	Empty  bool
}

var emptyBatch = &Batch{Empty: true}

// Single returns a batch holding one fragment.
func Single(z float64, f Fragment, r bounds.Rect) *Batch {
	return &Batch{Layers: []Layer{{Z: z, Fragment: f}}, Rect: r}
}

// Fragments returns the fragments bottom to top.
func (b *Batch) Fragments() []Fragment {
	out := make([]Fragment, len(b.Layers))
	for i, l := range b.Layers {
		out[i] = l.Fragment
	}
	return out
}

// include grows the occupied rectangle to cover r.
func (b *Batch) include(r bounds.Rect) {
	if b.Empty {
		b.Rect = r
		b.Empty = false
		return
	}
	b.Rect = b.Rect.Union(r)
}

// merge adds o's layers and rectangle. Layers landing on a z already taken
// are nudged upwards by the tie epsilon, so later siblings stack above
// earlier ones.
func (b *Batch) merge(o *Batch) {
	if o.Empty {
		return
	}
	for _, l := range o.Layers {
		z := l.Z
		for b.hasZ(z) {
			z += bounds.TieEpsilon
		}
		i := sort.Search(len(b.Layers), func(i int) bool { return b.Layers[i].Z >= z })
		b.Layers = append(b.Layers, Layer{})
		copy(b.Layers[i+1:], b.Layers[i:])
		b.Layers[i] = Layer{Z: z, Fragment: l.Fragment}
	}
	b.include(o.Rect)
}

func (b *Batch) hasZ(z float64) bool {
	i := sort.Search(len(b.Layers), func(i int) bool { return b.Layers[i].Z >= z })
	return i < len(b.Layers) && b.Layers[i].Z == z
}
