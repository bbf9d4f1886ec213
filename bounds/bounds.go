// Package bounds turns symbolic position and size specifications into
// absolute bounding boxes.
//
// Resolution is a pure function of three inputs: the node's Spec, the parent
// Context and the rectangle occupied by the immediately preceding sibling.
// Nothing else is consulted, which is what lets the compositor cache results
// keyed on exactly those inputs.
package bounds

import (
	"math"
	"reflect"
)

// Z-order steps. Each nesting level sits DepthEpsilon above its parent unless
// Spec.Z overrides it; siblings that land on the same z are separated by
// TieEpsilon in declaration order.
const (
	DepthEpsilon = 1e-3
	TieEpsilon   = 1e-6
)

// Mode selects how a positional measurement is interpreted on one axis.
type Mode uint8

const (
	Relative       Mode = iota // offset from the flow position (default)
	LocalAbsolute              // offset from the parent origin
	GlobalAbsolute             // the measurement is the final coordinate
)

func (m Mode) String() string {
	switch m {
	case Relative:
		return "relative"
	case LocalAbsolute:
		return "local-absolute"
	case GlobalAbsolute:
		return "global-absolute"
	default:
		return "unknown"
	}
}

// Direction is a container's child flow.
type Direction uint8

const (
	DirUnset   Direction = iota // every child starts at the parent origin
	Horizontal                  // children accumulate left to right
	Vertical                    // children accumulate top to bottom
	Overlap                     // every child starts at the parent origin, on purpose
)

func (d Direction) String() string {
	switch d {
	case DirUnset:
		return "unset"
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Overlap:
		return "overlap"
	default:
		return "unknown"
	}
}

// SubLayout is the child-flow directive a container declares.
type SubLayout struct {
	Direction Direction
	Gap       Measure
	Ext       any // custom extension data, opaque to the resolver
}

// Equal reports structural equality.
func (l SubLayout) Equal(o SubLayout) bool {
	if l.Direction != o.Direction || l.Gap != o.Gap {
		return false
	}
	return reflect.DeepEqual(l.Ext, o.Ext)
}

// Extent is an optional dimension. The zero value is unknown, meaning
// "intrinsic, determined by content".
type Extent struct {
	V     float64
	Known bool
}

// Known returns a known extent.
func Known(v float64) Extent { return Extent{V: v, Known: true} }

// Or returns e when known, otherwise fallback.
func (e Extent) Or(fallback Extent) Extent {
	if e.Known {
		return e
	}
	return fallback
}

// Box is a resolved bounding box. X and Y locate the anchor point; the
// top-left corner is X-AnchorX*W, Y-AnchorY*H once the size is known.
type Box struct {
	X, Y, Z          float64
	AnchorX, AnchorY float64
	W, H             Extent
}

// Origin returns the top-left corner, ignoring anchors on unknown axes.
func (b Box) Origin() (x, y float64) {
	x, y = b.X, b.Y
	if b.W.Known {
		x -= b.AnchorX * b.W.V
	}
	if b.H.Known {
		y -= b.AnchorY * b.H.V
	}
	return x, y
}

// Place returns the rectangle the box occupies at the given size.
func (b Box) Place(w, h float64) Rect {
	return Rect{X: b.X - b.AnchorX*w, Y: b.Y - b.AnchorY*h, W: w, H: h}
}

// Rect is an occupied rectangle in absolute units.
type Rect struct {
	X, Y, W, H float64
}

// Right returns the trailing horizontal edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the trailing vertical edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Union returns the smallest rectangle containing both.
func (r Rect) Union(o Rect) Rect {
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.Right(), o.Right())
	y1 := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// CellSize is the number of pixel-like units in one measurement unit, per
// axis. A terminal cell is typically 8x16; a graphics surface uses 1x1.
type CellSize struct {
	W, H float64
}

// Context is everything a child needs from its parent to resolve.
type Context struct {
	Box    Box
	Layout SubLayout
	Unit   CellSize
}

// Equal reports structural equality.
func (c Context) Equal(o Context) bool {
	return c.Box == o.Box && c.Unit == o.Unit && c.Layout.Equal(o.Layout)
}

// Spec is a symbolic bounds description.
type Spec struct {
	ModeX, ModeY     Mode
	X, Y             Measure
	Width, Height    Measure
	AnchorX, AnchorY float64

	// Z, when set, replaces the per-depth epsilon as the offset from the
	// parent's z.
	Z *float64
}

// ZOffset is a helper for filling Spec.Z.
func ZOffset(v float64) *float64 { return &v }
