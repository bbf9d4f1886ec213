package view

import "github.com/kungfusheep/dualview/bounds"

// Constructors for the common cases. They return concrete pointers so
// callers can keep setting fields.

// NewBox returns a box flowing in dir with the given children.
func NewBox(dir bounds.Direction, children ...Node) *Box {
	return &Box{Layout: bounds.SubLayout{Direction: dir}, Children: children}
}

// Row is a horizontal box.
func Row(children ...Node) *Box { return NewBox(bounds.Horizontal, children...) }

// Col is a vertical box.
func Col(children ...Node) *Box { return NewBox(bounds.Vertical, children...) }

// Stack is an overlapping box.
func Stack(children ...Node) *Box { return NewBox(bounds.Overlap, children...) }

// NewText returns a text node.
func NewText(s string) *Text { return &Text{Content: s} }

// Gap sets the gap between children.
func (b *Box) Gap(m bounds.Measure) *Box {
	b.Layout.Gap = m
	return b
}

// At sets the bounds spec of any node and returns it.
func At[N Node](n N, spec bounds.Spec) N {
	n.Attributes().Bounds = &spec
	return n
}

// Keyed sets the key of any node and returns it.
func Keyed[N Node](n N, key string) N {
	n.Attributes().Key = key
	return n
}

// Sized is At with only width and height set.
func Sized[N Node](n N, w, h bounds.Measure) N {
	return At(n, bounds.Spec{Width: w, Height: h})
}
