// Package view defines the declarative node tree that components produce and
// the compositor walks.
//
// Nodes are a closed set of variants. Each variant is a pointer type so that
// node identity is stable across frames, which the render cache relies on.
package view

import (
	"image"
	"image/color"

	"github.com/kungfusheep/dualview/bounds"
	"github.com/lucasb-eyer/go-colorful"
)

// Kind tags a node variant.
type Kind uint8

const (
	KindBox Kind = iota
	KindText
	KindFill
	KindBorder
	KindSource
	KindSurface
	KindMount
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindText:
		return "text"
	case KindFill:
		return "fill"
	case KindBorder:
		return "border"
	case KindSource:
		return "source"
	case KindSurface:
		return "surface"
	case KindMount:
		return "mount"
	default:
		return "unknown"
	}
}

// Node is any drawable description.
type Node interface {
	Kind() Kind
	Attributes() *Attrs
}

// Attrs holds the attributes shared by every node.
type Attrs struct {
	Bounds *bounds.Spec
	Hidden bool
	Key    string
}

// Attributes implements Node for every embedding type.
func (a *Attrs) Attributes() *Attrs { return a }

// Box is a container. Its children are laid out according to Layout.
type Box struct {
	Attrs
	Layout   bounds.SubLayout
	Children []Node
}

func (*Box) Kind() Kind { return KindBox }

// WrapMode controls how text breaks across lines.
type WrapMode uint8

const (
	WrapNone WrapMode = iota // lines are clipped
	WrapChar                 // break at any grapheme
	WrapWord                 // break at whitespace, falling back to WrapChar for long words
)

// Align is horizontal text alignment within the node's width.
type Align uint8

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Text is a run of text. Newlines start a new line.
type Text struct {
	Attrs
	Content    string
	Wrap       WrapMode
	Align      Align
	Color      color.Color // nil means the target default
	Background color.Color // nil means inherit what is beneath
	Bold       bool
	Italic     bool
	Underline  bool
}

func (*Text) Kind() Kind { return KindText }

// Fill is a solid-color rectangle.
type Fill struct {
	Attrs
	Color color.Color
}

func (*Fill) Kind() Kind { return KindFill }

// BorderStyle selects the glyph set for a Border.
type BorderStyle uint8

const (
	BorderSingle BorderStyle = iota
	BorderRounded
	BorderDouble
	BorderThick
	BorderHidden
)

// Border is a rectangular outline with an optional title on its top edge.
type Border struct {
	Attrs
	Style BorderStyle
	Color color.Color
	Title string
}

func (*Border) Kind() Kind { return KindBorder }

// Source is an image, loaded through the asset cache under Key.
//
// Raster sources provide Load. Vector sources set Vector and provide
// Rasterize, which is asked for an image at the target pixel size.
type Source struct {
	Attrs
	Asset     string
	Vector    bool
	Load      func() (image.Image, error)
	Rasterize func(w, h int) (image.Image, error)
}

func (*Source) Kind() Kind { return KindSource }

// Surface targets.
const (
	TargetTerminal = "terminal"
	TargetCanvas   = "canvas"
)

// Surface is an area owned by something outside the tree. Backends draw
// Content only when Target names them; other targets reserve the area.
type Surface struct {
	Attrs
	Target  string
	Content any
}

func (*Surface) Kind() Kind { return KindSurface }

// Mount is a slot whose content is supplied by something else, typically a
// component instance. The compositor renders Content in the mount's place.
type Mount interface {
	Node
	Content() Node
}

// Hex parses a "#rrggbb" color. Invalid input yields nil, the target default.
func Hex(s string) color.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return nil
	}
	return c
}

// Walk calls fn for node and every descendant in document order, descending
// through mounts. Returning false from fn skips that node's children.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Box:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case Mount:
		Walk(n.Content(), fn)
	}
}
