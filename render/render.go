// Package render walks a view tree, resolves every node's bounds, asks a
// target backend to draw the leaves and merges the results into z-ordered
// batches. Batches are cached per node so an unchanged subtree costs one map
// lookup per frame.
package render

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/kungfusheep/dualview/bounds"
	"github.com/kungfusheep/dualview/view"
)

// ErrNoDimension is returned when a node that needs a size has none and
// nothing to infer one from.
var ErrNoDimension = errors.New("no dimension to infer size from")

// Size is a measured extent.
type Size struct {
	W, H float64
}

// Frame is what a backend receives for one leaf.
type Frame struct {
	// Box is the resolved box. For kinds that need a size, W and H are
	// always known; for text they are known only when the node's Spec set them.
	Box bounds.Box
	// MaxW bounds the text width when Box.W is unknown: the room left in the
	// parent, if the parent has a width.
	MaxW bounds.Extent
	// Node is the leaf being drawn.
	Node view.Node
	// Invalidate marks the node for re-rendering. Backends call it when an
	// asynchronous resource the node depends on becomes available. Safe from
	// any goroutine.
	Invalidate func()
}

// Backend draws leaves for one target.
type Backend interface {
	RootDimensions() (w, h float64)
	CellSize() bounds.CellSize

	RenderText(f Frame, n *view.Text) (Fragment, Size, error)
	RenderSolidColor(f Frame, n *view.Fill) (Fragment, error)
	RenderBorder(f Frame, n *view.Border) (Fragment, error)
	RenderImage(f Frame, n *view.Source) (Fragment, error)
	RenderVectorImage(f Frame, n *view.Source) (Fragment, error)
	RenderSurface(f Frame, n *view.Surface) (Fragment, error)
}

// Compositor renders view trees against one backend.
type Compositor struct {
	backend Backend
	cache   *Cache
	log     *log.Logger
	dirty   atomic.Bool
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLogger sets the logger for layout warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Compositor) { c.log = l }
}

// New returns a compositor drawing through b.
func New(b Backend, opts ...Option) *Compositor {
	c := &Compositor{backend: b, cache: NewCache(), log: log.New(io.Discard)}
	for _, o := range opts {
		o(c)
	}
	c.dirty.Store(true)
	return c
}

// Cache exposes the batch cache.
func (c *Compositor) Cache() *Cache { return c.cache }

// Backend returns the backend.
func (c *Compositor) Backend() Backend { return c.backend }

// Invalidate evicts n and its ancestors from the cache and flags that a new
// frame is needed. Safe from any goroutine.
func (c *Compositor) Invalidate(n view.Node) {
	c.cache.Invalidate(n)
	c.dirty.Store(true)
}

// MarkDirty flags that a new frame is needed without evicting anything, for
// changes outside the tree such as a resize.
func (c *Compositor) MarkDirty() { c.dirty.Store(true) }

// NeedsRerender reports whether anything was invalidated since the last
// RenderRoot.
func (c *Compositor) NeedsRerender() bool { return c.dirty.Load() }

// RootContext is the context the root node resolves against: the backend's
// full area at z 0.
func (c *Compositor) RootContext() bounds.Context {
	w, h := c.backend.RootDimensions()
	return bounds.Context{
		Box:    bounds.Box{W: bounds.Known(w), H: bounds.Known(h)},
		Layout: bounds.SubLayout{Direction: bounds.Overlap},
		Unit:   c.backend.CellSize(),
	}
}

// RenderRoot renders a full frame from root and drops cache entries for
// nodes that are no longer part of the tree.
func (c *Compositor) RenderRoot(root view.Node) (*Batch, error) {
	c.dirty.Store(false)
	gen := c.cache.begin()
	b, err := c.render(c.RootContext(), nil, root, nil)
	if err != nil {
		return nil, err
	}
	c.cache.sweep(gen)
	return b, nil
}

// RenderNode renders node against an explicit parent context and previous
// sibling rectangle.
func (c *Compositor) RenderNode(parent bounds.Context, prev *bounds.Rect, node view.Node) (*Batch, error) {
	return c.render(parent, prev, node, nil)
}

func (c *Compositor) render(parent bounds.Context, prev *bounds.Rect, node view.Node, owner view.Node) (*Batch, error) {
	if node == nil {
		return emptyBatch, nil
	}
	attrs := node.Attributes()
	if attrs == nil || attrs.Hidden {
		return emptyBatch, nil
	}
	if b, ok := c.cache.lookup(node, parent, prev, owner); ok {
		return b, nil
	}

	var (
		b    *Batch
		kids []view.Node
		err  error
	)
	if m, ok := node.(view.Mount); ok {
		content := m.Content()
		b, err = c.render(parent, prev, content, node)
		if content != nil {
			kids = []view.Node{content}
		}
	} else {
		var box bounds.Box
		box, err = bounds.Resolve(attrs.Bounds, parent, prev)
		if err == nil {
			b, kids, err = c.draw(parent, prev, box, node)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", node.Kind(), err)
	}

	c.cache.store(node, parent, prev, owner, b, kids)
	return b, nil
}

func (c *Compositor) draw(parent bounds.Context, prev *bounds.Rect, box bounds.Box, node view.Node) (*Batch, []view.Node, error) {
	frame := Frame{Box: box, Node: node, Invalidate: func() { c.Invalidate(node) }}

	switch n := node.(type) {
	case *view.Box:
		return c.drawBox(parent, box, n)

	case *view.Text:
		if !box.W.Known && parent.Box.W.Known {
			px, _ := parent.Box.Origin()
			frame.MaxW = bounds.Known(max(0, parent.Box.W.V-(box.X-px)))
		}
		frag, size, err := c.backend.RenderText(frame, n)
		if err != nil {
			return nil, nil, err
		}
		w := box.W.Or(bounds.Known(size.W)).V
		h := box.H.Or(bounds.Known(size.H)).V
		return Single(box.Z, frag, box.Place(w, h)), nil, nil
	}

	sized, err := inferSize(box, parent, prev)
	if err != nil {
		return nil, nil, err
	}
	frame.Box = sized

	var frag Fragment
	switch n := node.(type) {
	case *view.Fill:
		frag, err = c.backend.RenderSolidColor(frame, n)
	case *view.Border:
		frag, err = c.backend.RenderBorder(frame, n)
	case *view.Source:
		if n.Vector {
			frag, err = c.backend.RenderVectorImage(frame, n)
		} else {
			frag, err = c.backend.RenderImage(frame, n)
		}
	case *view.Surface:
		frag, err = c.backend.RenderSurface(frame, n)
	default:
		return nil, nil, fmt.Errorf("unsupported node kind %s", node.Kind())
	}
	if err != nil {
		return nil, nil, err
	}
	return Single(sized.Z, frag, sized.Place(sized.W.V, sized.H.V)), nil, nil
}

// inferSize fills an undefined width or height from the parent, then from
// the previous sibling.
func inferSize(box bounds.Box, parent bounds.Context, prev *bounds.Rect) (bounds.Box, error) {
	if !box.W.Known {
		switch {
		case parent.Box.W.Known:
			box.W = parent.Box.W
		case prev != nil:
			box.W = bounds.Known(prev.W)
		default:
			return box, fmt.Errorf("width: %w", ErrNoDimension)
		}
	}
	if !box.H.Known {
		switch {
		case parent.Box.H.Known:
			box.H = parent.Box.H
		case prev != nil:
			box.H = bounds.Known(prev.H)
		default:
			return box, fmt.Errorf("height: %w", ErrNoDimension)
		}
	}
	return box, nil
}

func (c *Compositor) drawBox(parent bounds.Context, box bounds.Box, n *view.Box) (*Batch, []view.Node, error) {
	ctx := bounds.Context{Box: box, Layout: n.Layout, Unit: parent.Unit}
	out := &Batch{Empty: true}
	var prev *bounds.Rect
	visible := 0
	for _, child := range n.Children {
		b, err := c.render(ctx, prev, child, n)
		if err != nil {
			return nil, nil, err
		}
		if b.Empty {
			continue
		}
		visible++
		r := b.Rect
		prev = &r
		out.merge(b)
	}
	if visible > 1 && n.Layout.Direction == bounds.DirUnset {
		c.log.Warn("children share the parent origin without a direction", "children", visible, "key", n.Key)
	}

	ox, oy := box.Origin()
	switch {
	case box.W.Known && box.H.Known:
		out.include(bounds.Rect{X: ox, Y: oy, W: box.W.V, H: box.H.V})
	case !out.Empty && box.W.Known:
		out.Rect.X, out.Rect.W = ox, box.W.V
	case !out.Empty && box.H.Known:
		out.Rect.Y, out.Rect.H = oy, box.H.V
	}
	return out, n.Children, nil
}
