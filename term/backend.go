package term

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kungfusheep/dualview/asset"
	"github.com/kungfusheep/dualview/bounds"
	"github.com/kungfusheep/dualview/render"
	"github.com/kungfusheep/dualview/view"
)

var (
	errNoLoader = errors.New("source has no loader")
	errNoImage  = errors.New("loader returned no image")
)

// Backend draws view leaves as cell grids. Every fragment it returns is a
// Patch.
type Backend struct {
	mu            sync.Mutex
	width, height int

	cell     bounds.CellSize
	protocol Protocol
	assets   *asset.Cache
	log      *log.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithCellSize sets how many pixel-like units one cell spans.
func WithCellSize(w, h float64) Option {
	return func(b *Backend) { b.cell = bounds.CellSize{W: w, H: h} }
}

// WithProtocol forces an image protocol. ProtocolAuto detects one from
// stdout.
func WithProtocol(p Protocol) Option {
	return func(b *Backend) { b.protocol = p }
}

// WithAssets shares an asset cache.
func WithAssets(c *asset.Cache) Option {
	return func(b *Backend) { b.assets = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// NewBackend returns a backend for a width x height cell area.
func NewBackend(width, height int, opts ...Option) *Backend {
	b := &Backend{
		width:  width,
		height: height,
		cell:   bounds.CellSize{W: 8, H: 16},
		log:    log.New(io.Discard),
	}
	for _, o := range opts {
		o(b)
	}
	if b.assets == nil {
		b.assets = asset.New(b.log)
	}
	if b.protocol == ProtocolAuto {
		b.protocol = DetectProtocol(os.Stdout.Fd(), nil)
	}
	return b
}

// SetSize changes the root area. Safe from any goroutine.
func (b *Backend) SetSize(width, height int) {
	b.mu.Lock()
	b.width, b.height = width, height
	b.mu.Unlock()
}

// Size returns the root area in cells.
func (b *Backend) Size() (width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// Protocol returns the image protocol in use.
func (b *Backend) Protocol() Protocol { return b.protocol }

// Assets returns the asset cache.
func (b *Backend) Assets() *asset.Cache { return b.assets }

func (b *Backend) RootDimensions() (float64, float64) {
	w, h := b.Size()
	return float64(w), float64(h)
}

func (b *Backend) CellSize() bounds.CellSize { return b.cell }

func (b *Backend) RenderText(f render.Frame, n *view.Text) (render.Fragment, render.Size, error) {
	width, height, maxW := -1, -1, -1
	if f.Box.W.Known {
		width = cells(f.Box.W.V)
	}
	if f.Box.H.Known {
		height = cells(f.Box.H.V)
	}
	if f.MaxW.Known {
		maxW = cells(f.MaxW.V)
	}
	g := drawText(n, maxW, width, height)
	size := render.Size{W: float64(g.Width()), H: float64(g.Height())}
	return place(f.Box.Place(size.W, size.H), g), size, nil
}

func (b *Backend) RenderSolidColor(f render.Frame, n *view.Fill) (render.Fragment, error) {
	g := b.grid(f)
	g.Fill(Cell{Glyph: " ", Style: Style{BG: FromColor(n.Color)}})
	return b.patch(f, g), nil
}

func (b *Backend) RenderBorder(f render.Frame, n *view.Border) (render.Fragment, error) {
	g := b.grid(f)
	g.DrawBorder(0, 0, g.Width(), g.Height(), borderSet(n.Style), n.Title, Style{FG: FromColor(n.Color)})
	return b.patch(f, g), nil
}

func (b *Backend) RenderImage(f render.Frame, n *view.Source) (render.Fragment, error) {
	return b.image(f, n.Asset, func() (image.Image, error) {
		if n.Load == nil {
			return nil, errNoLoader
		}
		return n.Load()
	})
}

func (b *Backend) RenderVectorImage(f render.Frame, n *view.Source) (render.Fragment, error) {
	pw := int(math.Round(f.Box.W.V * b.cell.W))
	ph := int(math.Round(f.Box.H.V * b.cell.H))
	key := fmt.Sprintf("%s@%dx%d", n.Asset, pw, ph)
	return b.image(f, key, func() (image.Image, error) {
		if n.Rasterize == nil {
			return nil, errNoLoader
		}
		return n.Rasterize(pw, ph)
	})
}

func (b *Backend) RenderSurface(f render.Frame, n *view.Surface) (render.Fragment, error) {
	g := b.grid(f)
	if n.Target != view.TargetTerminal {
		return b.patch(f, g), nil
	}
	switch c := n.Content.(type) {
	case *Grid:
		for y := 0; y < min(g.Height(), c.Height()); y++ {
			copy(g.Row(y), c.Row(y)[:min(g.Width(), c.Width())])
		}
		g.repair()
	case string:
		g = drawText(&view.Text{Content: c}, -1, g.Width(), g.Height())
	case nil:
	default:
		return nil, fmt.Errorf("unsupported terminal surface content %T", n.Content)
	}
	return b.patch(f, g), nil
}

// image draws an asset-backed image. While the asset loads the area stays
// transparent and the node is invalidated once it resolves. A failed load
// draws a placeholder and is not retried until the key changes.
func (b *Backend) image(f render.Frame, key string, load func() (image.Image, error)) (render.Fragment, error) {
	g := b.grid(f)
	img, ok, err := asset.LoadAsync(b.assets, key, func() (image.Image, error) {
		img, err := load()
		if err == nil && img == nil {
			err = errNoImage
		}
		return img, err
	})
	switch {
	case err != nil:
		b.log.Warn("image unavailable, drawing placeholder", "asset", key, "err", err)
		g.Fill(Cell{Glyph: "░", Style: Style{Attr: AttrDim}})
		return b.patch(f, g), nil
	case !ok:
		if f.Invalidate != nil {
			b.assets.OnReadyFor(key, f.Node, func(any, error) { f.Invalidate() })
		}
		return b.patch(f, g), nil
	}

	enc, err := encodeImage(b.protocol, img, g.Width(), g.Height())
	if err != nil {
		b.log.Warn("image encode failed, drawing placeholder", "asset", key, "err", err)
		g.Fill(Cell{Glyph: "░", Style: Style{Attr: AttrDim}})
		return b.patch(f, g), nil
	}
	return b.patch(f, enc), nil
}

// grid returns a transparent grid the size of a sized frame.
func (b *Backend) grid(f render.Frame) *Grid {
	return NewGrid(cells(f.Box.W.V), cells(f.Box.H.V))
}

func (b *Backend) patch(f render.Frame, g *Grid) Patch {
	return place(f.Box.Place(f.Box.W.V, f.Box.H.V), g)
}

func place(r bounds.Rect, g *Grid) Patch {
	return Patch{X: cells(r.X), Y: cells(r.Y), Grid: g}
}

func cells(v float64) int { return int(math.Round(v)) }

// Compose collapses a rendered batch into a width x height frame. Fragments
// that are not patches are ignored.
func Compose(b *render.Batch, width, height int) *Grid {
	var patches []Patch
	if b != nil {
		for _, l := range b.Layers {
			if p, ok := l.Fragment.(Patch); ok {
				patches = append(patches, p)
			}
		}
	}
	return Collapse(width, height, patches)
}
