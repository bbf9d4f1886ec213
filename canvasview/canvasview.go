// Package canvasview is the graphics-surface backend. It draws view leaves
// as vector operations on a tdewolff/canvas Canvas, from which a frame can be
// rasterised or exported as PDF.
//
// One unit of layout is one canvas millimetre, and the cell size is 1x1, so
// "px" measurements equal raw numbers on this target.
package canvasview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/kungfusheep/dualview/asset"
	"github.com/kungfusheep/dualview/bounds"
	"github.com/kungfusheep/dualview/render"
	"github.com/kungfusheep/dualview/view"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

const mmToPt = 72 / 25.4

var (
	errNoLoader = errors.New("source has no loader")
	errNoImage  = errors.New("loader returned no image")
)

// Op is the canvas fragment: a drawing positioned in layout units.
type Op struct {
	Rect bounds.Rect
	draw func(ctx *canvas.Context)
}

// Draw runs the operation on ctx.
func (o Op) Draw(ctx *canvas.Context) {
	if o.draw != nil {
		o.draw(ctx)
	}
}

// DrawFunc is surface content drawn by its owner. The context is translated
// so the surface's top-left corner is the origin.
type DrawFunc func(ctx *canvas.Context, w, h float64)

// Options configures a Backend.
type Options struct {
	Width, Height float64
	// FontSize is the text em size in layout units. Defaults to 4.
	FontSize float64
	// LineHeight defaults to 1.25 times FontSize.
	LineHeight float64
	// Font is a TrueType or OpenType font. Defaults to Latin Modern Mono.
	Font []byte
	// Foreground is the text and border color when a node sets none.
	Foreground color.Color
	// Resolution is the raster density for vector sources, in pixels per
	// unit. Defaults to 4.
	Resolution float64
	Assets     *asset.Cache
	Logger     *log.Logger
}

// Backend draws view leaves for a canvas of a fixed size.
type Backend struct {
	opts   Options
	family *canvas.FontFamily
	assets *asset.Cache
	log    *log.Logger

	mu    sync.Mutex
	faces map[faceKey]*canvas.FontFace
}

type faceKey struct {
	col   color.RGBA
	style canvas.FontStyle
	deco  bool
}

// New returns a backend. It fails only when the font cannot be loaded.
func New(opts Options) (*Backend, error) {
	if opts.FontSize <= 0 {
		opts.FontSize = 4
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = opts.FontSize * 1.25
	}
	if opts.Font == nil {
		opts.Font = lmmono10regular.TTF
	}
	if opts.Foreground == nil {
		opts.Foreground = canvas.Black
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Assets == nil {
		opts.Assets = asset.New(opts.Logger)
	}

	// One face serves every style.
	family := canvas.NewFontFamily("dualview")
	for _, style := range []canvas.FontStyle{
		canvas.FontRegular, canvas.FontBold, canvas.FontItalic, canvas.FontBold | canvas.FontItalic,
	} {
		if err := family.LoadFont(opts.Font, 0, style); err != nil {
			return nil, fmt.Errorf("failed to load font: %w", err)
		}
	}
	return &Backend{
		opts:   opts,
		family: family,
		assets: opts.Assets,
		log:    opts.Logger,
		faces:  make(map[faceKey]*canvas.FontFace),
	}, nil
}

// Assets returns the asset cache.
func (b *Backend) Assets() *asset.Cache { return b.assets }

// LineHeight is the height of one line of text.
func (b *Backend) LineHeight() float64 { return b.opts.LineHeight }

func (b *Backend) RootDimensions() (float64, float64) { return b.opts.Width, b.opts.Height }

func (b *Backend) CellSize() bounds.CellSize { return bounds.CellSize{W: 1, H: 1} }

func (b *Backend) face(n *view.Text) *canvas.FontFace {
	col := b.opts.Foreground
	if n.Color != nil {
		col = n.Color
	}
	style := canvas.FontRegular
	if n.Bold {
		style |= canvas.FontBold
	}
	if n.Italic {
		style |= canvas.FontItalic
	}
	key := faceKey{col: color.RGBAModel.Convert(col).(color.RGBA), style: style, deco: n.Underline}

	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.faces[key]; ok {
		return f
	}
	args := []interface{}{col, style, canvas.FontNormal}
	if n.Underline {
		args = append(args, canvas.FontUnderline)
	}
	f := b.family.Face(b.opts.FontSize*mmToPt, args...)
	b.faces[key] = f
	return f
}

func (b *Backend) RenderText(f render.Frame, n *view.Text) (render.Fragment, render.Size, error) {
	face := b.face(n)
	maxW := -1.0
	switch {
	case f.Box.W.Known:
		maxW = f.Box.W.V
	case f.MaxW.Known:
		maxW = f.MaxW.V
	}
	lines := wrapLines(n.Content, n.Wrap, maxW, face.TextWidth)

	var textW float64
	for _, l := range lines {
		textW = math.Max(textW, face.TextWidth(l))
	}
	size := render.Size{W: textW, H: float64(len(lines)) * b.opts.LineHeight}
	w := f.Box.W.Or(bounds.Known(size.W)).V
	h := f.Box.H.Or(bounds.Known(size.H)).V
	r := f.Box.Place(w, h)

	align, ax := canvas.Left, r.X
	switch n.Align {
	case view.AlignCenter:
		align, ax = canvas.Center, r.X+w/2
	case view.AlignRight:
		align, ax = canvas.Right, r.X+w
	}
	ascent := face.Metrics().Ascent
	bg := n.Background
	lineH := b.opts.LineHeight

	return Op{Rect: r, draw: func(ctx *canvas.Context) {
		if bg != nil {
			fillRect(ctx, r, bg)
		}
		for i, l := range lines {
			top := r.Y + float64(i)*lineH
			if top+lineH > r.Y+h+1e-9 {
				break
			}
			ctx.DrawText(ax, top+ascent, canvas.NewTextLine(face, l, align))
		}
	}}, size, nil
}

func (b *Backend) RenderSolidColor(f render.Frame, n *view.Fill) (render.Fragment, error) {
	r := rectOf(f)
	col := n.Color
	return Op{Rect: r, draw: func(ctx *canvas.Context) {
		if col != nil {
			fillRect(ctx, r, col)
		}
	}}, nil
}

func (b *Backend) RenderBorder(f render.Frame, n *view.Border) (render.Fragment, error) {
	r := rectOf(f)
	col := n.Color
	if col == nil {
		col = b.opts.Foreground
	}
	style := n.Style
	var (
		title    *canvas.Text
		baseline float64
	)
	if n.Title != "" {
		face := b.face(&view.Text{Color: col})
		title = canvas.NewTextLine(face, " "+n.Title+" ", canvas.Left)
		m := face.Metrics()
		baseline = (m.Ascent - m.Descent) / 2
	}
	stroke := b.opts.FontSize / 16

	return Op{Rect: r, draw: func(ctx *canvas.Context) {
		if style == view.BorderHidden || r.W <= 0 || r.H <= 0 {
			return
		}
		ctx.SetFillColor(canvas.Transparent)
		ctx.SetStrokeColor(col)
		ctx.SetStrokeWidth(stroke)
		half := stroke / 2
		switch style {
		case view.BorderRounded:
			ctx.DrawPath(r.X+half, r.Y+half, canvas.RoundedRectangle(r.W-stroke, r.H-stroke, math.Min(r.W, r.H)/4))
		case view.BorderThick:
			ctx.SetStrokeWidth(stroke * 3)
			ctx.DrawPath(r.X+stroke*1.5, r.Y+stroke*1.5, canvas.Rectangle(r.W-stroke*3, r.H-stroke*3))
		case view.BorderDouble:
			ctx.DrawPath(r.X+half, r.Y+half, canvas.Rectangle(r.W-stroke, r.H-stroke))
			ctx.DrawPath(r.X+stroke*2.5, r.Y+stroke*2.5, canvas.Rectangle(r.W-stroke*5, r.H-stroke*5))
		default:
			ctx.DrawPath(r.X+half, r.Y+half, canvas.Rectangle(r.W-stroke, r.H-stroke))
		}
		if title != nil {
			ctx.DrawText(r.X+b.opts.FontSize, r.Y+baseline, title)
		}
	}}, nil
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
	pw := int(math.Round(f.Box.W.V * b.opts.Resolution))
	ph := int(math.Round(f.Box.H.V * b.opts.Resolution))
	key := fmt.Sprintf("%s@%dx%d", n.Asset, pw, ph)
	return b.image(f, key, func() (image.Image, error) {
		if n.Rasterize == nil {
			return nil, errNoLoader
		}
		return n.Rasterize(pw, ph)
	})
}

func (b *Backend) RenderSurface(f render.Frame, n *view.Surface) (render.Fragment, error) {
	r := rectOf(f)
	if n.Target != view.TargetCanvas {
		return Op{Rect: r}, nil
	}
	switch c := n.Content.(type) {
	case DrawFunc:
		return Op{Rect: r, draw: func(ctx *canvas.Context) {
			ctx.Push()
			ctx.ComposeView(canvas.Identity.Translate(r.X, r.Y))
			c(ctx, r.W, r.H)
			ctx.Pop()
		}}, nil
	case string:
		frag, _, err := b.RenderText(f, &view.Text{Content: c, Wrap: view.WrapWord})
		return frag, err
	case nil:
		return Op{Rect: r}, nil
	default:
		return nil, fmt.Errorf("unsupported canvas surface content %T", n.Content)
	}
}

// image draws an asset-backed image scaled into the frame. While the asset
// loads nothing is drawn and the node is invalidated once it resolves. A
// failed load draws a hatched placeholder.
func (b *Backend) image(f render.Frame, key string, load func() (image.Image, error)) (render.Fragment, error) {
	r := rectOf(f)
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
		return Op{Rect: r, draw: func(ctx *canvas.Context) { placeholder(ctx, r) }}, nil
	case !ok:
		if f.Invalidate != nil {
			b.assets.OnReadyFor(key, f.Node, func(any, error) { f.Invalidate() })
		}
		return Op{Rect: r}, nil
	}

	dx := img.Bounds().Dx()
	if dx == 0 || r.W <= 0 {
		return Op{Rect: r}, nil
	}
	dpmm := float64(dx) / r.W
	return Op{Rect: r, draw: func(ctx *canvas.Context) {
		ctx.DrawImage(r.X, r.Y, img, canvas.DPMM(dpmm))
	}}, nil
}

func rectOf(f render.Frame) bounds.Rect { return f.Box.Place(f.Box.W.V, f.Box.H.V) }

func fillRect(ctx *canvas.Context, r bounds.Rect, col color.Color) {
	ctx.SetFillColor(col)
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.DrawPath(r.X, r.Y, canvas.Rectangle(r.W, r.H))
}

func placeholder(ctx *canvas.Context, r bounds.Rect) {
	grey := colorful.Hsl(0, 0, 0.6)
	fillRect(ctx, r, colorful.Hsl(0, 0, 0.9))
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(grey)
	ctx.SetStrokeWidth(0.2)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(r.W, r.H)
	p.MoveTo(r.W, 0)
	p.LineTo(0, r.H)
	ctx.DrawPath(r.X, r.Y, p)
}

// wrapLines splits content into lines no wider than maxW as measured by
// width. maxW < 0 is unbounded.
func wrapLines(content string, mode view.WrapMode, maxW float64, width func(string) float64) []string {
	var out []string
	for _, para := range strings.Split(content, "\n") {
		if maxW < 0 {
			out = append(out, para)
			continue
		}
		switch mode {
		case view.WrapNone:
			out = append(out, clip(para, maxW, width))
		case view.WrapChar:
			out = append(out, breakChars(para, maxW, width)...)
		default:
			out = append(out, breakWords(para, maxW, width)...)
		}
	}
	return out
}

func clip(s string, maxW float64, width func(string) float64) string {
	rs := []rune(s)
	for len(rs) > 0 && width(string(rs)) > maxW {
		rs = rs[:len(rs)-1]
	}
	return string(rs)
}

func breakChars(s string, maxW float64, width func(string) float64) []string {
	var lines []string
	var cur []rune
	for _, r := range s {
		if len(cur) > 0 && width(string(append(cur, r))) > maxW {
			lines = append(lines, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	return append(lines, string(cur))
}

func breakWords(s string, maxW float64, width func(string) float64) []string {
	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if width(next) <= maxW {
			cur = next
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		if width(word) <= maxW {
			cur = word
			continue
		}
		parts := breakChars(word, maxW, width)
		lines = append(lines, parts[:len(parts)-1]...)
		cur = parts[len(parts)-1]
	}
	return append(lines, cur)
}

// Draw composes a rendered batch onto a new width x height canvas, bottom
// layer first. Fragments that are not canvas operations are ignored.
func Draw(batch *render.Batch, width, height float64) *canvas.Canvas {
	c := canvas.New(width, height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	if batch == nil {
		return c
	}
	for _, l := range batch.Layers {
		if op, ok := l.Fragment.(Op); ok {
			op.Draw(ctx)
		}
	}
	return c
}

// Rasterize renders c to an image at dpmm pixels per unit.
func Rasterize(c *canvas.Canvas, dpmm float64) *image.RGBA {
	return rasterizer.Draw(c, canvas.DPMM(dpmm), canvas.DefaultColorSpace)
}

// WritePDF writes c as a single-page PDF.
func WritePDF(w io.Writer, c *canvas.Canvas) error {
	p := pdf.New(w, c.W, c.H, nil)
	c.RenderTo(p)
	if err := p.Close(); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
