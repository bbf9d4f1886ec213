// Package dualview renders one declarative component tree to a character
// terminal and to a vector canvas.
//
// A Renderer owns a component tree, a terminal compositor and an output
// sink. It implements component.Host: setters schedule frames, rebuilt
// instances evict their cached render batches and input handlers registered
// with component.UseInput receive the keys passed to Dispatch.
package dualview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kungfusheep/dualview/component"
	"github.com/kungfusheep/dualview/render"
	"github.com/kungfusheep/dualview/term"
	"github.com/kungfusheep/dualview/view"
)

// ErrClosed is returned by a Renderer after Close.
var ErrClosed = errors.New("renderer closed")

// Timing is how long the phases of the last frame took.
type Timing struct {
	Build  time.Duration
	Render time.Duration
	Flush  time.Duration
}

func (t Timing) String() string {
	return fmt.Sprintf("build:%v render:%v flush:%v",
		t.Build.Round(time.Microsecond),
		t.Render.Round(time.Microsecond),
		t.Flush.Round(time.Microsecond))
}

// Renderer drives a component tree and presents its frames.
type Renderer struct {
	cfg     *Config
	log     *log.Logger
	closer  io.Closer
	tree    *component.Tree
	comp    *render.Compositor
	backend *term.Backend
	sink    term.Sink

	visible atomic.Bool
	wake    chan struct{}

	subMu   sync.Mutex
	subs    map[int]func(component.Key)
	nextSub int

	// frameMu serializes everything that touches the tree.
	frameMu sync.Mutex
	last    *term.Grid
	timing  Timing
	closed  bool
}

// NewRenderer returns a renderer for a width x height cell area. A nil cfg
// uses DefaultConfig. A nil sink keeps frames in memory only, see Last.
func NewRenderer(cfg *Config, sink term.Sink, width, height int) (*Renderer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, closer, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		cfg:    cfg,
		log:    logger,
		closer: closer,
		sink:   sink,
		wake:   make(chan struct{}, 1),
		subs:   make(map[int]func(component.Key)),
	}
	r.visible.Store(true)
	r.backend = term.NewBackend(width, height,
		term.WithCellSize(cfg.CellWidth, cfg.CellHeight),
		term.WithProtocol(cfg.Protocol()),
		term.WithLogger(logger))
	r.comp = render.New(r.backend, render.WithLogger(logger))
	r.tree = component.NewTree(component.Options{
		MaxRecursiveUpdates: cfg.MaxRecursiveUpdates,
		Logger:              logger,
		Host:                r,
	})
	return r, nil
}

// Mount builds el as the root component.
func (r *Renderer) Mount(el *component.Element) error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.tree.Mount(el); err != nil {
		return fmt.Errorf("failed to mount root: %w", err)
	}
	r.comp.MarkDirty()
	r.RequestRender()
	return nil
}

// Config returns the renderer's configuration.
func (r *Renderer) Config() *Config { return r.cfg }

// Tree returns the component tree.
func (r *Renderer) Tree() *component.Tree { return r.tree }

// Compositor returns the terminal compositor.
func (r *Renderer) Compositor() *render.Compositor { return r.comp }

// Backend returns the terminal backend.
func (r *Renderer) Backend() *term.Backend { return r.backend }

// Logger returns the renderer's logger.
func (r *Renderer) Logger() *log.Logger { return r.log }

// Schedule implements component.Host.
func (r *Renderer) Schedule(*component.Instance) { r.RequestRender() }

// Invalidate implements component.Host.
func (r *Renderer) Invalidate(n view.Node) { r.comp.Invalidate(n) }

// Subscribe implements component.Host.
func (r *Renderer) Subscribe(fn func(component.Key)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// Dispatch delivers a key to every input subscriber on the tree's
// goroutine at the next frame. Safe to call from any goroutine.
func (r *Renderer) Dispatch(k component.Key) {
	r.tree.Post(func() {
		r.subMu.Lock()
		fns := make([]func(component.Key), 0, len(r.subs))
		for id := 0; id < r.nextSub; id++ {
			if fn, ok := r.subs[id]; ok {
				fns = append(fns, fn)
			}
		}
		r.subMu.Unlock()
		for _, fn := range fns {
			fn(k)
		}
	})
}

// RequestRender marks that a frame is needed.
// Safe to call from any goroutine.
func (r *Renderer) RequestRender() {
	select {
	case r.wake <- struct{}{}:
	default:
		// Already a render pending
	}
}

// NeedsRerender reports whether the next frame has anything to do.
func (r *Renderer) NeedsRerender() bool {
	return r.comp.NeedsRerender() || r.tree.Pending()
}

// SetVisible suspends or resumes output. Updates keep running while
// hidden; the first frame after becoming visible is drawn in full.
func (r *Renderer) SetVisible(v bool) {
	if r.visible.Swap(v) == v {
		return
	}
	if v {
		r.comp.MarkDirty()
		r.RequestRender()
	}
}

// Visible reports whether output is enabled.
func (r *Renderer) Visible() bool { return r.visible.Load() }

// Resize changes the root area and forces a new frame.
func (r *Renderer) Resize(width, height int) {
	r.backend.SetSize(width, height)
	r.comp.MarkDirty()
	r.RequestRender()
}

// Frame runs one pass: scheduled updates, then, if anything changed and
// the renderer is visible, render, collapse and present.
func (r *Renderer) Frame() error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if r.closed {
		return ErrClosed
	}

	t0 := time.Now()
	if err := r.tree.Flush(); err != nil {
		return fmt.Errorf("failed to update components: %w", err)
	}
	if !r.visible.Load() || !r.comp.NeedsRerender() {
		return nil
	}

	t1 := time.Now()
	batch, err := r.comp.RenderRoot(r.tree.View())
	if err != nil {
		return fmt.Errorf("failed to render frame: %w", err)
	}
	w, h := r.backend.Size()
	grid := term.Compose(batch, w, h)

	t2 := time.Now()
	if r.sink != nil {
		if err := r.sink.Present(grid); err != nil {
			return err
		}
	}
	r.last = grid
	r.timing = Timing{Build: t1.Sub(t0), Render: t2.Sub(t1), Flush: time.Since(t2)}
	if r.cfg.DevMode {
		r.log.Debug("frame", "build", r.timing.Build, "render", r.timing.Render, "flush", r.timing.Flush,
			"cached", r.comp.Cache().Len())
	}
	return nil
}

// Last returns the most recently rendered frame, or nil before the first.
func (r *Renderer) Last() *term.Grid {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.last
}

// Timing returns the phase durations of the last rendered frame.
func (r *Renderer) Timing() Timing {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.timing
}

// Run renders at the configured frame rate until ctx is done. Each tick
// with pending work produces one frame. When the sink is a *term.Screen its
// resize notifications resize the root area.
func (r *Renderer) Run(ctx context.Context) error {
	rate := r.cfg.FrameRate
	if rate <= 0 {
		rate = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	var resize <-chan term.Size
	if s, ok := r.sink.(*term.Screen); ok {
		resize = s.ResizeChan()
	}

	pending := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.wake:
			pending = true
		case size := <-resize:
			r.Resize(size.Width, size.Height)
		case <-ticker.C:
			if !pending && !r.comp.NeedsRerender() {
				continue
			}
			pending = false
			if err := r.Frame(); err != nil {
				return err
			}
		}
	}
}

// Close destroys the component tree, running every permanent destructor.
func (r *Renderer) Close() error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.tree.Unmount()
	return r.closer.Close()
}
