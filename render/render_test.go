package render

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kungfusheep/dualview/bounds"
	"github.com/kungfusheep/dualview/view"
)

// fakeBackend measures text as one unit per byte and records every draw.
type fakeBackend struct {
	calls []string
}

func (*fakeBackend) RootDimensions() (float64, float64) { return 80, 24 }
func (*fakeBackend) CellSize() bounds.CellSize          { return bounds.CellSize{W: 8, H: 16} }

func (f *fakeBackend) RenderText(fr Frame, n *view.Text) (Fragment, Size, error) {
	f.calls = append(f.calls, "text:"+n.Content)
	lines := strings.Split(n.Content, "\n")
	w := 0
	for _, l := range lines {
		w = max(w, len(l))
	}
	return "text:" + n.Content, Size{W: float64(w), H: float64(len(lines))}, nil
}

func (f *fakeBackend) RenderSolidColor(fr Frame, n *view.Fill) (Fragment, error) {
	f.calls = append(f.calls, "fill")
	return fr.Box, nil
}

func (f *fakeBackend) RenderBorder(fr Frame, n *view.Border) (Fragment, error) {
	f.calls = append(f.calls, "border")
	return "border", nil
}

func (f *fakeBackend) RenderImage(fr Frame, n *view.Source) (Fragment, error) {
	f.calls = append(f.calls, "image")
	return "image", nil
}

func (f *fakeBackend) RenderVectorImage(fr Frame, n *view.Source) (Fragment, error) {
	f.calls = append(f.calls, "vector")
	return "vector", nil
}

func (f *fakeBackend) RenderSurface(fr Frame, n *view.Surface) (Fragment, error) {
	f.calls = append(f.calls, "surface")
	return "surface", nil
}

type mount struct {
	view.Attrs
	content view.Node
}

func (*mount) Kind() view.Kind      { return view.KindMount }
func (m *mount) Content() view.Node { return m.content }

func TestHorizontalGap(t *testing.T) {
	ab, cd := view.NewText("ab"), view.NewText("cd")
	root := view.Row(ab, cd).Gap("1")

	c := New(&fakeBackend{})
	if _, err := c.RenderRoot(root); err != nil {
		t.Fatal(err)
	}

	first, second := mustCached(t, c, ab), mustCached(t, c, cd)
	if want := first.Rect.X + 2 + 1; second.Rect.X != want {
		t.Errorf("second x = %v, want prevRight+1 = %v", second.Rect.X, want)
	}

	whole := mustCached(t, c, root)
	want := bounds.Rect{X: 0, Y: 0, W: 5, H: 1}
	if diff := cmp.Diff(want, whole.Rect); diff != "" {
		t.Errorf("row rect mismatch (-want +got):\n%s", diff)
	}
}

func mustCached(t *testing.T, c *Compositor, n view.Node) *Batch {
	t.Helper()
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	e, ok := c.cache.entries[n]
	if !ok {
		t.Fatalf("%s not cached", n.Kind())
	}
	return e.batch
}

func TestCache(t *testing.T) {
	leftLeaf, rightLeaf := view.NewText("left"), view.NewText("right")
	left, right := view.Col(leftLeaf), view.Col(rightLeaf)
	root := view.Row(left, right)

	be := &fakeBackend{}
	c := New(be)

	first, err := c.RenderRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	drawn := len(be.calls)

	t.Run("UnchangedInputsHit", func(t *testing.T) {
		second, err := c.RenderRoot(root)
		if err != nil {
			t.Fatal(err)
		}
		if second != first {
			t.Error("expected the identical batch for unchanged inputs")
		}
		if len(be.calls) != drawn {
			t.Errorf("expected no draws on a cache hit, got %v", be.calls[drawn:])
		}
	})

	t.Run("InvalidateEvictsAncestorsOnly", func(t *testing.T) {
		c.Invalidate(leftLeaf)
		for _, n := range []view.Node{leftLeaf, left, root} {
			if c.Cache().Has(n) {
				t.Errorf("%s should be evicted", n.Kind())
			}
		}
		for _, n := range []view.Node{right, rightLeaf} {
			if !c.Cache().Has(n) {
				t.Errorf("sibling subtree %s should stay cached", n.Kind())
			}
		}
		if !c.NeedsRerender() {
			t.Error("expected NeedsRerender after an invalidation")
		}

		before := len(be.calls)
		if _, err := c.RenderRoot(root); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"text:left"}, be.calls[before:]); diff != "" {
			t.Errorf("redraw mismatch (-want +got):\n%s", diff)
		}
		if c.NeedsRerender() {
			t.Error("expected the flag to clear after a frame")
		}
	})

	t.Run("ChangedContextMisses", func(t *testing.T) {
		ctx := c.RootContext()
		ctx.Box.W = bounds.Known(40)
		before := len(be.calls)
		if _, err := c.RenderNode(ctx, nil, leftLeaf); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"text:left"}, be.calls[before:]); diff != "" {
			t.Errorf("expected a different parent context to redraw (-want +got):\n%s", diff)
		}
	})

	t.Run("SweepDropsRemovedNodes", func(t *testing.T) {
		root.Children = []view.Node{left}
		c.Invalidate(root)
		if _, err := c.RenderRoot(root); err != nil {
			t.Fatal(err)
		}
		if c.Cache().Has(right) || c.Cache().Has(rightLeaf) {
			t.Error("expected removed subtree to be swept")
		}
		if !c.Cache().Has(leftLeaf) {
			t.Error("expected retained subtree to stay cached")
		}
	})
}

func TestZOrder(t *testing.T) {
	full := bounds.Pct(100)
	nested := view.Sized(view.Stack(&view.Fill{}), full, full)
	root := view.Sized(view.Stack(&view.Fill{}, &view.Fill{}, nested), full, full)

	batch, err := New(&fakeBackend{}).RenderRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(batch.Layers))
	}
	zs := make([]float64, len(batch.Layers))
	for i, l := range batch.Layers {
		zs[i] = l.Z
	}
	if !sort.Float64sAreSorted(zs) || zs[0] == zs[1] || zs[1] == zs[2] {
		t.Errorf("expected strictly ascending z, got %v", zs)
	}
	base := 2 * bounds.DepthEpsilon
	if zs[0] != base || zs[1] != base+bounds.TieEpsilon {
		t.Errorf("expected siblings at %v and %v, got %v", base, base+bounds.TieEpsilon, zs[:2])
	}
	if zs[2] <= zs[1] {
		t.Errorf("expected the nested fill above its parent's siblings, got %v", zs)
	}
}

func TestHidden(t *testing.T) {
	hidden := view.NewText("zz")
	hidden.Hidden = true
	last := view.NewText("cd")
	root := view.Row(view.NewText("ab"), hidden, last)

	c := New(&fakeBackend{})
	if _, err := c.RenderRoot(root); err != nil {
		t.Fatal(err)
	}
	if got := mustCached(t, c, last).Rect.X; got != 2 {
		t.Errorf("hidden sibling should not advance the flow, got x=%v", got)
	}
	if c.Cache().Has(hidden) {
		t.Error("hidden nodes are not cached")
	}
}

func TestSizeInference(t *testing.T) {
	t.Run("FromParent", func(t *testing.T) {
		batch, err := New(&fakeBackend{}).RenderRoot(&view.Fill{})
		if err != nil {
			t.Fatal(err)
		}
		box := batch.Layers[0].Fragment.(bounds.Box)
		if box.W != bounds.Known(80) || box.H != bounds.Known(24) || box.Z != bounds.DepthEpsilon {
			t.Errorf("expected the root size, got %v x %v", box.W, box.H)
		}
	})

	t.Run("FromPrevious", func(t *testing.T) {
		ctx := bounds.Context{Layout: bounds.SubLayout{Direction: bounds.Vertical}}
		prev := &bounds.Rect{X: 0, Y: 0, W: 6, H: 2}
		batch, err := New(&fakeBackend{}).RenderNode(ctx, prev, &view.Fill{})
		if err != nil {
			t.Fatal(err)
		}
		want := bounds.Rect{X: 0, Y: 2, W: 6, H: 2}
		if diff := cmp.Diff(want, batch.Rect); diff != "" {
			t.Errorf("rect mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Nothing", func(t *testing.T) {
		ctx := bounds.Context{}
		_, err := New(&fakeBackend{}).RenderNode(ctx, nil, &view.Border{})
		if !errors.Is(err, ErrNoDimension) {
			t.Errorf("expected ErrNoDimension, got %v", err)
		}
	})

	t.Run("TextWrapsToParent", func(t *testing.T) {
		var got Frame
		be := &frameRecorder{fakeBackend: &fakeBackend{}, frame: &got}
		inner := view.At(view.NewText("hello"), bounds.Spec{X: "30"})
		if _, err := New(be).RenderRoot(inner); err != nil {
			t.Fatal(err)
		}
		if got.MaxW != bounds.Known(50) {
			t.Errorf("expected 50 columns of room, got %+v", got.MaxW)
		}
	})
}

type frameRecorder struct {
	*fakeBackend
	frame *Frame
}

func (r *frameRecorder) RenderText(fr Frame, n *view.Text) (Fragment, Size, error) {
	*r.frame = fr
	return r.fakeBackend.RenderText(fr, n)
}

func TestMount(t *testing.T) {
	leaf := view.NewText("inside")
	m := &mount{content: view.Col(leaf)}
	root := view.Col(view.NewText("before"), m)

	c := New(&fakeBackend{})
	batch, err := c.RenderRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Layers) != 2 {
		t.Fatalf("expected both texts, got %d layers", len(batch.Layers))
	}
	if got := mustCached(t, c, leaf).Rect.Y; got != 1 {
		t.Errorf("mount content should flow after its sibling, got y=%v", got)
	}

	c.Invalidate(m)
	if c.Cache().Has(root) || c.Cache().Has(m) {
		t.Error("expected the mount and its ancestors to be evicted")
	}
	if !c.Cache().Has(leaf) {
		t.Error("expected the mount's content to stay cached")
	}

	t.Run("Empty", func(t *testing.T) {
		b, err := c.RenderNode(c.RootContext(), nil, &mount{})
		if err != nil || !b.Empty {
			t.Errorf("expected an empty batch, got %+v, %v", b, err)
		}
	})
}

func TestBadMeasurement(t *testing.T) {
	root := view.Col(view.At(view.NewText("x"), bounds.Spec{X: "prev"}))
	_, err := New(&fakeBackend{}).RenderRoot(root)
	if !errors.Is(err, bounds.ErrNoPrevious) {
		t.Errorf("expected ErrNoPrevious, got %v", err)
	}
}
