package component

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kungfusheep/dualview/view"
)

type countingHost struct {
	scheduled   int
	posted      int
	invalidated []view.Node
	subs        []func(Key)
}

func (h *countingHost) Schedule(inst *Instance) {
	if inst == nil {
		h.posted++
		return
	}
	h.scheduled++
}

func (h *countingHost) Invalidate(n view.Node) { h.invalidated = append(h.invalidated, n) }

func (h *countingHost) Subscribe(fn func(Key)) func() {
	h.subs = append(h.subs, fn)
	i := len(h.subs) - 1
	return func() { h.subs[i] = nil }
}

func (h *countingHost) send(k Key) {
	for _, fn := range h.subs {
		if fn != nil {
			fn(k)
		}
	}
}

type tracker struct {
	builds    int
	value     int
	set       func(int)
	destroyed int
}

func counter(c *Ctx, p *tracker) (view.Node, error) {
	p.builds++
	v, set := UseState(c, 0)
	p.value, p.set = v, set
	UseOnDestroy(c, func() { p.destroyed++ })
	return view.NewText(strconv.Itoa(v)), nil
}

type listProps struct {
	keys   *[]string
	trackers map[string]*tracker
}

func list(c *Ctx, p listProps) (view.Node, error) {
	box := view.Col()
	for _, k := range *p.keys {
		pr := p.trackers[k]
		if pr == nil {
			pr = &tracker{}
			p.trackers[k] = pr
		}
		box.Children = append(box.Children, New(counter, pr).WithKey(k))
	}
	return box, nil
}

func TestReconcile(t *testing.T) {
	t.Run("StableKeysKeepInstances", func(t *testing.T) {
		keys := []string{"a", "b"}
		props := listProps{keys: &keys, trackers: map[string]*tracker{}}
		tree := NewTree(Options{})
		if err := tree.Mount(New(list, props)); err != nil {
			t.Fatal(err)
		}
		root := tree.Root()
		a, b := root.Child("a"), root.Child("b")
		if a == nil || b == nil {
			t.Fatalf("expected children a and b, got %s", tree.Dump())
		}

		props.trackers["a"].set(5)
		if err := tree.Flush(); err != nil {
			t.Fatal(err)
		}
		if err := tree.Update(root, "test"); err != nil {
			t.Fatal(err)
		}

		if root.Child("a") != a || root.Child("b") != b {
			t.Error("expected the same instances after a rebuild with the same keys")
		}
		if got := props.trackers["a"].value; got != 5 {
			t.Errorf("expected state 5 to survive, got %d", got)
		}
		if props.trackers["b"].builds != 1 {
			t.Errorf("child with unchanged props should not rebuild, built %d times", props.trackers["b"].builds)
		}
	})

	t.Run("Reorder", func(t *testing.T) {
		keys := []string{"a", "b", "c"}
		props := listProps{keys: &keys, trackers: map[string]*tracker{}}
		tree := NewTree(Options{})
		if err := tree.Mount(New(list, props)); err != nil {
			t.Fatal(err)
		}
		before := map[string]*Instance{}
		for _, k := range keys {
			before[k] = tree.Root().Child(k)
		}

		keys = []string{"c", "a", "b"}
		if err := tree.Update(tree.Root(), "reorder"); err != nil {
			t.Fatal(err)
		}
		var order []string
		for _, child := range tree.Root().Children() {
			order = append(order, child.Key())
			if before[child.Key()] != child {
				t.Errorf("instance %s was recreated", child.Key())
			}
		}
		if diff := cmp.Diff(keys, order); diff != "" {
			t.Errorf("child order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("RemovedChildDestroyedOnce", func(t *testing.T) {
		keys := []string{"a", "b"}
		props := listProps{keys: &keys, trackers: map[string]*tracker{}}
		tree := NewTree(Options{})
		if err := tree.Mount(New(list, props)); err != nil {
			t.Fatal(err)
		}
		a := tree.Root().Child("a")

		keys = []string{"b"}
		for i := 0; i < 2; i++ {
			if err := tree.Update(tree.Root(), "shrink"); err != nil {
				t.Fatal(err)
			}
		}
		if !a.Dead() {
			t.Error("expected removed child to be destroyed")
		}
		if got := props.trackers["a"].destroyed; got != 1 {
			t.Errorf("expected destructor to run once, ran %d times", got)
		}
		if err := tree.Update(a, "late"); !errors.Is(err, ErrDeadInstance) {
			t.Errorf("expected ErrDeadInstance, got %v", err)
		}

		tree.Unmount()
		if got := props.trackers["b"].destroyed; got != 1 {
			t.Errorf("expected unmount to destroy b once, got %d", got)
		}
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		keys := []string{"a", "a"}
		props := listProps{keys: &keys, trackers: map[string]*tracker{}}
		tree := NewTree(Options{})
		err := tree.Mount(New(list, props))
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("PositionalKeys", func(t *testing.T) {
		p1, p2 := &tracker{}, &tracker{}
		root := func(c *Ctx, _ struct{}) (view.Node, error) {
			return view.Row(New(counter, p1), view.NewText("-"), New(counter, p2)), nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(root, struct{}{})); err != nil {
			t.Fatal(err)
		}
		var keys []string
		for _, child := range tree.Root().Children() {
			keys = append(keys, child.Key())
		}
		if diff := cmp.Diff([]string{"#0", "#1"}, keys); diff != "" {
			t.Errorf("positional keys mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("DifferentComponentRecreates", func(t *testing.T) {
		useA := true
		p := &tracker{}
		other := func(c *Ctx, p *tracker) (view.Node, error) { return view.NewText("other"), nil }
		root := func(c *Ctx, _ struct{}) (view.Node, error) {
			if useA {
				return New(counter, p).WithKey("x"), nil
			}
			return New(other, p).WithKey("x"), nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(root, struct{}{})); err != nil {
			t.Fatal(err)
		}
		useA = false
		if err := tree.Update(tree.Root(), "swap"); err != nil {
			t.Fatal(err)
		}
		if p.destroyed != 1 {
			t.Errorf("expected the old component to be destroyed, got %d", p.destroyed)
		}
	})

	t.Run("FailedReplacementKeepsOldChild", func(t *testing.T) {
		boom := errors.New("boom")
		swap := false
		p := &tracker{}
		broken := func(c *Ctx, _ *tracker) (view.Node, error) { return nil, boom }
		root := func(c *Ctx, _ struct{}) (view.Node, error) {
			if swap {
				return New(broken, p).WithKey("x"), nil
			}
			return New(counter, p).WithKey("x"), nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(root, struct{}{})); err != nil {
			t.Fatal(err)
		}
		old := tree.Root().Child("x")

		swap = true
		if err := tree.Update(tree.Root(), "swap"); !errors.Is(err, boom) {
			t.Fatalf("expected the build error, got %v", err)
		}
		if tree.Root().Child("x") != old || len(tree.Root().Children()) != 1 {
			t.Errorf("expected the old child kept after a failed swap, got %s", tree.Dump())
		}
		if p.destroyed != 0 {
			t.Errorf("expected the old child alive, destroyed %d times", p.destroyed)
		}
		tree.Unmount()
		if p.destroyed != 1 {
			t.Errorf("expected one destroy on unmount, got %d", p.destroyed)
		}
	})
}

func TestSetState(t *testing.T) {
	host := &countingHost{}
	p := &tracker{}
	tree := NewTree(Options{Host: host})
	if err := tree.Mount(New(counter, p)); err != nil {
		t.Fatal(err)
	}

	p.set(0)
	if host.scheduled != 0 {
		t.Errorf("setting the same value scheduled %d updates", host.scheduled)
	}
	p.set(1)
	if host.scheduled != 1 {
		t.Errorf("expected exactly one scheduled update, got %d", host.scheduled)
	}
	p.set(2)
	if host.scheduled != 1 {
		t.Errorf("an already scheduled instance should not be scheduled again, got %d", host.scheduled)
	}

	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	if p.value != 2 || p.builds != 2 {
		t.Errorf("expected one rebuild seeing 2, got value %d after %d builds", p.value, p.builds)
	}
	if len(host.invalidated) != 2 {
		t.Errorf("expected an invalidation per build, got %d", len(host.invalidated))
	}
}

func TestUpdateLoop(t *testing.T) {
	const limit = 5
	builds := 0
	looper := func(c *Ctx, _ struct{}) (view.Node, error) {
		builds++
		v, set := UseState(c, 0)
		set(v + 1)
		return view.NewText(strconv.Itoa(v)), nil
	}

	tree := NewTree(Options{MaxRecursiveUpdates: limit})
	err := tree.Mount(New(looper, struct{}{}))
	if !errors.Is(err, ErrUpdateLoop) {
		t.Fatalf("expected ErrUpdateLoop, got %v", err)
	}
	if builds != limit+1 {
		t.Errorf("expected %d builds, got %d", limit+1, builds)
	}
	// The triggering reason, then one per rebuild request.
	var ce *Error
	if !errors.As(err, &ce) || len(ce.Chain) != limit+2 || ce.Chain[0] != "mount" {
		t.Errorf("unexpected reason chain %+v", ce)
	}
}

func TestSettleAfterReentrantSet(t *testing.T) {
	builds := 0
	settle := func(c *Ctx, _ struct{}) (view.Node, error) {
		builds++
		v, set := UseState(c, 0)
		if v < 3 {
			set(v + 1)
		}
		return view.NewText(strconv.Itoa(v)), nil
	}
	tree := NewTree(Options{})
	if err := tree.Mount(New(settle, struct{}{})); err != nil {
		t.Fatal(err)
	}
	if builds != 4 {
		t.Errorf("expected 4 builds, got %d", builds)
	}
	txt, ok := tree.Root().Output().(*view.Text)
	if !ok || txt.Content != "3" {
		t.Errorf("expected final output 3, got %#v", tree.Root().Output())
	}
	if h := tree.Root().History(); len(h) == 0 || h[0] != "mount" {
		t.Errorf("unexpected history %v", h)
	}
}

func TestEffects(t *testing.T) {
	type fxProps struct {
		dep      *int
		runs     *int
		cleanups *int
		order    *[]string
	}
	fx := func(c *Ctx, p fxProps) (view.Node, error) {
		UseEffect(c, func() func() {
			*p.runs++
			return func() { *p.cleanups++ }
		}, *p.dep)
		Effect(c, func() { *p.order = append(*p.order, "effect") })
		OnNextUpdate(c, func() { *p.order = append(*p.order, "next") })
		*p.order = append(*p.order, "build")
		return nil, nil
	}

	dep, runs, cleanups := 1, 0, 0
	var order []string
	tree := NewTree(Options{})
	if err := tree.Mount(New(fx, fxProps{&dep, &runs, &cleanups, &order})); err != nil {
		t.Fatal(err)
	}
	if err := tree.Update(tree.Root(), "same dep"); err != nil {
		t.Fatal(err)
	}
	if runs != 1 || cleanups != 0 {
		t.Errorf("unchanged deps: runs=%d cleanups=%d", runs, cleanups)
	}

	dep = 2
	if err := tree.Update(tree.Root(), "new dep"); err != nil {
		t.Fatal(err)
	}
	if runs != 2 || cleanups != 1 {
		t.Errorf("changed deps: runs=%d cleanups=%d", runs, cleanups)
	}

	tree.Unmount()
	if cleanups != 2 {
		t.Errorf("expected cleanup on destroy, got %d", cleanups)
	}

	want := []string{
		"build", "effect",
		"next", "build", "effect",
		"next", "build", "effect",
		"next",
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("lifecycle order mismatch (-want +got):\n%s", diff)
	}
}

func TestHookOrder(t *testing.T) {
	extra := false
	fn := func(c *Ctx, _ struct{}) (view.Node, error) {
		UseState(c, 0)
		if extra {
			UseRef(c, "")
		}
		return nil, nil
	}
	tree := NewTree(Options{})
	if err := tree.Mount(New(fn, struct{}{})); err != nil {
		t.Fatal(err)
	}
	extra = true
	if err := tree.Update(tree.Root(), "conditional hook"); !errors.Is(err, ErrHookOrder) {
		t.Errorf("expected ErrHookOrder, got %v", err)
	}
}

func TestBoundary(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	failing := func(c *Ctx, _ struct{}) (view.Node, error) {
		if fail {
			return nil, boom
		}
		return view.NewText("ok"), nil
	}
	var caught error
	root := func(c *Ctx, _ struct{}) (view.Node, error) {
		return view.Col(Boundary("guard", func(err error) view.Node {
			caught = err
			return view.NewText("fallback")
		}, New(failing, struct{}{}))), nil
	}

	tree := NewTree(Options{})
	if err := tree.Mount(New(root, struct{}{})); err != nil {
		t.Fatalf("boundary should swallow the error, got %v", err)
	}
	if !errors.Is(caught, boom) {
		t.Errorf("fallback saw %v", caught)
	}
	guard := tree.Root().Child("guard")
	if txt, ok := guard.Output().(*view.Text); !ok || txt.Content != "fallback" {
		t.Errorf("expected fallback output, got %#v", guard.Output())
	}

	fail = false
	if err := tree.Update(tree.Root(), "retry"); err != nil {
		t.Fatal(err)
	}
	if len(guard.Children()) != 1 {
		t.Fatalf("expected the child to be retried, got %s", tree.Dump())
	}

	t.Run("Unguarded", func(t *testing.T) {
		fail = true
		tree := NewTree(Options{})
		err := tree.Mount(New(failing, struct{}{}))
		if !errors.Is(err, boom) {
			t.Fatalf("expected the error to propagate, got %v", err)
		}
		var ce *Error
		if !errors.As(err, &ce) || !strings.Contains(ce.Path, "func") {
			t.Errorf("expected an instance path, got %v", err)
		}
	})

	t.Run("FailingReplacement", func(t *testing.T) {
		swap := false
		p := &tracker{}
		broken := func(c *Ctx, _ *tracker) (view.Node, error) { return nil, boom }
		root := func(c *Ctx, _ struct{}) (view.Node, error) {
			child := New(counter, p).WithKey("x")
			if swap {
				child = New(broken, p).WithKey("x")
			}
			return Boundary("guard", func(error) view.Node { return view.NewText("fallback") }, child), nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(root, struct{}{})); err != nil {
			t.Fatal(err)
		}

		swap = true
		if err := tree.Update(tree.Root(), "swap"); err != nil {
			t.Fatalf("boundary should swallow the error, got %v", err)
		}
		guard := tree.Root().Child("guard")
		if txt, ok := guard.Output().(*view.Text); !ok || txt.Content != "fallback" {
			t.Errorf("expected fallback output, got %#v", guard.Output())
		}
		if p.destroyed != 1 {
			t.Errorf("expected the replaced child destroyed once, got %d", p.destroyed)
		}
		tree.Unmount()
		if p.destroyed != 1 {
			t.Errorf("expected no second destroy on unmount, got %d", p.destroyed)
		}
	})

	t.Run("ContractViolationsPassThrough", func(t *testing.T) {
		dup := func(c *Ctx, _ struct{}) (view.Node, error) {
			p := &tracker{}
			return view.Row(New(counter, p).WithKey("k"), New(counter, p).WithKey("k")), nil
		}
		root := func(c *Ctx, _ struct{}) (view.Node, error) {
			return Boundary("guard", func(error) view.Node { return nil }, New(dup, struct{}{})), nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(root, struct{}{})); !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("expected ErrDuplicateKey through the boundary, got %v", err)
		}
	})
}

func TestEach(t *testing.T) {
	type item struct{ id, label string }
	items := []item{{"1", "one"}, {"2", "two"}}
	nodes, err := Each(items, func(i item) string { return i.id }, func(i item) view.Node {
		return view.NewText(i.label)
	})
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, n := range nodes {
		keys = append(keys, n.Attributes().Key)
	}
	if diff := cmp.Diff([]string{"1", "2"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	_, err = Each([]item{{"", "anon"}}, func(i item) string { return i.id }, func(i item) view.Node {
		return view.NewText(i.label)
	})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}

func TestUseInput(t *testing.T) {
	host := &countingHost{}
	p := &tracker{}
	typed := func(c *Ctx, p *tracker) (view.Node, error) {
		v, set := UseState(c, 0)
		p.value = v
		UseInput(c, func(k Key) {
			if k == "up" {
				set(v + 1)
			}
		})
		return nil, nil
	}
	tree := NewTree(Options{Host: host})
	if err := tree.Mount(New(typed, p)); err != nil {
		t.Fatal(err)
	}
	host.send("up")
	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	host.send("up")
	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	if p.value != 2 {
		t.Errorf("expected 2 after two key presses, got %d", p.value)
	}
	if len(host.subs) != 1 {
		t.Errorf("expected one subscription across builds, got %d", len(host.subs))
	}
	tree.Unmount()
	if host.subs[0] != nil {
		t.Error("expected unsubscribe on destroy")
	}
}

func TestReducer(t *testing.T) {
	var dispatch func(string)
	var seen []int
	fn := func(c *Ctx, _ struct{}) (view.Node, error) {
		n, d := UseReducer(c, func(s int, a string) int {
			if a == "inc" {
				return s + 1
			}
			return 0
		}, 10)
		dispatch = d
		seen = append(seen, n)
		return nil, nil
	}
	tree := NewTree(Options{})
	if err := tree.Mount(New(fn, struct{}{})); err != nil {
		t.Fatal(err)
	}
	dispatch("inc")
	dispatch("inc")
	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	dispatch("reset")
	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{10, 12, 0}, seen); diff != "" {
		t.Errorf("reducer states mismatch (-want +got):\n%s", diff)
	}
}

func TestFlushParentsFirst(t *testing.T) {
	var order []string
	child := func(c *Ctx, p *tracker) (view.Node, error) {
		order = append(order, "child")
		v, set := UseState(c, 0)
		p.value, p.set = v, set
		return nil, nil
	}
	cp, pp := &tracker{}, &tracker{}
	parent := func(c *Ctx, p *tracker) (view.Node, error) {
		order = append(order, "parent")
		v, set := UseState(c, 0)
		p.value, p.set = v, set
		return New(child, cp), nil
	}
	tree := NewTree(Options{})
	if err := tree.Mount(New(parent, pp)); err != nil {
		t.Fatal(err)
	}
	order = nil

	cp.set(1)
	pp.set(1)
	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	// The child is rebuilt once, as part of the parent's reconcile.
	if diff := cmp.Diff([]string{"parent", "child"}, order); diff != "" {
		t.Errorf("flush order mismatch (-want +got):\n%s", diff)
	}
}

func TestDump(t *testing.T) {
	keys := []string{"a"}
	props := listProps{keys: &keys, trackers: map[string]*tracker{}}
	tree := NewTree(Options{})
	if err := tree.Mount(New(list, props).Named("List")); err != nil {
		t.Fatal(err)
	}
	want := "List\n  counter [a] hooks=2\n"
	if diff := cmp.Diff(want, tree.Dump()); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
	if got := tree.Root().Child("a").Path(); got != "List/counter[a]" {
		t.Errorf("unexpected path %q", got)
	}
}

func TestSame(t *testing.T) {
	s := []int{1, 2}
	m := map[string]int{}
	p := &tracker{}
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"strings", "a", "a", true},
		{"same slice", s, s, true},
		{"equal slices", []int{1, 2}, []int{1, 2}, false},
		{"same map", m, m, true},
		{"same pointer", p, p, true},
		{"funcs", func() {}, func() {}, false},
		{"nils", nil, nil, true},
		{"nil and value", nil, 0, false},
		{"types", int32(1), int64(1), false},
		{"uncomparable struct", struct{ s []int }{s}, struct{ s []int }{s}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := same(tt.a, tt.b); got != tt.want {
				t.Errorf("same(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFlushFailureKeepsQueue(t *testing.T) {
	boom := errors.New("boom")
	a, b := &tracker{}, &tracker{}
	fragile := func(c *Ctx, p *tracker) (view.Node, error) {
		p.builds++
		v, set := UseState(c, 0)
		p.value, p.set = v, set
		if v < 0 {
			return nil, boom
		}
		return nil, nil
	}
	root := func(c *Ctx, _ struct{}) (view.Node, error) {
		return view.Row(New(fragile, a).WithKey("a"), New(fragile, b).WithKey("b")), nil
	}
	tree := NewTree(Options{})
	if err := tree.Mount(New(root, struct{}{})); err != nil {
		t.Fatal(err)
	}

	a.set(-1)
	b.set(1)
	if err := tree.Flush(); !errors.Is(err, boom) {
		t.Fatalf("expected the build error, got %v", err)
	}
	if !tree.Pending() {
		t.Fatal("expected the unreached update to stay queued")
	}

	b.set(2)
	if err := tree.Flush(); err != nil {
		t.Fatal(err)
	}
	if b.value != 2 {
		t.Errorf("expected b rebuilt with 2, got %d", b.value)
	}
	if tree.Pending() {
		t.Error("expected an empty queue after the retry")
	}
}
