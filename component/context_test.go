package component

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kungfusheep/dualview/view"
)

var theme = NewContext("theme", "light")

type themeProbe struct {
	setTheme func(string)
	provide  bool
	seen     []string
	middle   int
}

func themeConsumer(c *Ctx, p *themeProbe) (view.Node, error) {
	v := UseContext(c, theme)
	p.seen = append(p.seen, v)
	return view.NewText(v), nil
}

func themeMiddle(c *Ctx, p *themeProbe) (view.Node, error) {
	p.middle++
	return view.Col(New(themeConsumer, p)), nil
}

func themeProvider(c *Ctx, p *themeProbe) (view.Node, error) {
	v, set := UseState(c, "dark")
	p.setTheme = set
	if p.provide {
		Provide(c, theme, v)
	}
	return view.Col(New(themeMiddle, p)), nil
}

func TestContext(t *testing.T) {
	t.Run("NearestProvider", func(t *testing.T) {
		p := &themeProbe{provide: true}
		tree := NewTree(Options{})
		if err := tree.Mount(New(themeProvider, p)); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"dark"}, p.seen); diff != "" {
			t.Errorf("seen mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Default", func(t *testing.T) {
		p := &themeProbe{}
		tree := NewTree(Options{})
		if err := tree.Mount(New(themeProvider, p)); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"light"}, p.seen); diff != "" {
			t.Errorf("seen mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ChangeForcesConsumers", func(t *testing.T) {
		p := &themeProbe{provide: true}
		tree := NewTree(Options{})
		if err := tree.Mount(New(themeProvider, p)); err != nil {
			t.Fatal(err)
		}

		p.setTheme("blue")
		if err := tree.Flush(); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"dark", "blue"}, p.seen); diff != "" {
			t.Errorf("seen mismatch (-want +got):\n%s", diff)
		}
		if p.middle != 1 {
			t.Errorf("the non-consuming middle should not rebuild, built %d times", p.middle)
		}

		// An unrelated rebuild of the provider leaves the cached value alone.
		if err := tree.Update(tree.Root(), "noop"); err != nil {
			t.Fatal(err)
		}
		if len(p.seen) != 2 {
			t.Errorf("consumer rebuilt without a context change: %v", p.seen)
		}
	})

	t.Run("ProvideTwice", func(t *testing.T) {
		twice := func(c *Ctx, _ struct{}) (view.Node, error) {
			Provide(c, theme, "a")
			Provide(c, theme, "b")
			return nil, nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(twice, struct{}{})); !errors.Is(err, ErrContextProvided) {
			t.Errorf("expected ErrContextProvided, got %v", err)
		}
	})

	t.Run("Required", func(t *testing.T) {
		session := NewRequiredContext[int]("session")
		needy := func(c *Ctx, _ struct{}) (view.Node, error) {
			UseContext(c, session)
			return nil, nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(needy, struct{}{})); !errors.Is(err, ErrNoContextDefault) {
			t.Errorf("expected ErrNoContextDefault, got %v", err)
		}
	})

	t.Run("OwnValue", func(t *testing.T) {
		var got string
		self := func(c *Ctx, _ struct{}) (view.Node, error) {
			Provide(c, theme, "mine")
			got = UseContext(c, theme)
			return nil, nil
		}
		tree := NewTree(Options{})
		if err := tree.Mount(New(self, struct{}{})); err != nil {
			t.Fatal(err)
		}
		if got != "mine" {
			t.Errorf("expected the instance's own value, got %q", got)
		}
	})
}
