package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kungfusheep/dualview/bounds"
)

type slot struct {
	Attrs
	content Node
}

func (*slot) Kind() Kind      { return KindMount }
func (s *slot) Content() Node { return s.content }

func TestWalk(t *testing.T) {
	inner := NewText("inner")
	tree := Col(
		NewText("a"),
		Row(NewText("b"), &Fill{}),
		&slot{content: Col(inner)},
	)

	var kinds []string
	Walk(tree, func(n Node) bool {
		kinds = append(kinds, n.Kind().String())
		return true
	})
	want := []string{"box", "text", "box", "text", "fill", "mount", "box", "text"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}

	t.Run("Prune", func(t *testing.T) {
		count := 0
		Walk(tree, func(n Node) bool {
			count++
			_, isBox := n.(*Box)
			return !isBox || n == tree
		})
		// root, "a", the row (pruned), the mount, its box (pruned)
		if count != 5 {
			t.Errorf("expected 5 visits, got %d", count)
		}
	})
}

func TestBuilders(t *testing.T) {
	txt := Keyed(At(NewText("x"), bounds.Spec{Width: "3"}), "k")
	if txt.Key != "k" {
		t.Errorf("expected key k, got %q", txt.Key)
	}
	if txt.Bounds == nil || txt.Bounds.Width != "3" {
		t.Errorf("expected width spec, got %+v", txt.Bounds)
	}
	row := Row().Gap("1")
	if row.Layout.Direction != bounds.Horizontal || row.Layout.Gap != "1" {
		t.Errorf("unexpected layout %+v", row.Layout)
	}
}

func TestHex(t *testing.T) {
	c := Hex("#ff0000")
	if c == nil {
		t.Fatal("expected a color")
	}
	r, g, b, _ := c.RGBA()
	if r>>8 != 0xff || g != 0 || b != 0 {
		t.Errorf("unexpected rgb %d %d %d", r>>8, g>>8, b>>8)
	}
	if Hex("nope") != nil {
		t.Error("expected nil for invalid input")
	}
}
