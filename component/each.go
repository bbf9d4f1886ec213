package component

import (
	"fmt"

	"github.com/kungfusheep/dualview/view"
)

// Each renders one node per item, keyed by key(item). Keys identify the
// items across updates, so reordering a list moves instances instead of
// rebuilding them. An empty key is an error.
func Each[T any](items []T, key func(T) string, render func(T) view.Node) ([]view.Node, error) {
	out := make([]view.Node, 0, len(items))
	for i, item := range items {
		k := key(item)
		if k == "" {
			return nil, fmt.Errorf("%w: item %d", ErrMissingKey, i)
		}
		n := render(item)
		if n == nil {
			continue
		}
		n.Attributes().Key = k
		out = append(out, n)
	}
	return out, nil
}

type boundaryProps struct {
	child view.Node
}

func boundary(_ *Ctx, p boundaryProps) (view.Node, error) {
	return p.child, nil
}

// Boundary wraps child so that a failure in any component beneath it
// replaces the subtree with fallback(err) instead of failing the update.
// Contract violations such as duplicate keys and update loops are not caught.
// The subtree is retried on the boundary's next update.
func Boundary(key string, fallback func(error) view.Node, child view.Node) *Element {
	el := New(boundary, boundaryProps{child: child}).WithKey(key).Named("Boundary")
	el.fallback = fallback
	return el
}
