package component

import (
	"fmt"
)

type contextID interface {
	contextName() string
}

// Context is a value passed implicitly from an instance to its descendants.
// Its identity is the pointer returned by NewContext.
type Context[T any] struct {
	name   string
	def    T
	hasDef bool
}

// NewContext returns a context whose consumers see def when no ancestor
// provides a value.
func NewContext[T any](name string, def T) *Context[T] {
	return &Context[T]{name: name, def: def, hasDef: true}
}

// NewRequiredContext returns a context with no default. Consuming it without
// a provider is an error.
func NewRequiredContext[T any](name string) *Context[T] {
	return &Context[T]{name: name}
}

func (k *Context[T]) contextName() string { return k.name }

// Provide makes v visible to UseContext calls in this instance and its
// descendants. Providing the same context twice in one build is an error.
// Changing the value forces an update of descendants that consumed it.
func Provide[T any](c *Ctx, k *Context[T], v T) {
	inst := c.inst
	if _, dup := inst.provided[k]; dup {
		panic(inst.fail(fmt.Errorf("%w: %s", ErrContextProvided, k.name)))
	}
	if inst.provided == nil {
		inst.provided = make(map[contextID]any)
	}
	inst.provided[k] = v
}

// UseContext returns the nearest provided value of k, searching the instance
// itself and then its ancestors. The result is cached on the instance until
// the provider changes it.
func UseContext[T any](c *Ctx, k *Context[T]) T {
	inst := c.inst
	if v, ok := inst.provided[k]; ok {
		return v.(T)
	}
	if r, ok := inst.resolved[k]; ok {
		return r.value.(T)
	}

	r := resolution{}
	found := false
	for p := inst.parent; p != nil; p = p.parent {
		if v, ok := p.provided[k]; ok {
			r = resolution{value: v, from: p}
			found = true
			break
		}
	}
	if !found {
		if !k.hasDef {
			panic(inst.fail(fmt.Errorf("%w: %s", ErrNoContextDefault, k.name)))
		}
		r.value = k.def
	}
	if inst.resolved == nil {
		inst.resolved = make(map[contextID]resolution)
	}
	inst.resolved[k] = r
	return r.value.(T)
}

// markStaleConsumers finds descendants holding a cached value from inst for
// any context whose value changed in this build, drops the cache and marks
// them for a forced update.
func (t *Tree) markStaleConsumers(inst *Instance, prev map[contextID]any) {
	var changed []contextID
	for k, old := range prev {
		if v, ok := inst.provided[k]; !ok || !same(old, v) {
			changed = append(changed, k)
		}
	}
	for k := range inst.provided {
		if _, ok := prev[k]; !ok {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		return
	}

	var visit func(n *Instance)
	visit = func(n *Instance) {
		for _, child := range n.Children() {
			for _, k := range changed {
				r, ok := child.resolved[k]
				if !ok {
					continue
				}
				// A newly added provider shadows defaults and farther
				// ancestors too.
				if r.from == inst || r.from == nil || isAncestor(r.from, inst) {
					delete(child.resolved, k)
					child.stale = true
				}
			}
			if child.stale && child.parent != inst {
				t.request(child, "context")
			}
			visit(child)
		}
	}
	visit(inst)
}

func isAncestor(a, b *Instance) bool {
	for p := b.parent; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}
