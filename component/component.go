// Package component reconciles a tree of stateful component functions into a
// view tree.
//
// A component is a Func: it receives a build context and its props and
// returns the view it wants drawn. Views may contain further components as
// *Element nodes; after each build the reconciler matches those elements to
// child instances by key, reusing, creating or destroying instances so that
// hook state survives for as long as a key keeps appearing under the same
// parent.
//
// All tree mutation happens on one goroutine, the one calling Mount, Flush
// and Update. Work from other goroutines enters through Tree.Post.
package component

import (
	"errors"
	"reflect"
	"runtime"
	"strings"

	"github.com/kungfusheep/dualview/view"
)

// Func is a component function.
type Func[P any] func(c *Ctx, props P) (view.Node, error)

type buildFunc func(c *Ctx, props any) (view.Node, error)

// Element is a component invocation inside a view. It is a view.Mount whose
// content is the output of the instance it was matched to.
type Element struct {
	view.Attrs
	name     string
	fnID     uintptr
	props    any
	build    buildFunc
	fallback func(error) view.Node
	inst     *Instance
}

// New returns an element invoking fn with props.
func New[P any](fn Func[P], props P) *Element {
	ptr := reflect.ValueOf(fn).Pointer()
	return &Element{
		name:  funcName(ptr),
		fnID:  ptr,
		props: props,
		build: func(c *Ctx, p any) (view.Node, error) {
			return fn(c, p.(P))
		},
	}
}

// WithKey sets the element's key among its siblings.
func (e *Element) WithKey(key string) *Element {
	e.Key = key
	return e
}

// Named overrides the name shown in paths, errors and dumps.
func (e *Element) Named(name string) *Element {
	e.name = name
	return e
}

func (*Element) Kind() view.Kind { return view.KindMount }

// Content returns the matched instance's output, or nil before it is built.
func (e *Element) Content() view.Node {
	if e.inst == nil {
		return nil
	}
	return e.inst.output
}

// Instance returns the instance the element was matched to.
func (e *Element) Instance() *Instance { return e.inst }

func funcName(ptr uintptr) string {
	f := runtime.FuncForPC(ptr)
	if f == nil {
		return "component"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Instance is one live invocation site of a component.
type Instance struct {
	tree   *Tree
	parent *Instance
	depth  int
	key    string
	name   string

	fnID     uintptr
	props    any
	build    buildFunc
	fallback func(error) view.Node

	slots  []any
	cursor int
	built  bool // a build has completed, so the hook count is fixed

	effects   []func()
	onNext    []func() // update-scoped destructors, run before the next build
	permanent []func() // run once on destroy

	provided map[contextID]any
	resolved map[contextID]resolution

	children map[string]*Instance
	order    []string

	output view.Node
	mount  *Element

	updating  bool
	dead      bool
	pending   bool
	scheduled bool
	stale     bool
	reasons   []string
	history   []string
}

type resolution struct {
	value any
	from  *Instance // nil when the default was used
}

func newInstance(t *Tree, parent *Instance, el *Element, key string) *Instance {
	inst := &Instance{
		tree:     t,
		parent:   parent,
		key:      key,
		name:     el.name,
		fnID:     el.fnID,
		props:    el.props,
		build:    el.build,
		fallback: el.fallback,
		mount:    el,
	}
	if parent != nil {
		inst.depth = parent.depth + 1
	}
	el.inst = inst
	return inst
}

// Key returns the instance's key under its parent.
func (i *Instance) Key() string { return i.key }

// Name returns the component name.
func (i *Instance) Name() string { return i.name }

// Parent returns the owning instance, nil for the root.
func (i *Instance) Parent() *Instance { return i.parent }

// Output returns the view produced by the last successful build.
func (i *Instance) Output() view.Node { return i.output }

// Dead reports whether the instance was destroyed.
func (i *Instance) Dead() bool { return i.dead }

// Children returns the child instances in document order.
func (i *Instance) Children() []*Instance {
	out := make([]*Instance, 0, len(i.order))
	for _, k := range i.order {
		if child, ok := i.children[k]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Child returns the child with the given key.
func (i *Instance) Child(key string) *Instance { return i.children[key] }

// History returns the most recent update reasons, oldest first.
func (i *Instance) History() []string {
	return append([]string(nil), i.history...)
}

// Path identifies the instance from the root, e.g. "App/List[items]/Row[3]".
func (i *Instance) Path() string {
	var parts []string
	for n := i; n != nil; n = n.parent {
		seg := n.name
		if n.parent != nil {
			seg += "[" + n.key + "]"
		}
		parts = append(parts, seg)
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, "/")
}

func (i *Instance) note(reason string) {
	limit := i.tree.opts.HistorySize
	if limit <= 0 {
		return
	}
	if len(i.history) >= limit {
		copy(i.history, i.history[1:])
		i.history = i.history[:limit-1]
	}
	i.history = append(i.history, reason)
}

func (i *Instance) fail(err error, chain ...string) *Error {
	return &Error{Path: i.Path(), Err: err, Chain: chain}
}

func (i *Instance) wrap(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return i.fail(err)
}
