package component

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kungfusheep/dualview/view"
)

// Key is an input event name in the form bubbletea prints keys:
// "a", "enter", "ctrl+c", "alt+left".
type Key string

// Host connects a tree to whatever drives it.
type Host interface {
	// Schedule is called when inst has a pending update, or with nil when
	// work was posted. The host should call Flush soon.
	Schedule(inst *Instance)
	// Invalidate is called with an instance's mount after it rebuilt.
	Invalidate(n view.Node)
	// Subscribe registers an input handler.
	Subscribe(fn func(Key)) (unsubscribe func())
}

type nopHost struct{}

func (nopHost) Schedule(*Instance)                  {}
func (nopHost) Invalidate(view.Node)                {}
func (nopHost) Subscribe(func(Key)) (unsub func()) { return func() {} }

// Options configures a Tree.
type Options struct {
	MaxRecursiveUpdates int // default 100
	HistorySize         int // default 32
	Logger              *log.Logger
	Host                Host
}

// Tree owns the instances created under one root.
type Tree struct {
	opts Options
	log  *log.Logger
	host Host
	root *Instance

	queue []*Instance

	mu    sync.Mutex
	inbox []func()
}

// NewTree returns an empty tree.
func NewTree(opts Options) *Tree {
	if opts.MaxRecursiveUpdates <= 0 {
		opts.MaxRecursiveUpdates = 100
	}
	if opts.HistorySize == 0 {
		opts.HistorySize = 32
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Host == nil {
		opts.Host = nopHost{}
	}
	return &Tree{opts: opts, log: opts.Logger, host: opts.Host}
}

// Mount builds el as the root, replacing any previous root.
func (t *Tree) Mount(el *Element) error {
	if t.root != nil {
		t.destroy(t.root)
	}
	t.root = newInstance(t, nil, el, "")
	return t.update(t.root, "mount")
}

// Root returns the root instance.
func (t *Tree) Root() *Instance { return t.root }

// View returns the root mount, the node to hand to a compositor.
func (t *Tree) View() view.Node {
	if t.root == nil {
		return nil
	}
	return t.root.mount
}

// Unmount destroys the whole tree, running every permanent destructor.
func (t *Tree) Unmount() {
	if t.root != nil {
		t.destroy(t.root)
		t.root = nil
	}
	t.queue = nil
}

// Post queues fn to run on the tree's goroutine at the next Flush. It is safe
// to call from any goroutine.
func (t *Tree) Post(fn func()) {
	t.mu.Lock()
	t.inbox = append(t.inbox, fn)
	t.mu.Unlock()
	t.host.Schedule(nil)
}

func (t *Tree) drain() {
	t.mu.Lock()
	fns := t.inbox
	t.inbox = nil
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Pending reports whether a Flush has work to do.
func (t *Tree) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue) > 0 || len(t.inbox) > 0
}

// Flush runs posted work, then every scheduled update, parents before
// children. An instance updated as part of its parent's rebuild is skipped.
func (t *Tree) Flush() error {
	t.drain()
	for pass := 0; len(t.queue) > 0; pass++ {
		if pass > t.opts.MaxRecursiveUpdates {
			var chain []string
			for _, inst := range t.queue {
				chain = append(chain, inst.Path())
				inst.scheduled = false
				inst.pending = false
				inst.reasons = nil
			}
			t.queue = nil
			return &Error{Err: ErrUpdateLoop, Chain: chain}
		}

		q := t.queue
		t.queue = nil
		sort.SliceStable(q, func(i, j int) bool { return q[i].depth < q[j].depth })
		for i, inst := range q {
			inst.scheduled = false
			if inst.dead || !inst.pending {
				continue
			}
			reason := strings.Join(inst.reasons, ", ")
			if err := t.update(inst, reason); err != nil {
				if b := boundaryFor(inst.parent, err); b != nil {
					err = t.applyFallback(b, err)
				}
				if err != nil {
					t.requeue(q[i+1:])
					return err
				}
			}
		}
	}
	return nil
}

// requeue puts back instances a failed Flush did not reach, so the next
// Flush still updates them.
func (t *Tree) requeue(rest []*Instance) {
	for _, inst := range rest {
		if inst.dead || !inst.scheduled {
			continue
		}
		t.queue = append(t.queue, inst)
	}
}

// Update rebuilds inst now.
func (t *Tree) Update(inst *Instance, reason string) error {
	return t.update(inst, reason)
}

func (t *Tree) update(inst *Instance, reason string) error {
	if inst.dead {
		return inst.fail(ErrDeadInstance)
	}
	inst.note(reason)
	if inst.updating {
		inst.pending = true
		inst.reasons = append(inst.reasons, reason)
		t.log.Debug("deferred update", "path", inst.Path(), "reason", reason)
		return nil
	}

	chain := []string{reason}
	for attempt := 1; ; attempt++ {
		inst.pending = false
		inst.reasons = nil
		if err := t.buildOnce(inst); err != nil {
			return err
		}
		if !inst.pending {
			return nil
		}
		chain = append(chain, strings.Join(inst.reasons, ", "))
		if attempt > t.opts.MaxRecursiveUpdates {
			inst.pending = false
			inst.reasons = nil
			return inst.fail(ErrUpdateLoop, chain...)
		}
	}
}

// request marks inst as needing an update. Called by setters.
func (t *Tree) request(inst *Instance, reason string) {
	if inst.dead {
		return
	}
	inst.pending = true
	inst.reasons = append(inst.reasons, reason)
	if inst.updating {
		inst.note(reason)
		return
	}
	if inst.scheduled {
		return
	}
	inst.scheduled = true
	t.queue = append(t.queue, inst)
	t.host.Schedule(inst)
}

func (t *Tree) buildOnce(inst *Instance) (err error) {
	inst.updating = true
	defer func() { inst.updating = false }()

	inst.stale = false
	runAll(inst.onNext)
	inst.onNext = nil
	inst.cursor = 0
	inst.effects = inst.effects[:0]
	prevProvided := inst.provided
	inst.provided = nil

	c := &Ctx{tree: t, inst: inst}
	out, err := construct(c, inst)
	if err != nil {
		inst.provided = prevProvided
		return inst.wrap(err)
	}
	if inst.built && inst.cursor != len(inst.slots) {
		return inst.fail(fmt.Errorf("%w: %d hooks, previously %d", ErrHookOrder, inst.cursor, len(inst.slots)))
	}
	inst.built = true

	t.markStaleConsumers(inst, prevProvided)

	if err := t.reconcile(inst, out); err != nil {
		if inst.fallback == nil || fatal(err) {
			return err
		}
		return t.applyFallback(inst, err)
	}
	inst.output = out
	if inst.mount != nil {
		t.host.Invalidate(inst.mount)
	}

	// Effects may queue more effects; a pending update stops the run since
	// the rebuild will queue them again.
	for i := 0; i < len(inst.effects) && !inst.pending; i++ {
		inst.effects[i]()
	}
	return nil
}

func construct(c *Ctx, inst *Instance) (out view.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			err = ce
		}
	}()
	return inst.build(c, inst.props)
}

// reconcile matches the elements in out to inst's children. Elements
// without a key are keyed by their position among unkeyed elements.
func (t *Tree) reconcile(inst *Instance, out view.Node) error {
	claimed := make(map[string]*Instance)
	created := make(map[*Instance]bool)
	var order []string
	var err error
	pos := 0

	view.Walk(out, func(n view.Node) bool {
		if err != nil {
			return false
		}
		el, ok := n.(*Element)
		if !ok {
			return true
		}
		key := el.Key
		if key == "" {
			key = "#" + strconv.Itoa(pos)
			pos++
		}
		if _, dup := claimed[key]; dup {
			err = inst.fail(fmt.Errorf("%w: %q", ErrDuplicateKey, key))
			return false
		}

		// A child of another component is replaced, but stays in
		// inst.children until the whole reconcile succeeds.
		child := inst.children[key]
		if child != nil && child.fnID != el.fnID {
			child = nil
		}
		order = append(order, key)

		if child == nil {
			child = newInstance(t, inst, el, key)
			claimed[key] = child
			created[child] = true
			err = t.update(child, "mount")
			return false
		}

		claimed[key] = child
		el.inst = child
		child.mount = el
		changed := !same(child.props, el.props)
		child.props = el.props
		child.build = el.build
		child.fallback = el.fallback
		switch {
		case changed:
			err = t.update(child, "props")
		case child.stale:
			err = t.update(child, "context")
		case child.pending:
			err = t.update(child, strings.Join(child.reasons, ", "))
		}
		return false
	})

	if err != nil {
		for c := range created {
			if !c.dead {
				t.destroy(c)
			}
		}
		return err
	}

	for _, k := range inst.order {
		if child, ok := inst.children[k]; ok && claimed[k] != child {
			t.destroy(child)
		}
	}
	inst.children = claimed
	inst.order = order
	return nil
}

// applyFallback replaces a boundary's output after a descendant failed.
func (t *Tree) applyFallback(b *Instance, cause error) error {
	t.log.Warn("error boundary engaged", "path", b.Path(), "err", cause)
	for _, child := range b.Children() {
		t.destroy(child)
	}
	b.children = nil
	b.order = nil
	out := b.fallback(cause)
	if err := t.reconcile(b, out); err != nil {
		return err
	}
	b.output = out
	if b.mount != nil {
		t.host.Invalidate(b.mount)
	}
	return nil
}

func boundaryFor(inst *Instance, err error) *Instance {
	if fatal(err) {
		return nil
	}
	for n := inst; n != nil; n = n.parent {
		if n.fallback != nil {
			return n
		}
	}
	return nil
}

// destroy tears down inst and its subtree, children first.
func (t *Tree) destroy(inst *Instance) {
	if inst.dead {
		return
	}
	for _, child := range inst.Children() {
		t.destroy(child)
	}
	inst.dead = true
	runAll(inst.onNext)
	inst.onNext = nil
	for i := len(inst.permanent) - 1; i >= 0; i-- {
		inst.permanent[i]()
	}
	inst.permanent = nil
	inst.children = nil
	inst.order = nil
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// Dump returns an indented listing of the live instances.
func (t *Tree) Dump() string {
	var b strings.Builder
	var walk func(inst *Instance, depth int)
	walk = func(inst *Instance, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(inst.name)
		if inst.parent != nil {
			fmt.Fprintf(&b, " [%s]", inst.key)
		}
		if inst.pending {
			b.WriteString(" pending")
		}
		if len(inst.slots) > 0 {
			fmt.Fprintf(&b, " hooks=%d", len(inst.slots))
		}
		b.WriteByte('\n')
		for _, child := range inst.Children() {
			walk(child, depth+1)
		}
	}
	if t.root != nil {
		walk(t.root, 0)
	}
	return b.String()
}
