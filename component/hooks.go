package component

import (
	"fmt"
	"time"

	"github.com/kungfusheep/dualview/asset"
)

// Ctx is the build context handed to a component function. Hooks read and
// write the state of the instance being built through it. A Ctx is only
// valid during the call it was passed to, except where a hook documents
// otherwise.
type Ctx struct {
	tree *Tree
	inst *Instance
}

// Instance returns the instance being built.
func (c *Ctx) Instance() *Instance { return c.inst }

// Tree returns the owning tree.
func (c *Ctx) Tree() *Tree { return c.tree }

// slot returns the hook state for the next call site, creating it with init
// on the first build.
func slot[S any](c *Ctx, init func() *S) *S {
	inst := c.inst
	i := inst.cursor
	inst.cursor++
	if i < len(inst.slots) {
		s, ok := inst.slots[i].(*S)
		if !ok {
			panic(inst.fail(fmt.Errorf("%w: hook %d was %T, now %T", ErrHookOrder, i, inst.slots[i], s)))
		}
		return s
	}
	if inst.built {
		panic(inst.fail(fmt.Errorf("%w: hook %d is new", ErrHookOrder, i)))
	}
	s := init()
	inst.slots = append(inst.slots, s)
	return s
}

type stateSlot[T any] struct {
	value T
	set   func(T)
}

// UseState returns the current value of a state slot and its setter. The
// setter is stable across builds. Setting a value identical to the current
// one does nothing; otherwise the instance is scheduled for an update, or
// rebuilt again straight away when called during its own build.
func UseState[T any](c *Ctx, initial T) (T, func(T)) {
	s := slot(c, func() *stateSlot[T] { return &stateSlot[T]{value: initial} })
	if s.set == nil {
		inst, t := c.inst, c.tree
		s.set = func(v T) {
			if same(s.value, v) {
				return
			}
			s.value = v
			t.request(inst, "state")
		}
	}
	return s.value, s.set
}

// UseReducer is UseState with updates expressed as actions.
func UseReducer[S, A any](c *Ctx, reducer func(S, A) S, initial S) (S, func(A)) {
	state, set := UseState(c, initial)
	r := UseRef(c, state)
	r.Current = state
	dispatch := UseMemo(c, func() func(A) {
		return func(a A) {
			next := reducer(r.Current, a)
			r.Current = next
			set(next)
		}
	}, []any{})
	return state, dispatch
}

// Ref is a mutable box that survives rebuilds without triggering them.
type Ref[T any] struct {
	Current T
}

// UseRef returns the instance's ref for this call site.
func UseRef[T any](c *Ctx, initial T) *Ref[T] {
	return slot(c, func() *Ref[T] { return &Ref[T]{Current: initial} })
}

type memoSlot[T any] struct {
	value T
	deps  []any
	init  bool
}

// UseMemo returns fn's result, recomputing it only when deps change. A nil
// deps slice recomputes on every build; an empty one computes once.
func UseMemo[T any](c *Ctx, fn func() T, deps []any) T {
	s := slot(c, func() *memoSlot[T] { return &memoSlot[T]{} })
	if !s.init || !sameDeps(s.deps, deps) {
		s.value = fn()
		s.deps = deps
		s.init = true
	}
	return s.value
}

type effectSlot struct {
	deps    []any
	ran     bool
	cleanup func()
}

// UseEffect runs fn after the build when deps changed since the last run.
// With no deps it runs after every build. The function fn returns, if any,
// is called before the next run and when the instance is destroyed.
func UseEffect(c *Ctx, fn func() func(), deps ...any) {
	inst := c.inst
	s := slot(c, func() *effectSlot {
		s := &effectSlot{}
		inst.permanent = append(inst.permanent, func() {
			if s.cleanup != nil {
				s.cleanup()
				s.cleanup = nil
			}
		})
		return s
	})
	if s.ran && deps != nil && sameDeps(s.deps, deps) {
		return
	}
	inst.effects = append(inst.effects, func() {
		if s.cleanup != nil {
			s.cleanup()
		}
		s.cleanup = fn()
		s.deps = deps
		s.ran = true
	})
}

// UseMount runs fn after the first build only. Its returned function runs on
// destroy.
func UseMount(c *Ctx, fn func() func()) {
	UseEffect(c, fn, []any{}...)
}

// Effect queues fn to run once after this build.
func Effect(c *Ctx, fn func()) {
	c.inst.effects = append(c.inst.effects, fn)
}

// OnNextUpdate registers fn to run before the instance's next build, or on
// destroy if there is none.
func OnNextUpdate(c *Ctx, fn func()) {
	c.inst.onNext = append(c.inst.onNext, fn)
}

type destroySlot struct{ fn func() }

// UseOnDestroy registers fn to run once when the instance is destroyed. The
// most recent fn wins.
func UseOnDestroy(c *Ctx, fn func()) {
	inst := c.inst
	s := slot(c, func() *destroySlot {
		s := &destroySlot{}
		inst.permanent = append(inst.permanent, func() { s.fn() })
		return s
	})
	s.fn = fn
}

type inputSlot struct{ fn func(Key) }

// UseInput subscribes fn to input events for the lifetime of the instance.
func UseInput(c *Ctx, fn func(Key)) {
	inst, t := c.inst, c.tree
	s := slot(c, func() *inputSlot {
		s := &inputSlot{}
		unsub := t.host.Subscribe(func(k Key) {
			if !inst.dead && s.fn != nil {
				s.fn(k)
			}
		})
		inst.permanent = append(inst.permanent, unsub)
		return s
	})
	s.fn = fn
}

type intervalSlot struct {
	fn     func()
	period time.Duration
	stop   chan struct{}
}

// UseInterval calls fn every d on the tree's goroutine until the instance is
// destroyed or d changes.
func UseInterval(c *Ctx, d time.Duration, fn func()) {
	inst, t := c.inst, c.tree
	s := slot(c, func() *intervalSlot {
		s := &intervalSlot{}
		inst.permanent = append(inst.permanent, func() { s.halt() })
		return s
	})
	s.fn = fn
	if s.period == d && s.stop != nil {
		return
	}
	s.halt()
	s.period = d
	if d <= 0 {
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	go func() {
		tick := time.NewTicker(d)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				t.Post(func() {
					if !inst.dead && s.stop == stop {
						s.fn()
					}
				})
			}
		}
	}()
}

func (s *intervalSlot) halt() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

type assetSlot struct {
	waiting map[string]bool
}

// UseAsset returns the asset stored under key, starting its load on first
// use. Until the load finishes ok is false; when it finishes the instance is
// scheduled for an update. Failed loads are logged and reported as err on
// every build until the key changes.
func UseAsset[T any](c *Ctx, cache *asset.Cache, key string, load func() (T, error)) (v T, ok bool, err error) {
	inst, t := c.inst, c.tree
	s := slot(c, func() *assetSlot { return &assetSlot{waiting: make(map[string]bool)} })

	v, ok, err = asset.LoadAsync(cache, key, load)
	if ok || err != nil {
		delete(s.waiting, key)
		if err != nil {
			t.log.Warn("asset load failed", "key", key, "path", inst.Path(), "err", err)
		}
		return v, ok, err
	}
	if !s.waiting[key] {
		s.waiting[key] = true
		cache.OnReady(key, func(any, error) {
			t.Post(func() { t.request(inst, "asset "+key) })
		})
	}
	return v, false, nil
}

type observableSlot[T any] struct {
	obs   *Observable[T]
	unsub func()
}

// UseObservable binds obs to the instance: any mutation schedules an update.
// It returns the current items.
func UseObservable[T any](c *Ctx, obs *Observable[T]) []T {
	inst, t := c.inst, c.tree
	s := slot(c, func() *observableSlot[T] {
		s := &observableSlot[T]{}
		inst.permanent = append(inst.permanent, func() {
			if s.unsub != nil {
				s.unsub()
			}
		})
		return s
	})
	if s.obs != obs {
		if s.unsub != nil {
			s.unsub()
		}
		s.obs = obs
		s.unsub = obs.Subscribe(func(Change[T]) { t.request(inst, "observable") })
	}
	return obs.Items()
}
