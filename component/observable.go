package component

// Observable is a list that notifies on changes. It exposes a fixed set of
// mutations, each of which notifies subscribers; mutating the slice returned
// by Items does not. Every mutation replaces the backing slice, so a slice
// passed on as props compares unequal after any change.
//
// Mutations must happen on the tree's goroutine, for example from an input
// handler, an effect or a function passed to Tree.Post.
type Observable[T any] struct {
	items  []T
	subs   map[int]func(Change[T])
	nextID int
}

// Change describes a modification to the observable.
type Change[T any] struct {
	Type  ChangeType
	Index int
	Item  T // For Push/Insert/Update, the new value
	Old   T // For Update/RemoveAt, the old value
}

type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeUpdate
	ChangeRemove
	ChangeClear
	ChangeSet // Full replacement
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeRemove:
		return "remove"
	case ChangeClear:
		return "clear"
	case ChangeSet:
		return "set"
	default:
		return "unknown"
	}
}

// NewObservable creates an observable holding items.
func NewObservable[T any](items ...T) *Observable[T] {
	return &Observable[T]{items: items}
}

// Items returns all items.
func (o *Observable[T]) Items() []T {
	return o.items
}

// Len returns the number of items.
func (o *Observable[T]) Len() int {
	return len(o.items)
}

// At returns the item at index i, or zero value if out of bounds.
func (o *Observable[T]) At(i int) T {
	if i < 0 || i >= len(o.items) {
		var zero T
		return zero
	}
	return o.items[i]
}

// Set replaces all items with a copy of items.
func (o *Observable[T]) Set(items []T) *Observable[T] {
	o.items = append([]T(nil), items...)
	o.notify(Change[T]{Type: ChangeSet})
	return o
}

// Push appends an item.
func (o *Observable[T]) Push(item T) *Observable[T] {
	idx := len(o.items)
	o.items = append(o.items[:idx:idx], item)
	o.notify(Change[T]{Type: ChangeAdd, Index: idx, Item: item})
	return o
}

// Insert inserts an item at index i, clamped to the list.
func (o *Observable[T]) Insert(i int, item T) *Observable[T] {
	i = max(0, min(i, len(o.items)))
	next := make([]T, 0, len(o.items)+1)
	next = append(next, o.items[:i]...)
	next = append(next, item)
	o.items = append(next, o.items[i:]...)
	o.notify(Change[T]{Type: ChangeAdd, Index: i, Item: item})
	return o
}

// RemoveAt removes the item at index i.
func (o *Observable[T]) RemoveAt(i int) *Observable[T] {
	if i < 0 || i >= len(o.items) {
		return o
	}
	old := o.items[i]
	next := make([]T, 0, len(o.items)-1)
	next = append(next, o.items[:i]...)
	o.items = append(next, o.items[i+1:]...)
	o.notify(Change[T]{Type: ChangeRemove, Index: i, Old: old})
	return o
}

// Update applies fn to the item at index i. The list is copied first, so a
// slice returned by an earlier Items call keeps the old value.
func (o *Observable[T]) Update(i int, fn func(*T)) *Observable[T] {
	if i < 0 || i >= len(o.items) {
		return o
	}
	old := o.items[i]
	next := append([]T(nil), o.items...)
	fn(&next[i])
	o.items = next
	o.notify(Change[T]{Type: ChangeUpdate, Index: i, Item: next[i], Old: old})
	return o
}

// Clear removes all items.
func (o *Observable[T]) Clear() *Observable[T] {
	o.items = nil
	o.notify(Change[T]{Type: ChangeClear})
	return o
}

// Subscribe registers fn for every later change. Subscribers are called in
// subscription order. The returned function removes fn and may be called
// more than once.
func (o *Observable[T]) Subscribe(fn func(Change[T])) (unsubscribe func()) {
	if o.subs == nil {
		o.subs = make(map[int]func(Change[T]))
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	return func() { delete(o.subs, id) }
}

func (o *Observable[T]) notify(c Change[T]) {
	for id := 0; id < o.nextID; id++ {
		if fn, ok := o.subs[id]; ok {
			fn(c)
		}
	}
}
