package record

// Owner is the store handle a managed value lives in.
type Owner interface {
	ID() string
	Closed() bool
}

// State tags a Value.
type State uint8

const (
	Unbound State = iota
	Detached
	Managed
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Managed:
		return "managed"
	default:
		return "unbound"
	}
}

// Value is a record that is either absent, a store-independent copy, or a
// reference that is only usable while its owning handle stays open.
type Value[T any] struct {
	state State
	owner Owner
	v     T
}

// None returns an unbound value.
func None[T any]() Value[T] { return Value[T]{} }

// Detach wraps a store-independent copy.
func Detach[T any](v T) Value[T] { return Value[T]{state: Detached, v: v} }

// Manage wraps a value read through owner.
func Manage[T any](owner Owner, v T) Value[T] {
	return Value[T]{state: Managed, owner: owner, v: v}
}

func (v Value[T]) State() State { return v.state }

// Owner returns the owning handle of a managed value, nil otherwise.
func (v Value[T]) Owner() Owner { return v.owner }

// Valid reports whether the value can be read right now. Managed values
// become invalid as soon as their owner closes.
func (v Value[T]) Valid() bool {
	switch v.state {
	case Detached:
		return true
	case Managed:
		return v.owner != nil && !v.owner.Closed()
	default:
		return false
	}
}

// Get returns the wrapped record if Valid.
func (v Value[T]) Get() (T, bool) {
	if !v.Valid() {
		var zero T
		return zero, false
	}
	return v.v, true
}

// Results is an ordered managed result set.
type Results[T any] struct {
	owner Owner
	items []T
}

// ManageAll wraps items read through owner.
func ManageAll[T any](owner Owner, items []T) Results[T] {
	return Results[T]{owner: owner, items: items}
}

func (r Results[T]) Owner() Owner { return r.owner }

// Valid reports whether the owning handle is still open.
func (r Results[T]) Valid() bool {
	return r.owner != nil && !r.owner.Closed()
}

// Len is 0 once the owner has closed.
func (r Results[T]) Len() int {
	if !r.Valid() {
		return 0
	}
	return len(r.items)
}

// At returns the i-th record as a managed value.
func (r Results[T]) At(i int) Value[T] {
	if !r.Valid() || i < 0 || i >= len(r.items) {
		return None[T]()
	}
	return Manage(r.owner, r.items[i])
}

// First returns the first record, or an unbound value for an empty set.
func (r Results[T]) First() Value[T] {
	return r.At(0)
}

// Items returns the records while the owner is open, nil otherwise.
// The slice aliases the result set; use CopyAll for a detached one.
func (r Results[T]) Items() []T {
	if !r.Valid() {
		return nil
	}
	return r.items
}
