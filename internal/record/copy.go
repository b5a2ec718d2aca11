package record

import (
	"reflect"
	"sync"

	"github.com/mohae/deepcopy"
)

// FastCopier is implemented by records that know how to detach themselves
// faster than the generic reflective copy.
type FastCopier[T any] interface {
	FastCopy() T
}

// Unlimited follows every relation when copying.
const Unlimited = -1

type copyPlan struct {
	fast bool
}

var (
	plans     sync.Map // reflect.Type -> *copyPlan
	relations sync.Map // reflect.Type (struct) -> []int
)

func planOf[T any]() *copyPlan {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if p, ok := plans.Load(rt); ok {
		return p.(*copyPlan)
	}
	p := &copyPlan{fast: rt.Implements(reflect.TypeOf((*FastCopier[T])(nil)).Elem())}
	actual, _ := plans.LoadOrStore(rt, p)
	return actual.(*copyPlan)
}

// HasFastCopy reports whether T provides its own copy.
func HasFastCopy[T any]() bool {
	return planOf[T]().fast
}

// Copy detaches v. A FastCopier is used as-is; anything else is deep copied
// with relations followed up to depth levels (Unlimited for all).
func Copy[T any](v T, depth int) T {
	if planOf[T]().fast {
		return any(v).(FastCopier[T]).FastCopy()
	}
	return deepCopy(v, depth)
}

// CopyValue detaches a value: unbound or stale managed values yield an
// unbound result, detached values are returned untouched.
func CopyValue[T any](v Value[T], depth int) Value[T] {
	switch v.state {
	case Detached:
		return v
	case Managed:
		if !v.Valid() {
			return None[T]()
		}
		return Detach(Copy(v.v, depth))
	default:
		return None[T]()
	}
}

// CopyAll detaches every record of a valid result set; a stale set yields
// an empty slice.
func CopyAll[T any](r Results[T], depth int) []T {
	items := r.Items()
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, Copy(item, depth))
	}
	return out
}

func deepCopy[T any](v T, depth int) T {
	src := any(v)
	if src == nil {
		return v
	}
	c, ok := deepcopy.Copy(src).(T)
	if !ok {
		return v
	}
	if depth >= 0 {
		truncate(reflect.ValueOf(&c).Elem(), depth)
	}
	return c
}

// truncate zeroes relation fields nested deeper than depth.
func truncate(rv reflect.Value, depth int) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			truncate(rv.Elem(), depth)
		}
	case reflect.Struct:
		for _, i := range relationFields(rv.Type()) {
			f := rv.Field(i)
			if !f.CanSet() {
				continue
			}
			if depth == 0 {
				f.Set(reflect.Zero(f.Type()))
				continue
			}
			if f.Kind() == reflect.Slice {
				for j := 0; j < f.Len(); j++ {
					truncate(f.Index(j), depth-1)
				}
				continue
			}
			truncate(f, depth-1)
		}
	}
}

var modelType = reflect.TypeOf((*Model)(nil)).Elem()

// relationFields lists the exported fields that point at other records,
// either directly or as a slice.
func relationFields(st reflect.Type) []int {
	if cached, ok := relations.Load(st); ok {
		return cached.([]int)
	}
	var idx []int
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		if isRelation(f.Type) {
			idx = append(idx, i)
		}
	}
	relations.Store(st, idx)
	return idx
}

func isRelation(t reflect.Type) bool {
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Struct {
		return false
	}
	if t.Implements(modelType) {
		return true
	}
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(modelType)
}
