package diff

import (
	"github.com/roach88/livestore/internal/canon"
	"github.com/roach88/livestore/internal/record"
)

// Policy decides whether a new snapshot should be emitted. Same is the
// identity test and Equal the content test for items of one identity.
// The zero Policy reports every snapshot as different.
type Policy[T any] struct {
	Same    func(a, b T) bool
	Equal   func(a, b T) bool
	Ignored Op
}

// Ignore returns a copy of p that does not count ops as differences.
func (p Policy[T]) Ignore(ops ...Op) Policy[T] {
	for _, op := range ops {
		p.Ignored |= op
	}
	return p
}

// Enabled reports whether p gates anything at all.
func (p Policy[T]) Enabled() bool { return p.Same != nil }

func (p Policy[T]) equal() func(a, b T) bool {
	if p.Equal != nil {
		return p.Equal
	}
	return func(a, b T) bool { return true }
}

// Compute classifies the edit from old to new under p.
func (p Policy[T]) Compute(old, new []T) Result {
	return Compute(old, new, p.Same, p.equal())
}

// DiffersAll reports whether new is different enough from old.
func (p Policy[T]) DiffersAll(old, new []T) bool {
	if !p.Enabled() {
		return true
	}
	return p.Compute(old, new).Differs(p.Ignored)
}

// Differs compares two single snapshots; ok is false for a missing one. A
// snapshot appearing or disappearing always differs, as does a different
// entity; otherwise content decides. Two missing snapshots are the same.
func (p Policy[T]) Differs(old T, oldOK bool, new T, newOK bool) bool {
	switch {
	case !p.Enabled():
		return true
	case !oldOK && !newOK:
		return false
	case !oldOK || !newOK:
		return true
	}
	return !p.Same(old, new) || !p.equal()(old, new)
}

// ForRecords is the default record policy: identity by key (or by
// canonical content for non-records) and content by canonical encoding.
func ForRecords[T any]() Policy[T] {
	return Policy[T]{Same: SameRecord[T], Equal: SameContent[T]}
}

// ForValues compares by canonical content alone: a changed value is a
// different item.
func ForValues[T any]() Policy[T] {
	return Policy[T]{Same: SameContent[T], Equal: SameContent[T]}
}

// SameRecord compares record keys and types.
func SameRecord[T any](a, b T) bool {
	am, aok := any(a).(record.Model)
	bm, bok := any(b).(record.Model)
	if !aok || !bok {
		return canon.Equal(a, b)
	}
	return am.RecordKey() == bm.RecordKey() &&
		record.TypeOfValue(a) == record.TypeOfValue(b)
}

// SameContent compares canonical encodings.
func SameContent[T any](a, b T) bool {
	return canon.Equal(a, b)
}
