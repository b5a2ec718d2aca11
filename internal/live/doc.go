// Package live turns store queries into observables that follow the data.
//
// A Binder owns one loop. Every binding, every copy of a changed result and
// every diff against the last emission runs there, so the handles it opens
// are only ever touched by that goroutine.
//
// The variants (First, All, Count, TranslateFirst, TranslateAll) are lazy:
// nothing is bound until the first subscriber arrives, and the binding is
// dropped when the last one leaves. When no binding of a type remains, its
// handle is closed.
//
// After each commit to a bound type the result is re-read, detached and
// compared with the last emitted value using a diff.Policy. Only different
// snapshots are emitted. A zero policy emits every snapshot.
package live
