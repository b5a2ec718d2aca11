// Package record defines what the rest of livestore knows about records:
// their type and identity, the managed/detached distinction, and how a
// record is detached from the store.
//
// # Values
//
// A record read through a store handle is Managed: usable only while the
// handle that produced it stays open. Copying produces a Detached value
// that is safe to hand across goroutines and scopes. Value makes the three
// states explicit so callers check validity instead of probing the record.
//
// # Copying
//
// Types implementing FastCopier supply their own copy. The capability is
// resolved once per type. Everything else goes through a reflective deep
// copy that follows relation fields (fields holding other Models) up to a
// per-type depth and zeroes anything deeper.
package record
