// Package scope is the unit of work over store handles.
//
// A Scope lazily opens one handle per record type and keeps it until the
// scope closes. Writes begin a transaction on their handle the first time
// ("ensure transacting") and put it in the scope's write-set. Close commits
// the write-set in order; after the first commit failure the rest are
// canceled, and every handle is closed either way.
//
// # Ownership
//
// Each held handle carries an explicit owns-transaction flag. A scope only
// commits or cancels transactions it began. A scope created Within a parent
// borrows the parent's handles: it uses, but never ends, the parent's
// transactions and never closes borrowed handles.
//
// # Values
//
// Reads return managed values (record.Value, record.Results) tied to the
// handle. They go stale when the handle closes; Copy and CopyAll detach
// them using the factory's copy depth for the type.
package scope
