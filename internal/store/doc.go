// Package store is the record-store engine underneath livestore.
//
// Each record type lives in its own SQLite database (<dir>/<type>.db) with
// a single records table. Bodies are canonical JSON (internal/canon) so that
// identical content is byte identical on disk.
//
// # Handles
//
// Engine.Open returns a Handle: one dedicated connection to one type. A
// Handle is confined to whoever opened it. Mutations (Put, DeleteAll) need
// an open transaction; reads run inside the transaction when there is one.
//
// # Live results
//
// A handle opened with an owner Loop can Watch a query. The initial result
// and every later one are delivered on that loop. After a commit that
// changed a type, the engine posts a re-query for every live result of the
// type onto its owner loop, so a loop only ever touches its own handles.
//
// # Critical Patterns
//
//   - All reads are ordered with the tiebreaker "seq ASC, key ASC COLLATE
//     BINARY", seq being insertion order
//   - All values and JSON paths are bound as parameters (see querysql)
//   - BEGIN IMMEDIATE: a second writer waits on busy_timeout instead of
//     failing on lock upgrade
//
// Failures opening a type's database are *Error values with
// ErrCodeOpenFailed; they are not retried.
package store
