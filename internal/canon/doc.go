// Package canon provides the canonical JSON encoding used for stored record
// bodies and for content equality in diff policies.
//
// Two records are content-equal when their canonical encodings are byte
// identical. Keys are ordered by UTF-16 code units, strings are NFC
// normalized and numbers use their shortest exact form, so the encoding is
// stable across processes and field declaration order.
//
// canon imports nothing internal.
package canon
