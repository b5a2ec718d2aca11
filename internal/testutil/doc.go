// Package testutil holds fixtures shared by livestore tests: record types
// with and without a fast copy path, a temp-dir engine and deterministic
// key sequences.
package testutil
