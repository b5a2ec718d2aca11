// Package diff decides whether a new snapshot differs enough from the last
// emitted one to be worth emitting.
//
// Compute classifies the edit from an old to a new list into changed,
// moved, inserted and removed ranges, matching items by identity first
// (a longest common subsequence, Myers' algorithm) and comparing content
// only for items of the same identity. A Policy bundles the two tests with
// a set of ignored categories.
package diff
