// Package query is the predicate language handed to store handles.
//
// It is deliberately small: equality, membership, conjunction and
// disjunction over top-level or dotted body fields, plus ordering and a
// limit. Queries are immutable values; builder methods return copies.
//
//	q := query.All().Equal("owner", "ann").Exclude("status", "archived").
//		OrderBy("name", query.Asc).Take(10)
//
// The SQL backend lives in querysql.
package query
