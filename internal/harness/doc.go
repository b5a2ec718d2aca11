// Package harness runs scripted scenarios against a fresh livestore.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: put_and_count
//	description: "Upserts count only new keys"
//	steps:
//	  - op: put
//	    type: person
//	    key: "1"
//	    fields: { name: a, age: 30 }
//	  - op: put
//	    type: person
//	    key: "1"
//	    fields: { name: b }
//	    mode: async
//	  - op: expect_count
//	    type: person
//	    count: 1
//	  - op: expect_first
//	    type: person
//	    where: { key: "1" }
//	    fields: { name: b }
//	  - op: expect_keys
//	    type: person
//	    order_by: name
//	    keys: ["1"]
//	  - op: delete_all
//	    type: person
//
// Each step runs through one of the execution modes (sync, blocking or
// async; blocking when unset) and appends an event to the trace. Expect
// steps compare what they read with the scenario and record a failure when
// they differ; fields is a subset match.
//
// # Golden Traces
//
// The trace is rendered as canonical JSON so that RunWithGolden can compare
// it byte for byte with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
