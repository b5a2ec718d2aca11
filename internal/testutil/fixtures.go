package testutil

import (
	"testing"
	"time"

	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/store"
)

// Person is a record with relations and no fast copy path, so copies go
// through the generic deep copy.
type Person struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Age     int       `json:"age,omitempty"`
	Best    *Pet      `json:"best,omitempty"`
	Pets    []*Pet    `json:"pets,omitempty"`
	Friends []*Person `json:"friends,omitempty"`
}

func (p Person) RecordKey() string     { return p.ID }
func (Person) RecordType() record.Type { return "person" }

// Pet is a flat record with a fast copy path.
type Pet struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species,omitempty"`
}

func (p Pet) RecordKey() string     { return p.ID }
func (Pet) RecordType() record.Type { return "pet" }

// FastCopy is a plain value copy; Pet holds no references.
func (p Pet) FastCopy() Pet { return p }

// OpenEngine opens a store engine in a temp directory, closed on cleanup.
func OpenEngine(t testing.TB) *store.Engine {
	t.Helper()
	e, err := store.Open(store.Config{
		Dir:              t.TempDir(),
		BusyTimeout:      5 * time.Second,
		DefaultCopyDepth: record.Unlimited,
	})
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}
