package record

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Parent   *node    `json:"parent,omitempty"`
	Children []*node  `json:"children,omitempty"`
}

func (n *node) RecordKey() string { return n.ID }

type quick struct {
	ID     string
	copies *int
}

func (q quick) RecordKey() string { return q.ID }

func (q quick) FastCopy() quick {
	*q.copies++
	return quick{ID: q.ID, copies: q.copies}
}

type fakeOwner struct{ closed bool }

func (o *fakeOwner) ID() string   { return "h1" }
func (o *fakeOwner) Closed() bool { return o.closed }

func TestCopyIsDetached(t *testing.T) {
	orig := &node{ID: "1", Name: "a", Tags: []string{"x"}}
	c := Copy(orig, Unlimited)

	c.Name = "b"
	c.Tags[0] = "y"
	assert.Equal(t, "a", orig.Name)
	assert.Equal(t, "x", orig.Tags[0])
	assert.Equal(t, TypeOfValue(orig), TypeOfValue(c))
}

func TestCopyDepthTruncatesRelations(t *testing.T) {
	grand := &node{ID: "g"}
	parent := &node{ID: "p", Parent: grand}
	child := &node{ID: "c", Parent: parent, Children: []*node{{ID: "k", Parent: grand}}}

	zero := Copy(child, 0)
	assert.Nil(t, zero.Parent)
	assert.Nil(t, zero.Children)

	one := Copy(child, 1)
	require.NotNil(t, one.Parent)
	assert.Equal(t, "p", one.Parent.ID)
	assert.Nil(t, one.Parent.Parent)
	require.Len(t, one.Children, 1)
	assert.Nil(t, one.Children[0].Parent)

	all := Copy(child, Unlimited)
	require.NotNil(t, all.Parent.Parent)
	assert.Equal(t, "g", all.Parent.Parent.ID)
	assert.NotSame(t, grand, all.Parent.Parent)
}

func TestFastCopyIsPreferred(t *testing.T) {
	n := 0
	q := quick{ID: "1", copies: &n}

	assert.True(t, HasFastCopy[quick]())
	assert.False(t, HasFastCopy[*node]())

	c := Copy(q, Unlimited)
	assert.Equal(t, "1", c.ID)
	assert.Equal(t, 1, n)
}

func TestCopyValueStates(t *testing.T) {
	owner := &fakeOwner{}
	managed := Manage(owner, &node{ID: "1", Name: "a"})

	detached := CopyValue(managed, Unlimited)
	assert.Equal(t, Detached, detached.State())
	got, ok := detached.Get()
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)

	owner.closed = true
	assert.False(t, managed.Valid())
	assert.Equal(t, Unbound, CopyValue(managed, Unlimited).State())
	assert.Equal(t, Unbound, CopyValue(None[*node](), Unlimited).State())

	// Still valid after the owner closed.
	_, ok = detached.Get()
	assert.True(t, ok)
}

func TestCopyAll(t *testing.T) {
	owner := &fakeOwner{}
	rs := ManageAll(owner, []*node{{ID: "1"}, {ID: "2"}})

	out := CopyAll(rs, Unlimited)
	require.Len(t, out, 2)
	out[0].ID = "changed"
	assert.Equal(t, "1", rs.Items()[0].ID)

	owner.closed = true
	assert.Empty(t, CopyAll(rs, Unlimited))
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, Unbound, rs.First().State())
}

func TestDocFastCopy(t *testing.T) {
	d, err := NewDoc("person", "1", map[string]any{"nested": map[string]any{"a": 1}})
	require.NoError(t, err)

	c := Copy(d, 0)
	c.Fields["nested"].(map[string]any)["a"] = 2
	assert.Equal(t, "1", fmt.Sprint(d.Fields["nested"].(map[string]any)["a"]))
}
