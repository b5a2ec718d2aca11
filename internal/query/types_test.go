package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereConjoins(t *testing.T) {
	q := All().Equal("a", 1)
	assert.Equal(t, Eq{Field: "a", Value: 1}, q.Filter)

	q2 := q.Equal("b", 2).Exclude("c", "x")
	and, ok := q2.Filter.(And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 3)

	// The original query is untouched.
	assert.Equal(t, Eq{Field: "a", Value: 1}, q.Filter)
}

func TestBuilderDoesNotShareOrders(t *testing.T) {
	base := All().OrderBy("a", Asc)
	x := base.OrderBy("b", Asc)
	y := base.OrderBy("c", Desc)

	assert.Equal(t, "b", x.Orders[1].Field)
	assert.Equal(t, "c", y.Orders[1].Field)
}

func TestType(t *testing.T) {
	assert.Equal(t, "person", string(All().Type("person")))
	assert.Equal(t, "pet", string(Of("pet").Type("person")))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(All()))
	require.NoError(t, Validate(All().Equal("address.city", "x").OrderBy("key", Asc)))

	assert.Error(t, Validate(All().Equal("1abc", "x")))
	assert.Error(t, Validate(All().Equal("a b", "x")))
	assert.Error(t, Validate(All().Where(And{Predicates: []Predicate{nil}})))
	assert.Error(t, Validate(All().Take(-2)))
}
