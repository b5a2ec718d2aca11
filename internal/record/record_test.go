package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type PetOwner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p PetOwner) RecordKey() string { return p.ID }

type renamed struct {
	ID string `json:"id"`
}

func (renamed) RecordKey() string { return "" }
func (renamed) RecordType() Type  { return "custom_name" }

func TestTypeOfDerivesSnakeCase(t *testing.T) {
	assert.Equal(t, Type("pet_owner"), TypeOf[PetOwner]())
	assert.Equal(t, Type("pet_owner"), TypeOf[*PetOwner]())
	assert.Equal(t, Type("custom_name"), TypeOf[renamed]())
	assert.Equal(t, Type("doc"), TypeOf[Doc]())
}

func TestSnake(t *testing.T) {
	tests := map[string]string{
		"Person":     "person",
		"PetOwner":   "pet_owner",
		"HTTPServer": "http_server",
		"x":          "x",
	}
	for in, want := range tests {
		assert.Equal(t, want, snake(in), in)
	}
}

func TestTypeOfValuePrefersRuntimeType(t *testing.T) {
	d := Doc{Type: "person", Key: "1"}
	assert.Equal(t, Type("person"), TypeOfValue(d))
	assert.Equal(t, Type("doc"), TypeOfValue(Doc{}))
	assert.Equal(t, Type("pet_owner"), TypeOfValue(PetOwner{ID: "1"}))
}

func TestEncodeDecode(t *testing.T) {
	body, err := Encode(PetOwner{ID: "1", Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1","name":"a"}`, string(body))

	got, err := Decode[PetOwner]("pet_owner", "1", body)
	require.NoError(t, err)
	assert.Equal(t, PetOwner{ID: "1", Name: "a"}, got)

	ptr, err := Decode[*PetOwner]("pet_owner", "1", body)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, "a", ptr.Name)
}

func TestDecodeDocSetsKeyAndType(t *testing.T) {
	doc, err := Decode[Doc]("person", "7", []byte(`{"name":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, Type("person"), doc.Type)
	assert.Equal(t, "7", doc.Key)
	assert.Equal(t, "a", doc.Fields["name"])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode[PetOwner]("pet_owner", "1", []byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pet_owner/1")
}

func TestDocView(t *testing.T) {
	d, err := NewDoc("person", "1", map[string]any{"name": "a", "age": 3})
	require.NoError(t, err)

	body, err := Encode(d)
	require.NoError(t, err)
	assert.Equal(t, `{"age":3,"name":"a"}`, string(body))
	assert.Equal(t, "1", d.View()["key"])
}
