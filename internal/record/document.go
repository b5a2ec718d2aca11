package record

import (
	"encoding/json"
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/roach88/livestore/internal/canon"
)

// Doc is a schemaless record whose type is chosen at runtime. The CLI and
// the scenario harness work on Docs.
type Doc struct {
	Type   Type
	Key    string
	Fields map[string]any
}

// NewDoc builds a Doc, normalizing fields into the JSON value space.
func NewDoc(rt Type, key string, fields map[string]any) (Doc, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	normalized, err := canon.Normalize(fields)
	if err != nil {
		return Doc{}, fmt.Errorf("doc %s/%s: %w", rt, key, err)
	}
	m, ok := normalized.(map[string]any)
	if !ok {
		return Doc{}, fmt.Errorf("doc %s/%s: fields are not an object", rt, key)
	}
	return Doc{Type: rt, Key: key, Fields: m}, nil
}

func (d Doc) RecordKey() string { return d.Key }
func (d Doc) RecordType() Type  { return d.Type }

func (d *Doc) SetRecordKey(key string) { d.Key = key }
func (d *Doc) SetRecordType(rt Type)   { d.Type = rt }

// FastCopy copies the field tree without reflecting over Doc itself.
func (d Doc) FastCopy() Doc {
	out := Doc{Type: d.Type, Key: d.Key}
	if d.Fields != nil {
		out.Fields = deepcopy.Copy(d.Fields).(map[string]any)
	}
	return out
}

// MarshalJSON stores only the fields; key and type live outside the body.
func (d Doc) MarshalJSON() ([]byte, error) {
	if d.Fields == nil {
		return []byte("{}"), nil
	}
	return canon.Marshal(d.Fields)
}

func (d *Doc) UnmarshalJSON(data []byte) error {
	v, err := canon.Parse(data)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("doc body is %T, want object", v)
	}
	d.Fields = m
	return nil
}

// Get returns a top-level field.
func (d Doc) Get(field string) (any, bool) {
	v, ok := d.Fields[field]
	return v, ok
}

// View is the JSON shape the CLI prints: fields plus "key".
func (d Doc) View() map[string]any {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["key"] = d.Key
	return out
}

var _ json.Marshaler = Doc{}
