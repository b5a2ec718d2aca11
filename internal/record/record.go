package record

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/roach88/livestore/internal/canon"
)

// Type identifies one logical collection of records.
// It keys store handles and is the file name of the type's database.
type Type string

// Model is implemented by every record. The key is the record's identity.
type Model interface {
	RecordKey() string
}

// Typed lets a model name its own record type instead of the derived one.
type Typed interface {
	RecordType() Type
}

// KeySetter is implemented by models whose key is not part of the stored body.
type KeySetter interface {
	SetRecordKey(key string)
}

// TypeSetter is implemented by models whose type is only known at decode time.
type TypeSetter interface {
	SetRecordType(rt Type)
}

var typeCache sync.Map // reflect.Type -> Type

// TypeOf resolves the record type of T once and caches it.
// A non-empty RecordType() on the zero value wins; otherwise the Go type
// name is snake-cased ("PetOwner" -> "pet_owner").
func TypeOf[T any]() Type {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := typeCache.Load(rt); ok {
		return cached.(Type)
	}
	var zero T
	name := derive(rt, any(zero))
	typeCache.Store(rt, name)
	return name
}

// TypeOfValue is TypeOf, except that a Typed value reporting a non-empty
// type overrides the static one.
func TypeOfValue[T any](v T) Type {
	if typed, ok := any(v).(Typed); ok {
		if rt := typed.RecordType(); rt != "" {
			return rt
		}
	}
	return TypeOf[T]()
}

func derive(rt reflect.Type, zero any) Type {
	if typed, ok := zero.(Typed); ok && !isNilPointer(zero) {
		if name := typed.RecordType(); name != "" {
			return name
		}
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return Type(snake(rt.Name()))
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func snake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Encode returns the canonical body stored for v.
func Encode[T any](v T) ([]byte, error) {
	body, err := canon.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return body, nil
}

// Decode rebuilds a T from a stored row.
func Decode[T any](rt Type, key string, body []byte) (T, error) {
	var v T
	target := any(&v)
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem()).Interface().(T)
		target = any(v)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", rt, key, err)
	}
	if ks, ok := target.(KeySetter); ok {
		ks.SetRecordKey(key)
	}
	if ts, ok := target.(TypeSetter); ok {
		ts.SetRecordType(rt)
	}
	return v, nil
}
