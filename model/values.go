package model

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Values is a JSON object tree addressed by dotted paths such as
// "settings.basic.auth". Values held in a Values are always canonical:
// numbers are float64, arrays are []any and objects are Values.
type Values map[string]any

// NewValues returns a canonical deep copy of m.
func NewValues(m map[string]any) Values {
	if m == nil {
		return Values{}
	}
	return canonical(m).(Values)
}

// Get returns the value at path and whether it was present.
func (v Values) Get(path string) (any, bool) {
	var cur any = v
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path as a string, or "" if absent or not a string.
func (v Values) String(path string) string {
	raw, _ := v.Get(path)
	s, _ := raw.(string)
	return s
}

// Bool returns the value at path as a bool.
func (v Values) Bool(path string) bool {
	raw, _ := v.Get(path)
	b, _ := raw.(bool)
	return b
}

// Number returns the value at path as a float64.
func (v Values) Number(path string) float64 {
	raw, _ := v.Get(path)
	f, _ := canonical(raw).(float64)
	return f
}

// Set writes value at path, creating intermediate objects as needed. A
// non-object found on the way is replaced.
func (v Values) Set(path string, value any) {
	parts := strings.Split(path, ".")
	cur := v
	for _, part := range parts[:len(parts)-1] {
		next, ok := asObject(cur[part])
		if !ok {
			next = Values{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = canonical(value)
}

// Delete removes the value at path. Missing paths are ignored.
func (v Values) Delete(path string) {
	parts := strings.Split(path, ".")
	cur := v
	for _, part := range parts[:len(parts)-1] {
		next, ok := asObject(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	return NewValues(v)
}

// Equal reports deep equality after canonicalisation, so 1 and 1.0 compare
// equal and a missing object is not equal to an empty one.
func (v Values) Equal(other Values) bool {
	return reflect.DeepEqual(canonical(map[string]any(v)), canonical(map[string]any(other)))
}

// SameValue reports whether a and b are equal after canonicalisation.
func SameValue(a, b any) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

// Decode unmarshals the tree into dst through its JSON representation.
func (v Values) Decode(dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// ValuesOf converts a JSON-serialisable value, typically a resource struct,
// into canonical Values.
func ValuesOf(src any) (Values, error) {
	b, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	out := Values{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return NewValues(out), nil
}

func asObject(x any) (Values, bool) {
	switch m := x.(type) {
	case Values:
		return m, true
	case map[string]any:
		return Values(m), true
	}
	return nil, false
}

// canonical deep-copies x into its JSON-compatible representation.
func canonical(x any) any {
	switch t := x.(type) {
	case nil:
		return nil
	case Values:
		return canonicalObject(t)
	case map[string]any:
		return canonicalObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonical(e)
		}
		return out
	case string, bool, float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = canonical(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return x
		}
		obj := Values{}
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = canonical(iter.Value().Interface())
		}
		return obj
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	}
	return x
}

func canonicalObject(m map[string]any) Values {
	out := make(Values, len(m))
	for k, e := range m {
		out[k] = canonical(e)
	}
	return out
}
