// Package jsonvalue implements the tagged JSON value used throughout
// stepflow: a recursively-defined Null | Bool | Number | String | Array |
// Object, with Object preserving insertion order for byte-stable
// round-tripping. Executors never mutate a shared Value; every
// transformation produces a new one.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the underlying alternative held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a tagged JSON value. The zero Value is JSON null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	// raw preserves the original numeric literal so integers up to
	// 2^53 keep exact textual representation through round-trips.
	raw string
	s   string
	arr []Value
	obj *Object
}

// Object is an order-preserving string-keyed map.
type Object struct {
	keys []string
	vals map[string]Value
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{vals: make(map[string]Value)}
}

// Set inserts or replaces key, appending it to the key order on first insert.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Keys returns the insertion-ordered key list. Callers must not mutate it.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	if o == nil {
		return NewObject()
	}
	clone := &Object{
		keys: append([]string{}, o.keys...),
		vals: make(map[string]Value, len(o.vals)),
	}
	for k, v := range o.vals {
		clone.vals[k] = v.Clone()
	}
	return clone
}

// Constructors

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n, raw: strconv.FormatFloat(n, 'g', -1, 64)}
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a slice of values.
func Array(items []Value) Value { return Value{kind: KindArray, arr: items} }

// Obj wraps an ordered object.
func Obj(o *Object) Value { return Value{kind: KindObject, obj: o} }

// Accessors

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsObject() bool { return v.kind == KindObject }

func (v Value) Bool() bool          { return v.b }
func (v Value) Number() float64     { return v.n }
func (v Value) Str() string         { return v.s }
func (v Value) Array() []Value      { return v.arr }
func (v Value) Object() *Object     { return v.obj }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		cp := make([]Value, len(v.arr))
		for i, e := range v.arr {
			cp[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: cp}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

// Equal reports deep equality, used by the mock engine's conditional
// matcher and by test-file output comparison.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.Keys() {
			av, _ := a.obj.Get(k)
			bv, ok := b.obj.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Subset reports whether every key present in pattern is present and
// equal in v (extra keys in v are ignored). Used by the mock engine's
// conditional "when.input" matcher.
func Subset(pattern, v Value) bool {
	if pattern.kind != KindObject {
		return Equal(pattern, v)
	}
	if v.kind != KindObject {
		return false
	}
	for _, k := range pattern.obj.Keys() {
		pv, _ := pattern.obj.Get(k)
		vv, ok := v.obj.Get(k)
		if !ok {
			return false
		}
		if pv.kind == KindObject {
			if !Subset(pv, vv) {
				return false
			}
			continue
		}
		if !Equal(pv, vv) {
			return false
		}
	}
	return true
}

// JSON marshaling

// MarshalJSON implements json.Marshaler, emitting object keys in
// insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.raw != "" {
			buf.WriteString(v.raw)
		} else {
			buf.WriteString(strconv.FormatFloat(v.n, 'g', -1, 64))
		}
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			ev, _ := v.obj.Get(k)
			if err := ev.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler, decoding token-by-token
// so that object key order survives (encoding/json's map decoding does
// not preserve order).
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("jsonvalue: invalid number %q: %w", t.String(), err)
		}
		return Value{kind: KindNumber, n: f, raw: t.String()}, nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(items), nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("jsonvalue: expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Obj(obj), nil
		}
	}
	return Value{}, fmt.Errorf("jsonvalue: unexpected token %v", tok)
}

// Parse decodes raw JSON bytes into a Value.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, fmt.Errorf("jsonvalue: parse: %w", err)
	}
	return v, nil
}

// Bytes serializes v back to canonical JSON bytes.
func (v Value) Bytes() []byte {
	b, _ := v.MarshalJSON()
	return b
}

// String form for logging/debugging (not the JSON string accessor — use Str()).
func (v Value) GoString() string {
	return string(v.Bytes())
}

// FromNative converts a native Go value (as produced by encoding/json
// into interface{}, or hand-built maps/slices) into a Value. Object key
// order for map[string]any inputs is not defined by Go and is sorted
// for determinism; prefer Parse or direct construction when order
// matters.
func FromNative(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromNative(e)
		}
		return Array(items)
	case []Value:
		return Array(t)
	case map[string]interface{}:
		obj := NewObject()
		for _, k := range sortedKeys(t) {
			obj.Set(k, FromNative(t[k]))
		}
		return Obj(obj)
	case Value:
		return t
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Null()
		}
		v, err := Parse(b)
		if err != nil {
			return Null()
		}
		return v
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort is fine; map key counts here are small
	// (state templates), and determinism matters more than speed.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Native converts a Value to plain Go interface{} (map[string]interface{}
// for objects), useful when handing a value to a library that expects
// generic JSON.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Native()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, v.obj.Len())
		for _, k := range v.obj.Keys() {
			ev, _ := v.obj.Get(k)
			out[k] = ev.Native()
		}
		return out
	}
	return nil
}
