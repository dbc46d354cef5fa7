package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "null"
	}
}

// Value is the tagged representation of a node in an LLM extraction tree:
// object, array, string, integer, number, boolean, or null. Objects preserve
// key insertion order, which the flattener and transcript builder rely on.
type Value struct {
	kind Kind
	str  string
	num  float64
	i    int64
	b    bool
	arr  []*Value
	obj  *Object
}

// Object is an ordered string-keyed map of Values.
type Object struct {
	keys   []string
	values map[string]*Value
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

// Set inserts or replaces a key. New keys append to the order.
func (o *Object) Set(key string, v *Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value for key.
func (o *Object) Get(key string) (*Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes a key, preserving the order of the remaining keys.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order. The returned slice is shared; callers
// must not mutate it.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// Reorder moves the listed keys to the front in the given order. Keys not
// present are ignored; unlisted keys retain their relative order after.
func (o *Object) Reorder(order []string) {
	seen := make(map[string]bool, len(order))
	reordered := make([]string, 0, len(o.keys))
	for _, k := range order {
		if _, ok := o.values[k]; ok && !seen[k] {
			reordered = append(reordered, k)
			seen[k] = true
		}
	}
	for _, k := range o.keys {
		if !seen[k] {
			reordered = append(reordered, k)
		}
	}
	o.keys = reordered
}

// TypedLeaf reports whether the object is a typed field wrapper
// ({"_type": ..., "value": ...}) and returns the declared type and value.
func (o *Object) TypedLeaf() (string, *Value, bool) {
	t, ok := o.values["_type"]
	if !ok || t.Kind() != KindString {
		return "", nil, false
	}
	v, ok := o.values["value"]
	if !ok {
		return "", nil, false
	}
	return t.Str(), v, true
}

// Constructors

func NullValue() *Value                { return &Value{kind: KindNull} }
func StringValue(s string) *Value     { return &Value{kind: KindString, str: s} }
func IntValue(i int64) *Value         { return &Value{kind: KindInt, i: i} }
func NumberValue(f float64) *Value    { return &Value{kind: KindNumber, num: f} }
func BoolValue(b bool) *Value         { return &Value{kind: KindBool, b: b} }
func ArrayValue(vs ...*Value) *Value  { return &Value{kind: KindArray, arr: vs} }
func ObjectValue(o *Object) *Value    { return &Value{kind: KindObject, obj: o} }

// Accessors

func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

func (v *Value) Str() string     { return v.str }
func (v *Value) Int() int64      { return v.i }
func (v *Value) Float() float64  { return v.num }
func (v *Value) Bool() bool      { return v.b }
func (v *Value) Items() []*Value { return v.arr }

// Object returns the underlying ordered object, or nil for non-objects.
func (v *Value) Object() *Object {
	if v == nil || v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Append adds an element to an array value.
func (v *Value) Append(item *Value) {
	v.arr = append(v.arr, item)
}

// IsEmpty reports whether the value carries no extractable content.
func (v *Value) IsEmpty() bool {
	switch v.Kind() {
	case KindNull:
		return true
	case KindObject:
		return v.obj == nil || v.obj.Len() == 0
	case KindArray:
		return len(v.arr) == 0
	case KindString:
		return v.str == ""
	default:
		return false
	}
}

// Stringify renders a primitive value the way the fields store expects:
// primitives stringified, null as empty. Composite kinds render as JSON.
func (v *Value) Stringify() string {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// MarshalJSON encodes the value preserving object key order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		data, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
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
			kdata, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kdata)
			buf.WriteByte(':')
			item, _ := v.obj.Get(k)
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes JSON preserving object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = *parsed

	// Reject trailing garbage after the first value
	if _, err := dec.Token(); err == nil {
		return fmt.Errorf("unexpected trailing data in JSON value")
	}
	return nil
}

// ParseValue decodes a JSON document into a Value tree.
func ParseValue(data []byte) (*Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return ObjectValue(obj), nil
		case '[':
			arr := ArrayValue()
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Append(item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case string:
		return StringValue(t), nil
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := t.Int64(); err == nil {
				return IntValue(i), nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return NumberValue(f), nil
	case bool:
		return BoolValue(t), nil
	case nil:
		return NullValue(), nil
	default:
		return nil, fmt.Errorf("unexpected JSON token %v", tok)
	}
}
