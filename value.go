package access

import (
	"strconv"
	"strings"
)

// ============================================================================
// VALUE MODEL
// ============================================================================

// Kind tags the normalized type of an attribute or condition value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

// Value is the tagged form every comparison operates on. Attribute bags and
// condition values arrive as untyped JSON/YAML payloads; normalizing them
// here keeps the per-operator coercion rules in one place instead of
// scattering type switches through the evaluator.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
}

// Undefined is the value of a missing attribute.
func Undefined() Value { return Value{} }

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// ValueOf normalizes an untyped payload value. Maps, structs and other
// shapes with no defined comparison semantics normalize to Undefined, which
// every operator treats as non-matching.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Undefined()
	case Value:
		return x
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case int:
		return NumberValue(float64(x))
	case int8:
		return NumberValue(float64(x))
	case int16:
		return NumberValue(float64(x))
	case int32:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case uint:
		return NumberValue(float64(x))
	case uint8:
		return NumberValue(float64(x))
	case uint16:
		return NumberValue(float64(x))
	case uint32:
		return NumberValue(float64(x))
	case uint64:
		return NumberValue(float64(x))
	case float32:
		return NumberValue(float64(x))
	case float64:
		return NumberValue(x)
	case []string:
		items := make([]Value, 0, len(x))
		for _, it := range x {
			items = append(items, StringValue(it))
		}
		return Value{kind: KindList, list: items}
	case []int:
		items := make([]Value, 0, len(x))
		for _, it := range x {
			items = append(items, NumberValue(float64(it)))
		}
		return Value{kind: KindList, list: items}
	case []float64:
		items := make([]Value, 0, len(x))
		for _, it := range x {
			items = append(items, NumberValue(it))
		}
		return Value{kind: KindList, list: items}
	case []any:
		items := make([]Value, 0, len(x))
		for _, it := range x {
			items = append(items, ValueOf(it))
		}
		return Value{kind: KindList, list: items}
	default:
		return Undefined()
	}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsList() bool      { return v.kind == KindList }

// Equal is strict: values of different kinds are never equal, and undefined
// equals nothing, itself included.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.kind == KindUndefined {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values. ok is false when the pair has no defined
// ordering (mixed kinds, booleans, lists, undefined); ordering operators
// fail closed on such pairs.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindString:
		return strings.Compare(v.str, o.str), true
	case KindNumber:
		switch {
		case v.num < o.num:
			return -1, true
		case v.num > o.num:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// ContainsElement reports whether a list value holds an element equal to o.
// Non-list receivers contain nothing.
func (v Value) ContainsElement(o Value) bool {
	if v.kind != KindList {
		return false
	}
	for _, it := range v.list {
		if it.Equal(o) {
			return true
		}
	}
	return false
}

// Text coerces a defined value to its textual form for the substring and
// regex operators. Lists join their elements with commas.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, it := range v.list {
			parts = append(parts, it.Text())
		}
		return strings.Join(parts, ",")
	}
	return ""
}
