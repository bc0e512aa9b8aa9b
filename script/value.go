package script

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindUnit Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindMap
	KindOther
)

var kindNames = [...]string{
	KindUnit:   "unit",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindArray:  "array",
	KindMap:    "map",
	KindOther:  "other",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Value is a script-produced dynamic value.
//
// Value is an immutable tagged variant. The zero Value is Unit. Engines build
// Values with the constructors below; hosts read them through ToJSON, Text,
// or the typed accessors.
type Value struct {
	kind   Kind
	str    string
	i      int64
	f      float64
	b      bool
	elems  []Value
	fields map[string]Value
}

// Unit returns the absence-of-value Value.
func Unit() Value { return Value{} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array Value holding elems in order.
func Array(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, elems: cp}
}

// Map returns a map Value. The map is copied.
func Map(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindMap, fields: cp}
}

// Other returns a Value for script types with no JSON counterpart
// (functions, userdata). debug is the textual form reported to hosts.
func Other(debug string) Value { return Value{kind: KindOther, str: debug} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsUnit reports whether v is the absence-of-value.
func (v Value) IsUnit() bool { return v.kind == KindUnit }

// Str returns the string payload of a String or Other value.
func (v Value) Str() string { return v.str }

// Int64 returns the payload of an Int value.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the payload of a Float value, or an Int widened to float.
func (v Value) Float64() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Boolean returns the payload of a Bool value.
func (v Value) Boolean() bool { return v.b }

// Elems returns the elements of an Array value. The slice must not be modified.
func (v Value) Elems() []Value { return v.elems }

// Fields returns the entries of a Map value. The map must not be modified.
func (v Value) Fields() map[string]Value { return v.fields }

// Len returns the element count of arrays and maps, the byte length of
// strings, and zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.elems)
	case KindMap:
		return len(v.fields)
	case KindString:
		return len(v.str)
	}
	return 0
}

// ToJSON converts v to the host JSON model: nil, string, int64, float64,
// bool, []any or map[string]any. It is total and never fails; Other values
// become their debug text.
func (v Value) ToJSON() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			out[i] = e.ToJSON()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, e := range v.fields {
			out[k] = e.ToJSON()
		}
		return out
	case KindUnit:
		return nil
	default:
		return v.str
	}
}

// FromJSON converts a decoded JSON value into a Value. Integral float64
// numbers become Int. Unknown Go types become Other with their %v text.
func FromJSON(x any) Value {
	switch t := x.(type) {
	case nil:
		return Unit()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return numberValue(float64(t))
	case float64:
		return numberValue(t)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = FromJSON(e)
		}
		return Value{kind: KindArray, elems: elems}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			fields[k] = FromJSON(e)
		}
		return Value{kind: KindMap, fields: fields}
	case Value:
		return t
	default:
		return Other(fmt.Sprintf("%v", t))
	}
}

func numberValue(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

// Text returns the output form of v: strings unchanged, Unit as the empty
// string, everything else as its debug text.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindUnit:
		return ""
	default:
		return v.Debug()
	}
}

// Debug returns a debug-style textual representation of v. Strings are
// quoted and map keys are sorted, so the output is deterministic.
func (v Value) Debug() string {
	var sb strings.Builder
	v.writeDebug(&sb)
	return sb.String()
}

// String implements fmt.Stringer using Debug.
func (v Value) String() string { return v.Debug() }

func (v Value) writeDebug(sb *strings.Builder) {
	switch v.kind {
	case KindUnit:
		sb.WriteString("()")
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(formatFloat(v.f))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.writeDebug(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("#{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.fields[k].writeDebug(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(v.str)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
