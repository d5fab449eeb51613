package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Value is the payload tree carried by every bus event. It is a tagged
// union over the JSON data model; only the field matching Kind is
// meaningful. Events recorded to disk round-trip through this type, so
// every variant has a lossless JSON form.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	List []Value
	Map  map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{Kind: KindNull}
}

// Boolean wraps a bool.
func Boolean(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Number wraps a float64.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Integer wraps an int as a number.
func Integer(n int) Value {
	return Value{Kind: KindNumber, Num: float64(n)}
}

// String wraps a string.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// ListOf builds a list value.
func ListOf(items ...Value) Value {
	return Value{Kind: KindList, List: items}
}

// MapOf builds a map value from the given entries.
func MapOf(entries map[string]Value) Value {
	if entries == nil {
		entries = make(map[string]Value)
	}
	return Value{Kind: KindMap, Map: entries}
}

// FromAny converts a decoded JSON tree (maps, slices, scalars) into a Value.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Boolean(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case []any:
		list := make([]Value, 0, len(t))
		for _, item := range t {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			list = append(list, converted)
		}
		return Value{Kind: KindList, List: list}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for key, item := range t {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			m[key] = converted
		}
		return Value{Kind: KindMap, Map: m}, nil
	default:
		return Value{}, fmt.Errorf("unsupported payload type %T", v)
	}
}

// ToAny converts a Value back into plain Go types for JSON encoding.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindList:
		list := make([]any, 0, len(v.List))
		for _, item := range v.List {
			list = append(list, item.ToAny())
		}
		return list
	case KindMap:
		m := make(map[string]any, len(v.Map))
		for key, item := range v.Map {
			m[key] = item.ToAny()
		}
		return m
	default:
		return nil
	}
}

// Clone returns a deep copy. Mutating the copy never affects the original.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		list := make([]Value, len(v.List))
		for i, item := range v.List {
			list[i] = item.Clone()
		}
		return Value{Kind: KindList, List: list}
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for key, item := range v.Map {
			m[key] = item.Clone()
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return v
	}
}

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Num == other.Num
	case KindString:
		return v.Str == other.Str
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for key, item := range v.Map {
			otherItem, ok := other.Map[key]
			if !ok || !item.Equal(otherItem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values when both are numbers or both are strings.
// It returns -1, 0 or 1, or an error for non-comparable kinds.
func (v Value) Compare(other Value) (int, error) {
	if v.Kind == KindNumber && other.Kind == KindNumber {
		switch {
		case v.Num < other.Num:
			return -1, nil
		case v.Num > other.Num:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if v.Kind == KindString && other.Kind == KindString {
		return strings.Compare(v.Str, other.Str), nil
	}
	return 0, fmt.Errorf("values of kind %s and %s are not ordered", v.Kind, other.Kind)
}

// Contains reports whether v contains other: substring for strings,
// membership for lists, key presence for maps when other is a string.
func (v Value) Contains(other Value) (bool, error) {
	switch v.Kind {
	case KindString:
		if other.Kind != KindString {
			return false, fmt.Errorf("contains on string requires a string operand, got %s", other.Kind)
		}
		return strings.Contains(v.Str, other.Str), nil
	case KindList:
		for _, item := range v.List {
			if item.Equal(other) {
				return true, nil
			}
		}
		return false, nil
	case KindMap:
		if other.Kind != KindString {
			return false, fmt.Errorf("contains on map requires a string key, got %s", other.Kind)
		}
		_, ok := v.Map[other.Str]
		return ok, nil
	default:
		return false, fmt.Errorf("contains is not defined for kind %s", v.Kind)
	}
}

// String renders the value compactly for log output.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNumber:
		if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1e15 {
			return fmt.Sprintf("%d", int64(v.Num))
		}
		return fmt.Sprintf("%g", v.Num)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for key := range v.Map {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = key + ":" + v.Map[key].String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "invalid"
	}
}

// MarshalJSON encodes the value as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return sonic.ConfigFastest.Marshal(v.ToAny())
}

// UnmarshalJSON decodes plain JSON into the tagged form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := sonic.ConfigFastest.Unmarshal(data, &raw); err != nil {
		return err
	}
	converted, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}
