package cand

import (
	"bytes"
	"fmt"
	"math"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindEnum
)

var kindNames = map[Kind]string{
	KindNone:   "none",
	KindBool:   "bool",
	KindInt:    "int",
	KindUint:   "uint",
	KindFloat:  "float",
	KindString: "string",
	KindBytes:  "bytes",
	KindEnum:   "enum",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a dictionary value. The zero Value holds no value (KindNone),
// which is only accepted by DOMAIN entries.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	raw  []byte
	enum EnumMember
}

// NoValue returns the absent value.
func NoValue() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// IntValue wraps a signed integer.
func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }

// UintValue wraps an unsigned integer.
func UintValue(v uint64) Value { return Value{kind: KindUint, u: v} }

// FloatValue wraps a float.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// BytesValue wraps a byte slice. The slice is not copied.
func BytesValue(v []byte) Value { return Value{kind: KindBytes, raw: v} }

// EnumValue wraps a symbolic enum constant.
func EnumValue(m EnumMember) Value { return Value{kind: KindEnum, enum: m} }

func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v holds no value.
func (v Value) IsNone() bool { return v.kind == KindNone }

// Bool returns the bool held by v, or false for other kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Int returns v as int64. Uint and Enum values are converted.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return int64(v.u)
	case KindEnum:
		return v.enum.Value
	}
	return 0
}

// Uint returns v as uint64. Int and Enum values are converted.
func (v Value) Uint() uint64 {
	switch v.kind {
	case KindUint:
		return v.u
	case KindInt:
		return uint64(v.i)
	case KindEnum:
		return uint64(v.enum.Value)
	}
	return 0
}

// Float returns the float held by v, or 0 for other kinds.
func (v Value) Float() float64 {
	if v.kind == KindFloat {
		return v.f
	}
	return 0
}

// Text returns the string held by v, or "" for other kinds.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// Bytes returns the bytes held by v, or nil for other kinds.
func (v Value) Bytes() []byte {
	if v.kind == KindBytes {
		return v.raw
	}
	return nil
}

// Enum returns the enum member held by v.
func (v Value) Enum() (EnumMember, bool) {
	return v.enum, v.kind == KindEnum
}

// Equal reports whether both values have the same kind and content.
// Floats compare by bit pattern so a repeated NaN counts as unchanged.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindEnum:
		return v.enum == o.enum
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "<none>"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUint:
		return fmt.Sprintf("%d", v.u)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%X", v.raw)
	case KindEnum:
		return v.enum.Name
	}
	return "<invalid>"
}

// compare orders two numeric values. ok is false when either value is not
// numeric.
func compare(a, b Value) (c int, ok bool) {
	if a.kind == KindFloat || b.kind == KindFloat {
		x, xok := asFloat(a)
		y, yok := asFloat(b)
		if !xok || !yok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}

	aNeg, aMag, aok := asSignMag(a)
	bNeg, bMag, bok := asSignMag(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case aNeg && !bNeg:
		return -1, true
	case !aNeg && bNeg:
		return 1, true
	}
	c = 0
	if aMag < bMag {
		c = -1
	} else if aMag > bMag {
		c = 1
	}
	if aNeg {
		c = -c
	}
	return c, true
}

func asFloat(v Value) (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	case KindUint:
		return float64(v.u), true
	case KindEnum:
		return float64(v.enum.Value), true
	}
	return 0, false
}

func asSignMag(v Value) (neg bool, mag uint64, ok bool) {
	switch v.kind {
	case KindInt, KindEnum:
		i := v.Int()
		if i < 0 {
			return true, uint64(-(i + 1)) + 1, true
		}
		return false, uint64(i), true
	case KindUint:
		return false, v.u, true
	case KindBool:
		if v.b {
			return false, 1, true
		}
		return false, 0, true
	}
	return false, 0, false
}
