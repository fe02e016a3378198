package cand

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// DataType is a CANopen data type code.
type DataType uint8

const (
	TypeBool    DataType = 0x01
	TypeInt8    DataType = 0x02
	TypeInt16   DataType = 0x03
	TypeInt32   DataType = 0x04
	TypeUint8   DataType = 0x05
	TypeUint16  DataType = 0x06
	TypeUint32  DataType = 0x07
	TypeFloat32 DataType = 0x08
	TypeString  DataType = 0x09
	TypeBytes   DataType = 0x0A
	TypeDomain  DataType = 0x0F
	TypeFloat64 DataType = 0x11
	TypeInt64   DataType = 0x15
	TypeUint64  DataType = 0x1B
)

type dataTypeDef struct {
	name   string
	size   int
	kinds  []Kind
	signed bool
}

var dataTypeDefs = map[DataType]dataTypeDef{
	TypeBool:    {"BOOL", 1, []Kind{KindBool}, false},
	TypeInt8:    {"INT8", 1, []Kind{KindInt, KindUint}, true},
	TypeInt16:   {"INT16", 2, []Kind{KindInt, KindUint}, true},
	TypeInt32:   {"INT32", 4, []Kind{KindInt, KindUint}, true},
	TypeInt64:   {"INT64", 8, []Kind{KindInt, KindUint}, true},
	TypeUint8:   {"UINT8", 1, []Kind{KindInt, KindUint}, false},
	TypeUint16:  {"UINT16", 2, []Kind{KindInt, KindUint}, false},
	TypeUint32:  {"UINT32", 4, []Kind{KindInt, KindUint}, false},
	TypeUint64:  {"UINT64", 8, []Kind{KindInt, KindUint}, false},
	TypeFloat32: {"FLOAT32", 4, []Kind{KindFloat}, true},
	TypeFloat64: {"FLOAT64", 8, []Kind{KindFloat}, true},
	TypeString:  {"STRING", 0, []Kind{KindString}, false},
	TypeBytes:   {"BYTES", 0, []Kind{KindBytes}, false},
	TypeDomain:  {"DOMAIN", 0, []Kind{KindBytes, KindNone}, false},
}

func (dt DataType) String() string {
	if def, ok := dataTypeDefs[dt]; ok {
		return def.name
	}
	return fmt.Sprintf("DataType(0x%02X)", uint8(dt))
}

// Valid reports whether dt is a supported data type.
func (dt DataType) Valid() bool {
	_, ok := dataTypeDefs[dt]
	return ok
}

// Size returns the fixed encoded width in bytes, or 0 for STRING, BYTES and
// DOMAIN.
func (dt DataType) Size() int {
	return dataTypeDefs[dt].size
}

// Signed reports whether dt is a signed numeric type.
func (dt DataType) Signed() bool {
	return dataTypeDefs[dt].signed
}

// Integer reports whether dt is one of the integer types.
func (dt DataType) Integer() bool {
	switch dt {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return true
	}
	return false
}

// Accepts reports whether values of kind k can be encoded as dt.
func (dt DataType) Accepts(k Kind) bool {
	for _, kind := range dataTypeDefs[dt].kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Encode converts v to its little-endian wire form for dt.
func Encode(dt DataType, v Value) ([]byte, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unsupported data type %s", ErrTypeMismatch, dt)
	}
	if !dt.Accepts(v.Kind()) {
		return nil, fmt.Errorf("%w: %s value %v for %s", ErrTypeMismatch, v.Kind(), v, dt)
	}

	switch dt {
	case TypeBool:
		if v.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeString:
		if !utf8.ValidString(v.Text()) {
			return nil, fmt.Errorf("%w: invalid utf-8 for %s", ErrTypeMismatch, dt)
		}
		return []byte(v.Text()), nil
	case TypeBytes, TypeDomain:
		if v.IsNone() {
			return []byte{}, nil
		}
		return v.Bytes(), nil
	case TypeFloat32:
		raw := make([]byte, 4)
		binary.LittleEndian.PutUint32(raw, math.Float32bits(float32(v.Float())))
		return raw, nil
	case TypeFloat64:
		raw := make([]byte, 8)
		binary.LittleEndian.PutUint64(raw, math.Float64bits(v.Float()))
		return raw, nil
	}

	bits, err := integerBits(dt, v)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, bits)
	return raw[:dt.Size()], nil
}

// integerBits range checks an integer value against dt and returns its two's
// complement bit pattern.
func integerBits(dt DataType, v Value) (uint64, error) {
	width := uint(dt.Size() * 8)
	if dt.Signed() {
		min := -(int64(1) << (width - 1))
		max := int64(1)<<(width-1) - 1
		if v.Kind() == KindUint && v.Uint() > uint64(max) {
			return 0, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, v, dt)
		}
		i := v.Int()
		if i < min || i > max {
			return 0, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, v, dt)
		}
		return uint64(i), nil
	}

	if v.Kind() == KindInt && v.Int() < 0 {
		return 0, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, v, dt)
	}
	u := v.Uint()
	if width < 64 && u > uint64(1)<<width-1 {
		return 0, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, v, dt)
	}
	return u, nil
}

// Decode converts raw wire bytes to a Value of the canonical kind for dt.
func Decode(dt DataType, raw []byte) (Value, error) {
	if !dt.Valid() {
		return Value{}, fmt.Errorf("%w: unsupported data type %s", ErrDecode, dt)
	}

	switch dt {
	case TypeBytes, TypeDomain:
		return BytesValue(raw), nil
	case TypeString:
		if !utf8.Valid(raw) {
			return Value{}, fmt.Errorf("%w: invalid utf-8 for %s", ErrDecode, dt)
		}
		return StringValue(string(raw)), nil
	}

	if len(raw) != dt.Size() {
		return Value{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrDecode, dt, dt.Size(), len(raw))
	}

	switch dt {
	case TypeBool:
		return BoolValue(raw[0] != 0), nil
	case TypeInt8:
		return IntValue(int64(int8(raw[0]))), nil
	case TypeInt16:
		return IntValue(int64(int16(binary.LittleEndian.Uint16(raw)))), nil
	case TypeInt32:
		return IntValue(int64(int32(binary.LittleEndian.Uint32(raw)))), nil
	case TypeInt64:
		return IntValue(int64(binary.LittleEndian.Uint64(raw))), nil
	case TypeUint8:
		return UintValue(uint64(raw[0])), nil
	case TypeUint16:
		return UintValue(uint64(binary.LittleEndian.Uint16(raw))), nil
	case TypeUint32:
		return UintValue(uint64(binary.LittleEndian.Uint32(raw))), nil
	case TypeUint64:
		return UintValue(binary.LittleEndian.Uint64(raw)), nil
	case TypeFloat32:
		return FloatValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))), nil
	case TypeFloat64:
		return FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(raw))), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported data type %s", ErrDecode, dt)
}

// canonical converts a value to the kind Decode yields for dt, so cached
// values compare equal to decoded broadcasts.
func canonical(dt DataType, v Value) Value {
	if dt == TypeDomain && v.IsNone() {
		return BytesValue([]byte{})
	}
	if !dt.Integer() {
		return v
	}
	if dt.Signed() {
		return IntValue(v.Int())
	}
	return UintValue(v.Uint())
}
