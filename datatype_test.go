package cand

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		dt    DataType
		value Value
		raw   []byte
	}{
		{name: "bool true", dt: TypeBool, value: BoolValue(true), raw: []byte{0x01}},
		{name: "bool false", dt: TypeBool, value: BoolValue(false), raw: []byte{0x00}},
		{name: "int8 min", dt: TypeInt8, value: IntValue(-128), raw: []byte{0x80}},
		{name: "int16", dt: TypeInt16, value: IntValue(-2), raw: []byte{0xFE, 0xFF}},
		{name: "int32", dt: TypeInt32, value: IntValue(0x12345678), raw: []byte{0x78, 0x56, 0x34, 0x12}},
		{name: "int64 min", dt: TypeInt64, value: IntValue(math.MinInt64), raw: []byte{0, 0, 0, 0, 0, 0, 0, 0x80}},
		{name: "uint8 max", dt: TypeUint8, value: UintValue(0xFF), raw: []byte{0xFF}},
		{name: "uint16", dt: TypeUint16, value: UintValue(0x1234), raw: []byte{0x34, 0x12}},
		{name: "uint32", dt: TypeUint32, value: UintValue(0xDEADBEEF), raw: []byte{0xEF, 0xBE, 0xAD, 0xDE}},
		{name: "uint64 max", dt: TypeUint64, value: UintValue(math.MaxUint64), raw: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "float32", dt: TypeFloat32, value: FloatValue(1.5), raw: []byte{0x00, 0x00, 0xC0, 0x3F}},
		{name: "float64", dt: TypeFloat64, value: FloatValue(-2.25), raw: []byte{0, 0, 0, 0, 0, 0, 0x02, 0xC0}},
		{name: "string", dt: TypeString, value: StringValue("héllo"), raw: []byte("héllo")},
		{name: "empty string", dt: TypeString, value: StringValue(""), raw: []byte{}},
		{name: "bytes", dt: TypeBytes, value: BytesValue([]byte{0x12, 0x34}), raw: []byte{0x12, 0x34}},
		{name: "domain", dt: TypeDomain, value: BytesValue([]byte{0x00}), raw: []byte{0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.dt, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, raw)

			got, err := Decode(tt.dt, raw)
			require.NoError(t, err)
			assert.True(t, tt.value.Equal(got), "got %v, want %v", got, tt.value)
		})
	}
}

func TestEncode_IntegerKinds(t *testing.T) {
	raw, err := Encode(TypeUint16, IntValue(0x1234))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12}, raw)

	raw, err = Encode(TypeInt32, UintValue(7))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07, 0x00, 0x00, 0x00}, raw)
}

func TestEncode_DomainWithoutValue(t *testing.T) {
	raw, err := Encode(TypeDomain, NoValue())
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dt      DataType
		value   Value
		wantErr error
	}{
		{name: "string for int", dt: TypeInt8, value: StringValue("1"), wantErr: ErrTypeMismatch},
		{name: "float for uint", dt: TypeUint32, value: FloatValue(1), wantErr: ErrTypeMismatch},
		{name: "int for bool", dt: TypeBool, value: IntValue(1), wantErr: ErrTypeMismatch},
		{name: "none for bytes", dt: TypeBytes, value: NoValue(), wantErr: ErrTypeMismatch},
		{name: "invalid utf-8 string", dt: TypeString, value: StringValue(string([]byte{0xC3, 0x28})), wantErr: ErrTypeMismatch},
		{name: "bytes for string", dt: TypeString, value: BytesValue([]byte("x")), wantErr: ErrTypeMismatch},
		{name: "unknown type", dt: DataType(0x55), value: IntValue(1), wantErr: ErrTypeMismatch},
		{name: "int8 overflow", dt: TypeInt8, value: IntValue(128), wantErr: ErrOutOfRange},
		{name: "int8 underflow", dt: TypeInt8, value: IntValue(-129), wantErr: ErrOutOfRange},
		{name: "uint8 overflow", dt: TypeUint8, value: UintValue(256), wantErr: ErrOutOfRange},
		{name: "negative uint", dt: TypeUint32, value: IntValue(-1), wantErr: ErrOutOfRange},
		{name: "uint64 into int64", dt: TypeInt64, value: UintValue(math.MaxUint64), wantErr: ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.dt, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		dt   DataType
		raw  []byte
	}{
		{name: "bool too long", dt: TypeBool, raw: []byte{0x00, 0x00}},
		{name: "uint16 too short", dt: TypeUint16, raw: []byte{0x01}},
		{name: "int64 empty", dt: TypeInt64, raw: []byte{}},
		{name: "float32 too long", dt: TypeFloat32, raw: make([]byte, 8)},
		{name: "invalid utf-8", dt: TypeString, raw: []byte{0xFF, 0xFE}},
		{name: "unknown type", dt: DataType(0x55), raw: []byte{0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.dt, tt.raw)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecode_CanonicalKinds(t *testing.T) {
	v, err := Decode(TypeInt8, []byte{0xFF})
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(-1), v.Int())

	v, err = Decode(TypeUint8, []byte{0xFF})
	require.NoError(t, err)
	assert.Equal(t, KindUint, v.Kind())
	assert.Equal(t, uint64(0xFF), v.Uint())

	v, err = Decode(TypeDomain, []byte{})
	require.NoError(t, err)
	assert.Equal(t, KindBytes, v.Kind())
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, FloatValue(math.NaN()).Equal(FloatValue(math.NaN())))
	assert.False(t, IntValue(1).Equal(UintValue(1)))
	assert.True(t, BytesValue([]byte{1, 2}).Equal(BytesValue([]byte{1, 2})))
	assert.False(t, StringValue("a").Equal(StringValue("b")))
	assert.True(t, NoValue().Equal(Value{}))
	assert.True(t, EnumValue(EnumMember{Name: "ON", Value: 1}).Equal(EnumValue(EnumMember{Name: "ON", Value: 1})))
}

func TestDataType_String(t *testing.T) {
	assert.Equal(t, "UINT64", TypeUint64.String())
	assert.Equal(t, "DataType(0x55)", DataType(0x55).String())
	assert.Equal(t, 8, TypeFloat64.Size())
	assert.Equal(t, 0, TypeString.Size())
	assert.True(t, TypeDomain.Accepts(KindNone))
	assert.False(t, TypeBytes.Accepts(KindNone))
}
