package cand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDCF = `[DeviceInfo]
VendorName=Test
ProductName=cand

[DeviceComissioning]
NodeID=0x10

[1000]
ParameterName=Device type
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0x00000191
PDOMapping=0

[1018]
ParameterName=Identity object
ObjectType=0x9
SubNumber=0x3

[1018sub0]
ParameterName=Highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=const
DefaultValue=0x02

[1018sub1]
ParameterName=Vendor-ID
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0x1234

[1018sub2]
ParameterName=Product code
DataType=0x0007
AccessType=ro
DefaultValue=$NODEID+0x180

[2000]
ParameterName=Temperature
ObjectType=0x7
DataType=0x0003
AccessType=rw
DefaultValue=-5
ParameterValue=21
LowLimit=-40
HighLimit=125

[2001]
ParameterName=Label
ObjectType=0x7
DataType=0x0009
AccessType=rw
DefaultValue=hello; world

[2002]
ParameterName=Gain
ObjectType=0x7
DataType=0x0008
AccessType=rw
DefaultValue=1.25

[2003]
ParameterName=Firmware
ObjectType=0x2
DataType=0x000F
AccessType=rw

[2004]
ParameterName=Counter24
ObjectType=0x7
DataType=0x0016
AccessType=rw
DefaultValue=0
`

func TestLoadCatalogDCF(t *testing.T) {
	catalog, err := LoadCatalogDCF([]byte(testDCF), 0x10)
	require.NoError(t, err)
	assert.Equal(t, 8, catalog.Len())

	tests := []struct {
		name     string
		index    uint16
		subindex uint8
		entry    string
		dt       DataType
		def      Value
	}{
		{name: "device type", index: 0x1000, entry: "Device type", dt: TypeUint32, def: UintValue(0x191)},
		{name: "record sub 0", index: 0x1018, subindex: 0, entry: "Identity object.Highest sub-index supported", dt: TypeUint8, def: UintValue(2)},
		{name: "record sub 1", index: 0x1018, subindex: 1, entry: "Identity object.Vendor-ID", dt: TypeUint32, def: UintValue(0x1234)},
		{name: "node id offset", index: 0x1018, subindex: 2, entry: "Identity object.Product code", dt: TypeUint32, def: UintValue(0x190)},
		{name: "parameter value", index: 0x2000, entry: "Temperature", dt: TypeInt16, def: IntValue(21)},
		{name: "string with semicolon", index: 0x2001, entry: "Label", dt: TypeString, def: StringValue("hello; world")},
		{name: "float", index: 0x2002, entry: "Gain", dt: TypeFloat32, def: FloatValue(1.25)},
		{name: "domain", index: 0x2003, entry: "Firmware", dt: TypeDomain, def: NoValue()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := catalog.Find(tt.index, tt.subindex)
			require.NoError(t, err)
			assert.Equal(t, tt.entry, entry.Name)
			assert.Equal(t, tt.dt, entry.DataType)
			assert.True(t, tt.def.Equal(entry.Default), "default %v, want %v", entry.Default, tt.def)
		})
	}

	temp := catalog.FindName("Temperature")
	require.NotNil(t, temp)
	require.NotNil(t, temp.Limits)
	assert.Equal(t, int64(-40), temp.Limits.Low.Int())
	assert.Equal(t, int64(125), temp.Limits.High.Int())
	_, err = temp.Encode(IntValue(200))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = catalog.Find(0x1018, 0x3)
	assert.ErrorIs(t, err, ErrUnknownEntry)
	// unsupported data types are skipped
	_, err = catalog.Find(0x2004, 0x0)
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestLoadCatalogDCF_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.dcf")
	require.NoError(t, os.WriteFile(path, []byte(testDCF), 0o600))

	catalog, err := LoadCatalogDCF(path, 0x20)
	require.NoError(t, err)
	entry, err := catalog.Find(0x1018, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1A0), entry.Default.Uint())
}

func TestLoadCatalogDCF_Errors(t *testing.T) {
	_, err := LoadCatalogDCF(filepath.Join(t.TempDir(), "missing.dcf"), 0)
	assert.Error(t, err)

	_, err = LoadCatalogDCF([]byte("[2000]\nDataType=0x0007\nDefaultValue=abc\n"), 0)
	assert.Error(t, err)

	_, err = LoadCatalogDCF([]byte("[2000]\nDataType=zz\n"), 0)
	assert.Error(t, err)
}
