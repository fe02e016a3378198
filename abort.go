package cand

// Standard CANopen SDO abort codes (CiA 301).
const (
	AbortToggleBit           uint32 = 0x05030000
	AbortTimeout             uint32 = 0x05040000
	AbortCommand             uint32 = 0x05040001
	AbortBlockSize           uint32 = 0x05040002
	AbortSequence            uint32 = 0x05040003
	AbortCRC                 uint32 = 0x05040004
	AbortOutOfMemory         uint32 = 0x05040005
	AbortUnsupportedAccess   uint32 = 0x06010000
	AbortWriteOnly           uint32 = 0x06010001
	AbortReadOnly            uint32 = 0x06010002
	AbortNotExist            uint32 = 0x06020000
	AbortNoMap               uint32 = 0x06040041
	AbortMapLength           uint32 = 0x06040042
	AbortParamIncompatible   uint32 = 0x06040043
	AbortDeviceIncompatible  uint32 = 0x06040047
	AbortHardware            uint32 = 0x06060000
	AbortTypeMismatch        uint32 = 0x06070010
	AbortDataLong            uint32 = 0x06070012
	AbortDataShort           uint32 = 0x06070013
	AbortSubUnknown          uint32 = 0x06090011
	AbortInvalidValue        uint32 = 0x06090030
	AbortValueHigh           uint32 = 0x06090031
	AbortValueLow            uint32 = 0x06090032
	AbortMaxLessMin          uint32 = 0x06090036
	AbortNoResource          uint32 = 0x060A0023
	AbortGeneral             uint32 = 0x08000000
	AbortDataTransfer        uint32 = 0x08000020
	AbortDataLocalControl    uint32 = 0x08000021
	AbortDataDeviceState     uint32 = 0x08000022
	AbortDataOD              uint32 = 0x08000023
	AbortNoData              uint32 = 0x08000024
	AbortNoSdoClient         uint32 = 0xFFFFFFFF
)

var abortDescriptions = map[uint32]string{
	AbortToggleBit:          "Toggle bit not alternated",
	AbortTimeout:            "SDO protocol timed out",
	AbortCommand:            "Client/server command specifier not valid or unknown",
	AbortBlockSize:          "Invalid block size (block mode only)",
	AbortSequence:           "Invalid sequence number (block mode only)",
	AbortCRC:                "CRC error (block mode only)",
	AbortOutOfMemory:        "Out of memory",
	AbortUnsupportedAccess:  "Unsupported access to an object",
	AbortWriteOnly:          "Attempt to read a write only object",
	AbortReadOnly:           "Attempt to write a read only object",
	AbortNotExist:           "Object does not exist in the object dictionary",
	AbortNoMap:              "Object cannot be mapped to the PDO",
	AbortMapLength:          "The number and length of the objects to be mapped would exceed PDO length",
	AbortParamIncompatible:  "General parameter incompatibility reason",
	AbortDeviceIncompatible: "General internal incompatibility in the device",
	AbortHardware:           "Access failed due to an hardware error",
	AbortTypeMismatch:       "Data type does not match, length of service parameter does not match",
	AbortDataLong:           "Data type does not match, length of service parameter too high",
	AbortDataShort:          "Data type does not match, length of service parameter too low",
	AbortSubUnknown:         "Sub-index does not exist",
	AbortInvalidValue:       "Invalid value for parameter (download only)",
	AbortValueHigh:          "Value of parameter written too high (download only)",
	AbortValueLow:           "Value of parameter written too low (download only)",
	AbortMaxLessMin:         "Maximum value is less than minimum value",
	AbortNoResource:         "Resource not available: SDO connection",
	AbortGeneral:            "General error",
	AbortDataTransfer:       "Data cannot be transferred or stored to the application",
	AbortDataLocalControl:   "Data cannot be transferred or stored to the application because of local control",
	AbortDataDeviceState:    "Data cannot be transferred or stored to the application because of the present device state",
	AbortDataOD:             "Object dictionary dynamic generation fails or no object dictionary is present",
	AbortNoData:             "No data available",
	AbortNoSdoClient:        "No SDO client",
}

// AbortDescription returns the human readable text for an SDO abort code.
func AbortDescription(code uint32) string {
	if desc, ok := abortDescriptions[code]; ok {
		return desc
	}
	return "Unknown abort code"
}
