package cand

import (
	"encoding/json"
	"fmt"
)

// MessageID selects the message kind and its field layout.
type MessageID uint8

const (
	MsgEmcySend         MessageID = 0x00
	MsgTpdoSend         MessageID = 0x01
	MsgOdWrite          MessageID = 0x02
	MsgSdoRead          MessageID = 0x03
	MsgSdoWrite         MessageID = 0x04
	MsgAddFile          MessageID = 0x05
	MsgHbRecv           MessageID = 0x06
	MsgEmcyRecv         MessageID = 0x07
	MsgSyncSend         MessageID = 0x08
	MsgBusState         MessageID = 0x09
	MsgSdoReadToFile    MessageID = 0x0A
	MsgSdoWriteFromFile MessageID = 0x0B
	MsgConfig           MessageID = 0x0C
	MsgSdoListFiles     MessageID = 0x0D
	MsgError            MessageID = 0x80
	MsgUnknownIDError   MessageID = 0x81
	MsgAbortError       MessageID = 0x82
)

var messageNames = map[MessageID]string{
	MsgEmcySend:         "EmcySend",
	MsgTpdoSend:         "TpdoSend",
	MsgOdWrite:          "OdWrite",
	MsgSdoRead:          "SdoRead",
	MsgSdoWrite:         "SdoWrite",
	MsgAddFile:          "AddFile",
	MsgHbRecv:           "HbRecv",
	MsgEmcyRecv:         "EmcyRecv",
	MsgSyncSend:         "SyncSend",
	MsgBusState:         "BusState",
	MsgSdoReadToFile:    "SdoReadToFile",
	MsgSdoWriteFromFile: "SdoWriteFromFile",
	MsgConfig:           "Config",
	MsgSdoListFiles:     "SdoListFiles",
	MsgError:            "Error",
	MsgUnknownIDError:   "UnknownIdError",
	MsgAbortError:       "AbortError",
}

func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Message(0x%02X)", uint8(id))
}

// IsError reports whether id is one of the error replies.
func (id MessageID) IsError() bool {
	return id == MsgError || id == MsgUnknownIDError || id == MsgAbortError
}

// Message is one of the closed set of IPC messages.
type Message interface {
	ID() MessageID
	encode(p *packer)
	decode(u *unpacker)
}

var messageTypes = map[MessageID]func() Message{
	MsgEmcySend:         func() Message { return &EmcySendMessage{} },
	MsgTpdoSend:         func() Message { return &TpdoSendMessage{} },
	MsgOdWrite:          func() Message { return &OdWriteMessage{} },
	MsgSdoRead:          func() Message { return &SdoReadMessage{} },
	MsgSdoWrite:         func() Message { return &SdoWriteMessage{} },
	MsgAddFile:          func() Message { return &AddFileMessage{} },
	MsgHbRecv:           func() Message { return &HbRecvMessage{} },
	MsgEmcyRecv:         func() Message { return &EmcyRecvMessage{} },
	MsgSyncSend:         func() Message { return &SyncSendMessage{} },
	MsgBusState:         func() Message { return &BusStateMessage{} },
	MsgSdoReadToFile:    func() Message { return &SdoReadToFileMessage{} },
	MsgSdoWriteFromFile: func() Message { return &SdoWriteFromFileMessage{} },
	MsgConfig:           func() Message { return &ConfigMessage{} },
	MsgSdoListFiles:     func() Message { return &SdoListFilesMessage{} },
	MsgError:            func() Message { return &ErrorMessage{} },
	MsgUnknownIDError:   func() Message { return &UnknownIDErrorMessage{} },
	MsgAbortError:       func() Message { return &AbortErrorMessage{} },
}

// EmcySendMessage asks the daemon to send an emergency on the bus.
type EmcySendMessage struct {
	Code uint32
	Info uint32
}

func (m *EmcySendMessage) ID() MessageID { return MsgEmcySend }

func (m *EmcySendMessage) encode(p *packer) {
	p.u32(m.Code)
	p.u32(m.Info)
}

func (m *EmcySendMessage) decode(u *unpacker) {
	m.Code = u.u32()
	m.Info = u.u32()
}

// TpdoSendMessage triggers a TPDO.
type TpdoSendMessage struct {
	Num uint8
}

func (m *TpdoSendMessage) ID() MessageID { return MsgTpdoSend }

func (m *TpdoSendMessage) encode(p *packer) { p.u8(m.Num) }

func (m *TpdoSendMessage) decode(u *unpacker) { m.Num = u.u8() }

// OdWriteMessage carries a new raw value of a local dictionary entry.
type OdWriteMessage struct {
	Index    uint16
	Subindex uint8
	Raw      []byte
}

func (m *OdWriteMessage) ID() MessageID { return MsgOdWrite }

func (m *OdWriteMessage) encode(p *packer) {
	p.u16(m.Index)
	p.u8(m.Subindex)
	p.bytes(m.Raw)
}

func (m *OdWriteMessage) decode(u *unpacker) {
	m.Index = u.u16()
	m.Subindex = u.u8()
	m.Raw = u.bytes()
}

// SdoReadMessage reads an entry of a remote node. The reply carries the
// value in Raw.
type SdoReadMessage struct {
	Node     uint8
	Index    uint16
	Subindex uint8
	Raw      []byte
}

func (m *SdoReadMessage) ID() MessageID { return MsgSdoRead }

func (m *SdoReadMessage) encode(p *packer) {
	p.u8(m.Node)
	p.u16(m.Index)
	p.u8(m.Subindex)
	p.bytes(m.Raw)
}

func (m *SdoReadMessage) decode(u *unpacker) {
	m.Node = u.u8()
	m.Index = u.u16()
	m.Subindex = u.u8()
	m.Raw = u.bytes()
}

// SdoWriteMessage writes an entry of a remote node.
type SdoWriteMessage struct {
	Node     uint8
	Index    uint16
	Subindex uint8
	Raw      []byte
}

func (m *SdoWriteMessage) ID() MessageID { return MsgSdoWrite }

func (m *SdoWriteMessage) encode(p *packer) {
	p.u8(m.Node)
	p.u16(m.Index)
	p.u8(m.Subindex)
	p.bytes(m.Raw)
}

func (m *SdoWriteMessage) decode(u *unpacker) {
	m.Node = u.u8()
	m.Index = u.u16()
	m.Subindex = u.u8()
	m.Raw = u.bytes()
}

// AddFileMessage hands a local file to the daemon's file cache.
type AddFileMessage struct {
	Path string
}

func (m *AddFileMessage) ID() MessageID { return MsgAddFile }

func (m *AddFileMessage) encode(p *packer) { p.str(m.Path) }

func (m *AddFileMessage) decode(u *unpacker) { m.Path = u.str() }

// HbRecvMessage reports a heartbeat received from a remote node.
type HbRecvMessage struct {
	Node  uint8
	State NodeState
}

func (m *HbRecvMessage) ID() MessageID { return MsgHbRecv }

func (m *HbRecvMessage) encode(p *packer) {
	p.u8(m.Node)
	p.u8(uint8(m.State))
}

func (m *HbRecvMessage) decode(u *unpacker) {
	m.Node = u.u8()
	m.State = NodeState(u.u8())
}

// EmcyRecvMessage reports an emergency received from a remote node.
type EmcyRecvMessage struct {
	Node uint8
	Code uint16
	Info uint32
}

func (m *EmcyRecvMessage) ID() MessageID { return MsgEmcyRecv }

func (m *EmcyRecvMessage) encode(p *packer) {
	p.u8(m.Node)
	p.u16(m.Code)
	p.u32(m.Info)
}

func (m *EmcyRecvMessage) decode(u *unpacker) {
	m.Node = u.u8()
	m.Code = u.u16()
	m.Info = u.u32()
}

// SyncSendMessage asks the daemon to send a SYNC.
type SyncSendMessage struct{}

func (m *SyncSendMessage) ID() MessageID { return MsgSyncSend }

func (m *SyncSendMessage) encode(*packer) {}

func (m *SyncSendMessage) decode(*unpacker) {}

// BusStateMessage reports the state of the daemon's CAN bus.
type BusStateMessage struct {
	State BusState
}

func (m *BusStateMessage) ID() MessageID { return MsgBusState }

func (m *BusStateMessage) encode(p *packer) { p.u8(uint8(m.State)) }

func (m *BusStateMessage) decode(u *unpacker) { m.State = BusState(u.u8()) }

// SdoReadToFileMessage reads a remote file into a local path.
type SdoReadToFileMessage struct {
	Node       uint8
	RemotePath string
	LocalPath  string
}

func (m *SdoReadToFileMessage) ID() MessageID { return MsgSdoReadToFile }

func (m *SdoReadToFileMessage) encode(p *packer) {
	p.u8(m.Node)
	p.paths(m.RemotePath, m.LocalPath)
}

func (m *SdoReadToFileMessage) decode(u *unpacker) {
	m.Node = u.u8()
	m.RemotePath, m.LocalPath = u.paths()
}

// SdoWriteFromFileMessage writes a local file to a remote node.
type SdoWriteFromFileMessage struct {
	Node       uint8
	LocalPath  string
	RemotePath string
}

func (m *SdoWriteFromFileMessage) ID() MessageID { return MsgSdoWriteFromFile }

func (m *SdoWriteFromFileMessage) encode(p *packer) {
	p.u8(m.Node)
	p.paths(m.LocalPath, m.RemotePath)
}

func (m *SdoWriteFromFileMessage) decode(u *unpacker) {
	m.Node = u.u8()
	m.LocalPath, m.RemotePath = u.paths()
}

// ConfigMessage pushes the path of the client's dictionary config to the
// daemon.
type ConfigMessage struct {
	Path string
}

func (m *ConfigMessage) ID() MessageID { return MsgConfig }

func (m *ConfigMessage) encode(p *packer) { p.str(m.Path) }

func (m *ConfigMessage) decode(u *unpacker) { m.Path = u.str() }

// SdoListFilesMessage lists the files of a remote node. The list runs to the
// end of the frame as a JSON array.
type SdoListFilesMessage struct {
	Node  uint8
	Files []string
}

func (m *SdoListFilesMessage) ID() MessageID { return MsgSdoListFiles }

func (m *SdoListFilesMessage) encode(p *packer) {
	p.u8(m.Node)
	if len(m.Files) == 0 {
		return
	}
	raw, err := json.Marshal(m.Files)
	if err != nil {
		p.fail("file list: %v", err)
		return
	}
	p.tail(raw)
}

func (m *SdoListFilesMessage) decode(u *unpacker) {
	m.Node = u.u8()
	raw := u.tail()
	if n := len(raw); n > 0 && raw[n-1] == 0 {
		raw = raw[:n-1]
	}
	if len(raw) == 0 {
		m.Files = nil
		return
	}
	var files []string
	if err := json.Unmarshal(raw, &files); err != nil {
		u.fail("file list: %v", err)
		return
	}
	m.Files = files
}

// ErrorMessage is the generic error reply.
type ErrorMessage struct {
	Code int32
}

func (m *ErrorMessage) ID() MessageID { return MsgError }

func (m *ErrorMessage) encode(p *packer) { p.i32(m.Code) }

func (m *ErrorMessage) decode(u *unpacker) { m.Code = u.i32() }

// UnknownIDErrorMessage is the reply to a request id the daemon does not
// handle.
type UnknownIDErrorMessage struct {
	Value uint8
}

func (m *UnknownIDErrorMessage) ID() MessageID { return MsgUnknownIDError }

func (m *UnknownIDErrorMessage) encode(p *packer) { p.u8(m.Value) }

func (m *UnknownIDErrorMessage) decode(u *unpacker) { m.Value = u.u8() }

// AbortErrorMessage is the reply to a failed SDO transfer.
type AbortErrorMessage struct {
	Code uint32
}

func (m *AbortErrorMessage) ID() MessageID { return MsgAbortError }

func (m *AbortErrorMessage) encode(p *packer) { p.u32(m.Code) }

func (m *AbortErrorMessage) decode(u *unpacker) { m.Code = u.u32() }

// replyError converts an error reply to its typed error. It returns nil for
// any other message.
func replyError(m Message) error {
	switch r := m.(type) {
	case *ErrorMessage:
		return &RemoteError{Code: r.Code}
	case *UnknownIDErrorMessage:
		return &UnknownIDError{ID: r.Value}
	case *AbortErrorMessage:
		return &SdoAbortError{Code: r.Code}
	}
	return nil
}
