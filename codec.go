package cand

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ProtocolVersion is the first byte of every frame. It is bumped on breaking
// changes to the message formats.
const ProtocolVersion uint8 = 0

const (
	headerSize    = 2
	maxDynamicLen = 0xFF
	pathSeparator = "\x00"
)

// packer appends little-endian fields to a frame. The first failure sticks.
type packer struct {
	buf []byte
	err error
}

func newPacker(id MessageID) *packer {
	return &packer{buf: []byte{ProtocolVersion, uint8(id)}}
}

func (p *packer) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s", ErrPack, fmt.Sprintf(format, args...))
	}
}

func (p *packer) u8(v uint8) {
	p.buf = append(p.buf, v)
}

func (p *packer) u16(v uint16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
}

func (p *packer) u32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *packer) i32(v int32) {
	p.u32(uint32(v))
}

// bytes writes a 1 byte length prefix followed by b.
func (p *packer) bytes(b []byte) {
	if len(b) > maxDynamicLen {
		p.fail("dynamic field of %d bytes exceeds %d", len(b), maxDynamicLen)
		return
	}
	p.buf = append(p.buf, uint8(len(b)))
	p.buf = append(p.buf, b...)
}

func (p *packer) str(s string) {
	if !utf8.ValidString(s) {
		p.fail("string is not valid utf-8")
		return
	}
	p.bytes([]byte(s))
}

// paths writes two NUL separated segments as one string field.
func (p *packer) paths(first, second string) {
	if strings.Contains(first, pathSeparator) || strings.Contains(second, pathSeparator) {
		p.fail("path contains NUL byte")
		return
	}
	p.str(first + pathSeparator + second)
}

// tail writes b unprefixed; it runs to the end of the frame.
func (p *packer) tail(b []byte) {
	p.buf = append(p.buf, b...)
}

// unpacker reads fields from a frame body. Reads past the end fail with
// ErrUnpack and return zero values.
type unpacker struct {
	raw []byte
	off int
	err error
}

func (u *unpacker) fail(format string, args ...interface{}) {
	if u.err == nil {
		u.err = fmt.Errorf("%w: %s", ErrUnpack, fmt.Sprintf(format, args...))
	}
}

func (u *unpacker) take(n int) []byte {
	if u.err != nil {
		return nil
	}
	if len(u.raw)-u.off < n {
		u.fail("need %d bytes at offset %d, have %d", n, u.off, len(u.raw)-u.off)
		return nil
	}
	b := u.raw[u.off : u.off+n]
	u.off += n
	return b
}

func (u *unpacker) u8() uint8 {
	if b := u.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (u *unpacker) u16() uint16 {
	if b := u.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (u *unpacker) u32() uint32 {
	if b := u.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (u *unpacker) i32() int32 {
	return int32(u.u32())
}

func (u *unpacker) bytes() []byte {
	n := u.u8()
	b := u.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (u *unpacker) str() string {
	b := u.bytes()
	if b != nil && !utf8.Valid(b) {
		u.fail("string is not valid utf-8")
		return ""
	}
	return string(b)
}

func (u *unpacker) paths() (string, string) {
	s := strings.TrimSuffix(u.str(), pathSeparator)
	if u.err != nil {
		return "", ""
	}
	parts := strings.Split(s, pathSeparator)
	if len(parts) != 2 {
		u.fail("expected 2 path segments, got %d", len(parts))
		return "", ""
	}
	return parts[0], parts[1]
}

func (u *unpacker) tail() []byte {
	if u.err != nil {
		return nil
	}
	out := make([]byte, len(u.raw)-u.off)
	copy(out, u.raw[u.off:])
	u.off = len(u.raw)
	return out
}

// finish reports the first read error, or trailing bytes.
func (u *unpacker) finish() error {
	if u.err != nil {
		return u.err
	}
	if u.off != len(u.raw) {
		return fmt.Errorf("%w: %d trailing bytes", ErrUnpack, len(u.raw)-u.off)
	}
	return nil
}

// Pack encodes m into a frame.
func Pack(m Message) ([]byte, error) {
	p := newPacker(m.ID())
	m.encode(p)
	if p.err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID(), p.err)
	}
	return p.buf, nil
}

// PeekID validates the frame header and returns the message id.
func PeekID(raw []byte) (MessageID, error) {
	if len(raw) < headerSize {
		return 0, fmt.Errorf("%w: frame of %d bytes has no header", ErrUnpack, len(raw))
	}
	if raw[0] != ProtocolVersion {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, raw[0], ProtocolVersion)
	}
	return MessageID(raw[1]), nil
}

// Unpack decodes a frame of any known kind.
func Unpack(raw []byte) (Message, error) {
	id, err := PeekID(raw)
	if err != nil {
		return nil, err
	}
	newMsg, ok := messageTypes[id]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMessageID, uint8(id))
	}
	m := newMsg()
	if err := UnpackAs(raw, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnpackAs decodes raw into m, which must be of the kind the frame carries.
func UnpackAs(raw []byte, m Message) error {
	id, err := PeekID(raw)
	if err != nil {
		return err
	}
	if id != m.ID() {
		return fmt.Errorf("%w: got %s, want %s", ErrIDMismatch, id, m.ID())
	}
	u := &unpacker{raw: raw, off: headerSize}
	m.decode(u)
	if err := u.finish(); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}
