package cand

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match their sentinel with errors.Is.
var (
	// Message codec
	ErrVersionMismatch  = errors.New("cand: protocol version mismatch")
	ErrIDMismatch       = errors.New("cand: message id mismatch")
	ErrUnknownMessageID = errors.New("cand: unknown message id")
	ErrUnpack           = errors.New("cand: failed to unpack message")
	ErrPack             = errors.New("cand: failed to pack message")

	// Values and entries
	ErrTypeMismatch   = errors.New("cand: value type mismatch")
	ErrOutOfRange     = errors.New("cand: value out of range")
	ErrDecode         = errors.New("cand: failed to decode value")
	ErrNoEnum         = errors.New("cand: entry has no enum")
	ErrUnknownEntry   = errors.New("cand: unknown entry")
	ErrDuplicateEntry = errors.New("cand: duplicate entry")

	// Client
	ErrTimeout            = errors.New("cand: command timed out")
	ErrCallbackAlreadySet = errors.New("cand: write callback already set")
	ErrNotConnected       = errors.New("cand: not connected")
	ErrClosed             = errors.New("cand: client closed")
	ErrUnexpectedReply    = errors.New("cand: unexpected reply")

	// Remote
	ErrSdoAbort  = errors.New("cand: sdo abort")
	ErrRemote    = errors.New("cand: remote error")
	ErrUnknownID = errors.New("cand: daemon reported unknown message id")

	// File transfer preconditions
	ErrFileNotFound    = errors.New("cand: file not found")
	ErrPathNotAbsolute = errors.New("cand: path is not absolute")
)

// SdoAbortError is returned when the daemon answers a remote dictionary
// access with an SDO abort code.
type SdoAbortError struct {
	Code uint32
}

func (e *SdoAbortError) Error() string {
	return fmt.Sprintf("cand: sdo abort 0x%08X: %s", e.Code, AbortDescription(e.Code))
}

func (e *SdoAbortError) Is(target error) bool { return target == ErrSdoAbort }

// RemoteError carries the generic error code of an Error reply.
type RemoteError struct {
	Code int32
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("cand: remote error %d", e.Code)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// UnknownIDError is returned when the daemon did not recognise the id of
// the request it was sent.
type UnknownIDError struct {
	ID uint8
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("cand: daemon reported unknown message id 0x%02X", e.ID)
}

func (e *UnknownIDError) Is(target error) bool { return target == ErrUnknownID }
