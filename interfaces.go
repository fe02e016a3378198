package cand

import "context"

// ConnEvent reports a change of the link to the daemon.
type ConnEvent struct {
	State    ConnectionState
	Endpoint string
}

// ITransport carries frames over the three channels to the daemon.
type ITransport interface {
	// Request sends a command frame and waits for its reply until ctx is done.
	Request(ctx context.Context, req []byte) ([]byte, error)
	// Publish broadcasts a frame without waiting for anything.
	Publish(raw []byte) error
	// Receive blocks until a broadcast frame arrives from the daemon.
	Receive(ctx context.Context) ([]byte, error)
	// Events delivers connection changes in order.
	Events() <-chan ConnEvent
	Close() error
}

// ISDOClient is remote dictionary access through the daemon.
type ISDOClient interface {
	SdoRead(node uint8, entry *Entry, useEnum bool) (Value, error)
	SdoReadRaw(node uint8, index uint16, subindex uint8) ([]byte, error)
	SdoWrite(node uint8, entry *Entry, v Value) error
	SdoWriteRaw(node uint8, index uint16, subindex uint8, raw []byte) error
}
