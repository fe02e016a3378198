package cand

import "fmt"

// NodeState is the NMT state a remote node reports in its heartbeat.
type NodeState uint8

const (
	NodeInitializing   NodeState = 0x00
	NodeStopped        NodeState = 0x04
	NodeOperational    NodeState = 0x05
	NodePreOperational NodeState = 0x7F
)

func (s NodeState) String() string {
	switch s {
	case NodeInitializing:
		return "INITIALIZING"
	case NodeStopped:
		return "STOPPED"
	case NodeOperational:
		return "OPERATIONAL"
	case NodePreOperational:
		return "PRE_OPERATIONAL"
	}
	return fmt.Sprintf("NodeState(0x%02X)", uint8(s))
}

// Valid reports whether s is a known NMT state.
func (s NodeState) Valid() bool {
	switch s {
	case NodeInitializing, NodeStopped, NodeOperational, NodePreOperational:
		return true
	}
	return false
}

// BusState is the state of the daemon's CAN bus.
type BusState uint8

const (
	BusNotFound BusState = 0
	BusDown     BusState = 1
	BusUp       BusState = 2
)

func (s BusState) String() string {
	switch s {
	case BusNotFound:
		return "NOT_FOUND"
	case BusDown:
		return "DOWN"
	case BusUp:
		return "UP"
	}
	return fmt.Sprintf("BusState(%d)", uint8(s))
}

// Valid reports whether s is a known bus state.
func (s BusState) Valid() bool {
	return s <= BusUp
}

// ConnectionState is the transport level link to the daemon.
type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}
