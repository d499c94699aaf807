// Package flic implements the client side of the flicd daemon protocol:
// packet encoding and decoding, length-prefixed framing, and a connection
// that waits for button presses on a single connection channel.
package flic

import (
	"encoding/binary"
	"fmt"
)

// Command opcodes (client to daemon).
const (
	CmdGetInfo                 byte = 0
	CmdCreateScanner           byte = 1
	CmdRemoveScanner           byte = 2
	CmdCreateConnectionChannel byte = 3
	CmdRemoveConnectionChannel byte = 4
	CmdForceDisconnect         byte = 5
	CmdChangeModeParameters    byte = 6
	CmdPing                    byte = 7
)

// Event opcodes (daemon to client).
const (
	EvtAdvertisementPacket             byte = 0
	EvtCreateConnectionChannelResponse byte = 1
	EvtConnectionStatusChanged         byte = 2
	EvtConnectionChannelRemoved        byte = 3
	EvtButtonUpOrDown                  byte = 4
	EvtButtonClickOrHold               byte = 5
	EvtButtonSingleOrDoubleClick       byte = 6
	EvtButtonSingleOrDoubleClickOrHold byte = 7
	EvtNewVerifiedButton               byte = 8
	EvtGetInfoResponse                 byte = 9
	EvtNoSpaceForNewConnection         byte = 10
	EvtGotSpaceForNewConnection        byte = 11
	EvtBluetoothControllerStateChange  byte = 12
	EvtPingResponse                    byte = 13
)

// Fixed payload sizes, opcode byte included. The daemon packs its structs
// without padding and encodes integers little-endian.
const (
	createChannelSize  = 1 + 4 + AddressLength + 1 + 2
	removeChannelSize  = 1 + 4
	pingSize           = 1 + 4
	buttonEventSize    = 1 + 4 + 1 + 1 + 4
	channelRespSize    = 1 + 4 + 1 + 1
	statusChangedSize  = 1 + 4 + 1 + 1
	channelRemovedSize = 1 + 4 + 1
	pingResponseSize   = 1 + 4
)

// LatencyMode trades button latency against radio power.
type LatencyMode uint8

const (
	LatencyNormal LatencyMode = 0
	LatencyLow    LatencyMode = 1
	LatencyHigh   LatencyMode = 2
)

// ParseLatencyMode maps "normal", "low" and "high" to a LatencyMode.
func ParseLatencyMode(s string) (LatencyMode, error) {
	switch s {
	case "normal", "":
		return LatencyNormal, nil
	case "low":
		return LatencyLow, nil
	case "high":
		return LatencyHigh, nil
	default:
		return 0, fmt.Errorf("flic: unknown latency mode %q", s)
	}
}

// ClickType is the kind of button action carried by a button event.
type ClickType uint8

const (
	ButtonDown        ClickType = 0
	ButtonUp          ClickType = 1
	ButtonClick       ClickType = 2
	ButtonSingleClick ClickType = 3
	ButtonDoubleClick ClickType = 4
	ButtonHold        ClickType = 5
)

func (c ClickType) String() string {
	switch c {
	case ButtonDown:
		return "down"
	case ButtonUp:
		return "up"
	case ButtonClick:
		return "click"
	case ButtonSingleClick:
		return "single_click"
	case ButtonDoubleClick:
		return "double_click"
	case ButtonHold:
		return "hold"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ConnectionStatus as reported by the daemon for a connection channel.
type ConnectionStatus uint8

const (
	StatusDisconnected ConnectionStatus = 0
	StatusConnected    ConnectionStatus = 1
	StatusReady        ConnectionStatus = 2
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	case StatusReady:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// CreateChannelError is the result code of a channel creation request.
type CreateChannelError uint8

const (
	CreateChannelNoError                      CreateChannelError = 0
	CreateChannelMaxPendingConnectionsReached CreateChannelError = 1
)

// EncodeCreateChannel builds a CreateConnectionChannel command payload.
func EncodeCreateChannel(addr ButtonAddress, connID uint32, latency LatencyMode, autoDisconnect int16) []byte {
	b := make([]byte, createChannelSize)
	b[0] = CmdCreateConnectionChannel
	binary.LittleEndian.PutUint32(b[1:5], connID)
	copy(b[5:11], addr[:])
	b[11] = byte(latency)
	binary.LittleEndian.PutUint16(b[12:14], uint16(autoDisconnect))
	return b
}

// EncodeRemoveChannel builds a RemoveConnectionChannel command payload.
func EncodeRemoveChannel(connID uint32) []byte {
	b := make([]byte, removeChannelSize)
	b[0] = CmdRemoveConnectionChannel
	binary.LittleEndian.PutUint32(b[1:5], connID)
	return b
}

// EncodePing builds a Ping command payload.
func EncodePing(pingID uint32) []byte {
	b := make([]byte, pingSize)
	b[0] = CmdPing
	binary.LittleEndian.PutUint32(b[1:5], pingID)
	return b
}

// Event is a decoded daemon event.
type Event interface {
	Opcode() byte
}

// ButtonEvent is any of the four button event kinds. Which fields are
// meaningful depends on Op; only EvtButtonUpOrDown yields ButtonDown/ButtonUp.
type ButtonEvent struct {
	Op        byte
	ConnID    uint32
	ClickType ClickType
	WasQueued bool
	TimeDiff  int32 // seconds since the event happened, for queued events
}

func (e ButtonEvent) Opcode() byte { return e.Op }

// ChannelResponse answers a CreateConnectionChannel command.
type ChannelResponse struct {
	ConnID uint32
	Error  CreateChannelError
	Status ConnectionStatus
}

func (ChannelResponse) Opcode() byte { return EvtCreateConnectionChannelResponse }

// StatusChanged reports a button connecting or disconnecting.
type StatusChanged struct {
	ConnID           uint32
	Status           ConnectionStatus
	DisconnectReason uint8
}

func (StatusChanged) Opcode() byte { return EvtConnectionStatusChanged }

// ChannelRemoved reports the daemon dropping a connection channel.
type ChannelRemoved struct {
	ConnID uint32
	Reason uint8
}

func (ChannelRemoved) Opcode() byte { return EvtConnectionChannelRemoved }

// PingResponse answers a Ping command.
type PingResponse struct {
	PingID uint32
}

func (PingResponse) Opcode() byte { return EvtPingResponse }

// OtherEvent is any event this client does not interpret.
type OtherEvent struct {
	Op byte
}

func (e OtherEvent) Opcode() byte { return e.Op }

// DecodeEventOpcode returns the opcode of an event payload.
func DecodeEventOpcode(payload []byte) (byte, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrTruncated)
	}
	return payload[0], nil
}

// DecodeEvent decodes an event payload into its typed form.
// It does not retain payload.
func DecodeEvent(payload []byte) (Event, error) {
	op, err := DecodeEventOpcode(payload)
	if err != nil {
		return nil, err
	}

	c := cursor{buf: payload, pos: 1}
	switch op {
	case EvtButtonUpOrDown, EvtButtonClickOrHold, EvtButtonSingleOrDoubleClick, EvtButtonSingleOrDoubleClickOrHold:
		if err := c.need(op, buttonEventSize); err != nil {
			return nil, err
		}
		return ButtonEvent{
			Op:        op,
			ConnID:    c.u32(),
			ClickType: ClickType(c.u8()),
			WasQueued: c.u8() != 0,
			TimeDiff:  int32(c.u32()),
		}, nil

	case EvtCreateConnectionChannelResponse:
		if err := c.need(op, channelRespSize); err != nil {
			return nil, err
		}
		return ChannelResponse{
			ConnID: c.u32(),
			Error:  CreateChannelError(c.u8()),
			Status: ConnectionStatus(c.u8()),
		}, nil

	case EvtConnectionStatusChanged:
		if err := c.need(op, statusChangedSize); err != nil {
			return nil, err
		}
		return StatusChanged{
			ConnID:           c.u32(),
			Status:           ConnectionStatus(c.u8()),
			DisconnectReason: c.u8(),
		}, nil

	case EvtConnectionChannelRemoved:
		if err := c.need(op, channelRemovedSize); err != nil {
			return nil, err
		}
		return ChannelRemoved{ConnID: c.u32(), Reason: c.u8()}, nil

	case EvtPingResponse:
		if err := c.need(op, pingResponseSize); err != nil {
			return nil, err
		}
		return PingResponse{PingID: c.u32()}, nil

	default:
		return OtherEvent{Op: op}, nil
	}
}

// cursor reads little-endian fields; need must be called before reading.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) need(op byte, size int) error {
	if len(c.buf) < size {
		return fmt.Errorf("%w: opcode %d needs %d bytes, got %d", ErrTruncated, op, size, len(c.buf))
	}
	return nil
}

func (c *cursor) u8() uint8 {
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}
