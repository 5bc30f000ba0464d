// Package codec implements the framed wire format of cross-chain vault
// messages: one type byte, a big-endian u32 payload length, then a
// Borsh-encoded payload.
package codec

import (
	"encoding/binary"
	"fmt"

	"omnivault/internal/vaulterr"
)

// MessageType is the first byte of every frame.
type MessageType uint8

const (
	TypeYieldUpdate          MessageType = 1
	TypeStrategyInstruction  MessageType = 2
	TypeTokenMovement        MessageType = 3
	TypePositionUpdate       MessageType = 4
	TypeRebalanceInstruction MessageType = 5
)

const (
	typeOffset    = 0
	lengthOffset  = 1
	payloadOffset = 5

	// HeaderSize is the number of bytes preceding the payload.
	HeaderSize = payloadOffset
)

func (t MessageType) String() string {
	switch t {
	case TypeYieldUpdate:
		return "yield_update"
	case TypeStrategyInstruction:
		return "strategy_instruction"
	case TypeTokenMovement:
		return "token_movement"
	case TypePositionUpdate:
		return "position_update"
	case TypeRebalanceInstruction:
		return "rebalance_instruction"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Encode frames payload with its type and length.
func Encode(t MessageType, payload []byte) []byte {
	frame := make([]byte, payloadOffset+len(payload))
	frame[typeOffset] = byte(t)
	binary.BigEndian.PutUint32(frame[lengthOffset:payloadOffset], uint32(len(payload)))
	copy(frame[payloadOffset:], payload)
	return frame
}

// DecodeType returns the frame's type byte.
func DecodeType(raw []byte) (MessageType, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty message: %w", vaulterr.ErrInvalidMessage)
	}
	return MessageType(raw[typeOffset]), nil
}

// DecodeLength returns the declared payload length.
func DecodeLength(raw []byte) (uint32, error) {
	if len(raw) < payloadOffset {
		return 0, fmt.Errorf("message shorter than header (%d bytes): %w", len(raw), vaulterr.ErrInvalidMessage)
	}
	return binary.BigEndian.Uint32(raw[lengthOffset:payloadOffset]), nil
}

// DecodePayload returns the payload slice. Bytes past the declared length are ignored.
func DecodePayload(raw []byte) ([]byte, error) {
	length, err := DecodeLength(raw)
	if err != nil {
		return nil, err
	}
	end := uint64(payloadOffset) + uint64(length)
	if uint64(len(raw)) < end {
		return nil, fmt.Errorf("declared length %d overruns %d byte message: %w", length, len(raw), vaulterr.ErrInvalidMessage)
	}
	return raw[payloadOffset:end], nil
}
