package codec

import (
	"fmt"

	bin "github.com/gagliardetto/binary"

	"omnivault/internal/vaulterr"
)

// Message is implemented by every payload shape.
type Message interface {
	Type() MessageType
}

type YieldUpdate struct {
	ProtocolID         [32]byte
	APYBps             uint32
	TVL                uint64
	AvailableLiquidity uint64
	RiskScore          uint8
	VolatilityScore    uint8
	Timestamp          int64
}

type StrategyInstruction struct {
	StrategyID          uint64
	InstructionType     uint8
	TargetChainID       uint32
	TargetAllocationBps uint16
	MinYieldBps         uint16
	MaxSlippageBps      uint16
}

type TokenMovement struct {
	TokenAddress       [32]byte
	Amount             uint64
	SourceChainID      uint32
	DestinationChainID uint32
	Recipient          [32]byte
	OperationType      uint8
}

type PositionUpdate struct {
	PositionID  [32]byte
	NewValue    uint64
	YieldEarned uint64
	FeesAccrued uint64
	Timestamp   int64
}

type RebalanceInstruction struct {
	StrategyID                  uint64
	SourceChainID               uint32
	DestinationChainID          uint32
	AmountToMove                uint64
	ExpectedYieldImprovementBps uint16
	MaxSlippageBps              uint16
}

// Strategy instruction kinds.
const (
	InstructionAddAllocation    uint8 = 1
	InstructionUpdateAllocation uint8 = 2
	InstructionPause            uint8 = 3
	InstructionResume           uint8 = 4
)

// Token movement operations.
const (
	OperationDeposit  uint8 = 1
	OperationWithdraw uint8 = 2
	OperationTransfer uint8 = 3
)

func (YieldUpdate) Type() MessageType          { return TypeYieldUpdate }
func (StrategyInstruction) Type() MessageType  { return TypeStrategyInstruction }
func (TokenMovement) Type() MessageType        { return TypeTokenMovement }
func (PositionUpdate) Type() MessageType       { return TypePositionUpdate }
func (RebalanceInstruction) Type() MessageType { return TypeRebalanceInstruction }

// EncodeMessage serializes m and frames it with its type.
func EncodeMessage(m Message) ([]byte, error) {
	payload, err := bin.MarshalBorsh(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s payload: %w", m.Type(), err)
	}
	return Encode(m.Type(), payload), nil
}

// Decode reads the frame type and decodes the matching payload shape.
func Decode(raw []byte) (Message, error) {
	t, err := DecodeType(raw)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeYieldUpdate:
		return DecodeYieldUpdate(raw)
	case TypeStrategyInstruction:
		return DecodeStrategyInstruction(raw)
	case TypeTokenMovement:
		return DecodeTokenMovement(raw)
	case TypePositionUpdate:
		return DecodePositionUpdate(raw)
	case TypeRebalanceInstruction:
		return DecodeRebalanceInstruction(raw)
	}
	return nil, fmt.Errorf("unknown message type %d: %w", uint8(t), vaulterr.ErrInvalidMessage)
}

func DecodeYieldUpdate(raw []byte) (YieldUpdate, error) {
	var m YieldUpdate
	err := decodeAs(raw, TypeYieldUpdate, &m)
	return m, err
}

func DecodeStrategyInstruction(raw []byte) (StrategyInstruction, error) {
	var m StrategyInstruction
	err := decodeAs(raw, TypeStrategyInstruction, &m)
	return m, err
}

func DecodeTokenMovement(raw []byte) (TokenMovement, error) {
	var m TokenMovement
	err := decodeAs(raw, TypeTokenMovement, &m)
	return m, err
}

func DecodePositionUpdate(raw []byte) (PositionUpdate, error) {
	var m PositionUpdate
	err := decodeAs(raw, TypePositionUpdate, &m)
	return m, err
}

func DecodeRebalanceInstruction(raw []byte) (RebalanceInstruction, error) {
	var m RebalanceInstruction
	err := decodeAs(raw, TypeRebalanceInstruction, &m)
	return m, err
}

// ExtractProtocolID returns the protocol id of a yield update frame.
func ExtractProtocolID(raw []byte) ([32]byte, error) {
	t, err := DecodeType(raw)
	if err != nil {
		return [32]byte{}, err
	}
	if t != TypeYieldUpdate {
		return [32]byte{}, fmt.Errorf("protocol id requested from %s: %w", t, vaulterr.ErrInvalidMessage)
	}
	m, err := DecodeYieldUpdate(raw)
	if err != nil {
		return [32]byte{}, err
	}
	return m.ProtocolID, nil
}

func decodeAs(raw []byte, want MessageType, out interface{}) error {
	t, err := DecodeType(raw)
	if err != nil {
		return err
	}
	if t != want {
		return fmt.Errorf("expected %s, got %s: %w", want, t, vaulterr.ErrInvalidMessage)
	}
	payload, err := DecodePayload(raw)
	if err != nil {
		return err
	}
	dec := bin.NewBorshDecoder(payload)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("malformed %s payload: %v: %w", want, err, vaulterr.ErrInvalidMessage)
	}
	if dec.Remaining() > 0 {
		return fmt.Errorf("%d trailing bytes in %s payload: %w", dec.Remaining(), want, vaulterr.ErrInvalidMessage)
	}
	return nil
}
