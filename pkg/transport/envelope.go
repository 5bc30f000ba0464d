// Package transport carries framed vault messages between chains: an
// AMQP queue for outbound and inbound traffic, and a websocket relay feed
// as an alternative inbound source.
package transport

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"omnivault/internal/router"
	"omnivault/internal/vaulterr"
)

// Envelope is the JSON form of one cross-chain delivery.
type Envelope struct {
	ID       string `json:"id"`
	SrcChain uint32 `json:"src_chain"`
	DstChain uint32 `json:"dst_chain"`
	Sender   string `json:"sender"`
	Nonce    uint64 `json:"nonce"`
	GUID     string `json:"guid"`
	Payload  []byte `json:"payload"`
	SentAt   int64  `json:"sent_at"`
}

// NewGUID returns a random 32-byte message id.
func NewGUID() [32]byte {
	var guid [32]byte
	a, b := uuid.New(), uuid.New()
	copy(guid[:16], a[:])
	copy(guid[16:], b[:])
	return guid
}

func decode32(field, s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(out) {
		return out, fmt.Errorf("%s must be 32 hex-encoded bytes: %w", field, vaulterr.ErrInvalidMessage)
	}
	copy(out[:], b)
	return out, nil
}

// Inbound converts e into the router's delivery form.
func (e Envelope) Inbound() (router.InboundMessage, error) {
	sender, err := decode32("sender", e.Sender)
	if err != nil {
		return router.InboundMessage{}, err
	}
	guid, err := decode32("guid", e.GUID)
	if err != nil {
		return router.InboundMessage{}, err
	}
	return router.InboundMessage{
		SrcChain: e.SrcChain,
		Sender:   sender,
		Nonce:    e.Nonce,
		GUID:     guid,
		Payload:  e.Payload,
	}, nil
}
