// Package router admits inbound cross-chain messages through the peer gate
// and applies them to the ledger.
package router

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"omnivault/internal/codec"
	"omnivault/internal/ledger"
	"omnivault/internal/metrics"
	"omnivault/internal/models"
	"omnivault/internal/peergate"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

// InboundMessage is one delivery from the messaging endpoint.
type InboundMessage struct {
	SrcChain uint32
	Sender   [32]byte
	Nonce    uint64
	GUID     [32]byte
	Payload  []byte
}

// Accounts lists the entity keys a message touches. Fields a message type
// does not use are empty.
type Accounts struct {
	Vault     string `json:"vault"`
	Peer      string `json:"peer"`
	YieldData string `json:"yield_data,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Position  string `json:"position,omitempty"`
	Token     string `json:"token,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

type Option func(*Router)

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithLogger(entry *logrus.Entry) Option {
	return func(r *Router) {
		r.log = entry
	}
}

type Router struct {
	ledger  *ledger.Ledger
	metrics *metrics.Recorder
	log     *logrus.Entry
}

func New(l *ledger.Ledger, opts ...Option) *Router {
	r := &Router{
		ledger: l,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve derives the keys a message needs before it is admitted. A payload
// that cannot be decoded still resolves the vault and peer keys.
func (r *Router) Resolve(srcChain uint32, raw []byte) (Accounts, error) {
	vault := r.ledger.VaultKey()
	peer, err := storage.PeerKey(vault, srcChain)
	if err != nil {
		return Accounts{}, err
	}
	acc := Accounts{Vault: vault, Peer: peer}

	t, err := codec.DecodeType(raw)
	if err != nil {
		return acc, nil
	}
	switch t {
	case codec.TypeYieldUpdate:
		if protocol, err := codec.ExtractProtocolID(raw); err == nil {
			acc.YieldData, err = storage.YieldDataKey(srcChain, protocol)
			if err != nil {
				return acc, err
			}
		}
	case codec.TypeStrategyInstruction:
		if m, err := codec.DecodeStrategyInstruction(raw); err == nil {
			acc.Strategy, err = storage.StrategyKey(vault, m.StrategyID)
			if err != nil {
				return acc, err
			}
		}
	case codec.TypeRebalanceInstruction:
		if m, err := codec.DecodeRebalanceInstruction(raw); err == nil {
			acc.Strategy, err = storage.StrategyKey(vault, m.StrategyID)
			if err != nil {
				return acc, err
			}
		}
	case codec.TypePositionUpdate:
		if m, err := codec.DecodePositionUpdate(raw); err == nil {
			acc.Position = storage.AddressFromBytes(m.PositionID)
		}
	case codec.TypeTokenMovement:
		if m, err := codec.DecodeTokenMovement(raw); err == nil {
			acc.Token = storage.AddressFromBytes(m.TokenAddress)
			acc.Recipient = storage.AddressFromBytes(m.Recipient)
		}
	}
	return acc, nil
}

// Receive admits msg through the peer gate and applies it. Nonces must
// increase per source chain. The gate charge and the nonce are committed
// before dispatch, so a message that fails in its handler still counts
// against the peer's hourly budget and cannot be delivered again.
func (r *Router) Receive(ctx context.Context, msg InboundMessage) error {
	src := ChainLabel(msg.SrcChain)
	entry := r.log.WithFields(logrus.Fields{
		"src_chain": msg.SrcChain,
		"nonce":     msg.Nonce,
		"guid":      hex.EncodeToString(msg.GUID[:]),
		"size":      len(msg.Payload),
	})

	if err := r.admit(ctx, msg, src); err != nil {
		r.metrics.Message(src, "unknown", metrics.OutcomeRejected)
		entry.WithError(err).Warn("Inbound message rejected")
		return err
	}

	t, err := codec.DecodeType(msg.Payload)
	if err != nil {
		r.metrics.Message(src, "unknown", metrics.OutcomeFailed)
		entry.WithError(err).Error("Failed to decode message type")
		return err
	}
	entry = entry.WithField("type", t.String())

	started := time.Now()
	var switches []decisionLog
	err = r.ledger.Store().Atomic(ctx, func(tx storage.Tx) error {
		switches = switches[:0]
		v, err := ledger.LoadVault(tx, r.ledger.VaultKey())
		if err != nil {
			return err
		}
		now := r.ledger.Now()
		switch t {
		case codec.TypeYieldUpdate:
			switches, err = handleYieldUpdate(tx, v, msg.SrcChain, msg.Payload, now)
			return err
		case codec.TypeStrategyInstruction:
			return handleStrategyInstruction(tx, v, msg.Payload, now)
		case codec.TypeTokenMovement:
			return handleTokenMovement(tx, v, msg.Payload, now)
		case codec.TypePositionUpdate:
			return handlePositionUpdate(tx, v, msg.Payload, now)
		case codec.TypeRebalanceInstruction:
			return handleRebalanceInstruction(tx, v, msg.Payload, now)
		}
		return fmt.Errorf("unknown message type %d: %w", uint8(t), vaulterr.ErrInvalidMessage)
	})
	r.metrics.ObserveHandling(t.String(), time.Since(started))
	if t == codec.TypeRebalanceInstruction {
		r.metrics.Rebalance("message", err)
	}
	if err != nil {
		r.metrics.Message(src, t.String(), metrics.OutcomeFailed)
		entry.WithError(err).Error("Failed to handle inbound message")
		return err
	}

	for _, s := range switches {
		r.metrics.BestChainSwitch(ChainLabel(s.ToChain))
		entry.WithFields(logrus.Fields{
			"strategy_id": s.strategyID,
			"from_chain":  s.FromChain,
			"to_chain":    s.ToChain,
			"improvement": s.Improvement,
		}).Info("Best chain switched")
	}
	r.metrics.Message(src, t.String(), metrics.OutcomeAccepted)
	entry.Info("Inbound message handled")
	return nil
}

func (r *Router) admit(ctx context.Context, msg InboundMessage, src string) error {
	key, err := storage.PeerKey(r.ledger.VaultKey(), msg.SrcChain)
	if err != nil {
		return err
	}
	return r.ledger.Store().Atomic(ctx, func(tx storage.Tx) error {
		if _, err := ledger.LoadVault(tx, r.ledger.VaultKey()); err != nil {
			return err
		}
		peer, err := tx.GetPeer(key)
		if errors.Is(err, vaulterr.ErrNotFound) {
			return fmt.Errorf("no peer for chain %d: %w", msg.SrcChain, vaulterr.ErrPeerNotTrusted)
		}
		if err != nil {
			return err
		}
		if hex.EncodeToString(msg.Sender[:]) != peer.PeerAddress {
			return fmt.Errorf("sender does not match peer of chain %d: %w", msg.SrcChain, vaulterr.ErrPeerNotTrusted)
		}
		if msg.Nonce <= peer.LastInboundNonce {
			r.metrics.GateVerdict(src, "replayed")
			return fmt.Errorf("nonce %d already seen from chain %d: %w", msg.Nonce, msg.SrcChain, vaulterr.ErrPeerNotTrusted)
		}
		now := r.ledger.Now()
		verdict := peergate.Check(peer, now, len(msg.Payload))
		r.metrics.GateVerdict(src, verdict.String())
		if verdict != peergate.Accepted {
			return fmt.Errorf("%s: %w", verdict, vaulterr.ErrPeerNotTrusted)
		}
		peergate.Record(peer, now)
		peer.LastInboundNonce = msg.Nonce
		return tx.SavePeer(peer)
	})
}

// ChainLabel renders an endpoint id for logs and metric labels.
func ChainLabel(chainID uint32) string {
	if name := models.ChainName(chainID); name != "" {
		return name
	}
	return strconv.FormatUint(uint64(chainID), 10)
}
