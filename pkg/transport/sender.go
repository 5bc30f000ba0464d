package transport

import (
	"context"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"omnivault/internal/codec"
)

// Publisher is satisfied by config.Publisher.
type Publisher interface {
	Publish(ctx context.Context, queue string, message interface{}) error
}

// Sender frames outbound vault messages and publishes them as envelopes.
type Sender struct {
	pub      Publisher
	queue    string
	srcChain uint32
	self     [32]byte
	nonce    atomic.Uint64
	now      func() time.Time
	log      *logrus.Entry
}

func NewSender(pub Publisher, queue string, srcChain uint32, self [32]byte) *Sender {
	return &Sender{
		pub:      pub,
		queue:    queue,
		srcChain: srcChain,
		self:     self,
		now:      time.Now,
		log:      logrus.WithField("component", "sender"),
	}
}

// ResumeAfter makes the next nonce n+1. Receivers reject nonces they
// have already seen, so a restarted sender must resume above its last one.
func (s *Sender) ResumeAfter(n uint64) {
	s.nonce.Store(n)
}

// Send encodes m and publishes it for dstChain. Nonces increase by one
// per message starting at 1.
func (s *Sender) Send(ctx context.Context, dstChain uint32, m codec.Message) (Envelope, error) {
	payload, err := codec.EncodeMessage(m)
	if err != nil {
		return Envelope{}, err
	}
	guid := NewGUID()
	env := Envelope{
		ID:       uuid.NewString(),
		SrcChain: s.srcChain,
		DstChain: dstChain,
		Sender:   hex.EncodeToString(s.self[:]),
		Nonce:    s.nonce.Add(1),
		GUID:     hex.EncodeToString(guid[:]),
		Payload:  payload,
		SentAt:   s.now().Unix(),
	}
	if err := s.pub.Publish(ctx, s.queue, env); err != nil {
		return Envelope{}, err
	}
	s.log.WithFields(logrus.Fields{
		"id":        env.ID,
		"dst_chain": dstChain,
		"type":      m.Type().String(),
		"nonce":     env.Nonce,
	}).Info("Outbound message sent")
	return env, nil
}
