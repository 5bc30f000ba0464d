package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	maxReconnectAttempts = 10
	reconnectDelay       = 5 * time.Second
)

// Relay reads envelopes from a websocket feed, one JSON envelope per
// text frame, reconnecting when the connection drops.
type Relay struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	maxAttempts    int
	log            *logrus.Entry
}

func NewRelay(url string) *Relay {
	return &Relay{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
		maxAttempts:    maxReconnectAttempts,
		log:            logrus.WithField("relay", url),
	}
}

// Run delivers every envelope to handle until ctx is done. Handler errors
// are logged and do not stop the feed. Run gives up after maxAttempts
// consecutive failed dials.
func (r *Relay) Run(ctx context.Context, handle func(context.Context, Envelope) error) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
		if err != nil {
			attempts++
			r.log.WithError(err).WithField("attempt", attempts).Error("Failed to connect to relay")
			if attempts >= r.maxAttempts {
				return errors.New("max reconnect attempts reached")
			}
			if !sleep(ctx, r.reconnectDelay) {
				return ctx.Err()
			}
			continue
		}
		attempts = 0
		r.log.Info("Connected to relay")
		err = r.read(ctx, conn, handle)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.WithError(err).Warn("Relay connection lost, reconnecting")
		if !sleep(ctx, r.reconnectDelay) {
			return ctx.Err()
		}
	}
}

func (r *Relay) read(ctx context.Context, conn *websocket.Conn, handle func(context.Context, Envelope) error) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			r.log.WithError(err).Warn("Skipping malformed relay frame")
			continue
		}
		if err := handle(ctx, env); err != nil {
			r.log.WithError(err).WithField("id", env.ID).Warn("Relay envelope rejected")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
