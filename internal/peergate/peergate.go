// Package peergate decides whether an inbound message from a source chain
// may be processed, using the trust flag and hourly quota of its PeerConfig.
package peergate

import (
	"omnivault/internal/models"
)

const (
	SecondsPerHour = 3600

	DefaultMaxMessageSize   uint32 = 1024
	DefaultRateLimitPerHour uint32 = 100
)

type Verdict int

const (
	Accepted Verdict = iota
	Untrusted
	TooLarge
	RateLimited
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Untrusted:
		return "untrusted"
	case TooLarge:
		return "too_large"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// HourOf returns the hour bucket of a unix timestamp.
func HourOf(now int64) int64 {
	return now / SecondsPerHour
}

// Check evaluates one message of size bytes against p at time now.
// When the hour bucket has moved on, the counter is reset in p before the
// quota comparison; this is the only place the counter is ever reset.
func Check(p *models.PeerConfig, now int64, size int) Verdict {
	if !p.IsTrusted {
		return Untrusted
	}
	if size < 0 || uint64(size) > uint64(p.MaxMessageSize) {
		return TooLarge
	}
	hour := HourOf(now)
	if hour != p.CurrentHour {
		p.CurrentHourCount = 0
		p.CurrentHour = hour
	}
	if p.CurrentHourCount >= p.RateLimitPerHour {
		return RateLimited
	}
	return Accepted
}

func CanReceive(p *models.PeerConfig, now int64, size int) bool {
	return Check(p, now, size) == Accepted
}

// Record charges one accepted message to p. Call only after Check accepted it.
func Record(p *models.PeerConfig, now int64) {
	p.CurrentHourCount++
	p.TotalMessagesReceived++
	p.LastMessageTimestamp = now
}
