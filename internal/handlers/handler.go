package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"omnivault/internal/ledger"
	"omnivault/internal/metrics"
	"omnivault/internal/middleware"
	"omnivault/internal/router"
	"omnivault/internal/vaulterr"
	"omnivault/pkg/transport"
)

// OnChainBalances reads the settled token balance of an owner.
type OnChainBalances interface {
	TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
}

// Handler serves the vault HTTP API.
type Handler struct {
	ledger        *ledger.Ledger
	router        *router.Router
	sender        *transport.Sender
	metrics       *metrics.Recorder
	balances      OnChainBalances
	healthRPCs    []string
	healthTimeout time.Duration
	log           *log.Entry
}

type Option func(*Handler)

// WithSender publishes planned rebalance moves to the remote chains.
func WithSender(s *transport.Sender) Option {
	return func(h *Handler) {
		h.sender = s
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithOnChainBalances enables custody reconciliation against the chain.
func WithOnChainBalances(b OnChainBalances) Option {
	return func(h *Handler) {
		h.balances = b
	}
}

// WithHealthRPCs sets the Solana endpoints probed by /health.
func WithHealthRPCs(urls []string, timeout time.Duration) Option {
	return func(h *Handler) {
		h.healthRPCs = urls
		h.healthTimeout = timeout
	}
}

func New(l *ledger.Ledger, r *router.Router, opts ...Option) *Handler {
	h := &Handler{
		ledger:        l,
		router:        r,
		healthTimeout: 5 * time.Second,
		log:           log.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// statusOf maps a ledger error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, vaulterr.ErrVaultNotInitialized),
		errors.Is(err, vaulterr.ErrStrategyNotFound),
		errors.Is(err, vaulterr.ErrPositionNotFound),
		errors.Is(err, vaulterr.ErrYieldDataNotFound),
		errors.Is(err, vaulterr.ErrPeerNotFound):
		return http.StatusNotFound
	}
	switch vaulterr.KindOf(err) {
	case vaulterr.KindValidation, vaulterr.KindStructural:
		return http.StatusBadRequest
	case vaulterr.KindAuthorization:
		return http.StatusForbidden
	case vaulterr.KindArithmetic:
		return http.StatusUnprocessableEntity
	case vaulterr.KindStorage:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{"path": c.FullPath(), "error": err}).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// record counts a ledger mutation and writes the error response when err is set.
func (h *Handler) record(c *gin.Context, op string, err error) bool {
	h.metrics.LedgerOp(op, err)
	if err != nil {
		respondError(c, err)
		return false
	}
	return true
}

func authority(c *gin.Context) string {
	return middleware.Authority(c)
}

func parseUint(c *gin.Context, name string, bits int) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, bits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return 0, false
	}
	return v, true
}
