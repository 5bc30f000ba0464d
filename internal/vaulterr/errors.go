package vaulterr

import (
	"errors"
	"math"
)

// Kind groups errors by how a caller is expected to react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindStructural
	KindArithmetic
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindStructural:
		return "structural"
	case KindArithmetic:
		return "arithmetic"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

var (
	ErrUnauthorized            = errors.New("unauthorized: only admin can perform this action")
	ErrInvalidDepositAmount    = errors.New("invalid deposit amount: must be within min/max limits")
	ErrInvalidWithdrawalAmount = errors.New("invalid withdrawal amount: insufficient balance")
	ErrVaultPaused             = errors.New("vault is currently paused")
	ErrVaultNotInitialized     = errors.New("vault is not initialized")
	ErrVaultAlreadyInitialized = errors.New("vault is already initialized")
	ErrStrategyInactive        = errors.New("strategy is not active")
	ErrStrategyNotFound        = errors.New("strategy not found")
	ErrInvalidStrategy         = errors.New("invalid strategy")
	ErrPositionInactive        = errors.New("position not found or inactive")
	ErrPositionNotFound        = errors.New("position not found")
	ErrRebalanceNotNeeded      = errors.New("rebalance not needed or too soon")
	ErrInvalidRiskProfile      = errors.New("invalid risk profile")
	ErrStaleYieldData          = errors.New("yield data is stale or invalid")
	ErrYieldDataNotFound       = errors.New("yield data not found")
	ErrRiskTooHigh             = errors.New("protocol risk too high for selected profile")
	ErrPeerNotTrusted          = errors.New("peer not trusted or rate limited")
	ErrPeerNotFound            = errors.New("peer configuration not found")
	ErrInvalidMessage          = errors.New("invalid message format or type")
	ErrInvalidAllocation       = errors.New("strategy allocation exceeds 100%")
	ErrMaxStrategiesReached    = errors.New("maximum number of strategies reached")
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrSlippageExceeded        = errors.New("slippage tolerance exceeded")
	ErrInsufficientFunds       = errors.New("insufficient custodial balance")
	ErrArithmeticOverflow      = errors.New("arithmetic overflow")
	ErrNotFound                = errors.New("record not found")
	ErrAlreadyExists           = errors.New("record already exists")
)

var kinds = map[error]Kind{
	ErrUnauthorized:            KindAuthorization,
	ErrPeerNotTrusted:          KindAuthorization,
	ErrInvalidMessage:          KindStructural,
	ErrArithmeticOverflow:      KindArithmetic,
	ErrNotFound:                KindStorage,
	ErrAlreadyExists:           KindStorage,
	ErrInvalidDepositAmount:    KindValidation,
	ErrInvalidWithdrawalAmount: KindValidation,
	ErrVaultPaused:             KindValidation,
	ErrVaultNotInitialized:     KindValidation,
	ErrVaultAlreadyInitialized: KindValidation,
	ErrStrategyInactive:        KindValidation,
	ErrStrategyNotFound:        KindValidation,
	ErrInvalidStrategy:         KindValidation,
	ErrPositionInactive:        KindValidation,
	ErrPositionNotFound:        KindValidation,
	ErrRebalanceNotNeeded:      KindValidation,
	ErrInvalidRiskProfile:      KindValidation,
	ErrStaleYieldData:          KindValidation,
	ErrYieldDataNotFound:       KindValidation,
	ErrRiskTooHigh:             KindValidation,
	ErrPeerNotFound:            KindAuthorization,
	ErrInvalidAllocation:       KindValidation,
	ErrMaxStrategiesReached:    KindValidation,
	ErrInvalidParameter:        KindValidation,
	ErrSlippageExceeded:        KindValidation,
	ErrInsufficientFunds:       KindValidation,
}

// KindOf returns the kind of the first sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// CheckedAdd returns a+b or ErrArithmeticOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrArithmeticOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

// SaturatingSub returns a-b clamped at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
