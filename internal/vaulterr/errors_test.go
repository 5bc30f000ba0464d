package vaulterr

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrUnauthorized, KindAuthorization},
		{ErrPeerNotTrusted, KindAuthorization},
		{ErrPeerNotFound, KindAuthorization},
		{ErrInvalidMessage, KindStructural},
		{ErrArithmeticOverflow, KindArithmetic},
		{ErrNotFound, KindStorage},
		{ErrVaultPaused, KindValidation},
		{fmt.Errorf("amount 5: %w", ErrInvalidDepositAmount), KindValidation},
		{errors.New("boom"), KindUnknown},
		{nil, KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "arithmetic", KindArithmetic.String())
}

func TestCheckedArithmetic(t *testing.T) {
	sum, err := CheckedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = CheckedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	diff, err := CheckedSub(5, 5)
	require.NoError(t, err)
	assert.Zero(t, diff)

	_, err = CheckedSub(1, 2)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	assert.Equal(t, uint64(0), SaturatingSub(1, 2))
	assert.Equal(t, uint64(1), SaturatingSub(3, 2))
}
