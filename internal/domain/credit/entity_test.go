package credit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxTypeSemantics(t *testing.T) {
	tests := []struct {
		typ         TxType
		sign        int64
		raisesTotal bool
	}{
		{TxTypeEarn, 1, true},
		{TxTypeRecharge, 1, true},
		{TxTypeAdminAdd, 1, true},
		{TxTypeRefund, 1, false},
		{TxTypeSpend, -1, false},
		{TxTypeAdminDeduct, -1, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.True(t, tt.typ.Valid())
			assert.Equal(t, tt.sign, tt.typ.Sign())
			assert.Equal(t, tt.raisesTotal, tt.typ.RaisesTotal())
		})
	}

	assert.False(t, TxType("bonus").Valid())
	assert.Equal(t, int64(-20), Mutation{Type: TxTypeSpend, Amount: 20}.Signed())
}

func TestValidateMutation(t *testing.T) {
	ok := Mutation{Type: TxTypeEarn, Amount: 1, Reason: "r"}
	assert.NoError(t, validate(ok))

	bad := ok
	bad.Amount = 0
	assert.ErrorIs(t, validate(bad), ErrInvalidAmount)

	bad = ok
	bad.Reason = "   "
	assert.ErrorIs(t, validate(bad), ErrReasonRequired)

	bad = ok
	bad.Type = "gift"
	assert.ErrorIs(t, validate(bad), ErrInvalidType)
}

func TestBalanceOverflows(t *testing.T) {
	b := Balance{TotalCredits: 500, RemainingCredits: 150}

	assert.False(t, b.overflows(Mutation{Type: TxTypeAdminAdd, Amount: 1000}))
	assert.True(t, b.overflows(Mutation{Type: TxTypeAdminAdd, Amount: math.MaxInt64}))
	assert.True(t, b.overflows(Mutation{Type: TxTypeRefund, Amount: math.MaxInt64 - 100}))
	assert.True(t, b.overflows(Mutation{Type: TxTypeEarn, Amount: math.MaxInt64 - 200}), "total overflows before remaining")
	assert.False(t, b.overflows(Mutation{Type: TxTypeSpend, Amount: math.MaxInt64}))
}
