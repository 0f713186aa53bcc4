package models

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func createTestMoneyBox(t *testing.T, counts ...int) *MoneyBox {
	t.Helper()
	box, err := NewMoneyBoxWithCounts(DefaultDenominations, counts)
	require.NoError(t, err)
	return box
}

func TestNewMoneyBoxSortsDenominations(t *testing.T) {
	box, err := NewMoneyBoxWithCounts([]int64{100, 5000, 1000, 500}, []int{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{5000, 1000, 500, 100}, box.Denominations())
	assert.Equal(t, []int{2, 3, 4, 1}, box.Counts())
	assert.True(t, amount(10000+3000+2000+100).Equal(box.Total()))
}

func TestNewMoneyBoxRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		denominations []int64
		counts        []int
	}{
		"empty":          {nil, nil},
		"zero":           {[]int64{100, 0}, nil},
		"duplicate":      {[]int64{100, 100}, nil},
		"negative count": {[]int64{500, 100}, []int{1, -1}},
		"too many":       {[]int64{100}, []int{1, 2}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewMoneyBoxWithCounts(tc.denominations, tc.counts)
			assert.ErrorIs(t, err, ErrInvalidBreakdown)
		})
	}
}

func TestMoneyBoxWithdrawGreedy(t *testing.T) {
	box := createTestMoneyBox(t, 2, 5, 1, 10)

	bd, err := box.Withdraw(amount(7800))
	require.NoError(t, err)
	assert.Equal(t, Breakdown{1, 2, 1, 3}, bd)
	assert.Equal(t, []int{1, 3, 0, 7}, box.Counts())
}

func TestMoneyBoxWithdrawUsesSmallerBillsWhenStockRunsOut(t *testing.T) {
	box := createTestMoneyBox(t, 0, 1, 0, 10)

	bd, err := box.Withdraw(amount(1700))
	require.NoError(t, err)
	assert.Equal(t, Breakdown{0, 1, 0, 7}, bd)
}

func TestMoneyBoxWithdrawIsAllOrNothing(t *testing.T) {
	box := createTestMoneyBox(t, 1, 1, 1, 1)
	before := box.Counts()

	_, err := box.Withdraw(amount(6700))
	assert.ErrorIs(t, err, ErrCannotDispense)
	assert.Equal(t, before, box.Counts())
}

func TestMoneyBoxEmptyCannotDispense(t *testing.T) {
	box := createTestMoneyBox(t)
	_, err := box.Withdraw(amount(100))
	assert.ErrorIs(t, err, ErrCannotDispense)
	assert.False(t, box.CanDispense(amount(100)))
}

// The descent never reconsiders a larger bill it already took.
func TestMoneyBoxGreedyLimitationIsKept(t *testing.T) {
	box, err := NewMoneyBoxWithCounts([]int64{500, 200}, []int{1, 3})
	require.NoError(t, err)

	_, err = box.Withdraw(amount(600))
	assert.ErrorIs(t, err, ErrCannotDispense)
	assert.Equal(t, []int{1, 3}, box.Counts())

	bd, err := box.Withdraw(amount(900))
	require.NoError(t, err)
	assert.Equal(t, Breakdown{1, 2}, bd)
}

func TestMoneyBoxPlanRejectsUndispensableAmounts(t *testing.T) {
	box := createTestMoneyBox(t, 10, 10, 10, 10)
	for _, a := range []decimal.Decimal{decimal.Zero, amount(-100), decimal.RequireFromString("100.50"), amount(150)} {
		_, err := box.Plan(a)
		assert.ErrorIs(t, err, ErrCannotDispense, "amount %s", a)
	}
	assert.Equal(t, []int{10, 10, 10, 10}, box.Counts())
}

func TestMoneyBoxDeposit(t *testing.T) {
	box := createTestMoneyBox(t)

	credited, err := box.Deposit(Breakdown{1, 1, 1, 1})
	require.NoError(t, err)
	assert.True(t, amount(6600).Equal(credited), "credited %s", credited)
	assert.Equal(t, []int{1, 1, 1, 1}, box.Counts())

	credited, err = box.Deposit(Breakdown{0, 2})
	require.NoError(t, err)
	assert.True(t, amount(2000).Equal(credited))
	assert.Equal(t, []int{1, 3, 1, 1}, box.Counts())
}

func TestMoneyBoxDepositRejectsBadBreakdown(t *testing.T) {
	box := createTestMoneyBox(t, 1, 1, 1, 1)

	_, err := box.Deposit(Breakdown{1, 1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)
	_, err = box.Deposit(Breakdown{1, -1})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)
	assert.Equal(t, []int{1, 1, 1, 1}, box.Counts())
}

func TestMoneyBoxDepositRejectsCountOverflow(t *testing.T) {
	box := createTestMoneyBox(t)

	_, err := box.Deposit(Breakdown{0, 0, 0, math.MaxInt})
	require.NoError(t, err)

	_, err = box.Deposit(Breakdown{0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)
	_, err = box.Value(Breakdown{1, 0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidBreakdown)
	assert.Equal(t, []int{0, 0, 0, math.MaxInt}, box.Counts())
	assert.True(t, box.Total().IsPositive())

	_, err = box.Deposit(Breakdown{1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0, math.MaxInt}, box.Counts())
}

func TestMoneyBoxWithdrawThenDepositRestores(t *testing.T) {
	for _, a := range []int64{100, 600, 1500, 5000, 7700} {
		box := createTestMoneyBox(t, 3, 4, 2, 9)
		before := box.Counts()

		bd, err := box.Withdraw(amount(a))
		require.NoError(t, err)
		credited, err := box.Deposit(bd)
		require.NoError(t, err)

		assert.True(t, amount(a).Equal(credited))
		assert.Equal(t, before, box.Counts())
	}
}

func TestCashMachineSnapshotIsACopy(t *testing.T) {
	m := NewCashMachine("atm-1", createTestMoneyBox(t, 1, 0, 0, 0))
	snap := m.Snapshot()

	require.NoError(t, m.WithBox(func(box *MoneyBox) error {
		_, err := box.Withdraw(amount(5000))
		return err
	}))
	assert.Equal(t, []int{1, 0, 0, 0}, snap.Counts())
	assert.Equal(t, []int{0, 0, 0, 0}, m.Snapshot().Counts())
}

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "1111", MaskCardNumber("1111"))
	assert.Equal(t, "****5678", MaskCardNumber("12345678"))
}
