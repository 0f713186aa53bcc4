package models

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDenominations are the bill face values stocked by a new box.
var DefaultDenominations = []int64{5000, 1000, 500, 100}

// Breakdown is a list of bill counts aligned with MoneyBox.Denominations,
// largest face value first.
type Breakdown []int

// MoneyBox holds the bills of one cash machine.
// denominations are unique, positive and sorted descending;
// counts[i] is the number of bills of denominations[i] and is never negative.
type MoneyBox struct {
	denominations []int64
	counts        []int
}

func NewMoneyBox(denominations []int64) (*MoneyBox, error) {
	return NewMoneyBoxWithCounts(denominations, nil)
}

// NewMoneyBoxWithCounts builds a box with initial stock. counts are aligned with
// denominations as given (before sorting); missing trailing counts are zero.
func NewMoneyBoxWithCounts(denominations []int64, counts []int) (*MoneyBox, error) {
	if len(denominations) == 0 {
		return nil, fmt.Errorf("money box needs at least one denomination: %w", ErrInvalidBreakdown)
	}
	if len(counts) > len(denominations) {
		return nil, fmt.Errorf("%d counts for %d denominations: %w", len(counts), len(denominations), ErrInvalidBreakdown)
	}

	type slot struct {
		value int64
		count int
	}
	slots := make([]slot, len(denominations))
	seen := make(map[int64]bool, len(denominations))
	for i, d := range denominations {
		if d <= 0 {
			return nil, fmt.Errorf("denomination %d: %w", d, ErrInvalidBreakdown)
		}
		if seen[d] {
			return nil, fmt.Errorf("duplicate denomination %d: %w", d, ErrInvalidBreakdown)
		}
		seen[d] = true
		slots[i].value = d
		if i < len(counts) {
			if counts[i] < 0 {
				return nil, fmt.Errorf("negative count for %d: %w", d, ErrInvalidBreakdown)
			}
			slots[i].count = counts[i]
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].value > slots[j].value })

	box := &MoneyBox{
		denominations: make([]int64, len(slots)),
		counts:        make([]int, len(slots)),
	}
	for i, s := range slots {
		box.denominations[i] = s.value
		box.counts[i] = s.count
	}
	return box, nil
}

func (b *MoneyBox) Denominations() []int64 {
	return append([]int64(nil), b.denominations...)
}

func (b *MoneyBox) Counts() []int {
	return append([]int(nil), b.counts...)
}

func (b *MoneyBox) Copy() *MoneyBox {
	return &MoneyBox{denominations: b.Denominations(), counts: b.Counts()}
}

// Total is the value of all bills in the box.
func (b *MoneyBox) Total() decimal.Decimal {
	sum := decimal.Zero
	for i, d := range b.denominations {
		sum = sum.Add(decimal.NewFromInt(d).Mul(decimal.NewFromInt(int64(b.counts[i]))))
	}
	return sum
}

// Value is the amount a breakdown of this box represents.
func (b *MoneyBox) Value(bd Breakdown) (decimal.Decimal, error) {
	if err := b.validate(bd); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for i, c := range bd {
		sum = sum.Add(decimal.NewFromInt(b.denominations[i]).Mul(decimal.NewFromInt(int64(c))))
	}
	return sum, nil
}

// Plan computes the breakdown for amount without touching the stock.
//
// Bills are taken greedily from the largest denomination down, each step using
// min(available, remaining/value) bills. There is no backtracking: a stock that
// could pay the amount with a different mix of smaller bills still fails once
// the greedy descent leaves a remainder.
func (b *MoneyBox) Plan(amount decimal.Decimal) (Breakdown, error) {
	if !amount.IsPositive() || !amount.IsInteger() || amount.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return nil, fmt.Errorf("amount %s: %w", amount, ErrCannotDispense)
	}

	remaining := amount.IntPart()
	bd := make(Breakdown, len(b.denominations))
	for i, d := range b.denominations {
		take := remaining / d
		if take > int64(b.counts[i]) {
			take = int64(b.counts[i])
		}
		bd[i] = int(take)
		remaining -= take * d
	}
	if remaining != 0 {
		return nil, fmt.Errorf("amount %s, %d left over: %w", amount, remaining, ErrCannotDispense)
	}
	return bd, nil
}

func (b *MoneyBox) CanDispense(amount decimal.Decimal) bool {
	_, err := b.Plan(amount)
	return err == nil
}

// Withdraw removes the bills for amount. On error the stock is unchanged.
func (b *MoneyBox) Withdraw(amount decimal.Decimal) (Breakdown, error) {
	bd, err := b.Plan(amount)
	if err != nil {
		return nil, err
	}
	for i, c := range bd {
		b.counts[i] -= c
	}
	return bd, nil
}

// Deposit adds bills and returns the credited amount. A breakdown shorter than
// the denomination list leaves the smallest denominations untouched.
func (b *MoneyBox) Deposit(bd Breakdown) (decimal.Decimal, error) {
	amount, err := b.Value(bd)
	if err != nil {
		return decimal.Zero, err
	}
	for i, c := range bd {
		b.counts[i] += c
	}
	return amount, nil
}

func (b *MoneyBox) validate(bd Breakdown) error {
	if len(bd) > len(b.denominations) {
		return fmt.Errorf("%d counts for %d denominations: %w", len(bd), len(b.denominations), ErrInvalidBreakdown)
	}
	for i, c := range bd {
		if c < 0 {
			return fmt.Errorf("negative count for %d: %w", b.denominations[i], ErrInvalidBreakdown)
		}
		if c > math.MaxInt-b.counts[i] {
			return fmt.Errorf("%d more bills of %d overflow the stock of %d: %w", c, b.denominations[i], b.counts[i], ErrInvalidBreakdown)
		}
	}
	return nil
}

func (b *MoneyBox) String() string {
	parts := make([]string, 0, len(b.denominations)+1)
	for i, d := range b.denominations {
		parts = append(parts, fmt.Sprintf("%d:%d", d, b.counts[i]))
	}
	parts = append(parts, "total:"+b.Total().String())
	return strings.Join(parts, ",")
}
