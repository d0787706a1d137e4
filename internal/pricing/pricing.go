package pricing

import (
	"fmt"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/shopspring/decimal"
)

// DefaultPointsPerUnit is the number of points bought with one currency unit.
const DefaultPointsPerUnit = 10

// PointsPrice returns the money amount charged for points, rounded to cents.
func PointsPrice(points, perUnit int64) (decimal.Decimal, error) {
	if points <= 0 {
		return decimal.Zero, fmt.Errorf("%w: points must be positive, got %d", types.ErrInvalidAmount, points)
	}
	if perUnit <= 0 {
		perUnit = DefaultPointsPerUnit
	}
	amount := decimal.NewFromInt(points).DivRound(decimal.NewFromInt(perUnit), 2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %d points is below the smallest chargeable amount", types.ErrInvalidAmount, points)
	}
	return amount, nil
}

// Money formats an amount the way the payment gateway expects it.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseMoney parses a gateway amount and rejects non-positive values.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a money amount", types.ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", types.ErrInvalidAmount, s)
	}
	return d, nil
}
