package math

import "github.com/shopspring/decimal"

var two = decimal.NewFromInt(2)

// RoundToTick rounds price to the nearest multiple of tick, ties away from zero.
// A zero or negative tick returns price unchanged
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.LessThanOrEqual(decimal.Zero) {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}

// Mid returns the midpoint of a and b
func Mid(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b).Div(two)
}

// CalculateFee returns rate * price * amount
func CalculateFee(price, amount, rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(price).Mul(amount)
}

// ProRata returns total scaled by part/whole, or total when whole is zero
// or part covers all of it
func ProRata(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() || part.GreaterThanOrEqual(whole) {
		return total
	}
	return total.Mul(part).Div(whole)
}
