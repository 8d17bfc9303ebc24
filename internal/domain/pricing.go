package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ApplyDiscountPercent reduces a minor-unit price by the given percentage,
// rounding half-up to the minor unit. Percentages outside (0, 100) clamp to
// the original price or zero respectively.
func ApplyDiscountPercent(price int64, percent float64) int64 {
	if price <= 0 || percent <= 0 {
		return price
	}
	if percent >= 100 {
		return 0
	}
	remaining := hundred.Sub(decimal.NewFromFloat(percent))
	discounted := decimal.NewFromInt(price).Mul(remaining).Div(hundred)
	return discounted.Round(0).IntPart()
}

// CouponDiscountAmount returns the minor-unit amount a coupon takes off the
// given subtotal. Percentage coupons round half-up; fixed coupons never exceed
// the subtotal.
func CouponDiscountAmount(c Coupon, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	switch c.Type {
	case CouponTypeFixed:
		if c.Discount >= subtotal {
			return subtotal
		}
		if c.Discount < 0 {
			return 0
		}
		return c.Discount
	case CouponTypePercentage:
		if c.Discount <= 0 {
			return 0
		}
		if c.Discount >= 100 {
			return subtotal
		}
		amount := decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(c.Discount)).
			Div(hundred)
		return amount.Round(0).IntPart()
	default:
		return 0
	}
}
