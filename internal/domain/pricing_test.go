package domain

import (
	"testing"
	"time"
)

func TestApplyDiscountPercentRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name    string
		price   int64
		percent float64
		want    int64
	}{
		{name: "no discount", price: 1000, percent: 0, want: 1000},
		{name: "plain percentage", price: 1000, percent: 10, want: 900},
		{name: "rounds half up", price: 999, percent: 15, want: 849}, // 849.15 -> 849
		{name: "half boundary", price: 150, percent: 15, want: 128},  // 127.5 -> 128
		{name: "full discount", price: 1000, percent: 100, want: 0},
		{name: "over full discount", price: 1000, percent: 150, want: 0},
		{name: "negative percent", price: 1000, percent: -5, want: 1000},
		{name: "fractional percent", price: 10000, percent: 12.5, want: 8750},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyDiscountPercent(tc.price, tc.percent)
			if got != tc.want {
				t.Fatalf("ApplyDiscountPercent(%d, %v) = %d, want %d", tc.price, tc.percent, got, tc.want)
			}
		})
	}
}

func TestCouponDiscountAmount(t *testing.T) {
	cases := []struct {
		name     string
		coupon   Coupon
		subtotal int64
		want     int64
	}{
		{name: "percentage", coupon: Coupon{Type: CouponTypePercentage, Discount: 10}, subtotal: 995, want: 100}, // 99.5 -> 100
		{name: "percentage full", coupon: Coupon{Type: CouponTypePercentage, Discount: 100}, subtotal: 995, want: 995},
		{name: "fixed below subtotal", coupon: Coupon{Type: CouponTypeFixed, Discount: 300}, subtotal: 995, want: 300},
		{name: "fixed capped at subtotal", coupon: Coupon{Type: CouponTypeFixed, Discount: 2000}, subtotal: 995, want: 995},
		{name: "zero subtotal", coupon: Coupon{Type: CouponTypeFixed, Discount: 300}, subtotal: 0, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CouponDiscountAmount(tc.coupon, tc.subtotal)
			if got != tc.want {
				t.Fatalf("CouponDiscountAmount = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestOfferActiveAt(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	end := now.Add(24 * time.Hour)

	open := Offer{StartsAt: now.Add(-time.Hour)}
	if !open.ActiveAt(now) {
		t.Fatalf("open-ended offer should be active")
	}

	future := Offer{StartsAt: now.Add(time.Hour)}
	if future.ActiveAt(now) {
		t.Fatalf("future offer should not be active")
	}

	expired := Offer{StartsAt: now.Add(-48 * time.Hour), EndsAt: timePtr(now.Add(-time.Hour))}
	if expired.ActiveAt(now) {
		t.Fatalf("expired offer should not be active")
	}

	bounded := Offer{StartsAt: now.Add(-time.Hour), EndsAt: &end}
	if !bounded.ActiveAt(now) {
		t.Fatalf("bounded offer inside window should be active")
	}
}

func TestProductShipsTo(t *testing.T) {
	unrestricted := Product{}
	if !unrestricted.ShipsTo("EU") {
		t.Fatalf("unrestricted product should ship anywhere")
	}

	restricted := Product{ShippingRegion: "EU"}
	if !restricted.ShipsTo("eu") {
		t.Fatalf("region match should be case-insensitive")
	}
	if restricted.ShipsTo("US") {
		t.Fatalf("mismatched region should not ship")
	}
}

func TestCouponLedgerHelpers(t *testing.T) {
	c := Coupon{UsageLimit: 2, UsedCount: 2, UsedBy: []string{"u1", "u2"}}
	if !c.LimitReached() {
		t.Fatalf("limit should be reached")
	}
	if !c.UsedByUser("u1") {
		t.Fatalf("u1 should count as used")
	}
	if c.UsedByUser("u3") {
		t.Fatalf("u3 should not count as used")
	}

	unlimited := Coupon{UsageLimit: 0, UsedCount: 100}
	if unlimited.LimitReached() {
		t.Fatalf("zero limit means unlimited")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
