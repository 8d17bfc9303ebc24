package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
)

func newTestPricingService(t *testing.T, offers OfferService) PricingService {
	t.Helper()
	svc, err := NewPricingService(PricingServiceDeps{Offers: offers})
	if err != nil {
		t.Fatalf("NewPricingService returned error: %v", err)
	}
	return svc
}

func offersReturning(offers ...domain.Offer) OfferService {
	svc, _ := NewOfferService(OfferServiceDeps{
		Offers: &stubOfferRepo{
			forProductFn: func(context.Context, string, string, time.Time) ([]domain.Offer, error) {
				return offers, nil
			},
		},
		Enabled: true,
	})
	return svc
}

func TestQuoteUsesVariantPriceOverride(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	product := domain.Product{
		ID:    "p1",
		Price: 1000,
		Variants: []domain.ProductVariant{
			{ID: "v1", Price: 1250},
			{ID: "v2", Price: 0},
		},
	}
	svc := newTestPricingService(t, offersReturning())

	quote, err := svc.Quote(context.Background(), product, "v1", now)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if quote.UnitPrice != 1250 || quote.OriginalPrice != 1250 {
		t.Fatalf("expected variant price 1250, got %+v", quote)
	}
}

func TestQuoteVariantWithoutPriceInheritsProductPrice(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	product := domain.Product{
		ID:       "p1",
		Price:    1000,
		Variants: []domain.ProductVariant{{ID: "v2", Price: 0}},
	}
	svc := newTestPricingService(t, offersReturning())

	quote, err := svc.Quote(context.Background(), product, "v2", now)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if quote.UnitPrice != 1000 {
		t.Fatalf("expected inherited price 1000, got %+v", quote)
	}
}

func TestQuoteUnknownVariant(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	product := domain.Product{ID: "p1", Price: 1000}
	svc := newTestPricingService(t, offersReturning())

	_, err := svc.Quote(context.Background(), product, "ghost", now)
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found, got %v", err)
	}
}

func TestQuoteAppliesBestOfferDiscount(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	product := domain.Product{ID: "p1", Price: 999}
	svc := newTestPricingService(t, offersReturning(domain.Offer{
		ID:              "off-1",
		DiscountPercent: 15,
		StartsAt:        now.Add(-time.Hour),
	}))

	quote, err := svc.Quote(context.Background(), product, "", now)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if quote.OfferID != "off-1" || quote.DiscountPercent != 15 {
		t.Fatalf("expected offer applied, got %+v", quote)
	}
	// 999 * 0.85 = 849.15, rounds half-up to 849.
	if quote.UnitPrice != 849 {
		t.Fatalf("expected discounted price 849, got %d", quote.UnitPrice)
	}
	if quote.OriginalPrice != 999 {
		t.Fatalf("expected original price preserved, got %d", quote.OriginalPrice)
	}
}

func TestQuoteRejectsMissingProduct(t *testing.T) {
	svc := newTestPricingService(t, offersReturning())

	_, err := svc.Quote(context.Background(), domain.Product{}, "", time.Now())
	if !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
