package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
)

var (
	// ErrPricingInvalidInput signals the caller provided invalid data.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrVariantNotFound indicates the referenced variant does not exist on the product.
	ErrVariantNotFound = errors.New("pricing: variant not found")
)

// PricingServiceDeps bundles collaborators required to construct the pricing service.
type PricingServiceDeps struct {
	Offers OfferService
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type pricingService struct {
	offers OfferService
	logger func(context.Context, string, map[string]any)
}

// NewPricingService wires dependencies into a concrete PricingService implementation.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Offers == nil {
		return nil, errors.New("pricing service: offer service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &pricingService{
		offers: deps.Offers,
		logger: logger,
	}, nil
}

// Quote resolves the effective unit price for the product or one of its
// variants. A variant without its own price inherits the product price. The
// best active offer, if any, discounts the base price.
func (s *pricingService) Quote(ctx context.Context, product domain.Product, variantID string, now time.Time) (PriceQuote, error) {
	if product.ID == "" {
		return PriceQuote{}, fmt.Errorf("%w: product id is required", ErrPricingInvalidInput)
	}

	basePrice := product.Price
	if vid := strings.TrimSpace(variantID); vid != "" {
		variant, ok := product.Variant(vid)
		if !ok {
			return PriceQuote{}, fmt.Errorf("%w: %s on product %s", ErrVariantNotFound, vid, product.ID)
		}
		if variant.Price > 0 {
			basePrice = variant.Price
		}
	}
	if basePrice < 0 {
		return PriceQuote{}, fmt.Errorf("%w: product %s has a negative price", ErrPricingInvalidInput, product.ID)
	}

	quote := PriceQuote{
		UnitPrice:     basePrice,
		OriginalPrice: basePrice,
	}

	offer, ok, err := s.offers.BestOffer(ctx, product, now)
	if err != nil {
		return PriceQuote{}, err
	}
	if ok {
		quote.DiscountPercent = offer.DiscountPercent
		quote.OfferID = offer.ID
		quote.UnitPrice = domain.ApplyDiscountPercent(basePrice, offer.DiscountPercent)
	}
	return quote, nil
}
