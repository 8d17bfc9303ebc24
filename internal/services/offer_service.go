package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

// ErrOfferInvalidInput signals the caller provided invalid data.
var ErrOfferInvalidInput = errors.New("offer: invalid input")

// OfferServiceDeps bundles collaborators required to construct the offer service.
type OfferServiceDeps struct {
	Offers repositories.OfferRepository
	// Enabled gates offer resolution. When false every product quotes at
	// its base price.
	Enabled bool
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type offerService struct {
	offers  repositories.OfferRepository
	enabled bool
	logger  func(context.Context, string, map[string]any)
}

// NewOfferService wires dependencies into a concrete OfferService implementation.
func NewOfferService(deps OfferServiceDeps) (OfferService, error) {
	if deps.Offers == nil {
		return nil, errors.New("offer service: offer repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &offerService{
		offers:  deps.Offers,
		enabled: deps.Enabled,
		logger:  logger,
	}, nil
}

// BestOffer resolves the active offer for a product. Product-scope offers
// always beat category-scope offers regardless of discount size; within a
// scope the highest discount wins, ties breaking on the earlier start, then
// on ID so the outcome is deterministic.
func (s *offerService) BestOffer(ctx context.Context, product domain.Product, now time.Time) (domain.Offer, bool, error) {
	if !s.enabled {
		return domain.Offer{}, false, nil
	}
	if product.ID == "" {
		return domain.Offer{}, false, fmt.Errorf("%w: product id is required", ErrOfferInvalidInput)
	}

	offers, err := s.offers.ListForProduct(ctx, product.ID, product.Category, now.UTC())
	if err != nil {
		return domain.Offer{}, false, s.mapRepositoryError(err)
	}

	var best domain.Offer
	found := false
	for _, offer := range offers {
		if offer.DiscountPercent <= 0 {
			continue
		}
		if !found || betterOffer(offer, best) {
			best = offer
			found = true
		}
	}
	return best, found, nil
}

func (s *offerService) ListActive(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	if !s.enabled {
		return nil, nil
	}
	offers, err := s.offers.ListActive(ctx, now.UTC())
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return offers, nil
}

func (s *offerService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("offer: repository unavailable: %w", err)
	}
	return err
}

func betterOffer(candidate, current domain.Offer) bool {
	if candidate.Scope != current.Scope {
		return scopeRank(candidate.Scope) < scopeRank(current.Scope)
	}
	if candidate.DiscountPercent != current.DiscountPercent {
		return candidate.DiscountPercent > current.DiscountPercent
	}
	if !candidate.StartsAt.Equal(current.StartsAt) {
		return candidate.StartsAt.Before(current.StartsAt)
	}
	return candidate.ID < current.ID
}

// scopeRank orders offer scopes by specificity. A product-targeted offer
// outranks a category-wide one even when its discount is smaller.
func scopeRank(scope domain.OfferScope) int {
	if scope == domain.OfferScopeProduct {
		return 0
	}
	return 1
}
