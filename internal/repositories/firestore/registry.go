package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/firestore"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	products *CatalogRepository
	offers   *OfferRepository
	carts    *CartRepository
	orders   *OrderRepository
	coupons  *CouponRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	products, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build catalog repository: %w", err)
	}
	offers, err := NewOfferRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build offer repository: %w", err)
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build coupon repository: %w", err)
	}

	return &Registry{
		provider: provider,
		products: products,
		offers:   offers,
		carts:    carts,
		orders:   orders,
		coupons:  coupons,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Products returns the catalog repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Offers returns the offer repository.
func (r *Registry) Offers() repositories.OfferRepository { return r.offers }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Coupons returns the coupon repository.
func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

// RunInTx executes fn directly. Mutating repository operations already run in
// their own Firestore transactions, so no extra boundary is opened here.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
