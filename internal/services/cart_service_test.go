package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

type notFoundRepoError struct{}

func (notFoundRepoError) Error() string       { return "not found" }
func (notFoundRepoError) IsNotFound() bool    { return true }
func (notFoundRepoError) IsConflict() bool    { return false }
func (notFoundRepoError) IsUnavailable() bool { return false }
func (notFoundRepoError) IsTimeout() bool     { return false }

type conflictRepoError struct{}

func (conflictRepoError) Error() string       { return "conflict" }
func (conflictRepoError) IsNotFound() bool    { return false }
func (conflictRepoError) IsConflict() bool    { return true }
func (conflictRepoError) IsUnavailable() bool { return false }
func (conflictRepoError) IsTimeout() bool     { return false }

func newTestCartService(t *testing.T, carts repositories.CartRepository, products repositories.ProductRepository) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Carts:    carts,
		Products: products,
		Pricing:  &stubPricing{},
		Clock:    fixedClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewCartService returned error: %v", err)
	}
	return svc
}

func catalogOf(products ...domain.Product) *stubProductRepo {
	byID := make(map[string]domain.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return &stubProductRepo{
		findIDsFn: func(_ context.Context, ids []string) (map[string]domain.Product, error) {
			out := make(map[string]domain.Product, len(ids))
			for _, id := range ids {
				if product, ok := byID[id]; ok {
					out[id] = product
				}
			}
			return out, nil
		},
	}
}

func TestAddLineMergesDuplicates(t *testing.T) {
	var saved domain.Cart
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID:    "u1",
				Lines:     []domain.CartLine{{ProductID: "p1", Quantity: 1}},
				UpdatedAt: time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC),
			}, nil
		},
		saveFn: func(_ context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			if expected == nil {
				t.Fatalf("expected optimistic precondition for existing cart")
			}
			saved = cart
			return cart, nil
		},
	}
	products := catalogOf(domain.Product{ID: "p1", Price: 500, Stock: 10})

	svc := newTestCartService(t, carts, products)

	view, err := svc.AddLine(context.Background(), AddCartLineCommand{
		UserID:    "u1",
		ProductID: "p1",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("AddLine returned error: %v", err)
	}

	if len(saved.Lines) != 1 || saved.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged line with quantity 3, got %+v", saved.Lines)
	}
	if view.Subtotal != 1500 {
		t.Fatalf("expected subtotal 1500, got %d", view.Subtotal)
	}
}

func TestAddLineRejectsUnknownProduct(t *testing.T) {
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{}, notFoundRepoError{}
		},
	}
	svc := newTestCartService(t, carts, catalogOf())

	_, err := svc.AddLine(context.Background(), AddCartLineCommand{
		UserID:    "u1",
		ProductID: "ghost",
		Quantity:  1,
	})
	if !errors.Is(err, ErrCartLineUnavailable) {
		t.Fatalf("expected line unavailable, got %v", err)
	}
}

func TestMergeCartsPreservesFirstSeenOrder(t *testing.T) {
	var saved domain.Cart
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "u1",
				Lines: []domain.CartLine{
					{ProductID: "p1", Quantity: 1},
					{ProductID: "p2", Quantity: 1},
				},
				UpdatedAt: time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC),
			}, nil
		},
		saveFn: func(_ context.Context, cart domain.Cart, _ *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	products := catalogOf(
		domain.Product{ID: "p1", Price: 100, Stock: 10},
		domain.Product{ID: "p2", Price: 200, Stock: 10},
		domain.Product{ID: "p3", Price: 300, Stock: 10},
	)

	svc := newTestCartService(t, carts, products)

	_, err := svc.MergeCarts(context.Background(), MergeCartsCommand{
		UserID: "u1",
		Lines: []domain.CartLine{
			{ProductID: "p3", Quantity: 1},
			{ProductID: "p1", Quantity: 2},
			{ProductID: "gone", Quantity: 5},
			{ProductID: "p2", Quantity: 0},
		},
	})
	if err != nil {
		t.Fatalf("MergeCarts returned error: %v", err)
	}

	if len(saved.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %+v", saved.Lines)
	}
	if saved.Lines[0].ProductID != "p1" || saved.Lines[0].Quantity != 3 {
		t.Fatalf("expected p1 first with merged quantity 3, got %+v", saved.Lines[0])
	}
	if saved.Lines[1].ProductID != "p2" || saved.Lines[2].ProductID != "p3" {
		t.Fatalf("expected stored order preserved, got %+v", saved.Lines)
	}
}

func TestMergeCartsRejectsNoUsableLines(t *testing.T) {
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{}, notFoundRepoError{}
		},
		saveFn: func(_ context.Context, cart domain.Cart, _ *time.Time) (domain.Cart, error) {
			t.Fatalf("save must not be called when nothing merges")
			return cart, nil
		},
	}
	svc := newTestCartService(t, carts, catalogOf())

	_, err := svc.MergeCarts(context.Background(), MergeCartsCommand{
		UserID: "u1",
		Lines: []domain.CartLine{
			{ProductID: "p1", Quantity: 0},
			{ProductID: "  ", Quantity: 3},
		},
	})
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestVariantLinesKeepSeparateIdentity(t *testing.T) {
	var saved domain.Cart
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID:    "u1",
				Lines:     []domain.CartLine{{ProductID: "p1", VariantID: "v1", Quantity: 1}},
				UpdatedAt: time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC),
			}, nil
		},
		saveFn: func(_ context.Context, cart domain.Cart, _ *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	products := catalogOf(domain.Product{
		ID:    "p1",
		Price: 100,
		Stock: 10,
		Variants: []domain.ProductVariant{
			{ID: "v1", Price: 150, Quantity: 5},
			{ID: "v2", Price: 175, Quantity: 5},
		},
	})

	svc := newTestCartService(t, carts, products)

	_, err := svc.AddLine(context.Background(), AddCartLineCommand{
		UserID:    "u1",
		ProductID: "p1",
		VariantID: "v2",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("AddLine returned error: %v", err)
	}
	if len(saved.Lines) != 2 {
		t.Fatalf("expected variants to stay separate, got %+v", saved.Lines)
	}
}

func TestRemoveLineDropsKey(t *testing.T) {
	var saved domain.Cart
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "u1",
				Lines: []domain.CartLine{
					{ProductID: "p1", Quantity: 1},
					{ProductID: "p2", Quantity: 2},
				},
				UpdatedAt: time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC),
			}, nil
		},
		saveFn: func(_ context.Context, cart domain.Cart, _ *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	products := catalogOf(
		domain.Product{ID: "p1", Price: 100, Stock: 10},
		domain.Product{ID: "p2", Price: 200, Stock: 10},
	)

	svc := newTestCartService(t, carts, products)

	_, err := svc.RemoveLine(context.Background(), RemoveCartLineCommand{UserID: "u1", ProductID: "p1"})
	if err != nil {
		t.Fatalf("RemoveLine returned error: %v", err)
	}
	if len(saved.Lines) != 1 || saved.Lines[0].ProductID != "p2" {
		t.Fatalf("expected only p2 remaining, got %+v", saved.Lines)
	}
}

func TestGetCartDropsVanishedProducts(t *testing.T) {
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "u1",
				Lines: []domain.CartLine{
					{ProductID: "p1", Quantity: 1},
					{ProductID: "discontinued", Quantity: 4},
				},
			}, nil
		},
	}
	products := catalogOf(domain.Product{ID: "p1", Price: 250, Stock: 10})

	svc := newTestCartService(t, carts, products)

	view, err := svc.GetCart(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Line.ProductID != "p1" {
		t.Fatalf("expected vanished product dropped from view, got %+v", view.Lines)
	}
	if view.Subtotal != 250 {
		t.Fatalf("expected subtotal 250, got %d", view.Subtotal)
	}
}

func TestGetCartMissingReturnsEmptyView(t *testing.T) {
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{}, notFoundRepoError{}
		},
	}
	svc := newTestCartService(t, carts, catalogOf())

	view, err := svc.GetCart(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(view.Lines) != 0 || view.Cart.UserID != "u1" {
		t.Fatalf("expected empty cart view, got %+v", view)
	}
}

func TestSaveConflictSurfacesAsCartConflict(t *testing.T) {
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID:    "u1",
				Lines:     []domain.CartLine{{ProductID: "p1", Quantity: 1}},
				UpdatedAt: time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC),
			}, nil
		},
		saveFn: func(context.Context, domain.Cart, *time.Time) (domain.Cart, error) {
			return domain.Cart{}, conflictRepoError{}
		},
	}
	products := catalogOf(domain.Product{ID: "p1", Price: 100, Stock: 10})

	svc := newTestCartService(t, carts, products)

	_, err := svc.AddLine(context.Background(), AddCartLineCommand{UserID: "u1", ProductID: "p1", Quantity: 1})
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected cart conflict, got %v", err)
	}
}
