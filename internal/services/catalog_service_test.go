package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

func newTestCatalogService(t *testing.T, products repositories.ProductRepository) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Products: products})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}
	return svc
}

func TestGetProductMapsNotFound(t *testing.T) {
	repo := &stubProductRepo{
		findFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, "missing", nil)
		},
	}
	svc := newTestCatalogService(t, repo)

	_, err := svc.GetProduct(context.Background(), "p1")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestGetProductValidatesInput(t *testing.T) {
	svc := newTestCatalogService(t, &stubProductRepo{})

	if _, err := svc.GetProduct(context.Background(), "  "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.ListByCategory(context.Background(), "", repositories.ProductListFilter{}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListByCategoryTrimsAndDelegates(t *testing.T) {
	var seen string
	repo := &stubProductRepo{
		listFn: func(_ context.Context, category string, _ repositories.ProductListFilter) ([]domain.Product, error) {
			seen = category
			return []domain.Product{{ID: "p1", Category: category}}, nil
		},
	}
	svc := newTestCatalogService(t, repo)

	products, err := svc.ListByCategory(context.Background(), " lighting ", repositories.ProductListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListByCategory returned error: %v", err)
	}
	if seen != "lighting" || len(products) != 1 {
		t.Fatalf("expected trimmed category delegated, got %q / %d products", seen, len(products))
	}
}
