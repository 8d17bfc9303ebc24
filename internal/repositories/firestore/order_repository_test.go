package firestore

import (
	"errors"
	"testing"

	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

func stockedProduct() *productDocument {
	return &productDocument{
		Name:  "Desk Lamp",
		Price: 1000,
		Stock: 5,
		Variants: []productVariantDocument{
			{ID: "v1", Name: "Brass", Price: 1250, Quantity: 3},
			{ID: "v2", Name: "Steel", Quantity: 2},
		},
	}
}

func TestApplyStockDeltaRestocksProduct(t *testing.T) {
	doc := stockedProduct()

	if err := applyStockDelta(doc, "", 4); err != nil {
		t.Fatalf("applyStockDelta returned error: %v", err)
	}
	if doc.Stock != 9 {
		t.Fatalf("expected stock 9, got %d", doc.Stock)
	}
}

func TestApplyStockDeltaDeductRoundTrip(t *testing.T) {
	doc := stockedProduct()

	if err := applyStockDelta(doc, "", -5); err != nil {
		t.Fatalf("deduct returned error: %v", err)
	}
	if doc.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", doc.Stock)
	}
	if err := applyStockDelta(doc, "", 5); err != nil {
		t.Fatalf("restock returned error: %v", err)
	}
	if doc.Stock != 5 {
		t.Fatalf("expected stock back at 5, got %d", doc.Stock)
	}
}

func TestApplyStockDeltaRejectsNegativeProductStock(t *testing.T) {
	doc := stockedProduct()

	err := applyStockDelta(doc, "", -6)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if doc.Stock != 5 {
		t.Fatalf("expected stock untouched after rejection, got %d", doc.Stock)
	}
}

func TestApplyStockDeltaVariantFloorGuard(t *testing.T) {
	doc := stockedProduct()

	if err := applyStockDelta(doc, "v1", -3); err != nil {
		t.Fatalf("deduct returned error: %v", err)
	}
	if doc.Variants[0].Quantity != 0 {
		t.Fatalf("expected variant quantity 0, got %d", doc.Variants[0].Quantity)
	}

	err := applyStockDelta(doc, "v1", -1)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if doc.Variants[0].Quantity != 0 {
		t.Fatalf("expected variant quantity untouched, got %d", doc.Variants[0].Quantity)
	}
	if doc.Stock != 5 || doc.Variants[1].Quantity != 2 {
		t.Fatalf("expected sibling counters untouched: %+v", doc)
	}
}

func TestApplyStockDeltaVanishedVariant(t *testing.T) {
	doc := stockedProduct()

	// Restocking a removed variant has nowhere to put the units; it is a no-op.
	if err := applyStockDelta(doc, "gone", 2); err != nil {
		t.Fatalf("expected restock no-op, got %v", err)
	}
	if doc.Stock != 5 {
		t.Fatalf("expected product stock untouched, got %d", doc.Stock)
	}

	// Deducting from a removed variant cannot be satisfied.
	err := applyStockDelta(doc, "gone", -2)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
}

func TestDecrementVariantTargetsMatchingVariant(t *testing.T) {
	doc := stockedProduct()

	decrementVariant(doc, "v1", 2)
	if doc.Variants[0].Quantity != 1 {
		t.Fatalf("expected v1 quantity 1, got %d", doc.Variants[0].Quantity)
	}
	if doc.Variants[1].Quantity != 2 || doc.Stock != 5 {
		t.Fatalf("expected other counters untouched: %+v", doc)
	}

	// Unknown variants are guarded earlier in placement; the helper ignores them.
	decrementVariant(doc, "gone", 2)
	if doc.Variants[0].Quantity != 1 || doc.Variants[1].Quantity != 2 {
		t.Fatalf("expected no change for unknown variant: %+v", doc.Variants)
	}
}
