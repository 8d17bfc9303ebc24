package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/identity"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

type stubCartService struct {
	getFn    func(context.Context, string) (services.CartView, error)
	addFn    func(context.Context, services.AddCartLineCommand) (services.CartView, error)
	removeFn func(context.Context, services.RemoveCartLineCommand) (services.CartView, error)
	mergeFn  func(context.Context, services.MergeCartsCommand) (services.CartView, error)
	clearFn  func(context.Context, string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.CartView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return services.CartView{Cart: domain.Cart{UserID: userID}}, nil
}

func (s *stubCartService) AddLine(ctx context.Context, cmd services.AddCartLineCommand) (services.CartView, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.CartView{Cart: domain.Cart{UserID: cmd.UserID}}, nil
}

func (s *stubCartService) RemoveLine(ctx context.Context, cmd services.RemoveCartLineCommand) (services.CartView, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.CartView{Cart: domain.Cart{UserID: cmd.UserID}}, nil
}

func (s *stubCartService) MergeCarts(ctx context.Context, cmd services.MergeCartsCommand) (services.CartView, error) {
	if s.mergeFn != nil {
		return s.mergeFn(ctx, cmd)
	}
	return services.CartView{Cart: domain.Cart{UserID: cmd.UserID}}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return nil
}

func newCartTestRouter(svc services.CartService) http.Handler {
	return NewRouter(
		WithMiddlewares(identity.Middleware()),
		WithCartRoutes(NewCartHandlers(svc).Routes),
	)
}

func TestGetCartRequiresIdentity(t *testing.T) {
	router := newCartTestRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestGetCartReturnsView(t *testing.T) {
	svc := &stubCartService{
		getFn: func(_ context.Context, userID string) (services.CartView, error) {
			return services.CartView{
				Cart: domain.Cart{UserID: userID},
				Lines: []services.CartLineView{{
					Line:      domain.CartLine{ProductID: "p1", Quantity: 2},
					Product:   domain.Product{ID: "p1", Name: "Desk Lamp"},
					UnitPrice: 850,
					Quote:     services.PriceQuote{UnitPrice: 850, OriginalPrice: 1000, DiscountPercent: 15, OfferID: "off-1"},
					LineTotal: 1700,
				}},
				Subtotal: 1700,
			}, nil
		},
	}
	router := newCartTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Cart struct {
			UserID   string `json:"user_id"`
			Subtotal int64  `json:"subtotal"`
			Lines    []struct {
				ProductID string `json:"product_id"`
				LineTotal int64  `json:"line_total"`
			} `json:"lines"`
		} `json:"cart"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Cart.UserID != "u1" || body.Cart.Subtotal != 1700 {
		t.Fatalf("unexpected cart payload: %+v", body.Cart)
	}
	if len(body.Cart.Lines) != 1 || body.Cart.Lines[0].LineTotal != 1700 {
		t.Fatalf("unexpected lines payload: %+v", body.Cart.Lines)
	}
}

func TestAddItemParsesCommand(t *testing.T) {
	var got services.AddCartLineCommand
	svc := &stubCartService{
		addFn: func(_ context.Context, cmd services.AddCartLineCommand) (services.CartView, error) {
			got = cmd
			return services.CartView{Cart: domain.Cart{UserID: cmd.UserID}}, nil
		},
	}
	router := newCartTestRouter(svc)

	payload := `{"product_id":"p1","variant_id":"v2","quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(payload))
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != "u1" || got.ProductID != "p1" || got.VariantID != "v2" || got.Quantity != 3 {
		t.Fatalf("unexpected command: %+v", got)
	}
}

func TestAddItemRejectsBadPayloads(t *testing.T) {
	router := newCartTestRouter(&stubCartService{})

	cases := []struct {
		name string
		body string
	}{
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"product_id":"p1","quantity":0}`},
		{"unknown field", `{"product_id":"p1","quantity":1,"note":"x"}`},
		{"not json", `quantity=1`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(tc.body))
			req.Header.Set("X-User-Id", "u1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCartConflictMapsTo409(t *testing.T) {
	svc := &stubCartService{
		addFn: func(context.Context, services.AddCartLineCommand) (services.CartView, error) {
			return services.CartView{}, services.ErrCartConflict
		},
	}
	router := newCartTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"p1","quantity":1}`))
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestMergeEmptyCartMapsTo422(t *testing.T) {
	svc := &stubCartService{
		mergeFn: func(context.Context, services.MergeCartsCommand) (services.CartView, error) {
			return services.CartView{}, services.ErrCartEmpty
		},
	}
	router := newCartTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(`{"lines":[{"product_id":"p1","quantity":0}]}`))
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRemoveItemPassesVariantQuery(t *testing.T) {
	var got services.RemoveCartLineCommand
	svc := &stubCartService{
		removeFn: func(_ context.Context, cmd services.RemoveCartLineCommand) (services.CartView, error) {
			got = cmd
			return services.CartView{Cart: domain.Cart{UserID: cmd.UserID}}, nil
		},
	}
	router := newCartTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/p1?variant=v2", nil)
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.ProductID != "p1" || got.VariantID != "v2" {
		t.Fatalf("unexpected command: %+v", got)
	}
}

func TestClearCartReturnsNoContent(t *testing.T) {
	router := newCartTestRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/", nil)
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}
