package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/identity"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

type stubOrderService struct {
	placeFn      func(context.Context, services.PlaceOrderCommand) (domain.Order, error)
	getFn        func(context.Context, services.Actor, string) (domain.Order, error)
	listFn       func(context.Context, services.Actor, string, repositories.OrderListFilter) ([]domain.Order, error)
	transitionFn func(context.Context, services.TransitionOrderCommand) (domain.Order, error)
	cancelFn     func(context.Context, services.Actor, string) (domain.Order, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return domain.Order{ID: "ord_1", UserID: cmd.Actor.ID, Status: domain.OrderStatusPending}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, orderID)
	}
	return domain.Order{ID: orderID, UserID: actor.ID}, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, actor services.Actor, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor, userID, filter)
	}
	return nil, nil
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.TransitionOrderCommand) (domain.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return domain.Order{ID: cmd.OrderID, Status: cmd.Target}, nil
}

func (s *stubOrderService) CancelOrder(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, actor, orderID)
	}
	return domain.Order{ID: orderID, UserID: actor.ID, Status: domain.OrderStatusCancelled}, nil
}

func newOrderTestRouter(svc services.OrderService) http.Handler {
	return NewRouter(
		WithMiddlewares(identity.Middleware()),
		WithOrderRoutes(NewOrderHandlers(svc).Routes),
		WithAdminRoutes(NewAdminHandlers(svc, nil).Routes),
	)
}

func TestPlaceOrderReturnsCreated(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	var got services.PlaceOrderCommand
	svc := &stubOrderService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
			got = cmd
			return domain.Order{
				ID:        "ord_1",
				Number:    "ORD-2026-ABCDEFGH",
				UserID:    cmd.Actor.ID,
				Status:    domain.OrderStatusPending,
				Total:     1700,
				CreatedAt: now,
			}, nil
		},
	}
	router := newOrderTestRouter(svc)

	payload := `{"shipping_address":{"name":"Jo Doe","line1":"1 Main St","city":"Cairo","region":"EG"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(payload))
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Actor.ID != "u1" || got.ShippingAddress.City != "Cairo" {
		t.Fatalf("unexpected command: %+v", got)
	}

	var body struct {
		Order struct {
			ID     string `json:"id"`
			Number string `json:"number"`
			Status string `json:"status"`
			Total  int64  `json:"total"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order.ID != "ord_1" || body.Order.Status != "pending" || body.Order.Total != 1700 {
		t.Fatalf("unexpected order payload: %+v", body.Order)
	}
}

func TestPlaceOrderRejectsMissingAddress(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{"shipping_address":{"name":"Jo"}}`))
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"empty cart", services.ErrOrderCartEmpty, http.StatusUnprocessableEntity},
		{"region mismatch", services.ErrOrderShippingRegion, http.StatusUnprocessableEntity},
		{"insufficient stock", services.ErrOrderInsufficientStock, http.StatusConflict},
		{"storage timeout", services.ErrOrderTimeout, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{
				placeFn: func(context.Context, services.PlaceOrderCommand) (domain.Order, error) {
					return domain.Order{}, tc.err
				},
			}
			router := newOrderTestRouter(svc)

			payload := `{"shipping_address":{"name":"Jo","line1":"1 Main St","city":"Cairo","region":"EG"}}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(payload))
			req.Header.Set("X-User-Id", "u1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.code {
				t.Fatalf("expected status %d, got %d: %s", tc.code, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestListOrdersParsesStatusFilter(t *testing.T) {
	var gotFilter repositories.OrderListFilter
	svc := &stubOrderService{
		listFn: func(_ context.Context, _ services.Actor, _ string, filter repositories.OrderListFilter) ([]domain.Order, error) {
			gotFilter = filter
			return []domain.Order{{ID: "ord_1"}}, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/?status=shipped&limit=5", nil)
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotFilter.Status != domain.OrderStatusShipped || gotFilter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", gotFilter)
	}
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/?status=refunded", nil)
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	var gotOrderID string
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, actor services.Actor, orderID string) (domain.Order, error) {
			gotOrderID = orderID
			return domain.Order{ID: orderID, UserID: actor.ID, Status: domain.OrderStatusCancelled}, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord_9/cancel", nil)
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotOrderID != "ord_9" {
		t.Fatalf("expected ord_9, got %q", gotOrderID)
	}
}

func TestAdminStatusUpdateRequiresAdminRole(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1/status", strings.NewReader(`{"status":"processing"}`))
	req.Header.Set("X-User-Id", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAdminStatusUpdateTransitions(t *testing.T) {
	var got services.TransitionOrderCommand
	svc := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.TransitionOrderCommand) (domain.Order, error) {
			got = cmd
			return domain.Order{ID: cmd.OrderID, Status: cmd.Target}, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1/status", strings.NewReader(`{"status":"Shipped"}`))
	req.Header.Set("X-User-Id", "staff")
	req.Header.Set("X-User-Role", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.OrderID != "ord_1" || got.Target != domain.OrderStatusShipped || !got.Actor.Admin {
		t.Fatalf("unexpected command: %+v", got)
	}
}
