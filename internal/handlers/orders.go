package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/httpx"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

// OrderHandlers exposes authenticated order endpoints for the current user.
type OrderHandlers struct {
	orders services.OrderService
}

const maxOrderBodySize = 32 * 1024

// NewOrderHandlers constructs handlers invoking the order service for the caller.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	address, err := parsePlaceOrderRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		Actor:           actor,
		ShippingAddress: address,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	filter, err := orderFilterFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, actor, actor.ID, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, orderListResponse{Orders: payload})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.GetOrder(ctx, actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.CancelOrder(ctx, actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// writeOrderError maps order service failures onto the wire envelope. Shared
// with the admin handlers.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to act on this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no purchasable lines", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "a cart line references an unavailable product", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderShippingRegion):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_region_mismatch", "a product does not ship to the destination region", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "requested quantity exceeds available stock", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed concurrently; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderTimeout):
		httpx.WriteError(ctx, w, httpx.NewError("order_storage_timeout", "order storage timed out; retry", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order", http.StatusInternalServerError))
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	Number          string             `json:"number"`
	UserID          string             `json:"user_id"`
	Status          string             `json:"status"`
	Lines           []orderLinePayload `json:"lines"`
	Subtotal        int64              `json:"subtotal"`
	ShippingCost    int64              `json:"shipping_cost"`
	Total           int64              `json:"total"`
	DeliveryDays    int                `json:"delivery_days"`
	IsDelivered     bool               `json:"is_delivered"`
	DeliveredAt     string             `json:"delivered_at,omitempty"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
	ShippingAddress addressPayload     `json:"shipping_address"`
	CreatedAt       string             `json:"created_at,omitempty"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
}

type orderLinePayload struct {
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id,omitempty"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	Supplier      string `json:"supplier,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	OriginalPrice int64  `json:"original_price"`
	OfferID       string `json:"offer_id,omitempty"`
}

type addressPayload struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:           order.ID,
		Number:       order.Number,
		UserID:       order.UserID,
		Status:       string(order.Status),
		Lines:        make([]orderLinePayload, 0, len(order.Lines)),
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		DeliveryDays: order.DeliveryDays,
		IsDelivered:  order.IsDelivered,
		DeliveredAt:  formatTimePointer(order.DeliveredAt),
		CancelledAt:  formatTimePointer(order.CancelledAt),
		ShippingAddress: addressPayload{
			Name:       order.ShippingAddress.Name,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			Region:     order.ShippingAddress.Region,
			PostalCode: order.ShippingAddress.PostalCode,
			Phone:      order.ShippingAddress.Phone,
		},
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ProductID:     line.ProductID,
			VariantID:     line.VariantID,
			Name:          line.Name,
			Image:         line.Image,
			Supplier:      line.Supplier,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			OriginalPrice: line.OriginalPrice,
			OfferID:       line.OfferID,
		})
	}
	return payload
}

func parsePlaceOrderRequest(body []byte) (domain.ShippingAddress, error) {
	var raw struct {
		ShippingAddress *struct {
			Name       string `json:"name"`
			Line1      string `json:"line1"`
			Line2      string `json:"line2"`
			City       string `json:"city"`
			Region     string `json:"region"`
			PostalCode string `json:"postal_code"`
			Phone      string `json:"phone"`
		} `json:"shipping_address"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.ShippingAddress{}, errors.New("invalid JSON payload")
	}
	if raw.ShippingAddress == nil {
		return domain.ShippingAddress{}, errors.New("shipping_address is required")
	}

	addr := domain.ShippingAddress{
		Name:       strings.TrimSpace(raw.ShippingAddress.Name),
		Line1:      strings.TrimSpace(raw.ShippingAddress.Line1),
		Line2:      strings.TrimSpace(raw.ShippingAddress.Line2),
		City:       strings.TrimSpace(raw.ShippingAddress.City),
		Region:     strings.TrimSpace(raw.ShippingAddress.Region),
		PostalCode: strings.TrimSpace(raw.ShippingAddress.PostalCode),
		Phone:      strings.TrimSpace(raw.ShippingAddress.Phone),
	}
	if addr.Name == "" || addr.Line1 == "" || addr.City == "" || addr.Region == "" {
		return domain.ShippingAddress{}, errors.New("shipping_address requires name, line1, city, and region")
	}
	return addr, nil
}

func orderFilterFromQuery(r *http.Request) (repositories.OrderListFilter, error) {
	var filter repositories.OrderListFilter

	limit, err := parseLimitQuery(r)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.OrderStatus(strings.ToLower(raw))
		switch status {
		case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped,
			domain.OrderStatusDelivered, domain.OrderStatusCancelled:
			filter.Status = status
		default:
			return filter, errors.New("status must be one of pending, processing, shipped, delivered, cancelled")
		}
	}
	return filter, nil
}
