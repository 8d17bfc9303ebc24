package handlers

import (
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

// AdminHandlers exposes the staff-only order and coupon management endpoints.
type AdminHandlers struct {
	orders  services.OrderService
	coupons services.CouponService
}

const maxAdminBodySize = 32 * 1024

// NewAdminHandlers constructs handlers for the admin route group.
func NewAdminHandlers(orders services.OrderService, coupons services.CouponService) *AdminHandlers {
	return &AdminHandlers{orders: orders, coupons: coupons}
}

// Routes wires the /admin endpoints onto the provided router. The router
// group already enforces the admin role.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Post("/orders/{orderID}/status", h.updateOrderStatus)

	r.Get("/coupons", h.listCoupons)
	r.Post("/coupons", h.createCoupon)
	r.Put("/coupons/{code}", h.updateCoupon)
	r.Delete("/coupons/{code}", h.deleteCoupon)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id query parameter is required", http.StatusBadRequest))
		return
	}

	filter, err := orderFilterFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, actor, userID, filter)
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

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
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

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.TransitionOrderCommand{
		Actor:   actor,
		OrderID: chi.URLParam(r, "orderID"),
		Target:  domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	limit, err := parseLimitQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := repositories.CouponListFilter{
		ActiveOnly: strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active")), "true"),
		Limit:      limit,
	}

	coupons, err := h.coupons.ListCoupons(ctx, actor, filter)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	payload := make([]couponPayload, 0, len(coupons))
	for _, coupon := range coupons {
		payload = append(payload, buildCouponPayload(coupon))
	}
	httpx.WriteJSON(w, http.StatusOK, couponListResponse{Coupons: payload})
}

func (h *AdminHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	coupon, err := readAdminCouponRequest(r, "")
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	created, err := h.coupons.CreateCoupon(ctx, actor, coupon)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, couponResponse{Coupon: buildCouponPayload(created)})
}

func (h *AdminHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	coupon, err := readAdminCouponRequest(r, chi.URLParam(r, "code"))
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	updated, err := h.coupons.UpdateCoupon(ctx, actor, coupon)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, couponResponse{Coupon: buildCouponPayload(updated)})
}

func (h *AdminHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.coupons.DeleteCoupon(ctx, actor, chi.URLParam(r, "code")); err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type couponResponse struct {
	Coupon couponPayload `json:"coupon"`
}

type couponListResponse struct {
	Coupons []couponPayload `json:"coupons"`
}

// readAdminCouponRequest parses the admin coupon body. An explicit path code
// wins over the body code so PUT /coupons/{code} addresses the stored document.
func readAdminCouponRequest(r *http.Request, pathCode string) (domain.Coupon, error) {
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		return domain.Coupon{}, err
	}

	var raw struct {
		Code       string   `json:"code"`
		Type       string   `json:"type"`
		Discount   int64    `json:"discount"`
		UsageLimit int      `json:"usage_limit"`
		ApplyTo    string   `json:"apply_to"`
		Categories []string `json:"categories"`
		Products   []string `json:"products"`
		Active     bool     `json:"active"`
		StartsAt   string   `json:"starts_at"`
		ExpiresAt  string   `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Coupon{}, errors.New("invalid JSON payload")
	}

	code := strings.TrimSpace(pathCode)
	if code == "" {
		code = strings.TrimSpace(raw.Code)
	}

	coupon := domain.Coupon{
		Code:       code,
		Type:       domain.CouponType(strings.ToLower(strings.TrimSpace(raw.Type))),
		Discount:   raw.Discount,
		UsageLimit: raw.UsageLimit,
		ApplyTo:    domain.CouponApplyTo(strings.ToLower(strings.TrimSpace(raw.ApplyTo))),
		Categories: raw.Categories,
		Products:   raw.Products,
		Active:     raw.Active,
	}

	if ts := strings.TrimSpace(raw.StartsAt); ts != "" {
		startsAt, err := parseRFC3339(ts)
		if err != nil {
			return domain.Coupon{}, errors.New("starts_at must be an RFC3339 timestamp")
		}
		coupon.StartsAt = startsAt
	}
	if ts := strings.TrimSpace(raw.ExpiresAt); ts != "" {
		expiresAt, err := parseRFC3339(ts)
		if err != nil {
			return domain.Coupon{}, errors.New("expires_at must be an RFC3339 timestamp")
		}
		coupon.ExpiresAt = &expiresAt
	}

	return coupon, nil
}
