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
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

// CouponHandlers exposes authenticated coupon validation and redemption.
type CouponHandlers struct {
	coupons services.CouponService
}

const maxCouponBodySize = 16 * 1024

// NewCouponHandlers constructs handlers invoking the coupon service for the caller.
func NewCouponHandlers(coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{coupons: coupons}
}

// Routes wires the /coupons endpoints onto the provided router.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validate)
	r.Post("/redeem", h.redeem)
}

func (h *CouponHandlers) validate(w http.ResponseWriter, r *http.Request) {
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

	req, err := readCouponCheckRequest(r)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.coupons.Validate(ctx, services.ValidateCouponCommand{
		Actor:      actor,
		Code:       req.Code,
		Subtotal:   req.Subtotal,
		ProductIDs: req.ProductIDs,
		Categories: req.Categories,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, couponQuoteResponse{
		Coupon:   buildCouponPayload(quote.Coupon),
		Discount: quote.Discount,
	})
}

func (h *CouponHandlers) redeem(w http.ResponseWriter, r *http.Request) {
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

	req, err := readCouponCheckRequest(r)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.coupons.Redeem(ctx, services.RedeemCouponCommand{
		Actor:      actor,
		Code:       req.Code,
		Subtotal:   req.Subtotal,
		ProductIDs: req.ProductIDs,
		Categories: req.Categories,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, couponQuoteResponse{
		Coupon:   buildCouponPayload(quote.Coupon),
		Discount: quote.Discount,
	})
}

// writeCouponError maps coupon service failures onto the wire envelope. Shared
// with the admin handlers.
func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponsDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("coupons_disabled", "coupons are disabled", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "admin role required", http.StatusForbidden))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponInactive):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_inactive", "coupon is inactive", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponNotStarted):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_started", "coupon is not active yet", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponExpired):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_expired", "coupon has expired", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponLimitReached):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_limit_reached", "coupon usage limit reached", http.StatusConflict))
	case errors.Is(err, services.ErrCouponAlreadyUsed):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_already_used", "coupon already used by this account", http.StatusConflict))
	case errors.Is(err, services.ErrCouponNotApplicable):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_applicable", "coupon does not apply to this purchase", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_conflict", "coupon changed concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon", http.StatusInternalServerError))
	}
}

type couponCheckRequest struct {
	Code       string   `json:"code"`
	Subtotal   int64    `json:"subtotal"`
	ProductIDs []string `json:"product_ids"`
	Categories []string `json:"categories"`
}

func readCouponCheckRequest(r *http.Request) (couponCheckRequest, error) {
	var req couponCheckRequest

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.New("invalid JSON payload")
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return req, errors.New("code is required")
	}
	if req.Subtotal < 0 {
		return req, errors.New("subtotal must not be negative")
	}
	return req, nil
}

type couponQuoteResponse struct {
	Coupon   couponPayload `json:"coupon"`
	Discount int64         `json:"discount"`
}

type couponPayload struct {
	Code       string   `json:"code"`
	Type       string   `json:"type"`
	Discount   int64    `json:"discount"`
	UsageLimit int      `json:"usage_limit,omitempty"`
	UsedCount  int      `json:"used_count"`
	ApplyTo    string   `json:"apply_to"`
	Categories []string `json:"categories,omitempty"`
	Products   []string `json:"products,omitempty"`
	Active     bool     `json:"active"`
	StartsAt   string   `json:"starts_at,omitempty"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
}

func buildCouponPayload(coupon domain.Coupon) couponPayload {
	return couponPayload{
		Code:       coupon.Code,
		Type:       string(coupon.Type),
		Discount:   coupon.Discount,
		UsageLimit: coupon.UsageLimit,
		UsedCount:  coupon.UsedCount,
		ApplyTo:    string(coupon.ApplyTo),
		Categories: coupon.Categories,
		Products:   coupon.Products,
		Active:     coupon.Active,
		StartsAt:   formatTime(coupon.StartsAt),
		ExpiresAt:  formatTimePointer(coupon.ExpiresAt),
	}
}
