package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/httpx"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	carts services.CartService
}

const maxCartBodySize = 16 * 1024

// NewCartHandlers constructs handlers invoking the cart service for the caller.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{productID}", h.removeItem)
	r.Post("/merge", h.mergeCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	view, err := h.carts.GetCart(ctx, actor.ID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	req, err := parseAddItemRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.carts.AddLine(ctx, services.AddCartLineCommand{
		UserID:    actor.ID,
		ProductID: req.productID,
		VariantID: req.variantID,
		Quantity:  req.quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	view, err := h.carts.RemoveLine(ctx, services.RemoveCartLineCommand{
		UserID:    actor.ID,
		ProductID: chi.URLParam(r, "productID"),
		VariantID: strings.TrimSpace(r.URL.Query().Get("variant")),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) mergeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	lines, err := parseMergeRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.carts.MergeCarts(ctx, services.MergeCartsCommand{UserID: actor.ID, Lines: lines})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.carts.ClearCart(ctx, actor.ID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "no usable cart lines provided", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartLineUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_line_unavailable", "product or variant is no longer available", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", "variant not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to update cart", http.StatusInternalServerError))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	UserID    string            `json:"user_id"`
	Lines     []cartLinePayload `json:"lines"`
	Subtotal  int64             `json:"subtotal"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	ProductID string       `json:"product_id"`
	VariantID string       `json:"variant_id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Quantity  int          `json:"quantity"`
	UnitPrice int64        `json:"unit_price"`
	LineTotal int64        `json:"line_total"`
	Price     pricePayload `json:"price"`
}

func buildCartPayload(view services.CartView) cartPayload {
	payload := cartPayload{
		UserID:    view.Cart.UserID,
		Lines:     make([]cartLinePayload, 0, len(view.Lines)),
		Subtotal:  view.Subtotal,
		UpdatedAt: formatTime(view.Cart.UpdatedAt),
	}
	for _, line := range view.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{
			ProductID: line.Line.ProductID,
			VariantID: line.Line.VariantID,
			Name:      line.Product.Name,
			Quantity:  line.Line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Price:     buildPricePayload(line.Quote),
		})
	}
	return payload
}

type addItemRequest struct {
	productID string
	variantID string
	quantity  int
}

func parseAddItemRequest(body []byte) (addItemRequest, error) {
	var req addItemRequest

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return req, errors.New("invalid JSON payload")
	}

	for key, value := range raw {
		switch key {
		case "product_id":
			if isJSONNull(value) {
				return req, errors.New("product_id must be a string")
			}
			var id string
			if err := json.Unmarshal(value, &id); err != nil {
				return req, errors.New("product_id must be a string")
			}
			req.productID = strings.TrimSpace(id)
		case "variant_id":
			if isJSONNull(value) {
				continue
			}
			var id string
			if err := json.Unmarshal(value, &id); err != nil {
				return req, errors.New("variant_id must be a string")
			}
			req.variantID = strings.TrimSpace(id)
		case "quantity":
			if isJSONNull(value) {
				return req, errors.New("quantity must be a positive integer")
			}
			var qty int
			if err := json.Unmarshal(value, &qty); err != nil {
				return req, errors.New("quantity must be a positive integer")
			}
			req.quantity = qty
		default:
			return req, fmt.Errorf("unknown field %q", key)
		}
	}

	if req.productID == "" {
		return req, errors.New("product_id is required")
	}
	if req.quantity <= 0 {
		return req, errors.New("quantity must be a positive integer")
	}
	return req, nil
}

func parseMergeRequest(body []byte) ([]domain.CartLine, error) {
	var raw struct {
		Lines []struct {
			ProductID string `json:"product_id"`
			VariantID string `json:"variant_id"`
			Quantity  int    `json:"quantity"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.New("invalid JSON payload")
	}
	if len(raw.Lines) == 0 {
		return nil, errors.New("lines must not be empty")
	}

	lines := make([]domain.CartLine, 0, len(raw.Lines))
	for i, line := range raw.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return nil, fmt.Errorf("lines[%d].product_id is required", i)
		}
		lines = append(lines, domain.CartLine{
			ProductID: strings.TrimSpace(line.ProductID),
			VariantID: strings.TrimSpace(line.VariantID),
			Quantity:  line.Quantity,
		})
	}
	return lines, nil
}
