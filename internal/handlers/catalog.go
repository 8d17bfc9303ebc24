package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/httpx"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

// CatalogHandlers exposes public product, price, and offer endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
	pricing services.PricingService
	offers  services.OfferService
	clock   func() time.Time
}

// NewCatalogHandlers constructs handlers backed by the catalog read services.
func NewCatalogHandlers(catalog services.CatalogService, pricing services.PricingService, offers services.OfferService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog: catalog,
		pricing: pricing,
		offers:  offers,
		clock:   time.Now,
	}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/price", h.getPrice)
	r.Get("/categories/{category}/products", h.listByCategory)
	r.Get("/offers", h.listOffers)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) getPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil || h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	variantID := strings.TrimSpace(r.URL.Query().Get("variant"))
	quote, err := h.pricing.Quote(ctx, product, variantID, h.clock())
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, priceResponse{
		ProductID: product.ID,
		VariantID: variantID,
		Price:     buildPricePayload(quote),
	})
}

func (h *CatalogHandlers) listByCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, err := parseLimitQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	products, err := h.catalog.ListByCategory(ctx, chi.URLParam(r, "category"), repositories.ProductListFilter{Limit: limit})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload = append(payload, buildProductPayload(product))
	}
	httpx.WriteJSON(w, http.StatusOK, productListResponse{Products: payload})
}

func (h *CatalogHandlers) listOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "offer service is unavailable", http.StatusServiceUnavailable))
		return
	}

	offers, err := h.offers.ListActive(ctx, h.clock())
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]offerPayload, 0, len(offers))
	for _, offer := range offers {
		payload = append(payload, buildOfferPayload(offer))
	}
	httpx.WriteJSON(w, http.StatusOK, offerListResponse{Offers: payload})
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", "variant not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to read catalog", http.StatusInternalServerError))
	}
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productListResponse struct {
	Products []productPayload `json:"products"`
}

type priceResponse struct {
	ProductID string       `json:"product_id"`
	VariantID string       `json:"variant_id,omitempty"`
	Price     pricePayload `json:"price"`
}

type offerListResponse struct {
	Offers []offerPayload `json:"offers"`
}

type productPayload struct {
	ID             string           `json:"id"`
	SKU            string           `json:"sku,omitempty"`
	Name           string           `json:"name"`
	Image          string           `json:"image,omitempty"`
	Category       string           `json:"category"`
	Price          int64            `json:"price"`
	Stock          int              `json:"stock"`
	ShippingCost   int64            `json:"shipping_cost"`
	DeliveryDays   int              `json:"delivery_days"`
	ShippingRegion string           `json:"shipping_region,omitempty"`
	Variants       []variantPayload `json:"variants,omitempty"`
	UpdatedAt      string           `json:"updated_at,omitempty"`
}

type variantPayload struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Price      int64             `json:"price,omitempty"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type pricePayload struct {
	UnitPrice       int64   `json:"unit_price"`
	OriginalPrice   int64   `json:"original_price"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	OfferID         string  `json:"offer_id,omitempty"`
}

type offerPayload struct {
	ID              string  `json:"id"`
	Scope           string  `json:"scope"`
	RefID           string  `json:"ref_id"`
	DiscountPercent float64 `json:"discount_percent"`
	StartsAt        string  `json:"starts_at"`
	EndsAt          string  `json:"ends_at,omitempty"`
}

func buildProductPayload(product domain.Product) productPayload {
	payload := productPayload{
		ID:             product.ID,
		SKU:            product.SKU,
		Name:           product.Name,
		Image:          product.Image,
		Category:       product.Category,
		Price:          product.Price,
		Stock:          product.Stock,
		ShippingCost:   product.ShippingCost,
		DeliveryDays:   product.DeliveryDays,
		ShippingRegion: product.ShippingRegion,
		UpdatedAt:      formatTime(product.UpdatedAt),
	}
	for _, variant := range product.Variants {
		payload.Variants = append(payload.Variants, variantPayload{
			ID:         variant.ID,
			Name:       variant.Name,
			Price:      variant.Price,
			Quantity:   variant.Quantity,
			Attributes: variant.Attributes,
		})
	}
	return payload
}

func buildPricePayload(quote services.PriceQuote) pricePayload {
	return pricePayload{
		UnitPrice:       quote.UnitPrice,
		OriginalPrice:   quote.OriginalPrice,
		DiscountPercent: quote.DiscountPercent,
		OfferID:         quote.OfferID,
	}
}

func buildOfferPayload(offer domain.Offer) offerPayload {
	return offerPayload{
		ID:              offer.ID,
		Scope:           string(offer.Scope),
		RefID:           offer.RefID,
		DiscountPercent: offer.DiscountPercent,
		StartsAt:        formatTime(offer.StartsAt),
		EndsAt:          formatTimePointer(offer.EndsAt),
	}
}
