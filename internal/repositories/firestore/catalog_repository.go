package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	pfirestore "github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/firestore"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

const (
	productCollection = "products"

	defaultProductListLimit = 50
	maxProductListLimit     = 200
)

// CatalogRepository reads product documents from Firestore.
type CatalogRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &CatalogRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByID loads a single product.
func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, wrapCatalogError("products.get", err)
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// FindByIDs loads the given products keyed by ID. Missing products are simply
// absent from the result.
func (r *CatalogRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	out := make(map[string]domain.Product, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, productID := range productIDs {
		id := strings.TrimSpace(productID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		doc, err := r.base.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, wrapCatalogError("products.get", err)
		}
		out[doc.ID] = productFromDocument(doc.ID, doc.Data)
	}
	return out, nil
}

// ListByCategory returns products belonging to the given category.
func (r *CatalogRepository) ListByCategory(ctx context.Context, category string, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	cat := strings.TrimSpace(category)
	if cat == "" {
		return nil, errors.New("catalog repository: category is required")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductListLimit
	}
	if limit > maxProductListLimit {
		limit = maxProductListLimit
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("category", "==", cat).OrderBy(firestore.DocumentID, firestore.Asc)
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		return q.Limit(limit)
	})
	if err != nil {
		return nil, wrapCatalogError("products.list", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, productFromDocument(doc.ID, doc.Data))
	}
	return products, nil
}

func wrapCatalogError(op string, err error) error {
	if err == nil {
		return nil
	}
	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) {
		if catalogErr.Op == "" {
			catalogErr.Op = op
		}
		return catalogErr
	}
	if status.Code(err) == codes.NotFound {
		wrapped := repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, "product not found", err)
		wrapped.Op = op
		return wrapped
	}
	return pfirestore.WrapError(op, err)
}

func productFromDocument(id string, doc productDocument) domain.Product {
	product := domain.Product{
		ID:              id,
		SKU:             strings.TrimSpace(doc.SKU),
		Name:            strings.TrimSpace(doc.Name),
		Image:           strings.TrimSpace(doc.Image),
		Category:        strings.TrimSpace(doc.Category),
		Price:           doc.Price,
		Stock:           doc.Stock,
		ShippingCost:    doc.ShippingCost,
		DeliveryDays:    doc.DeliveryDays,
		ShippingRegion:  strings.TrimSpace(doc.ShippingRegion),
		SupplierName:    strings.TrimSpace(doc.SupplierName),
		SupplierContact: strings.TrimSpace(doc.SupplierContact),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if len(doc.Variants) > 0 {
		product.Variants = make([]domain.ProductVariant, 0, len(doc.Variants))
		for _, variant := range doc.Variants {
			product.Variants = append(product.Variants, domain.ProductVariant{
				ID:         strings.TrimSpace(variant.ID),
				Name:       strings.TrimSpace(variant.Name),
				Price:      variant.Price,
				Quantity:   variant.Quantity,
				Attributes: domain.NormalizeVariantAttributes(variant.Attributes),
			})
		}
	}
	return product
}

type productDocument struct {
	SKU             string                   `firestore:"sku,omitempty"`
	Name            string                   `firestore:"name"`
	Image           string                   `firestore:"image,omitempty"`
	Category        string                   `firestore:"category,omitempty"`
	Price           int64                    `firestore:"price"`
	Stock           int                      `firestore:"stock"`
	ShippingCost    int64                    `firestore:"shippingCost,omitempty"`
	DeliveryDays    int                      `firestore:"deliveryDays,omitempty"`
	ShippingRegion  string                   `firestore:"shippingRegion,omitempty"`
	SupplierName    string                   `firestore:"supplierName,omitempty"`
	SupplierContact string                   `firestore:"supplierContact,omitempty"`
	Variants        []productVariantDocument `firestore:"variants,omitempty"`
	CreatedAt       time.Time                `firestore:"createdAt"`
	UpdatedAt       time.Time                `firestore:"updatedAt"`
}

type productVariantDocument struct {
	ID         string            `firestore:"id"`
	Name       string            `firestore:"name,omitempty"`
	Price      int64             `firestore:"price"`
	Quantity   int               `firestore:"quantity"`
	Attributes map[string]string `firestore:"attributes,omitempty"`
}

var _ repositories.ProductRepository = (*CatalogRepository)(nil)
