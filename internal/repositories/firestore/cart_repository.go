package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	pfirestore "github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/firestore"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts within Firestore. The user ID doubles as the
// document identifier so each user owns at most one cart.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// GetCart loads the cart for the given user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return cartFromDocument(doc.ID, doc.Data, doc.UpdateTime), nil
}

// SaveCart persists the cart. When expectedUpdate is provided the write only
// succeeds if the stored document was last updated at that instant, surfacing
// concurrent modifications as conflicts.
func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartToDocument(cart)
	doc.CreatedAt = createdAt
	doc.UpdatedAt = now

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, uid, doc)
		if err != nil {
			return domain.Cart{}, err
		}
		saved := cartFromDocument(uid, doc, result.UpdateTime)
		return saved, nil
	}

	updates := []firestore.Update{
		{Path: "subtotal", Value: doc.Subtotal},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
	if len(doc.Lines) == 0 {
		updates = append(updates, firestore.Update{Path: "lines", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "lines", Value: doc.Lines})
	}

	result, err := r.base.Update(ctx, uid, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Cart{}, err
	}
	saved := cartFromDocument(uid, doc, result.UpdateTime)
	saved.CreatedAt = cart.CreatedAt
	return saved, nil
}

// DeleteCart removes the user's cart. Deleting a missing cart is not an error.
func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.base.Delete(ctx, uid)
}

func cartFromDocument(id string, doc cartDocument, updateTime time.Time) domain.Cart {
	cart := domain.Cart{
		UserID:    id,
		Subtotal:  doc.Subtotal,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if !updateTime.IsZero() {
		cart.UpdatedAt = updateTime
	}
	if len(doc.Lines) > 0 {
		cart.Lines = make([]domain.CartLine, 0, len(doc.Lines))
		for _, line := range doc.Lines {
			cart.Lines = append(cart.Lines, domain.CartLine{
				ProductID: strings.TrimSpace(line.ProductID),
				VariantID: strings.TrimSpace(line.VariantID),
				Quantity:  line.Quantity,
			})
		}
	}
	return cart
}

func cartToDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		Subtotal:  cart.Subtotal,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	if len(cart.Lines) > 0 {
		doc.Lines = make([]cartLineDocument, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			doc.Lines = append(doc.Lines, cartLineDocument{
				ProductID: strings.TrimSpace(line.ProductID),
				VariantID: strings.TrimSpace(line.VariantID),
				Quantity:  line.Quantity,
			})
		}
	}
	return doc
}

type cartDocument struct {
	Lines     []cartLineDocument `firestore:"lines,omitempty"`
	Subtotal  int64              `firestore:"subtotal"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ProductID string `firestore:"productId"`
	VariantID string `firestore:"variantId,omitempty"`
	Quantity  int    `firestore:"quantity"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
