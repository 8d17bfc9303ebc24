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

const offerCollection = "offers"

// OfferRepository reads discount offer documents from Firestore.
type OfferRepository struct {
	base     *pfirestore.BaseRepository[offerDocument]
	provider *pfirestore.Provider
}

// NewOfferRepository constructs a Firestore-backed offer repository.
func NewOfferRepository(provider *pfirestore.Provider) (*OfferRepository, error) {
	if provider == nil {
		return nil, errors.New("offer repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[offerDocument](provider, offerCollection, nil, nil)
	return &OfferRepository{
		base:     base,
		provider: provider,
	}, nil
}

// ListForProduct returns offers targeting the product directly or via its
// category that are active at the given instant. The end-of-window filter runs
// in memory because startsAt and endsAt cannot share a Firestore range query.
func (r *OfferRepository) ListForProduct(ctx context.Context, productID string, category string, now time.Time) ([]domain.Offer, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("offer repository not initialised")
	}

	var offers []domain.Offer

	pid := strings.TrimSpace(productID)
	if pid != "" {
		productOffers, err := r.listScoped(ctx, domain.OfferScopeProduct, pid, now)
		if err != nil {
			return nil, err
		}
		offers = append(offers, productOffers...)
	}

	cat := strings.TrimSpace(category)
	if cat != "" {
		categoryOffers, err := r.listScoped(ctx, domain.OfferScopeCategory, cat, now)
		if err != nil {
			return nil, err
		}
		offers = append(offers, categoryOffers...)
	}

	return offers, nil
}

// ListActive returns every offer whose window covers the given instant.
func (r *OfferRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("offer repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("startsAt", "<=", now.UTC()).OrderBy("startsAt", firestore.Asc)
	})
	if err != nil {
		return nil, pfirestore.WrapError("offers.list", err)
	}

	return activeOffers(docs, now), nil
}

func (r *OfferRepository) listScoped(ctx context.Context, scope domain.OfferScope, refID string, now time.Time) ([]domain.Offer, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("type", "==", string(scope)).
			Where("refId", "==", refID).
			Where("startsAt", "<=", now.UTC()).
			OrderBy("startsAt", firestore.Asc)
	})
	if err != nil {
		return nil, pfirestore.WrapError("offers.list", err)
	}
	return activeOffers(docs, now), nil
}

func activeOffers(docs []pfirestore.Document[offerDocument], now time.Time) []domain.Offer {
	offers := make([]domain.Offer, 0, len(docs))
	for _, doc := range docs {
		offer := offerFromDocument(doc.ID, doc.Data)
		if !offer.ActiveAt(now) {
			continue
		}
		offers = append(offers, offer)
	}
	return offers
}

func offerFromDocument(id string, doc offerDocument) domain.Offer {
	offer := domain.Offer{
		ID:              id,
		Scope:           domain.OfferScope(strings.TrimSpace(doc.Scope)),
		RefID:           strings.TrimSpace(doc.RefID),
		DiscountPercent: doc.DiscountPercent,
		StartsAt:        doc.StartsAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if doc.EndsAt != nil && !doc.EndsAt.IsZero() {
		endsAt := doc.EndsAt.UTC()
		offer.EndsAt = &endsAt
	}
	return offer
}

type offerDocument struct {
	Scope           string     `firestore:"type"`
	RefID           string     `firestore:"refId"`
	DiscountPercent float64    `firestore:"discountPercent"`
	StartsAt        time.Time  `firestore:"startsAt"`
	EndsAt          *time.Time `firestore:"endsAt,omitempty"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

var _ repositories.OfferRepository = (*OfferRepository)(nil)
