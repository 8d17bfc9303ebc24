package firestore

import (
	"context"
	"errors"
	"fmt"
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
	couponCollection = "coupons"

	defaultCouponListLimit = 50
	maxCouponListLimit     = 200
)

// CouponRepository persists coupons in Firestore. The uppercase coupon code is
// the document identifier, which makes duplicate codes impossible to create.
type CouponRepository struct {
	base     *pfirestore.BaseRepository[couponDocument]
	provider *pfirestore.Provider
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponCollection, nil, nil)
	return &CouponRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByCode loads a coupon by its code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := couponID(code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, wrapCouponError("coupons.get", err)
	}
	return couponFromDocument(doc.ID, doc.Data), nil
}

// List returns coupons, optionally only active ones.
func (r *CouponRepository) List(ctx context.Context, filter repositories.CouponListFilter) ([]domain.Coupon, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("coupon repository not initialised")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultCouponListLimit
	}
	if limit > maxCouponListLimit {
		limit = maxCouponListLimit
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		q = q.OrderBy(firestore.DocumentID, firestore.Asc)
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		return q.Limit(limit)
	})
	if err != nil {
		return nil, wrapCouponError("coupons.list", err)
	}

	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, couponFromDocument(doc.ID, doc.Data))
	}
	return coupons, nil
}

// Create inserts a new coupon. An existing code surfaces as a conflict.
func (r *CouponRepository) Create(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := couponID(coupon.Code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	coupon.Code = id
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Create(ref, couponToDocument(coupon)); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewCouponError(repositories.CouponErrorConflict,
					fmt.Sprintf("coupon %s already exists", id), err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Coupon{}, wrapCouponError("coupons.create", err)
	}
	return coupon, nil
}

// Update overwrites an existing coupon. Ledger fields are preserved from the
// stored document so an admin edit can never erase redemption history.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := couponID(coupon.Code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	coupon.Code = id
	var saved domain.Coupon
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return repositories.NewCouponError(repositories.CouponErrorNotFound, "coupon not found", err)
		}
		if err != nil {
			return err
		}
		var stored couponDocument
		if err := snap.DataTo(&stored); err != nil {
			return fmt.Errorf("decode coupon %s: %w", id, err)
		}

		coupon.UsedCount = stored.UsedCount
		coupon.UsedBy = append([]string(nil), stored.UsedBy...)
		if coupon.CreatedAt.IsZero() {
			coupon.CreatedAt = stored.CreatedAt
		}

		if err := tx.Set(ref, couponToDocument(coupon)); err != nil {
			return err
		}
		saved = coupon
		return nil
	})
	if err != nil {
		return domain.Coupon{}, wrapCouponError("coupons.update", err)
	}
	return saved, nil
}

// Delete removes the coupon. Deleting a missing coupon is not an error.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	if r == nil || r.base == nil {
		return errors.New("coupon repository not initialised")
	}
	id := couponID(code)
	if id == "" {
		return errors.New("coupon repository: code is required")
	}
	if err := r.base.Delete(ctx, id); err != nil {
		return wrapCouponError("coupons.delete", err)
	}
	return nil
}

// Redeem records a usage against the coupon ledger. The limit and per-user
// uniqueness are re-checked inside the transaction so concurrent redemptions
// cannot oversell the coupon.
func (r *CouponRepository) Redeem(ctx context.Context, req repositories.CouponRedeemRequest) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := couponID(req.Code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Coupon{}, errors.New("coupon repository: user id is required")
	}
	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var redeemed domain.Coupon
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return repositories.NewCouponError(repositories.CouponErrorNotFound, "coupon not found", err)
		}
		if err != nil {
			return err
		}
		var stored couponDocument
		if err := snap.DataTo(&stored); err != nil {
			return fmt.Errorf("decode coupon %s: %w", id, err)
		}

		coupon := couponFromDocument(id, stored)
		if coupon.LimitReached() {
			return repositories.NewCouponError(repositories.CouponErrorLimitReached, "coupon usage limit reached", nil)
		}
		if coupon.UsedByUser(userID) {
			return repositories.NewCouponError(repositories.CouponErrorAlreadyUsed, "coupon already used by this user", nil)
		}

		coupon.UsedCount++
		coupon.UsedBy = append(coupon.UsedBy, userID)
		coupon.UpdatedAt = now

		if err := tx.Set(ref, couponToDocument(coupon)); err != nil {
			return err
		}
		redeemed = coupon
		return nil
	})
	if err != nil {
		return domain.Coupon{}, wrapCouponError("coupons.redeem", err)
	}
	return redeemed, nil
}

func couponID(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func wrapCouponError(op string, err error) error {
	if err == nil {
		return nil
	}
	var couponErr *repositories.CouponError
	if errors.As(err, &couponErr) {
		if couponErr.Op == "" {
			couponErr.Op = op
		}
		return couponErr
	}
	if status.Code(err) == codes.NotFound {
		wrapped := repositories.NewCouponError(repositories.CouponErrorNotFound, "coupon not found", err)
		wrapped.Op = op
		return wrapped
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		wrapped := repositories.NewCouponError(repositories.CouponErrorNotFound, "coupon not found", err)
		wrapped.Op = op
		return wrapped
	}
	return pfirestore.WrapError(op, err)
}

func couponFromDocument(id string, doc couponDocument) domain.Coupon {
	coupon := domain.Coupon{
		Code:       id,
		Type:       domain.CouponType(strings.TrimSpace(doc.Type)),
		Discount:   doc.Discount,
		UsageLimit: doc.UsageLimit,
		UsedCount:  doc.UsedCount,
		UsedBy:     append([]string(nil), doc.UsedBy...),
		ApplyTo:    domain.CouponApplyTo(strings.TrimSpace(doc.ApplyTo)),
		Categories: append([]string(nil), doc.Categories...),
		Products:   append([]string(nil), doc.Products...),
		Active:     doc.Active,
		StartsAt:   doc.StartsAt,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if coupon.ApplyTo == "" {
		coupon.ApplyTo = domain.CouponApplyAll
	}
	coupon.ExpiresAt = optionalTime(doc.ExpiresAt)
	return coupon
}

func couponToDocument(coupon domain.Coupon) couponDocument {
	return couponDocument{
		Type:       string(coupon.Type),
		Discount:   coupon.Discount,
		UsageLimit: coupon.UsageLimit,
		UsedCount:  coupon.UsedCount,
		UsedBy:     append([]string(nil), coupon.UsedBy...),
		ApplyTo:    string(coupon.ApplyTo),
		Categories: append([]string(nil), coupon.Categories...),
		Products:   append([]string(nil), coupon.Products...),
		Active:     coupon.Active,
		StartsAt:   coupon.StartsAt,
		ExpiresAt:  coupon.ExpiresAt,
		CreatedAt:  coupon.CreatedAt,
		UpdatedAt:  coupon.UpdatedAt,
	}
}

type couponDocument struct {
	Type       string     `firestore:"type"`
	Discount   int64      `firestore:"discount"`
	UsageLimit int        `firestore:"usageLimit,omitempty"`
	UsedCount  int        `firestore:"usedCount"`
	UsedBy     []string   `firestore:"usedBy,omitempty"`
	ApplyTo    string     `firestore:"applyTo"`
	Categories []string   `firestore:"categories,omitempty"`
	Products   []string   `firestore:"products,omitempty"`
	Active     bool       `firestore:"active"`
	StartsAt   time.Time  `firestore:"startsAt"`
	ExpiresAt  *time.Time `firestore:"expiresAt,omitempty"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
