package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

var (
	// ErrCouponInvalidInput signals the caller provided invalid data.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound indicates the coupon could not be located.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponInactive indicates the coupon has been switched off.
	ErrCouponInactive = errors.New("coupon: inactive")
	// ErrCouponNotStarted indicates the coupon window has not opened yet.
	ErrCouponNotStarted = errors.New("coupon: not started")
	// ErrCouponExpired indicates the coupon window has closed.
	ErrCouponExpired = errors.New("coupon: expired")
	// ErrCouponLimitReached indicates the usage limit has been exhausted.
	ErrCouponLimitReached = errors.New("coupon: usage limit reached")
	// ErrCouponAlreadyUsed indicates the actor already redeemed this coupon.
	ErrCouponAlreadyUsed = errors.New("coupon: already used")
	// ErrCouponNotApplicable indicates the purchase falls outside the coupon scope.
	ErrCouponNotApplicable = errors.New("coupon: not applicable")
	// ErrCouponConflict indicates a concurrent mutation clashed with the write.
	ErrCouponConflict = errors.New("coupon: conflict")
	// ErrCouponForbidden indicates the actor may not manage coupons.
	ErrCouponForbidden = errors.New("coupon: forbidden")
	// ErrCouponsDisabled indicates the coupon feature is switched off.
	ErrCouponsDisabled = errors.New("coupon: feature disabled")
)

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons repositories.CouponRepository
	Enabled bool
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	enabled bool
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCouponService wires dependencies into a concrete CouponService implementation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &couponService{
		coupons: deps.Coupons,
		enabled: deps.Enabled,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *couponService) Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponQuote, error) {
	coupon, err := s.check(ctx, cmd.Actor, cmd.Code, cmd.ProductIDs, cmd.Categories)
	if err != nil {
		return CouponQuote{}, err
	}
	return quoteCoupon(coupon, cmd.Subtotal)
}

// Redeem validates the coupon against the actor's purchase and then consumes
// one use. The repository re-checks the limit and per-user uniqueness inside
// its transaction, so concurrent redemptions cannot oversell the coupon.
func (s *couponService) Redeem(ctx context.Context, cmd RedeemCouponCommand) (CouponQuote, error) {
	coupon, err := s.check(ctx, cmd.Actor, cmd.Code, cmd.ProductIDs, cmd.Categories)
	if err != nil {
		return CouponQuote{}, err
	}
	quote, err := quoteCoupon(coupon, cmd.Subtotal)
	if err != nil {
		return CouponQuote{}, err
	}

	redeemed, err := s.coupons.Redeem(ctx, repositories.CouponRedeemRequest{
		Code:   coupon.Code,
		UserID: strings.TrimSpace(cmd.Actor.ID),
		Now:    s.clock(),
	})
	if err != nil {
		return CouponQuote{}, s.mapRepositoryError(err)
	}
	quote.Coupon = redeemed
	return quote, nil
}

// check runs the validation chain in a fixed order so callers always see the
// most specific failure first.
func (s *couponService) check(ctx context.Context, actor Actor, code string, productIDs, categories []string) (domain.Coupon, error) {
	if !s.enabled {
		return domain.Coupon{}, ErrCouponsDisabled
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return domain.Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	userID := strings.TrimSpace(actor.ID)
	if userID == "" {
		return domain.Coupon{}, fmt.Errorf("%w: actor id is required", ErrCouponInvalidInput)
	}

	coupon, err := s.coupons.FindByCode(ctx, trimmed)
	if err != nil {
		return domain.Coupon{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	switch {
	case !coupon.Active:
		return domain.Coupon{}, fmt.Errorf("%w: %s", ErrCouponInactive, coupon.Code)
	case coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(now):
		return domain.Coupon{}, fmt.Errorf("%w: %s", ErrCouponExpired, coupon.Code)
	case coupon.StartsAt.After(now):
		return domain.Coupon{}, fmt.Errorf("%w: %s opens at %s", ErrCouponNotStarted, coupon.Code, coupon.StartsAt.Format(time.RFC3339))
	case coupon.LimitReached():
		return domain.Coupon{}, fmt.Errorf("%w: %s", ErrCouponLimitReached, coupon.Code)
	case coupon.UsedByUser(userID):
		return domain.Coupon{}, fmt.Errorf("%w: %s", ErrCouponAlreadyUsed, coupon.Code)
	}

	if !couponApplies(coupon, productIDs, categories) {
		return domain.Coupon{}, fmt.Errorf("%w: %s", ErrCouponNotApplicable, coupon.Code)
	}

	return coupon, nil
}

func (s *couponService) CreateCoupon(ctx context.Context, actor Actor, coupon domain.Coupon) (domain.Coupon, error) {
	if !actor.Admin {
		return domain.Coupon{}, fmt.Errorf("%w: coupon management requires admin", ErrCouponForbidden)
	}
	if err := validateCoupon(coupon); err != nil {
		return domain.Coupon{}, err
	}

	now := s.clock()
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	coupon.UsedCount = 0
	coupon.UsedBy = nil
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	if coupon.StartsAt.IsZero() {
		coupon.StartsAt = now
	}

	created, err := s.coupons.Create(ctx, coupon)
	if err != nil {
		return domain.Coupon{}, s.mapRepositoryError(err)
	}
	return created, nil
}

func (s *couponService) UpdateCoupon(ctx context.Context, actor Actor, coupon domain.Coupon) (domain.Coupon, error) {
	if !actor.Admin {
		return domain.Coupon{}, fmt.Errorf("%w: coupon management requires admin", ErrCouponForbidden)
	}
	if err := validateCoupon(coupon); err != nil {
		return domain.Coupon{}, err
	}

	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	coupon.UpdatedAt = s.clock()

	updated, err := s.coupons.Update(ctx, coupon)
	if err != nil {
		return domain.Coupon{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *couponService) DeleteCoupon(ctx context.Context, actor Actor, code string) error {
	if !actor.Admin {
		return fmt.Errorf("%w: coupon management requires admin", ErrCouponForbidden)
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if err := s.coupons.Delete(ctx, trimmed); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *couponService) ListCoupons(ctx context.Context, actor Actor, filter repositories.CouponListFilter) ([]domain.Coupon, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("%w: coupon management requires admin", ErrCouponForbidden)
	}
	coupons, err := s.coupons.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return coupons, nil
}

func (s *couponService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var couponErr *repositories.CouponError
	if errors.As(err, &couponErr) {
		switch couponErr.Code {
		case repositories.CouponErrorNotFound:
			return fmt.Errorf("%w: %v", ErrCouponNotFound, err)
		case repositories.CouponErrorLimitReached:
			return fmt.Errorf("%w: %v", ErrCouponLimitReached, err)
		case repositories.CouponErrorAlreadyUsed:
			return fmt.Errorf("%w: %v", ErrCouponAlreadyUsed, err)
		case repositories.CouponErrorConflict:
			return fmt.Errorf("%w: %v", ErrCouponConflict, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCouponNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCouponConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("coupon: repository unavailable: %w", err)
		}
	}

	return err
}

func quoteCoupon(coupon domain.Coupon, subtotal int64) (CouponQuote, error) {
	if subtotal < 0 {
		return CouponQuote{}, fmt.Errorf("%w: subtotal cannot be negative", ErrCouponInvalidInput)
	}
	return CouponQuote{
		Coupon:   coupon,
		Discount: domain.CouponDiscountAmount(coupon, subtotal),
	}, nil
}

func couponApplies(coupon domain.Coupon, productIDs, categories []string) bool {
	switch coupon.ApplyTo {
	case domain.CouponApplyAll, "":
		return true
	case domain.CouponApplyProducts:
		return anyOverlap(coupon.Products, productIDs)
	case domain.CouponApplyCategories:
		return anyOverlap(coupon.Categories, categories)
	}
	return false
}

func anyOverlap(scope, values []string) bool {
	if len(scope) == 0 {
		return false
	}
	members := make(map[string]struct{}, len(scope))
	for _, entry := range scope {
		members[strings.ToLower(strings.TrimSpace(entry))] = struct{}{}
	}
	for _, value := range values {
		if _, ok := members[strings.ToLower(strings.TrimSpace(value))]; ok {
			return true
		}
	}
	return false
}

func validateCoupon(coupon domain.Coupon) error {
	if strings.TrimSpace(coupon.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	switch coupon.Type {
	case domain.CouponTypePercentage:
		if coupon.Discount <= 0 || coupon.Discount > 100 {
			return fmt.Errorf("%w: percentage discount must be between 1 and 100", ErrCouponInvalidInput)
		}
	case domain.CouponTypeFixed:
		if coupon.Discount <= 0 {
			return fmt.Errorf("%w: fixed discount must be positive", ErrCouponInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown coupon type %q", ErrCouponInvalidInput, coupon.Type)
	}
	switch coupon.ApplyTo {
	case domain.CouponApplyAll, "":
	case domain.CouponApplyProducts:
		if len(coupon.Products) == 0 {
			return fmt.Errorf("%w: product-scoped coupon requires product ids", ErrCouponInvalidInput)
		}
	case domain.CouponApplyCategories:
		if len(coupon.Categories) == 0 {
			return fmt.Errorf("%w: category-scoped coupon requires categories", ErrCouponInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown apply scope %q", ErrCouponInvalidInput, coupon.ApplyTo)
	}
	if coupon.UsageLimit < 0 {
		return fmt.Errorf("%w: usage limit cannot be negative", ErrCouponInvalidInput)
	}
	return nil
}
