package repositories

import (
	"context"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Offers() OfferRepository
	Carts() CartRepository
	Orders() OrderRepository
	Coupons() CouponRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
	IsTimeout() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository reads catalog products and their variants.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	ListByCategory(ctx context.Context, category string, filter ProductListFilter) ([]domain.Product, error)
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Limit  int
	Offset int
}

// OfferRepository reads time-windowed discount offers.
type OfferRepository interface {
	ListForProduct(ctx context.Context, productID string, category string, now time.Time) ([]domain.Offer, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Offer, error)
}

// CartRepository owns cart persistence with optimistic locking guarantees.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// OrderRepository persists orders with transactional stock accounting.
type OrderRepository interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, filter OrderListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, req OrderStatusUpdateRequest) (domain.Order, error)
}

// PlaceOrderRequest carries everything the repository needs to convert a cart
// into an order inside one transaction. Discounts and OfferIDs are keyed by
// cart line key; lines absent from Discounts receive no discount.
type PlaceOrderRequest struct {
	OrderID         string
	Number          string
	UserID          string
	Region          string
	ShippingAddress domain.ShippingAddress
	Discounts       map[string]float64
	OfferIDs        map[string]string
	Now             time.Time
}

// OrderStatusUpdateRequest applies a validated status transition. The
// transaction fails with a conflict when the stored status no longer matches
// ExpectedStatus.
type OrderStatusUpdateRequest struct {
	Order          domain.Order
	ExpectedStatus domain.OrderStatus
	Now            time.Time
}

// OrderListFilter narrows order history queries.
type OrderListFilter struct {
	Status domain.OrderStatus
	Limit  int
	Offset int
}

// CouponRepository persists coupons and their redemption ledger.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, filter CouponListFilter) ([]domain.Coupon, error)
	Create(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Update(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Delete(ctx context.Context, code string) error
	Redeem(ctx context.Context, req CouponRedeemRequest) (domain.Coupon, error)
}

// CouponRedeemRequest records a usage against the coupon ledger. The
// transaction re-checks the usage limit and per-user uniqueness before
// committing.
type CouponRedeemRequest struct {
	Code   string
	UserID string
	Now    time.Time
}

// CouponListFilter narrows coupon listings.
type CouponListFilter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
