package services

import (
	"context"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

// Actor identifies the caller of a service operation.
type Actor struct {
	ID    string
	Admin bool
}

// CatalogService exposes read access to products.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListByCategory(ctx context.Context, category string, filter repositories.ProductListFilter) ([]domain.Product, error)
}

// OfferService resolves the discount offers applicable to a product.
type OfferService interface {
	// BestOffer returns the winning offer for the product at the given
	// instant, or ok=false when no offer applies.
	BestOffer(ctx context.Context, product domain.Product, now time.Time) (domain.Offer, bool, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Offer, error)
}

// PriceQuote is the resolved price for one product or variant.
type PriceQuote struct {
	UnitPrice       int64
	OriginalPrice   int64
	DiscountPercent float64
	OfferID         string
}

// PricingService resolves effective unit prices, applying the best active offer.
type PricingService interface {
	Quote(ctx context.Context, product domain.Product, variantID string, now time.Time) (PriceQuote, error)
}

// CartView is a cart enriched with resolved prices for presentation.
type CartView struct {
	Cart     domain.Cart
	Lines    []CartLineView
	Subtotal int64
}

// CartLineView pairs a cart line with its current price quote.
type CartLineView struct {
	Line      domain.CartLine
	Product   domain.Product
	UnitPrice int64
	Quote     PriceQuote
	LineTotal int64
}

// AddCartLineCommand adds quantity for one product/variant to a user's cart.
type AddCartLineCommand struct {
	UserID    string
	ProductID string
	VariantID string
	Quantity  int
}

// RemoveCartLineCommand removes one consolidated line from the cart.
type RemoveCartLineCommand struct {
	UserID    string
	ProductID string
	VariantID string
}

// MergeCartsCommand folds guest lines into the user's stored cart.
type MergeCartsCommand struct {
	UserID string
	Lines  []domain.CartLine
}

// CartService owns cart reads and mutations. Every mutation consolidates the
// stored lines before persisting.
type CartService interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddLine(ctx context.Context, cmd AddCartLineCommand) (CartView, error)
	RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (CartView, error)
	MergeCarts(ctx context.Context, cmd MergeCartsCommand) (CartView, error)
	ClearCart(ctx context.Context, userID string) error
}

// PlaceOrderCommand converts the actor's cart into an order.
type PlaceOrderCommand struct {
	Actor           Actor
	ShippingAddress domain.ShippingAddress
}

// TransitionOrderCommand moves an order to a new lifecycle status.
type TransitionOrderCommand struct {
	Actor   Actor
	OrderID string
	Target  domain.OrderStatus
}

// OrderService owns order placement and the status state machine.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, actor Actor, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, actor Actor, userID string, filter repositories.OrderListFilter) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, cmd TransitionOrderCommand) (domain.Order, error)
	CancelOrder(ctx context.Context, actor Actor, orderID string) (domain.Order, error)
}

// OrderEventMessage is the wire payload published for order lifecycle events.
type OrderEventMessage struct {
	EventID        string    `json:"event_id"`
	Kind           string    `json:"kind"`
	OrderID        string    `json:"order_id"`
	Number         string    `json:"number"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Total          int64     `json:"total"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// CouponQuote is the outcome of a successful coupon validation.
type CouponQuote struct {
	Coupon   domain.Coupon
	Discount int64
}

// ValidateCouponCommand checks a coupon against the actor's pending purchase.
type ValidateCouponCommand struct {
	Actor    Actor
	Code     string
	Subtotal int64
	// ProductIDs and Categories describe the purchase for scope checks.
	ProductIDs []string
	Categories []string
}

// RedeemCouponCommand validates and consumes one use of a coupon.
type RedeemCouponCommand struct {
	Actor      Actor
	Code       string
	Subtotal   int64
	ProductIDs []string
	Categories []string
}

// CouponService validates and redeems coupons, plus admin lifecycle management.
type CouponService interface {
	Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponQuote, error)
	Redeem(ctx context.Context, cmd RedeemCouponCommand) (CouponQuote, error)

	CreateCoupon(ctx context.Context, actor Actor, coupon domain.Coupon) (domain.Coupon, error)
	UpdateCoupon(ctx context.Context, actor Actor, coupon domain.Coupon) (domain.Coupon, error)
	DeleteCoupon(ctx context.Context, actor Actor, code string) error
	ListCoupons(ctx context.Context, actor Actor, filter repositories.CouponListFilter) ([]domain.Coupon, error)
}
