package domain

import (
	"strings"
	"time"
)

// Product is a catalog entry carrying its own stock counter. Variant stock is
// embedded on the product document so a single transactional read covers every
// stock source for the product.
type Product struct {
	ID              string
	SKU             string
	Name            string
	Image           string
	Category        string
	Price           int64
	Stock           int
	ShippingCost    int64
	DeliveryDays    int
	ShippingRegion  string
	SupplierName    string
	SupplierContact string
	Variants        []ProductVariant
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Variant returns the embedded variant with the given ID.
func (p Product) Variant(variantID string) (ProductVariant, bool) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return ProductVariant{}, false
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// ShipsTo reports whether the product may be shipped to the given region.
// An empty restriction means the product ships anywhere.
func (p Product) ShipsTo(region string) bool {
	restriction := strings.TrimSpace(p.ShippingRegion)
	if restriction == "" {
		return true
	}
	return strings.EqualFold(restriction, strings.TrimSpace(region))
}

// ProductVariant is a sellable variation of a product with its own price and
// stock counter.
type ProductVariant struct {
	ID         string
	Name       string
	Price      int64
	Quantity   int
	Attributes map[string]string
}

// VariantAttributeKeys is the fixed set of attribute names a variant may carry.
var VariantAttributeKeys = []string{"color", "size", "material", "style"}

// NormalizeVariantAttributes trims and lower-cases attribute keys and drops
// any key outside VariantAttributeKeys. Returns nil when nothing survives.
func NormalizeVariantAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for key, value := range attrs {
		normalized := strings.ToLower(strings.TrimSpace(key))
		for _, allowed := range VariantAttributeKeys {
			if normalized == allowed {
				out[normalized] = strings.TrimSpace(value)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// OfferScope identifies what an offer discounts.
type OfferScope string

const (
	OfferScopeProduct  OfferScope = "product"
	OfferScopeCategory OfferScope = "category"
)

// Offer is a time-boxed percentage discount attached to a product or a
// category. Several offers may target the same reference.
type Offer struct {
	ID              string
	Scope           OfferScope
	RefID           string
	DiscountPercent float64
	StartsAt        time.Time
	EndsAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActiveAt reports whether the offer window covers the given instant.
func (o Offer) ActiveAt(now time.Time) bool {
	if o.StartsAt.After(now) {
		return false
	}
	if o.EndsAt != nil && o.EndsAt.Before(now) {
		return false
	}
	return true
}

// CouponType selects how a coupon's Discount field is interpreted.
type CouponType string

const (
	// CouponTypePercentage interprets Discount as whole percent off.
	CouponTypePercentage CouponType = "percentage"
	// CouponTypeFixed interprets Discount as minor currency units off.
	CouponTypeFixed CouponType = "fixed"
)

// CouponApplyTo scopes which purchases a coupon can discount.
type CouponApplyTo string

const (
	CouponApplyAll        CouponApplyTo = "all"
	CouponApplyCategories CouponApplyTo = "categories"
	CouponApplyProducts   CouponApplyTo = "products"
)

// Coupon is a redeemable discount code. The uppercase code doubles as the
// document identifier. UsedBy records every redeeming user exactly once.
type Coupon struct {
	Code       string
	Type       CouponType
	Discount   int64
	UsageLimit int
	UsedCount  int
	UsedBy     []string
	ApplyTo    CouponApplyTo
	Categories []string
	Products   []string
	Active     bool
	StartsAt   time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UsedByUser reports whether the user already redeemed the coupon.
func (c Coupon) UsedByUser(userID string) bool {
	userID = strings.TrimSpace(userID)
	for _, uid := range c.UsedBy {
		if uid == userID {
			return true
		}
	}
	return false
}

// LimitReached reports whether the usage limit has been exhausted.
// A zero limit means unlimited redemptions.
func (c Coupon) LimitReached() bool {
	return c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit
}

// CartLine references a product (and optionally one of its variants) with a
// requested quantity.
type CartLine struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Key identifies the consolidation identity of the line.
func (l CartLine) Key() string {
	return strings.TrimSpace(l.ProductID) + "|" + strings.TrimSpace(l.VariantID)
}

// Cart holds one user's pending lines. The user ID doubles as the document
// identifier so each user owns at most one cart.
type Cart struct {
	UserID    string
	Lines     []CartLine
	Subtotal  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderLine is an immutable snapshot of a purchased line taken at placement
// time. Later catalog edits never change it.
type OrderLine struct {
	ProductID     string
	VariantID     string
	Name          string
	Image         string
	Supplier      string
	Quantity      int
	UnitPrice     int64
	OriginalPrice int64
	OfferID       string
}

// ShippingAddress is the address snapshot stored on the order.
type ShippingAddress struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Phone      string
}

// Order is the persistent record of a placed order. Orders are never hard
// deleted; cancellation is a status.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Status          OrderStatus
	Lines           []OrderLine
	Subtotal        int64
	ShippingCost    int64
	Total           int64
	DeliveryDays    int
	IsDelivered     bool
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	ShippingAddress ShippingAddress
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
