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
	orderCollection = "orders"

	defaultOrderListLimit = 50
	maxOrderListLimit     = 200
)

// OrderRepository persists orders in Firestore. Placement and status updates
// run inside transactions so stock counters, cart deletion, and the order
// document always move together.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[productDocument]
	carts    *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
		products: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
		carts:    pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil),
		provider: provider,
	}, nil
}

// PlaceOrder converts the user's cart into an order inside one transaction.
// Product prices and stock counters are re-read transactionally so the order
// snapshot reflects the same instant the stock is decremented. The cart is
// deleted in the same transaction.
func (r *OrderRepository) PlaceOrder(ctx context.Context, req repositories.PlaceOrderRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Order{}, errors.New("order repository: user id is required")
	}
	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var placed domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, err := r.carts.DocumentRef(ctx, userID)
		if err != nil {
			return err
		}
		cartSnap, err := tx.Get(cartRef)
		if status.Code(err) == codes.NotFound {
			return repositories.NewOrderError(repositories.OrderErrorCartEmpty, "cart is empty", err)
		}
		if err != nil {
			return err
		}
		var cartDoc cartDocument
		if err := cartSnap.DataTo(&cartDoc); err != nil {
			return fmt.Errorf("decode cart %s: %w", userID, err)
		}
		if len(cartDoc.Lines) == 0 {
			return repositories.NewOrderError(repositories.OrderErrorCartEmpty, "cart is empty", nil)
		}

		// All reads must precede writes, so products are loaded and mutated
		// in memory first.
		productDocs := make(map[string]*productDocument)
		productRefs := make(map[string]*firestore.DocumentRef)
		loadProduct := func(productID string) (*productDocument, error) {
			if doc, ok := productDocs[productID]; ok {
				return doc, nil
			}
			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return nil, err
			}
			snap, err := tx.Get(ref)
			if status.Code(err) == codes.NotFound {
				return nil, repositories.NewOrderError(repositories.OrderErrorProductNotFound,
					fmt.Sprintf("product %s not found", productID), err)
			}
			if err != nil {
				return nil, err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return nil, fmt.Errorf("decode product %s: %w", productID, err)
			}
			productDocs[productID] = &doc
			productRefs[productID] = ref
			return &doc, nil
		}

		lines := make([]domain.OrderLine, 0, len(cartDoc.Lines))
		var subtotal int64
		var shippingCost int64
		deliveryDays := 0
		shippedProducts := make(map[string]struct{})

		for _, cartLine := range cartDoc.Lines {
			productID := strings.TrimSpace(cartLine.ProductID)
			if productID == "" || cartLine.Quantity <= 0 {
				continue
			}

			doc, err := loadProduct(productID)
			if err != nil {
				return err
			}
			product := productFromDocument(productID, *doc)

			if !product.ShipsTo(req.Region) {
				return repositories.NewOrderError(repositories.OrderErrorShippingRegionMismatch,
					fmt.Sprintf("product %s does not ship to %s", productID, strings.TrimSpace(req.Region)), nil)
			}

			line := domain.CartLine{ProductID: productID, VariantID: strings.TrimSpace(cartLine.VariantID), Quantity: cartLine.Quantity}
			basePrice := product.Price
			name := product.Name

			if line.VariantID != "" {
				variant, ok := product.Variant(line.VariantID)
				if !ok {
					return repositories.NewOrderError(repositories.OrderErrorProductNotFound,
						fmt.Sprintf("variant %s not found on product %s", line.VariantID, productID), nil)
				}
				if variant.Quantity < line.Quantity {
					return repositories.NewOrderError(repositories.OrderErrorInsufficientStock,
						fmt.Sprintf("insufficient stock for product %s variant %s", productID, line.VariantID), nil)
				}
				if variant.Price > 0 {
					basePrice = variant.Price
				}
				if variant.Name != "" {
					name = fmt.Sprintf("%s (%s)", product.Name, variant.Name)
				}
				decrementVariant(doc, line.VariantID, line.Quantity)
			} else {
				if product.Stock < line.Quantity {
					return repositories.NewOrderError(repositories.OrderErrorInsufficientStock,
						fmt.Sprintf("insufficient stock for product %s", productID), nil)
				}
				doc.Stock -= line.Quantity
			}

			percent := req.Discounts[line.Key()]
			unitPrice := domain.ApplyDiscountPercent(basePrice, percent)

			lines = append(lines, domain.OrderLine{
				ProductID:     productID,
				VariantID:     line.VariantID,
				Name:          name,
				Image:         product.Image,
				Supplier:      product.SupplierName,
				Quantity:      line.Quantity,
				UnitPrice:     unitPrice,
				OriginalPrice: basePrice,
				OfferID:       req.OfferIDs[line.Key()],
			})
			subtotal += unitPrice * int64(line.Quantity)

			if _, ok := shippedProducts[productID]; !ok {
				shippedProducts[productID] = struct{}{}
				shippingCost += product.ShippingCost
				if product.DeliveryDays > deliveryDays {
					deliveryDays = product.DeliveryDays
				}
			}
		}

		if len(lines) == 0 {
			return repositories.NewOrderError(repositories.OrderErrorCartEmpty, "cart is empty", nil)
		}

		order := domain.Order{
			ID:              orderID,
			Number:          strings.TrimSpace(req.Number),
			UserID:          userID,
			Status:          domain.OrderStatusPending,
			Lines:           lines,
			Subtotal:        subtotal,
			ShippingCost:    shippingCost,
			Total:           subtotal + shippingCost,
			DeliveryDays:    deliveryDays,
			ShippingAddress: req.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		orderRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, orderToDocument(order)); err != nil {
			return err
		}

		for productID, doc := range productDocs {
			doc.UpdatedAt = now
			if err := tx.Set(productRefs[productID], *doc); err != nil {
				return err
			}
		}

		if err := tx.Delete(cartRef); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.place", err)
	}
	return placed, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			wrapped := repositories.NewOrderError(repositories.OrderErrorNotFound, "order not found", err)
			wrapped.Op = "orders.get"
			return domain.Order{}, wrapped
		}
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("order repository: user id is required")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	if limit > maxOrderListLimit {
		limit = maxOrderListLimit
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", uid)
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		return q.Limit(limit)
	})
	if err != nil {
		return nil, pfirestore.WrapError("orders.list", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

// UpdateStatus writes a validated status transition. The transaction fails
// with a conflict when the stored status no longer matches ExpectedStatus.
// Entering cancelled restocks every line; leaving cancelled re-deducts stock
// and fails when it is no longer available.
func (r *OrderRepository) UpdateStatus(ctx context.Context, req repositories.OrderStatusUpdateRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.Order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var updated domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if status.Code(err) == codes.NotFound {
			return repositories.NewOrderError(repositories.OrderErrorNotFound, "order not found", err)
		}
		if err != nil {
			return err
		}
		var stored orderDocument
		if err := snap.DataTo(&stored); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		if domain.OrderStatus(stored.Status) != req.ExpectedStatus {
			return repositories.NewOrderError(repositories.OrderErrorStatusConflict,
				fmt.Sprintf("order status changed to %s", stored.Status), nil)
		}

		prev := domain.OrderStatus(stored.Status)
		target := req.Order.Status

		// Stock moves only when a transition crosses the cancelled boundary.
		restock := prev != domain.OrderStatusCancelled && target == domain.OrderStatusCancelled
		deduct := prev == domain.OrderStatusCancelled && target != domain.OrderStatusCancelled

		if restock || deduct {
			productDocs := make(map[string]*productDocument)
			productRefs := make(map[string]*firestore.DocumentRef)
			for _, line := range stored.Lines {
				productID := strings.TrimSpace(line.ProductID)
				if productID == "" || line.Quantity <= 0 {
					continue
				}
				doc, ok := productDocs[productID]
				if !ok {
					ref, err := r.products.DocumentRef(ctx, productID)
					if err != nil {
						return err
					}
					pSnap, err := tx.Get(ref)
					if status.Code(err) == codes.NotFound {
						// Product removed since placement; nothing to restock.
						continue
					}
					if err != nil {
						return err
					}
					var loaded productDocument
					if err := pSnap.DataTo(&loaded); err != nil {
						return fmt.Errorf("decode product %s: %w", productID, err)
					}
					doc = &loaded
					productDocs[productID] = doc
					productRefs[productID] = ref
				}

				delta := line.Quantity
				if deduct {
					delta = -delta
				}
				if err := applyStockDelta(doc, strings.TrimSpace(line.VariantID), delta); err != nil {
					return err
				}
			}

			for productID, doc := range productDocs {
				doc.UpdatedAt = now
				if err := tx.Set(productRefs[productID], *doc); err != nil {
					return err
				}
			}
		}

		order := req.Order
		order.ID = orderID
		order.UpdatedAt = now
		if err := tx.Set(orderRef, orderToDocument(order)); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.update_status", err)
	}
	return updated, nil
}

func decrementVariant(doc *productDocument, variantID string, quantity int) {
	for i := range doc.Variants {
		if doc.Variants[i].ID == variantID {
			doc.Variants[i].Quantity -= quantity
			return
		}
	}
}

func applyStockDelta(doc *productDocument, variantID string, delta int) error {
	if variantID == "" {
		next := doc.Stock + delta
		if next < 0 {
			return repositories.NewOrderError(repositories.OrderErrorInsufficientStock,
				"stock no longer available to reinstate order", nil)
		}
		doc.Stock = next
		return nil
	}
	for i := range doc.Variants {
		if doc.Variants[i].ID != variantID {
			continue
		}
		next := doc.Variants[i].Quantity + delta
		if next < 0 {
			return repositories.NewOrderError(repositories.OrderErrorInsufficientStock,
				"variant stock no longer available to reinstate order", nil)
		}
		doc.Variants[i].Quantity = next
		return nil
	}
	// Variant removed since placement; treat as a no-op restock target.
	if delta < 0 {
		return repositories.NewOrderError(repositories.OrderErrorInsufficientStock,
			"variant no longer exists on product", nil)
	}
	return nil
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:           id,
		Number:       doc.Number,
		UserID:       doc.UserID,
		Status:       domain.OrderStatus(doc.Status),
		Subtotal:     doc.Subtotal,
		ShippingCost: doc.ShippingCost,
		Total:        doc.Total,
		DeliveryDays: doc.DeliveryDays,
		IsDelivered:  doc.IsDelivered,
		ShippingAddress: domain.ShippingAddress{
			Name:       doc.ShippingAddress.Name,
			Line1:      doc.ShippingAddress.Line1,
			Line2:      doc.ShippingAddress.Line2,
			City:       doc.ShippingAddress.City,
			Region:     doc.ShippingAddress.Region,
			PostalCode: doc.ShippingAddress.PostalCode,
			Phone:      doc.ShippingAddress.Phone,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	order.DeliveredAt = optionalTime(doc.DeliveredAt)
	order.CancelledAt = optionalTime(doc.CancelledAt)
	if len(doc.Lines) > 0 {
		order.Lines = make([]domain.OrderLine, 0, len(doc.Lines))
		for _, line := range doc.Lines {
			order.Lines = append(order.Lines, domain.OrderLine{
				ProductID:     line.ProductID,
				VariantID:     line.VariantID,
				Name:          line.Name,
				Image:         line.Image,
				Supplier:      line.Supplier,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				OriginalPrice: line.OriginalPrice,
				OfferID:       line.OfferID,
			})
		}
	}
	return order
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:       strings.TrimSpace(order.Number),
		UserID:       strings.TrimSpace(order.UserID),
		Status:       string(order.Status),
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		DeliveryDays: order.DeliveryDays,
		IsDelivered:  order.IsDelivered,
		DeliveredAt:  order.DeliveredAt,
		CancelledAt:  order.CancelledAt,
		ShippingAddress: shippingAddressDocument{
			Name:       order.ShippingAddress.Name,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			Region:     order.ShippingAddress.Region,
			PostalCode: order.ShippingAddress.PostalCode,
			Phone:      order.ShippingAddress.Phone,
		},
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if len(order.Lines) > 0 {
		doc.Lines = make([]orderLineDocument, 0, len(order.Lines))
		for _, line := range order.Lines {
			doc.Lines = append(doc.Lines, orderLineDocument{
				ProductID:     line.ProductID,
				VariantID:     line.VariantID,
				Name:          line.Name,
				Image:         line.Image,
				Supplier:      line.Supplier,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				OriginalPrice: line.OriginalPrice,
				OfferID:       line.OfferID,
			})
		}
	}
	return doc
}

func optionalTime(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	utc := value.UTC()
	return &utc
}

type orderDocument struct {
	Number          string                  `firestore:"number"`
	UserID          string                  `firestore:"userId"`
	Status          string                  `firestore:"status"`
	Lines           []orderLineDocument     `firestore:"lines"`
	Subtotal        int64                   `firestore:"subtotal"`
	ShippingCost    int64                   `firestore:"shippingCost"`
	Total           int64                   `firestore:"total"`
	DeliveryDays    int                     `firestore:"deliveryDays,omitempty"`
	IsDelivered     bool                    `firestore:"isDelivered"`
	DeliveredAt     *time.Time              `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time              `firestore:"cancelledAt,omitempty"`
	ShippingAddress shippingAddressDocument `firestore:"shippingAddress"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

type orderLineDocument struct {
	ProductID     string `firestore:"productId"`
	VariantID     string `firestore:"variantId,omitempty"`
	Name          string `firestore:"name"`
	Image         string `firestore:"image,omitempty"`
	Supplier      string `firestore:"supplier,omitempty"`
	Quantity      int    `firestore:"quantity"`
	UnitPrice     int64  `firestore:"unitPrice"`
	OriginalPrice int64  `firestore:"originalPrice"`
	OfferID       string `firestore:"offerId,omitempty"`
}

type shippingAddressDocument struct {
	Name       string `firestore:"name"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
