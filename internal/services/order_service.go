package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

const (
	orderEventPlaced        = "order.placed"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderIDPrefix = "ord_"
	eventIDPrefix = "evt_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor may not act on this order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the order changed concurrently.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderCartEmpty indicates placement was attempted with an empty cart.
	ErrOrderCartEmpty = errors.New("order: cart is empty")
	// ErrOrderProductUnavailable indicates a cart line references a vanished product or variant.
	ErrOrderProductUnavailable = errors.New("order: product unavailable")
	// ErrOrderShippingRegion indicates a product does not ship to the destination region.
	ErrOrderShippingRegion = errors.New("order: shipping region mismatch")
	// ErrOrderInsufficientStock indicates requested quantity exceeds availability.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderTimeout indicates the transaction deadline expired; no partial
	// state was written and the request is safe to retry.
	ErrOrderTimeout = errors.New("order: storage timeout")
)

// orderStateTransitions defines the admin-driven lifecycle. Cancelled orders
// may be reinstated, which re-deducts stock transactionally.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered:  {domain.OrderStatusCancelled},
	domain.OrderStatusCancelled:  {domain.OrderStatusPending, domain.OrderStatusProcessing},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Pricing     PricingService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	pricing    PricingService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		carts:      deps.Carts,
		products:   deps.Products,
		pricing:    deps.Pricing,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// PlaceOrder converts the actor's cart into an order. Offer discounts are
// resolved here, outside the transaction, and handed to the repository as
// percentages keyed by cart line; the repository applies them against the
// transactionally re-read prices so snapshot and stock stay consistent.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.Actor.ID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return domain.Order{}, err
	}

	now := s.now()

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, fmt.Errorf("%w: no cart for user", ErrOrderCartEmpty)
		}
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if len(cart.Lines) == 0 {
		return domain.Order{}, fmt.Errorf("%w: no lines in cart", ErrOrderCartEmpty)
	}

	discounts, offerIDs, err := s.resolveDiscounts(ctx, cart.Lines, now)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = s.runInTx(ctx, func(ctx context.Context) error {
		placed, err := s.orders.PlaceOrder(ctx, repositories.PlaceOrderRequest{
			OrderID:         s.nextOrderID(),
			Number:          s.generateOrderNumber(now),
			UserID:          userID,
			Region:          strings.TrimSpace(cmd.ShippingAddress.Region),
			ShippingAddress: cmd.ShippingAddress,
			Discounts:       discounts,
			OfferIDs:        offerIDs,
			Now:             now,
		})
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventID:    s.nextEventID(),
		Kind:       orderEventPlaced,
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if !actor.Admin && order.UserID != strings.TrimSpace(actor.ID) {
		return domain.Order{}, fmt.Errorf("%w: order belongs to another user", ErrOrderForbidden)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		uid = strings.TrimSpace(actor.ID)
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if !actor.Admin && uid != strings.TrimSpace(actor.ID) {
		return nil, fmt.Errorf("%w: cannot list another user's orders", ErrOrderForbidden)
	}

	orders, err := s.orders.ListByUser(ctx, uid, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// TransitionStatus moves an order along the lifecycle. Only admins may drive
// transitions; owners cancel through CancelOrder.
func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionOrderCommand) (domain.Order, error) {
	if !cmd.Actor.Admin {
		return domain.Order{}, fmt.Errorf("%w: status transitions require admin", ErrOrderForbidden)
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !validOrderStatus(cmd.Target) {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	return s.transition(ctx, order, cmd.Target)
}

// CancelOrder lets the owner cancel an order that is still pending. Admins may
// cancel from any state through TransitionStatus.
func (s *orderService) CancelOrder(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if !actor.Admin {
		if order.UserID != strings.TrimSpace(actor.ID) {
			return domain.Order{}, fmt.Errorf("%w: order belongs to another user", ErrOrderForbidden)
		}
		if order.Status != domain.OrderStatusPending {
			return domain.Order{}, fmt.Errorf("%w: only pending orders can be cancelled by their owner", ErrOrderInvalidState)
		}
	}

	return s.transition(ctx, order, domain.OrderStatusCancelled)
}

func (s *orderService) transition(ctx context.Context, order domain.Order, target domain.OrderStatus) (domain.Order, error) {
	current := order.Status
	if current == target {
		return order, nil
	}
	if !canTransition(current, target) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, current, target)
	}

	now := s.now()
	updated := order
	applyStatusTransition(&updated, target, now)

	saved, err := s.orders.UpdateStatus(ctx, repositories.OrderStatusUpdateRequest{
		Order:          updated,
		ExpectedStatus: current,
		Now:            now,
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	kind := orderEventStatusChanged
	if target == domain.OrderStatusCancelled {
		kind = orderEventCancelled
	}
	s.publishEvent(ctx, OrderEventMessage{
		EventID:        s.nextEventID(),
		Kind:           kind,
		OrderID:        saved.ID,
		Number:         saved.Number,
		UserID:         saved.UserID,
		Status:         string(saved.Status),
		PreviousStatus: string(current),
		Total:          saved.Total,
		OccurredAt:     now,
	})

	return saved, nil
}

// resolveDiscounts quotes each distinct product once and maps the winning
// discount onto every cart line it covers. Lines for vanished products are
// left unmapped; the placement transaction decides their fate.
func (s *orderService) resolveDiscounts(ctx context.Context, lines []domain.CartLine, now time.Time) (map[string]float64, map[string]string, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if id := strings.TrimSpace(line.ProductID); id != "" {
			ids = append(ids, id)
		}
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, s.mapRepositoryError(err)
	}

	discounts := make(map[string]float64, len(lines))
	offerIDs := make(map[string]string, len(lines))
	for _, line := range lines {
		product, ok := products[strings.TrimSpace(line.ProductID)]
		if !ok {
			continue
		}
		quote, err := s.pricing.Quote(ctx, product, line.VariantID, now)
		if err != nil {
			if errors.Is(err, ErrVariantNotFound) {
				continue
			}
			return nil, nil, err
		}
		if quote.DiscountPercent <= 0 {
			continue
		}
		key := line.Key()
		discounts[key] = quote.DiscountPercent
		offerIDs[key] = quote.OfferID
	}
	return discounts, offerIDs, nil
}

// applyStatusTransition mutates the order for the target status. Crossing the
// delivered or cancelled boundary in either direction keeps the marker fields
// consistent with the current status.
func applyStatusTransition(order *domain.Order, target domain.OrderStatus, now time.Time) {
	prev := order.Status
	order.Status = target
	order.UpdatedAt = now

	if target == domain.OrderStatusDelivered {
		order.IsDelivered = true
		order.DeliveredAt = valuePtr(now)
	} else if prev == domain.OrderStatusDelivered {
		order.IsDelivered = false
		order.DeliveredAt = nil
	}

	if target == domain.OrderStatusCancelled {
		order.CancelledAt = valuePtr(now)
	} else if prev == domain.OrderStatusCancelled {
		order.CancelledAt = nil
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorNotFound:
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repositories.OrderErrorCartEmpty:
			return fmt.Errorf("%w: %v", ErrOrderCartEmpty, err)
		case repositories.OrderErrorProductNotFound:
			return fmt.Errorf("%w: %v", ErrOrderProductUnavailable, err)
		case repositories.OrderErrorShippingRegionMismatch:
			return fmt.Errorf("%w: %v", ErrOrderShippingRegion, err)
		case repositories.OrderErrorInsufficientStock:
			return fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
		case repositories.OrderErrorStatusConflict:
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsTimeout():
			return fmt.Errorf("%w: %v", ErrOrderTimeout, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) nextEventID() string {
	return eventIDPrefix + s.newID()
}

func (s *orderService) generateOrderNumber(now time.Time) string {
	suffix := s.newID()
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("ORD-%04d-%s", now.Year(), suffix)
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"kind":   message.Kind,
			"order":  message.OrderID,
			"error":  err.Error(),
			"status": message.Status,
		})
	}
}

func validateShippingAddress(addr domain.ShippingAddress) error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(addr.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(addr.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.Region) == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address missing %s", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func valuePtr[T any](v T) *T {
	return &v
}
