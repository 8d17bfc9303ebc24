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
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartEmpty indicates an operation requires at least one valid line.
	ErrCartEmpty = errors.New("cart: empty")
	// ErrCartConflict indicates a concurrent modification clashed with the write.
	ErrCartConflict = errors.New("cart: conflict")
	// ErrCartLineUnavailable indicates the referenced product or variant does not exist.
	ErrCartLineUnavailable = errors.New("cart: line unavailable")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Pricing  PricingService
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	pricing  PricingService
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("cart service: pricing service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		pricing:  deps.Pricing,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, ok, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}
	if !ok {
		return CartView{Cart: domain.Cart{UserID: uid}}, nil
	}
	return s.buildView(ctx, cart)
}

func (s *cartService) AddLine(ctx context.Context, cmd AddCartLineCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return CartView{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	cart, existed, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}
	if !existed {
		cart = domain.Cart{UserID: uid}
	}

	cart.Lines = append(cart.Lines, domain.CartLine{
		ProductID: productID,
		VariantID: strings.TrimSpace(cmd.VariantID),
		Quantity:  cmd.Quantity,
	})

	return s.saveConsolidated(ctx, cart, existed, true)
}

func (s *cartService) RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, existed, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}
	if !existed {
		return CartView{Cart: domain.Cart{UserID: uid}}, nil
	}

	key := domain.CartLine{ProductID: strings.TrimSpace(cmd.ProductID), VariantID: strings.TrimSpace(cmd.VariantID)}.Key()
	kept := cart.Lines[:0]
	for _, line := range cart.Lines {
		if line.Key() != key {
			kept = append(kept, line)
		}
	}
	cart.Lines = kept

	return s.saveConsolidated(ctx, cart, existed, false)
}

func (s *cartService) MergeCarts(ctx context.Context, cmd MergeCartsCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, existed, err := s.loadCart(ctx, uid)
	if err != nil {
		return CartView{}, err
	}
	if !existed {
		cart = domain.Cart{UserID: uid}
	}

	usable := 0
	for _, line := range cmd.Lines {
		if line.Quantity <= 0 || strings.TrimSpace(line.ProductID) == "" {
			continue
		}
		usable++
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: strings.TrimSpace(line.ProductID),
			VariantID: strings.TrimSpace(line.VariantID),
			Quantity:  line.Quantity,
		})
	}
	if usable == 0 {
		return CartView{}, fmt.Errorf("%w: merge requires at least one usable line", ErrCartEmpty)
	}

	return s.saveConsolidated(ctx, cart, existed, false)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.DeleteCart(ctx, uid); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) loadCart(ctx context.Context, userID string) (domain.Cart, bool, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{}, false, nil
		}
		return domain.Cart{}, false, s.mapRepositoryError(err)
	}
	return cart, true, nil
}

// saveConsolidated folds duplicate lines, drops vanished products, reprices,
// and persists with an optimistic precondition against the loaded revision.
// strict toggles whether an unavailable line is an error (adds) or silently
// dropped (merges, removals, reads).
func (s *cartService) saveConsolidated(ctx context.Context, cart domain.Cart, existed bool, strict bool) (CartView, error) {
	consolidated, products, err := s.consolidate(ctx, cart.Lines, strict)
	if err != nil {
		return CartView{}, err
	}
	cart.Lines = consolidated

	view, err := s.buildViewWithProducts(ctx, cart, products)
	if err != nil {
		return CartView{}, err
	}
	cart.Subtotal = view.Subtotal

	var expected *time.Time
	if existed && !cart.UpdatedAt.IsZero() {
		updatedAt := cart.UpdatedAt
		expected = &updatedAt
	}
	cart.UpdatedAt = s.clock()

	saved, err := s.carts.SaveCart(ctx, cart, expected)
	if err != nil {
		return CartView{}, s.mapRepositoryError(err)
	}
	view.Cart = saved
	return view, nil
}

// consolidate merges duplicate product/variant keys preserving first-seen
// order, drops non-positive quantities, and drops lines whose product or
// variant no longer exists in the catalog.
func (s *cartService) consolidate(ctx context.Context, lines []domain.CartLine, strict bool) ([]domain.CartLine, map[string]domain.Product, error) {
	merged := make([]domain.CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 || strings.TrimSpace(line.ProductID) == "" {
			continue
		}
		key := line.Key()
		if at, ok := index[key]; ok {
			merged[at].Quantity += line.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, line)
	}

	ids := make([]string, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, s.mapRepositoryError(err)
	}

	kept := make([]domain.CartLine, 0, len(merged))
	for _, line := range merged {
		product, ok := products[strings.TrimSpace(line.ProductID)]
		if ok && line.VariantID != "" {
			_, ok = product.Variant(line.VariantID)
		}
		if !ok {
			if strict {
				return nil, nil, fmt.Errorf("%w: %s", ErrCartLineUnavailable, line.Key())
			}
			s.logger(ctx, "cart.line.dropped", map[string]any{
				"product": line.ProductID,
				"variant": line.VariantID,
			})
			continue
		}
		kept = append(kept, line)
	}
	return kept, products, nil
}

func (s *cartService) buildView(ctx context.Context, cart domain.Cart) (CartView, error) {
	consolidated, products, err := s.consolidate(ctx, cart.Lines, false)
	if err != nil {
		return CartView{}, err
	}
	cart.Lines = consolidated
	return s.buildViewWithProducts(ctx, cart, products)
}

func (s *cartService) buildViewWithProducts(ctx context.Context, cart domain.Cart, products map[string]domain.Product) (CartView, error) {
	now := s.clock()
	view := CartView{
		Cart:  cart,
		Lines: make([]CartLineView, 0, len(cart.Lines)),
	}
	for _, line := range cart.Lines {
		product := products[strings.TrimSpace(line.ProductID)]
		quote, err := s.pricing.Quote(ctx, product, line.VariantID, now)
		if err != nil {
			return CartView{}, err
		}
		lineTotal := quote.UnitPrice * int64(line.Quantity)
		view.Lines = append(view.Lines, CartLineView{
			Line:      line,
			Product:   product,
			UnitPrice: quote.UnitPrice,
			Quote:     quote,
			LineTotal: lineTotal,
		})
		view.Subtotal += lineTotal
	}
	view.Cart.Subtotal = view.Subtotal
	return view, nil
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCartConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("cart: repository unavailable: %w", err)
		}
	}

	return err
}
