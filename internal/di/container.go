package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/config"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/observability"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog services.CatalogService
	Offers  services.OfferService
	Pricing services.PricingService
	Cart    services.CartService
	Orders  services.OrderService
	Coupons services.CouponService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerOption customises container construction.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	logger *zap.Logger
	events services.OrderEventPublisher
	clock  func() time.Time
}

// WithLogger supplies the fallback logger used by the service layer.
func WithLogger(logger *zap.Logger) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.logger = logger
	}
}

// WithOrderEvents supplies the publisher for order lifecycle events.
func WithOrderEvents(events services.OrderEventPublisher) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.events = events
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.clock = clock
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry, while tests can supply in-memory registries.
func NewContainer(_ context.Context, cfg config.Config, reg repositories.Registry, opts ...ContainerOption) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	cc := containerConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cc)
		}
	}

	svc, err := buildServices(cfg, reg, cc)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, cc containerConfig) (Services, error) {
	var svc Services

	logger := observability.ServiceLogger(cc.logger)

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Logger:   logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	offerSvc, err := services.NewOfferService(services.OfferServiceDeps{
		Offers:  reg.Offers(),
		Enabled: cfg.Features.EnableOffers,
		Logger:  logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build offer service: %w", err)
	}
	svc.Offers = offerSvc

	pricingSvc, err := services.NewPricingService(services.PricingServiceDeps{
		Offers: offerSvc,
		Logger: logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing service: %w", err)
	}
	svc.Pricing = pricingSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Pricing:  pricingSvc,
		Clock:    cc.clock,
		Logger:   logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		Pricing:    pricingSvc,
		UnitOfWork: reg,
		Clock:      cc.clock,
		Events:     cc.events,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	couponSvc, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: reg.Coupons(),
		Enabled: cfg.Features.EnableCoupons,
		Clock:   cc.clock,
		Logger:  logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = couponSvc

	return svc, nil
}
