package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
)

// EventPublisher delivers order events to downstream consumers.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type Service interface {
	CreateOrder(ctx context.Context, caller auth.Caller, input *Order) (*Order, error)
	GetOrderByID(ctx context.Context, caller auth.Caller, id string) (*Order, error)
	ApplyBulkAction(ctx context.Context, caller auth.Caller, req BulkRequest) (*BulkResult, error)
}

type service struct {
	orderRepo     Repository
	ownership     OwnershipPolicy
	events        EventPublisher
	maxBulkOrders int
	now           func() time.Time
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

// NewService wires the order service. events may be nil. maxBulkOrders <= 0
// disables the batch size limit.
func NewService(orderRepo Repository, shops ShopChecker, events EventPublisher, maxBulkOrders int) Service {
	if events == nil {
		events = nopPublisher{}
	}
	return &service{
		orderRepo:     orderRepo,
		ownership:     NewOwnershipPolicy(shops),
		events:        events,
		maxBulkOrders: maxBulkOrders,
		now:           time.Now,
	}
}

func (s *service) CreateOrder(ctx context.Context, caller auth.Caller, input *Order) (*Order, error) {
	if input.ShopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidOrder)
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be greater than zero, got %s", ErrInvalidOrder, input.Amount)
	}

	id, err := uuid.NewV4()
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate order ID")
		return nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	now := s.now().UTC()
	o := &Order{
		ID:        id.String(),
		ShopID:    input.ShopID,
		UserID:    caller.UID,
		Status:    StatusPending,
		Amount:    input.Amount,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOrderID) {
			return nil, ErrDuplicateOrderID
		}
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Str("order_id", o.ID).Str("user_id", o.UserID).Str("shop_id", o.ShopID).Msg("service: order created")

	return o, nil
}

func (s *service) GetOrderByID(ctx context.Context, caller auth.Caller, id string) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	// Customers see their own orders only; anything else looks absent.
	if caller.Role == auth.RoleUser {
		if o.UserID != caller.UID {
			return nil, ErrOrderNotFound
		}
		return o, nil
	}

	allowed, err := s.ownership.CanActOn(ctx, caller, o)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if !allowed {
		return nil, ErrForbidden
	}

	return o, nil
}
