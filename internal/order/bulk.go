package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
)

type BulkRequest struct {
	Action   Action
	OrderIDs []string
	Payload  Payload
}

type ItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type BulkResult struct {
	Results []ItemResult `json:"results"`
	Summary Summary      `json:"summary"`
}

// ApplyBulkAction applies req.Action to every order independently and in
// input order. Only the role gate and request validation fail the whole
// call; everything after that is reported per item. Nothing is rolled back.
func (s *service) ApplyBulkAction(ctx context.Context, caller auth.Caller, req BulkRequest) (*BulkResult, error) {
	if !CanBulkAct(caller.Role) {
		log.Warn().Str("user_id", caller.UID).Stringer("role", caller.Role).Msg("service: bulk action rejected by role policy")
		return nil, ErrForbidden
	}
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if len(req.OrderIDs) == 0 {
		return nil, ErrEmptyOrderIDs
	}
	if s.maxBulkOrders > 0 && len(req.OrderIDs) > s.maxBulkOrders {
		return nil, fmt.Errorf("%w: got %d, limit is %d", ErrTooManyOrders, len(req.OrderIDs), s.maxBulkOrders)
	}

	results := make([]ItemResult, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		results = append(results, s.applyOne(ctx, caller, req, id))
	}

	summary := summarize(results)
	log.Info().
		Str("user_id", caller.UID).
		Stringer("action", req.Action).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("service: bulk action processed")

	return &BulkResult{Results: results, Summary: summary}, nil
}

func (s *service) applyOne(ctx context.Context, caller auth.Caller, req BulkRequest, id string) (result ItemResult) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("order_id", id).Msg("service: panic recovered while processing order")
			result = failed(id, fmt.Sprint(p))
		}
	}()

	if id == "" {
		return failed(id, msgOrderNotFound)
	}

	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return failed(id, msgOrderNotFound)
		}
		return failed(id, err.Error())
	}

	allowed, err := s.ownership.CanActOn(ctx, caller, current)
	if err != nil {
		return failed(id, err.Error())
	}
	if !allowed {
		return failed(id, msgNotAuthorized)
	}

	if rule, ok := RuleFor(req.Action); ok && !rule.Allows(current.Status) {
		return failed(id, rule.Message)
	}

	event := OrderEvent{
		Type:           "order." + req.Action.String(),
		OrderID:        id,
		ShopID:         current.ShopID,
		Action:         req.Action,
		PreviousStatus: current.Status,
		ActorID:        caller.UID,
	}

	if req.Action == ActionDelete {
		if err := s.orderRepo.Delete(ctx, id); err != nil {
			return storeFailure(id, err)
		}
		event.OccurredAt = s.now().UTC()
		s.publish(ctx, event)
		return ItemResult{ID: id, Success: true}
	}

	now := s.now()
	fields, ok := BuildUpdate(req.Action, now, current, req.Payload)
	if !ok {
		return failed(id, msgUpdateDataRequired)
	}

	if err := s.orderRepo.Update(ctx, id, fields); err != nil {
		return storeFailure(id, err)
	}

	event.Status = current.Status
	if status, ok := fields[FieldStatus].(Status); ok {
		event.Status = status
	}
	event.OccurredAt = now.UTC()
	s.publish(ctx, event)

	return ItemResult{ID: id, Success: true}
}

// publish runs after the write is committed, so a failure only gets logged.
func (s *service) publish(ctx context.Context, event OrderEvent) {
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("order_id", event.OrderID).Str("event_type", event.Type).Msg("service: failed to publish order event")
	}
}

func failed(id, message string) ItemResult {
	return ItemResult{ID: id, Success: false, Error: message}
}

func storeFailure(id string, err error) ItemResult {
	if errors.Is(err, ErrOrderNotFound) {
		return failed(id, msgOrderNotFound)
	}
	log.Error().Err(err).Str("order_id", id).Msg("service: failed to write order")
	return failed(id, err.Error())
}

func summarize(results []ItemResult) Summary {
	summary := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}
