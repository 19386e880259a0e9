package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/order"
)

type BulkActionRequest struct {
	Action   string          `json:"action" validate:"required"`
	OrderIDs []string        `json:"orderIds" validate:"required,min=1"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type BulkActionResponse struct {
	Success bool               `json:"success"`
	Results []order.ItemResult `json:"results"`
	Summary order.Summary      `json:"summary"`
}

type CreateOrderRequest struct {
	ShopID string          `json:"shop_id" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes expects auth.Middleware to run in front of router.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/bulk", h.handleBulkAction)
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders/{id}", h.handleGetOrderByID)
}

func (h *OrderHandler) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// Role is checked before the body is even read.
	if !order.CanBulkAct(caller.Role) {
		log.Warn().Str("user_id", caller.UID).Stringer("role", caller.Role).Msg("handler: bulk action forbidden for role")
		respondWithError(w, http.StatusForbidden, order.ErrForbidden.Error())
		return
	}

	var requestPayload BulkActionRequest
	if err := decodeJSON(r, &requestPayload); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode bulk action request")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err, bulkValidationMessage)
		return
	}

	action, err := order.ParseAction(requestPayload.Action)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := order.DecodePayload(action, requestPayload.Data)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ApplyBulkAction(r.Context(), caller, order.BulkRequest{
		Action:   action,
		OrderIDs: requestPayload.OrderIDs,
		Payload:  payload,
	})
	if err != nil {
		log.Error().Err(err).Stringer("action", action).Msg("handler: bulk action failed")
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, BulkActionResponse{
		Success: true,
		Results: result.Results,
		Summary: result.Summary,
	})
}

func bulkValidationMessage(fe validator.FieldError) string {
	if jsonFieldName(fe) == "action" {
		return "action is required"
	}
	return order.ErrEmptyOrderIDs.Error()
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var requestPayload CreateOrderRequest
	if err := decodeJSON(r, &requestPayload); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode create order request")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err, func(validator.FieldError) string { return "Validation failed" })
		return
	}

	created, err := h.service.CreateOrder(r.Context(), caller, &order.Order{
		ShopID: requestPayload.ShopID,
		Amount: requestPayload.Amount,
	})
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to create order")
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), caller, id)
	if err != nil {
		log.Warn().Err(err).Str("order_id", id).Msg("handler: failed to get order")
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}
