package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type OTPService interface {
	Send(ctx context.Context, subject string) error
	Verify(ctx context.Context, subject, code string) error
}

type SendCodeRequest struct {
	Subject string `json:"subject" validate:"required"`
}

type VerifyCodeRequest struct {
	Subject string `json:"subject" validate:"required"`
	Code    string `json:"code" validate:"required,numeric"`
}

type OTPResponse struct {
	Success bool `json:"success"`
}

type OTPHandler struct {
	service  OTPService
	validate *validator.Validate
}

func NewOTPHandler(service OTPService) *OTPHandler {
	return &OTPHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *OTPHandler) RegisterRoutes(router chi.Router) {
	router.Post("/otp/send", h.handleSend)
	router.Post("/otp/verify", h.handleVerify)
}

func (h *OTPHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	var requestPayload SendCodeRequest
	if err := decodeJSON(r, &requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err, otpValidationMessage)
		return
	}

	if err := h.service.Send(r.Context(), requestPayload.Subject); err != nil {
		log.Warn().Err(err).Msg("handler: failed to send code")
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, OTPResponse{Success: true})
}

func (h *OTPHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var requestPayload VerifyCodeRequest
	if err := decodeJSON(r, &requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err, otpValidationMessage)
		return
	}

	if err := h.service.Verify(r.Context(), requestPayload.Subject, requestPayload.Code); err != nil {
		log.Warn().Err(err).Msg("handler: code verification failed")
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, OTPResponse{Success: true})
}

func otpValidationMessage(fe validator.FieldError) string {
	return jsonFieldName(fe) + " " + describe(fe)
}
