package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/order"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/otp"
)

const msgInternalError = "Internal server error"

type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Success: false, Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// respondWithServiceError maps err to a status and hides the details of
// anything that ends up as a 500.
func respondWithServiceError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		respondWithError(w, code, msgInternalError)
		return
	}
	respondWithError(w, code, err.Error())
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrInvalidAction),
		errors.Is(err, order.ErrEmptyOrderIDs),
		errors.Is(err, order.ErrTooManyOrders),
		errors.Is(err, order.ErrInvalidPayload),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, otp.ErrInvalidSubject),
		errors.Is(err, otp.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrDuplicateOrderID):
		return http.StatusConflict
	case errors.Is(err, otp.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, otp.ErrRateLimited), errors.Is(err, otp.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// respondWithValidationError writes a 400 for validator failures. message is
// used as the top-level error so clients that only read "error" still get a
// meaningful string.
func respondWithValidationError(w http.ResponseWriter, err error, message func(validator.FieldError) string) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		log.Error().Err(err).Type("validation_error_type", err).Msg("handler: unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	details := formatValidationErrors(validationErrors)
	respondWithJSON(w, http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message(validationErrors[0]),
		Details: details,
	})
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[jsonFieldName(fe)] = describe(fe)
	}
	return details
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "numeric":
		return "must be numeric"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

// jsonFieldName relies on the validator being set up with tagNameFromJSON.
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(tagNameFromJSON)
	return validate
}

func tagNameFromJSON(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
