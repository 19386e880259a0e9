package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/handler"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/otp"
)

type MockOTPService struct {
	mock.Mock
}

func (m *MockOTPService) Send(ctx context.Context, subject string) error {
	return m.Called(ctx, subject).Error(0)
}

func (m *MockOTPService) Verify(ctx context.Context, subject, code string) error {
	return m.Called(ctx, subject, code).Error(0)
}

func newOTPRouter(svc handler.OTPService) http.Handler {
	r := chi.NewRouter()
	handler.NewOTPHandler(svc).RegisterRoutes(r)
	return r
}

func TestOTPHandler_Send(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		callsSvc   bool
		wantStatus int
	}{
		{name: "sent", body: `{"subject":"user@example.com"}`, callsSvc: true, wantStatus: http.StatusOK},
		{name: "rate limited", body: `{"subject":"user@example.com"}`, serviceErr: otp.ErrRateLimited, callsSvc: true, wantStatus: http.StatusTooManyRequests},
		{name: "redis down", body: `{"subject":"user@example.com"}`, serviceErr: errors.New("dial tcp: refused"), callsSvc: true, wantStatus: http.StatusInternalServerError},
		{name: "missing subject", body: `{}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOTPService)
			if tt.callsSvc {
				mockService.On("Send", mock.Anything, "user@example.com").Return(tt.serviceErr).Once()
			}

			rr := doRequest(t, newOTPRouter(mockService), http.MethodPost, "/otp/send", tt.body)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"success":true}`, rr.Body.String())
			} else {
				decodeError(t, rr)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestOTPHandler_Verify(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		serviceErr  error
		callsSvc    bool
		wantStatus  int
		wantMessage string
	}{
		{name: "verified", body: `{"subject":"u@example.com","code":"123456"}`, callsSvc: true, wantStatus: http.StatusOK},
		{name: "wrong code", body: `{"subject":"u@example.com","code":"123456"}`, serviceErr: otp.ErrInvalidCode, callsSvc: true, wantStatus: http.StatusBadRequest, wantMessage: "invalid code"},
		{name: "expired", body: `{"subject":"u@example.com","code":"123456"}`, serviceErr: otp.ErrCodeExpired, callsSvc: true, wantStatus: http.StatusGone},
		{name: "locked", body: `{"subject":"u@example.com","code":"123456"}`, serviceErr: otp.ErrTooManyAttempts, callsSvc: true, wantStatus: http.StatusTooManyRequests},
		{name: "non numeric", body: `{"subject":"u@example.com","code":"12ab56"}`, wantStatus: http.StatusBadRequest, wantMessage: "code must be numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOTPService)
			if tt.callsSvc {
				mockService.On("Verify", mock.Anything, "u@example.com", "123456").Return(tt.serviceErr).Once()
			}

			rr := doRequest(t, newOTPRouter(mockService), http.MethodPost, "/otp/verify", tt.body)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, decodeError(t, rr).Error)
			}
			mockService.AssertExpectations(t)
		})
	}
}
