package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/handler"
)

type RouterDeps struct {
	Sessions auth.SessionStore
	Orders   *handler.OrderHandler
	OTP      *handler.OTPHandler
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	deps.OTP.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Sessions))
		deps.Orders.RegisterRoutes(r)
	})

	return r
}
