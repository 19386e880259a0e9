package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Middleware rejects requests without a valid bearer token and stores the
// resolved Caller in the request context.
func Middleware(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeUnauthorized(w, "Unauthorized")
				return
			}

			caller, err := store.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnauthenticated) {
					log.Warn().Err(err).Str("path", r.URL.Path).Msg("auth: rejected request")
					writeUnauthorized(w, "Unauthorized")
					return
				}

				log.Error().Err(err).Msg("auth: session lookup failed")
				writeJSON(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="order-service"`)
	writeJSON(w, http.StatusUnauthorized, message)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, message string) {
	body, err := json.Marshal(errorBody{Error: message})
	if err != nil {
		log.Error().Err(err).Msg("auth: failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Int("status", status).Msg("auth: failed to write response")
	}
}
