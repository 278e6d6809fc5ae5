package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter wires the bridge endpoints behind the common middleware stack.
func NewRouter(h *RegistrationHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(logger, h.proxyHeader))
	r.Use(middleware.Recoverer)

	r.Post("/registration", h.HandleRegistration)
	r.Get("/healthz", h.HandleHealth)
	return r
}
