package httphandler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/krispingal/regbridge/internal/domain"
	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

type Registerer interface {
	Handle(ctx context.Context, clientIP string, req domain.RegistrationRequest) domain.Outcome
}

type HealthProber interface {
	Healthy(ctx context.Context) error
}

type RegistrationHandler struct {
	registerer  Registerer
	prober      HealthProber
	proxyHeader string
	logger      *zap.Logger
}

func NewRegistrationHandler(registerer Registerer, prober HealthProber, proxyHeader string, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		registerer:  registerer,
		prober:      prober,
		proxyHeader: proxyHeader,
		logger:      logger,
	}
}

// HandleRegistration serves POST /registration with a form-encoded body.
// username, password and token must be present; passwordConfirmation may be omitted.
func (h *RegistrationHandler) HandleRegistration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form body", http.StatusBadRequest)
		return
	}
	form := r.PostForm
	for _, field := range []string{"username", "password", "token"} {
		if !form.Has(field) {
			http.Error(w, "Failed to deserialize form body: missing field `"+field+"`", http.StatusUnprocessableEntity)
			return
		}
	}

	req := domain.RegistrationRequest{
		Username:             form.Get("username"),
		Password:             form.Get("password"),
		PasswordConfirmation: form.Get("passwordConfirmation"),
		Token:                form.Get("token"),
	}
	outcome := h.registerer.Handle(r.Context(), ClientIP(r, h.proxyHeader), req)
	h.writeJSON(w, outcome.State.HTTPStatus(), outcome)
}

// HandleHealth serves GET /healthz by probing the homeserver.
func (h *RegistrationHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.prober.Healthy(ctx); err != nil {
		h.logger.Warn("Homeserver health check failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *RegistrationHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", zap.Int("status", status), zap.Error(err))
	}
}
