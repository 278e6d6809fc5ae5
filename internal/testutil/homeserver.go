package testutil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const RegisterPath = "/_synapse/admin/v1/register"

// Homeserver imitates the shared-secret registration endpoint of Synapse:
// single-use nonces, MAC verification and duplicate username detection.
type Homeserver struct {
	sharedSecret string
	logger       *zap.Logger

	mu               sync.Mutex
	nonces           map[string]struct{}
	users            map[string]string
	nonceStatus      int
	registerStatus   int
	nonceRequests    int
	registerRequests int
}

func NewHomeserver(sharedSecret string, logger *zap.Logger) *Homeserver {
	return &Homeserver{
		sharedSecret: sharedSecret,
		logger:       logger,
		nonces:       make(map[string]struct{}),
		users:        make(map[string]string),
	}
}

// FailNonce makes every nonce request answer with status.
func (h *Homeserver) FailNonce(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nonceStatus = status
}

// FailRegister makes every registration answer with status.
func (h *Homeserver) FailRegister(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registerStatus = status
}

// AddUser seeds an existing account.
func (h *Homeserver) AddUser(username, password string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users[username] = password
}

func (h *Homeserver) HasUser(username string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.users[username]
	return ok
}

func (h *Homeserver) NonceRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nonceRequests
}

func (h *Homeserver) RegisterRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registerRequests
}

// Handler returns the routes served by the fake homeserver.
func (h *Homeserver) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get(RegisterPath, h.handleNonce)
	r.Post(RegisterPath, h.handleRegister)
	return r
}

func (h *Homeserver) handleNonce(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.nonceRequests++
	if h.nonceStatus != 0 {
		status := h.nonceStatus
		h.mu.Unlock()
		h.writeError(w, status, "M_UNKNOWN", "nonce unavailable")
		return
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.mu.Unlock()
		h.writeError(w, http.StatusInternalServerError, "M_UNKNOWN", err.Error())
		return
	}
	nonce := hex.EncodeToString(buf)
	h.nonces[nonce] = struct{}{}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

type registerBody struct {
	Nonce    string `json:"nonce"`
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
	Mac      string `json:"mac"`
}

func (h *Homeserver) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "M_NOT_JSON", "invalid JSON")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.registerRequests++

	if h.registerStatus != 0 {
		h.writeError(w, h.registerStatus, "M_UNKNOWN", "registration unavailable")
		return
	}
	if _, ok := h.nonces[body.Nonce]; !ok {
		h.writeError(w, http.StatusBadRequest, "M_UNKNOWN", "unrecognised nonce")
		return
	}
	delete(h.nonces, body.Nonce)

	if !hmac.Equal([]byte(body.Mac), []byte(h.expectedMAC(body))) {
		h.logger.Warn("Rejected registration with bad MAC", zap.String("username", body.Username))
		h.writeError(w, http.StatusForbidden, "M_FORBIDDEN", "HMAC incorrect")
		return
	}
	if _, taken := h.users[body.Username]; taken {
		h.writeError(w, http.StatusBadRequest, "M_USER_IN_USE", "User ID already taken.")
		return
	}
	h.users[body.Username] = body.Password
	h.logger.Info("Registered user", zap.String("username", body.Username))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"user_id":      "@" + body.Username + ":localhost",
		"access_token": "fake-token",
	})
}

func (h *Homeserver) expectedMAC(body registerBody) string {
	mac := hmac.New(sha1.New, []byte(h.sharedSecret))
	mac.Write([]byte(body.Nonce))
	mac.Write([]byte("\x00"))
	mac.Write([]byte(body.Username))
	mac.Write([]byte("\x00"))
	mac.Write([]byte(body.Password))
	mac.Write([]byte("\x00"))
	if body.Admin {
		mac.Write([]byte("admin"))
	} else {
		mac.Write([]byte("notadmin"))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Homeserver) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", zap.Int("status", status), zap.Error(err))
	}
}

func (h *Homeserver) writeError(w http.ResponseWriter, status int, errcode, message string) {
	h.writeJSON(w, status, map[string]string{"errcode": errcode, "error": message})
}
