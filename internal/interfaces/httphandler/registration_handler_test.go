package httphandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/krispingal/regbridge/internal/testutil"
	"github.com/krispingal/regbridge/internal/usecases/ratelimiting"
	"github.com/krispingal/regbridge/internal/usecases/registration"
	"github.com/krispingal/regbridge/internal/usecases/synapse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testToken  = "invite-2024"
	testSecret = "shared-secret"
)

type bridge struct {
	router     http.Handler
	homeserver *testutil.Homeserver
	limiter    *ratelimiting.AttemptWindowLimiter
}

func setupBridge(t *testing.T) *bridge {
	t.Helper()
	logger := zaptest.NewLogger(t)
	hs := testutil.NewHomeserver(testSecret, logger)
	upstream := httptest.NewServer(hs.Handler())
	t.Cleanup(upstream.Close)

	client := synapse.NewClientBuilder(upstream.URL, testSecret).
		WithHTTPClient(upstream.Client()).
		WithLogger(logger).
		Build()
	limiter := ratelimiting.NewAttemptWindowLimiter(3, 24*time.Hour, 0)
	svc := registration.NewService(testToken, limiter, client, logger)
	handler := NewRegistrationHandler(svc, client, "X-Forwarded-For", logger)

	return &bridge{router: NewRouter(handler, logger), homeserver: hs, limiter: limiter}
}

type registrationResponse struct {
	RegistrationState string `json:"registrationState"`
	Username          string `json:"username"`
}

func postForm(t *testing.T, h http.Handler, form url.Values, remoteAddr string) (*httptest.ResponseRecorder, registrationResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/registration", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body registrationResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func validForm() url.Values {
	return url.Values{
		"username":             {"alice"},
		"password":             {"hunter2"},
		"passwordConfirmation": {"hunter2"},
		"token":                {testToken},
	}
}

func TestRegistration_EmptyUsername(t *testing.T) {
	b := setupBridge(t)
	form := validForm()
	form.Set("username", "")

	w, body := postForm(t, b.router, form, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registrationResponse{RegistrationState: "INVALID_USERNAME", Username: ""}, body)
	assert.Equal(t, 0, b.limiter.Len())
}

func TestRegistration_WrongToken(t *testing.T) {
	b := setupBridge(t)
	form := validForm()
	form.Set("token", "guess")

	w, body := postForm(t, b.router, form, "198.51.100.4:5555")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INVALID_TOKEN", body.RegistrationState)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, 1, b.limiter.GetState()["198.51.100.4"])
	assert.Equal(t, 0, b.homeserver.NonceRequests())
}

func TestRegistration_FourthAttemptBlocked(t *testing.T) {
	b := setupBridge(t)
	form := validForm()
	form.Set("token", "guess")
	for i := 0; i < 3; i++ {
		_, body := postForm(t, b.router, form, "198.51.100.4:5555")
		require.Equal(t, "INVALID_TOKEN", body.RegistrationState)
	}

	w, body := postForm(t, b.router, validForm(), "198.51.100.4:6666")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BLOCKED", body.RegistrationState)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, 0, b.homeserver.NonceRequests())
	assert.False(t, b.homeserver.HasUser("alice"))
}

func TestRegistration_Registered(t *testing.T) {
	b := setupBridge(t)

	w, body := postForm(t, b.router, validForm(), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registrationResponse{RegistrationState: "REGISTERED", Username: "alice"}, body)
	assert.True(t, b.homeserver.HasUser("alice"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRegistration_UserExists(t *testing.T) {
	b := setupBridge(t)
	b.homeserver.AddUser("alice", "whatever")

	w, body := postForm(t, b.router, validForm(), "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, registrationResponse{RegistrationState: "USER_EXISTS", Username: "alice"}, body)
}

func TestRegistration_NonceFailure(t *testing.T) {
	b := setupBridge(t)
	b.homeserver.FailNonce(http.StatusBadGateway)

	w, body := postForm(t, b.router, validForm(), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, registrationResponse{RegistrationState: "INTERNAL_ERROR", Username: "alice"}, body)
	assert.NotContains(t, w.Body.String(), "502")
	assert.Equal(t, 0, b.homeserver.RegisterRequests())
}

func TestRegistration_UpstreamUnreachable(t *testing.T) {
	logger := zaptest.NewLogger(t)
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()

	client := synapse.NewClientBuilder(upstream.URL, testSecret).Build()
	limiter := ratelimiting.NewAttemptWindowLimiter(3, 24*time.Hour, 0)
	svc := registration.NewService(testToken, limiter, client, logger)
	router := NewRouter(NewRegistrationHandler(svc, client, "X-Forwarded-For", logger), logger)

	w, body := postForm(t, router, validForm(), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", body.RegistrationState)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, 1, limiter.Len(), "failed upstream call still counts as an attempt")
}

func TestRegistration_InternalErrorLogCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()

	client := synapse.NewClientBuilder(upstream.URL, testSecret).Build()
	svc := registration.NewService(testToken, ratelimiting.NoOpRateLimiter{}, client, logger)
	router := NewRouter(NewRegistrationHandler(svc, client, "X-Forwarded-For", logger), logger)

	w, body := postForm(t, router, validForm(), "")
	require.Equal(t, "INTERNAL_ERROR", body.RegistrationState)

	requestID := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, requestID)
	entries := logs.FilterMessage("Registration failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, requestID, entries[0].ContextMap()["request_id"])
}

func TestRegistration_UnparseableBody(t *testing.T) {
	b := setupBridge(t)
	req := httptest.NewRequest(http.MethodPost, "/registration", strings.NewReader("username=%zz&password=hunter2&token="+testToken))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	b.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 0, b.limiter.Len())
	assert.Equal(t, 0, b.homeserver.NonceRequests())
}

func TestRegistration_PasswordConfirmationOptional(t *testing.T) {
	b := setupBridge(t)
	form := validForm()
	form.Del("passwordConfirmation")

	w, body := postForm(t, b.router, form, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INVALID_PASSWORD_VERIFICATION", body.RegistrationState)
}

func TestRegistration_MissingRequiredField(t *testing.T) {
	b := setupBridge(t)
	form := validForm()
	form.Del("token")

	w, _ := postForm(t, b.router, form, "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "token")
}

func TestRegistration_ForwardedForIsAccounted(t *testing.T) {
	b := setupBridge(t)
	form := validForm()
	form.Set("token", "guess")

	req := httptest.NewRequest(http.MethodPost, "/registration", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.1")
	b.router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, map[string]int{"203.0.113.50": 1}, b.limiter.GetState())
}

func TestRegistration_MethodNotAllowed(t *testing.T) {
	b := setupBridge(t)
	req := httptest.NewRequest(http.MethodGet, "/registration", nil)
	w := httptest.NewRecorder()

	b.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	b := setupBridge(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	b.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealth_UpstreamDown(t *testing.T) {
	logger := zaptest.NewLogger(t)
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()
	client := synapse.NewClientBuilder(upstream.URL, testSecret).Build()
	svc := registration.NewService(testToken, ratelimiting.NoOpRateLimiter{}, client, logger)
	router := NewRouter(NewRegistrationHandler(svc, client, "", logger), logger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := NewRegistrationHandler(nil, nil, "", zap.New(core))
	w := httptest.NewRecorder()

	h.writeJSON(w, http.StatusOK, make(chan int))

	assert.Equal(t, 1, logs.FilterMessage("Failed to write response").Len())
}
