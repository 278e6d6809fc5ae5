package synapse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/krispingal/regbridge/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	registerPath = "/_synapse/admin/v1/register"
	healthPath   = "/health"

	maxBodyBytes = 64 << 10
)

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type registerRequest struct {
	Nonce    string `json:"nonce"`
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
	Mac      string `json:"mac"`
}

// Client talks to the shared-secret registration API of a Synapse homeserver.
type Client struct {
	baseURL      string
	sharedSecret string
	httpClient   *http.Client
	throttle     *rate.Limiter
	logger       *zap.Logger
}

var _ domain.Registrar = (*Client)(nil)

// Register fetches a fresh nonce and submits a signed non-admin registration.
// The submit is never attempted when the nonce fetch fails, and nothing is retried.
func (c *Client) Register(ctx context.Context, username, password string) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return &UpstreamError{Kind: KindTransport, Op: "throttle", Err: err}
	}
	startTime := time.Now()
	nonce, err := c.FetchNonce(ctx)
	if err != nil {
		return err
	}
	err = c.SubmitRegistration(ctx, nonce, username, password)
	c.logger.Debug("Registration submitted", zap.String("username", username), zap.Duration("duration", time.Since(startTime)), zap.Error(err))
	return err
}

// FetchNonce asks the homeserver for a single-use registration nonce.
func (c *Client) FetchNonce(ctx context.Context) (string, error) {
	const op = "fetch nonce"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+registerPath, nil)
	if err != nil {
		return "", &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Kind: KindUnexpectedStatus, Op: op, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var payload nonceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return "", &UpstreamError{Kind: KindNonce, Op: op, Err: fmt.Errorf("decode nonce response: %w", err)}
	}
	if payload.Nonce == "" {
		return "", &UpstreamError{Kind: KindNonce, Op: op, Err: errors.New("nonce response has no nonce")}
	}
	return payload.Nonce, nil
}

// SubmitRegistration posts the signed registration for nonce. A 400 from the
// homeserver means the username is taken and is reported as domain.ErrUserExists.
func (c *Client) SubmitRegistration(ctx context.Context, nonce, username, password string) error {
	const op = "submit registration"
	body, err := json.Marshal(registerRequest{
		Nonce:    nonce,
		Username: username,
		Password: password,
		Admin:    false,
		Mac:      ComputeMAC(nonce, username, password, c.sharedSecret),
	})
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil
	case http.StatusBadRequest:
		return domain.ErrUserExists
	default:
		return &UpstreamError{Kind: KindUnexpectedStatus, Op: op, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}
}

// Healthy probes the homeserver health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	const op = "health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Kind: KindUnexpectedStatus, Op: op, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}
	return nil
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return fmt.Sprintf("<unreadable body: %v>", err)
	}
	return string(b)
}
