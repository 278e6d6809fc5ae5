package synapse

import (
	"math"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ClientBuilder struct {
	baseURL      string
	sharedSecret string
	httpClient   *http.Client
	rps          float64
	logger       *zap.Logger
}

// NewClientBuilder initializes the builder for a homeserver at baseURL
func NewClientBuilder(baseURL, sharedSecret string) *ClientBuilder {
	return &ClientBuilder{baseURL: baseURL, sharedSecret: sharedSecret}
}

// WithHTTPClient sets the outbound HTTP client
func (b *ClientBuilder) WithHTTPClient(httpClient *http.Client) *ClientBuilder {
	b.httpClient = httpClient
	return b
}

// WithRequestsPerSecond caps how often registrations are started. Zero disables the cap.
func (b *ClientBuilder) WithRequestsPerSecond(rps float64) *ClientBuilder {
	b.rps = rps
	return b
}

// WithLogger sets the logger
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	b.logger = logger
	return b
}

// Build creates the final Client object
func (b *ClientBuilder) Build() *Client {
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	throttle := rate.NewLimiter(rate.Inf, 0)
	if b.rps > 0 {
		throttle = rate.NewLimiter(rate.Limit(b.rps), int(math.Max(1, math.Ceil(b.rps))))
	}
	return &Client{
		baseURL:      b.baseURL,
		sharedSecret: b.sharedSecret,
		httpClient:   httpClient,
		throttle:     throttle,
		logger:       logger,
	}
}
