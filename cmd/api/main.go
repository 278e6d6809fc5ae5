package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krispingal/regbridge/internal/domain"
	"github.com/krispingal/regbridge/internal/infrastructure"
	"github.com/krispingal/regbridge/internal/interfaces/httphandler"
	"github.com/krispingal/regbridge/internal/usecases/ratelimiting"
	"github.com/krispingal/regbridge/internal/usecases/registration"
	"github.com/krispingal/regbridge/internal/usecases/synapse"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	config, err := infrastructure.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	logger, err := infrastructure.NewLogger(config.Log.Level)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer logger.Sync()

	// No overall client timeout: a hung homeserver only stalls the request waiting on it.
	pooledClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	client := synapse.NewClientBuilder(config.Matrix.Server, config.Matrix.SharedSecret).
		WithHTTPClient(pooledClient).
		WithRequestsPerSecond(config.Upstream.RequestsPerSecond).
		WithLogger(logger.Named("synapse")).
		Build()

	var rateLimiter domain.AttemptLimiter
	switch config.RateLimiter.Type {
	case infrastructure.RateLimiterNone:
		rateLimiter = ratelimiting.NoOpRateLimiter{}
	case infrastructure.RateLimiterAttemptWindow:
		rateLimiter = ratelimiting.NewAttemptWindowLimiter(config.RateLimiter.Limit, config.RateLimiter.Window, config.RateLimiter.MaxEntries)
	default:
		logger.Fatal("Invalid rate limiter type", zap.String("type", config.RateLimiter.Type))
	}
	limit, window := rateLimiter.GetRateLimit()

	service := registration.NewService(config.Matrix.Token, rateLimiter, client, logger.Named("registration"))
	handler := httphandler.NewRegistrationHandler(service, client, config.Server.TrustedProxyHeader, logger)
	router := httphandler.NewRouter(handler, logger.Named("http"))

	server := &http.Server{
		Addr:              config.Server.BindAddr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.Info("Starting Matrix registration bridge",
		zap.String("address", config.Server.BindAddr),
		zap.String("homeserver", config.Matrix.Server),
		zap.Int("attempt_limit", limit),
		zap.Duration("attempt_window", window))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
