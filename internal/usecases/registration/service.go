package registration

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/krispingal/regbridge/internal/domain"
	"github.com/krispingal/regbridge/internal/usecases/validation"
	"go.uber.org/zap"
)

// Service decides the outcome of a registration request. Checks run in a fixed
// order and the first failing one ends the request.
type Service struct {
	token     string
	limiter   domain.AttemptLimiter
	registrar domain.Registrar
	logger    *zap.Logger
}

func NewService(token string, limiter domain.AttemptLimiter, registrar domain.Registrar, logger *zap.Logger) *Service {
	return &Service{
		token:     token,
		limiter:   limiter,
		registrar: registrar,
		logger:    logger,
	}
}

// Handle runs one request from clientIP to completion. Requests with an empty
// field never count against the client; every request that gets past the block
// check does, except for a password mismatch or a malformed username/password.
func (s *Service) Handle(ctx context.Context, clientIP string, req domain.RegistrationRequest) domain.Outcome {
	outcome := func(state domain.RegistrationState) domain.Outcome {
		return domain.Outcome{State: state, Username: req.Username}
	}

	switch {
	case req.Username == "":
		return outcome(domain.InvalidUsername)
	case req.Password == "":
		return outcome(domain.InvalidPassword)
	case req.Token == "":
		return outcome(domain.InvalidToken)
	}

	if s.limiter.IsBlocked(clientIP) {
		s.logger.Info("Blocked registration attempt", zap.String("client_ip", clientIP), zap.String("username", req.Username))
		return outcome(domain.Blocked)
	}

	if req.Password != req.PasswordConfirmation {
		return outcome(domain.InvalidPasswordVerification)
	}
	if !validation.ValidUsername(req.Username) || !validation.ValidPassword(req.Password) {
		return outcome(domain.InvalidUserOrPass)
	}
	if !s.tokenMatches(req.Token) {
		s.limiter.RecordAttempt(clientIP)
		s.logger.Info("Registration with wrong token", zap.String("client_ip", clientIP))
		return outcome(domain.InvalidToken)
	}

	// Once the upstream exchange starts it runs to completion even if the caller goes away.
	err := s.registrar.Register(context.WithoutCancel(ctx), req.Username, req.Password)
	s.limiter.RecordAttempt(clientIP)

	switch {
	case err == nil:
		s.logger.Info("Registered user", zap.String("username", req.Username), zap.String("client_ip", clientIP))
		return outcome(domain.Registered)
	case errors.Is(err, domain.ErrUserExists):
		return outcome(domain.UserExists)
	default:
		s.logger.Error("Registration failed",
			zap.String("request_id", domain.RequestID(ctx)),
			zap.String("username", req.Username),
			zap.String("client_ip", clientIP),
			zap.Error(err))
		return outcome(domain.InternalError)
	}
}

func (s *Service) tokenMatches(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}
