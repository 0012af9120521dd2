package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/orgledger/backend/internal/audit"
	"github.com/orgledger/backend/internal/metrics"
	"go.uber.org/zap"
)

// UserDirectory is the external identity record the PIN hash lives on.
// GetPinHash returns "" when no PIN has been set and ErrUserNotFound when
// the user does not exist.
type UserDirectory interface {
	GetPinHash(ctx context.Context, userID string) (string, error)
	SetPinHash(ctx context.Context, userID, pinHash string, updatedAt time.Time) error
}

// PasswordVerifier re-checks an account password without creating a session.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userID, password string) (bool, error)
}

// PinVerifier gates every money movement.
type PinVerifier interface {
	VerifyPin(ctx context.Context, userID, pin string) error
}

type PinService struct {
	users     UserDirectory
	passwords PasswordVerifier
	limiter   *PinAttemptLimiter
	audit     *audit.Logger
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewPinService(users UserDirectory, passwords PasswordVerifier, limiter *PinAttemptLimiter, auditLogger *audit.Logger, m *metrics.Metrics, logger *zap.Logger) *PinService {
	return &PinService{
		users:     users,
		passwords: passwords,
		limiter:   limiter,
		audit:     auditLogger,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HashPin returns the hex SHA-256 digest stored for a PIN.
func HashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

func validatePinFormat(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return ErrInvalidPinFormat
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidPinFormat
		}
	}
	return nil
}

func (s *PinService) SetPin(ctx context.Context, userID, pin string) error {
	if err := validatePinFormat(pin); err != nil {
		return err
	}

	if err := s.users.SetPinHash(ctx, userID, HashPin(pin), s.now()); err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error("failed to store pin hash", zap.String("user_id", userID), zap.Error(err))
		}
		return unexpected(err)
	}

	s.audit.LogPinSet(userID)
	s.logger.Info("transaction pin set", zap.String("user_id", userID))
	return nil
}

// SetPinWithPasswordCheck re-validates the caller's password before SetPin.
func (s *PinService) SetPinWithPasswordCheck(ctx context.Context, userID, pin, password string) error {
	ok, err := s.passwords.VerifyPassword(ctx, userID, password)
	if err != nil {
		return unexpected(err)
	}
	if !ok {
		s.logger.Warn("password re-check failed before pin change", zap.String("user_id", userID))
		return ErrInvalidCredentials
	}
	return s.SetPin(ctx, userID, pin)
}

func (s *PinService) VerifyPin(ctx context.Context, userID, pin string) error {
	err := s.verifyPin(ctx, userID, pin)
	s.metrics.ObservePinVerification(Kind(err))
	return err
}

func (s *PinService) verifyPin(ctx context.Context, userID, pin string) error {
	if s.limiter.Locked(ctx, userID) {
		return ErrPinLocked
	}

	stored, err := s.users.GetPinHash(ctx, userID)
	if err != nil {
		return unexpected(err)
	}
	if stored == "" {
		return ErrPinNotSet
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(HashPin(pin))) != 1 {
		s.limiter.RecordFailure(ctx, userID)
		return ErrInvalidPin
	}

	s.limiter.Reset(ctx, userID)
	return nil
}
