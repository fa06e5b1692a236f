package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AccountService coordinates the account lifecycle: registration, OTP
// verification and reissue, and login.
type AccountService struct {
	accounts   repository.AccountRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	otpTTL     time.Duration
}

// AccountDependencies encapsulates collaborator requirements for the service.
type AccountDependencies struct {
	AccountRepo repository.AccountRepository
	Dispatcher  events.Dispatcher
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	return &AccountService{
		accounts:   deps.AccountRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLHours),
		bcryptCost: cfg.Auth.BcryptCost,
		otpTTL:     cfg.Auth.OTPTTL(),
	}
}

// Register creates a new unverified account with an initial OTP challenge
// attached and returns the normalized email. The account is persisted before
// the verification email is sent; if delivery fails the account remains
// unverified with a live code and the caller retries via ResendOTP.
func (s *AccountService) Register(ctx context.Context, email, password string) (string, error) {
	email = domain.NormalizeEmail(email)
	if !domain.ValidateEmail(email) {
		return "", apperrors.NewValidationError("invalid email address", nil)
	}
	if len(password) < domain.MinPasswordLength {
		return "", apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return "", apperrors.NewDuplicateAccount("email already registered")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", err
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(s.otpTTL)

	account := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		Verified:     false,
		OTPCode:      &code,
		OTPExpiresAt: &expiresAt,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", apperrors.NewDuplicateAccount("email already registered")
		}
		return "", err
	}

	if err := s.publishOTPIssued(ctx, events.EventAccountRegistered, account, code, expiresAt); err != nil {
		return "", err
	}
	return account.Email, nil
}

// VerifyOTP validates an outstanding challenge and marks the account
// verified, clearing both OTP fields. Expiry is checked lazily here; an
// expired-but-matching code is rejected.
func (s *AccountService) VerifyOTP(ctx context.Context, email, code string) error {
	account, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account.Verified {
		return apperrors.NewDomainError("ALREADY_VERIFIED", "account already verified", http.StatusBadRequest, nil)
	}
	if account.OTPCode == nil || account.OTPExpiresAt == nil {
		return apperrors.NewDomainError("INVALID_CODE", "invalid verification code", http.StatusBadRequest, nil)
	}
	if subtle.ConstantTimeCompare([]byte(*account.OTPCode), []byte(code)) != 1 {
		return apperrors.NewDomainError("INVALID_CODE", "invalid verification code", http.StatusBadRequest, nil)
	}
	if time.Now().After(*account.OTPExpiresAt) {
		return apperrors.NewDomainError("CODE_EXPIRED", "verification code expired", http.StatusBadRequest, nil)
	}

	account.Verified = true
	account.OTPCode = nil
	account.OTPExpiresAt = nil
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	return s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventAccountVerified,
		AccountID: account.ID,
		Timestamp: time.Now(),
		Payload:   events.AccountVerifiedPayload{Email: account.Email},
	})
}

// ResendOTP replaces any outstanding challenge with a fresh code and a new
// validity window, then sends it. Verified accounts cannot be re-challenged.
func (s *AccountService) ResendOTP(ctx context.Context, email string) error {
	account, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account.Verified {
		return apperrors.NewDomainError("ALREADY_VERIFIED", "account already verified", http.StatusBadRequest, nil)
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.otpTTL)
	account.OTPCode = &code
	account.OTPExpiresAt = &expiresAt
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	return s.publishOTPIssued(ctx, events.EventOTPResent, account, code, expiresAt)
}

// Login authenticates an account and mints a bearer token. An unknown email
// and a wrong password produce the same error so account existence is not
// leaked.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	account, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if !account.Verified {
		return nil, "", time.Time{}, apperrors.NewForbidden("account not verified")
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return account, token, exp, nil
}

// GetProfile loads an account by id for the sanitized profile view.
func (s *AccountService) GetProfile(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, err
	}
	return account, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AccountService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AccountService) getByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) publishOTPIssued(ctx context.Context, eventType events.EventType, account *domain.Account, code string, expiresAt time.Time) error {
	return s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		AccountID: account.ID,
		Timestamp: time.Now(),
		Payload: events.OTPIssuedPayload{
			Email:     account.Email,
			Code:      code,
			ExpiresAt: expiresAt,
		},
	})
}
