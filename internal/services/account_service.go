package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kobonz/internal/apperror"
	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	referralCodeLength   = 8
	referralCodeAttempts = 3
)

var errInvalidCredentials = apperror.Unauthenticated("invalid email or password", nil)

// AccountService регистрация, вход и балансы аккаунтов.
type AccountService struct {
	store       store.Store
	tokens      tokenIssuer
	events      EventPublisher
	log         *logger.Logger
	signupBonus int64
	bcryptCost  int
	now         func() time.Time
}

// NewAccountService создаёт сервис аккаунтов.
func NewAccountService(st store.Store, tokens tokenIssuer, events EventPublisher, log *logger.Logger, cfg *config.RewardsConfig) *AccountService {
	return &AccountService{
		store:       st,
		tokens:      tokens,
		events:      events,
		log:         log,
		signupBonus: cfg.SignupBonus,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// Register создаёт аккаунт, начисляет бонус за регистрацию и, если указан
// действующий реферальный код, заводит ожидающий реферал.
func (s *AccountService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role == models.RoleAdmin {
		return nil, apperror.Forbidden("admin accounts cannot be self-registered", nil)
	}

	var referrer *models.Account
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		referrer, err = s.store.GetAccountByReferralCode(ctx, strings.ToUpper(code))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up referral code: %w", err)
		}
		if referrer == nil {
			s.log.WithField("referral_code", code).Warn("Unknown referral code ignored")
		}
	}

	var account *models.Account
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		account, err = s.register(ctx, email, string(hash), role, req.DisplayName, referrer)
		if err == nil || !errors.Is(err, store.ErrDuplicate) {
			break
		}
		// параллельная регистрация того же email проходит проверку в транзакции
		// и падает на уникальном индексе
		if _, lookupErr := s.store.GetAccountByEmail(ctx, email); lookupErr == nil {
			return nil, apperror.Conflict("email is already registered", err)
		}
	}
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("failed to generate unique referral code: %w", err)
		}
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"role":       account.Role,
		"referred":   account.ReferredBy != nil,
	}).Info("Account registered")

	if s.events != nil {
		if err := s.events.PublishAccountRegistered(account); err != nil {
			s.log.WithError(err).WithField("account_id", account.ID).Warn("Failed to publish account registered event")
		}
	}

	return s.authResponse(account)
}

func (s *AccountService) register(ctx context.Context, email, hash string, role models.Role, displayName string, referrer *models.Account) (*models.Account, error) {
	code, err := randomCode(referralCodeLength)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
		ReferralCode: strings.ToUpper(code),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if referrer != nil {
		account.ReferredBy = &referrer.ID
	}

	err = s.store.WithinTx(ctx, func(q store.Queries) error {
		if _, err := q.GetAccountByEmail(ctx, email); err == nil {
			return apperror.Conflict("email is already registered", nil)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		if err := q.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		if s.signupBonus > 0 {
			balance, err := q.AddCredits(ctx, account.ID, s.signupBonus)
			if err != nil {
				return fmt.Errorf("failed to credit signup bonus: %w", err)
			}
			if err := appendLedger(ctx, q, account.ID, models.LedgerSignupBonus, models.BalanceCredits,
				float64(s.signupBonus), float64(balance), nil, now); err != nil {
				return fmt.Errorf("failed to record signup bonus: %w", err)
			}
			account.Credits = balance
		}

		if referrer != nil {
			referral := &models.Referral{
				ID:         uuid.New(),
				ReferrerID: referrer.ID,
				ReferredID: account.ID,
				Status:     models.ReferralStatusPending,
				CreatedAt:  now,
			}
			if err := q.CreateReferral(ctx, referral); err != nil {
				return fmt.Errorf("failed to create referral: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Login проверяет пароль и выдаёт токен.
func (s *AccountService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	account, err := s.store.GetAccountByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.authResponse(account)
}

// GetAccount возвращает аккаунт по ID.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListLedger журнал движений балансов аккаунта, новые первыми.
func (s *AccountService) ListLedger(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.LedgerEntry, error) {
	limit, offset = normalizePage(limit, offset, 50, 200)
	entries, err := s.store.ListLedgerEntries(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *AccountService) authResponse(account *models.Account) (*models.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}
