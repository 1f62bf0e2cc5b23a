// Package store описывает хранилище Kobonz. Сервисы зависят только от этих
// интерфейсов; реализации лежат в store/postgres и store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"kobonz/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound запись отсутствует.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate нарушено ограничение уникальности.
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrConflict конкурентное изменение (version mismatch, serialization failure).
	// Транзакцию можно повторить целиком.
	ErrConflict = errors.New("store: concurrent modification")
)

// EarningCursor позиция keyset-пагинации по (created_at, id).
type EarningCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Queries операции над данными. Балансы меняются только атомарными инкрементами.
type Queries interface {
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	// GetCouponForUpdate читает купон с блокировкой строки до конца транзакции.
	GetCouponForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	ListCoupons(ctx context.Context, shopID *uuid.UUID, onlyRedeemable bool, limit, offset int) ([]*models.Coupon, error)
	// UpdateCouponUses пишет остаток при совпадении version, иначе ErrConflict.
	UpdateCouponUses(ctx context.Context, id uuid.UUID, usesLeft int, version int64) error
	SetCouponApproved(ctx context.Context, id uuid.UUID, approved bool) error
	IncrementCouponClicks(ctx context.Context, id uuid.UUID) error

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error)
	// AddCredits атомарно прибавляет delta и возвращает новый баланс.
	AddCredits(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	// AddAffiliateBalances атомарно сдвигает pending/available и возвращает новые значения.
	AddAffiliateBalances(ctx context.Context, id uuid.UUID, pendingDelta, availableDelta float64) (pending, available float64, err error)
	// MarkFirstRedemption выставляет флаг первого погашения; false, если он уже стоял.
	MarkFirstRedemption(ctx context.Context, id uuid.UUID) (bool, error)

	CreateAffiliateLink(ctx context.Context, l *models.AffiliateLink) error
	GetAffiliateLinkByCode(ctx context.Context, code string) (*models.AffiliateLink, error)
	GetAffiliateLinkFor(ctx context.Context, affiliateID, couponID uuid.UUID) (*models.AffiliateLink, error)
	ListAffiliateLinks(ctx context.Context, affiliateID uuid.UUID) ([]*models.AffiliateLink, error)
	IncrementLinkClicks(ctx context.Context, id uuid.UUID) error
	IncrementLinkConversions(ctx context.Context, id uuid.UUID) error

	CreateEarning(ctx context.Context, e *models.Earning) error
	// ListReleasableEarnings pending-комиссии с created_at <= cutoff после курсора.
	ListReleasableEarnings(ctx context.Context, cutoff time.Time, after *EarningCursor, limit int) ([]*models.Earning, error)
	// ReleaseEarning переводит pending -> available; false, если статус уже не pending.
	ReleaseEarning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListEarnings(ctx context.Context, affiliateID uuid.UUID, limit, offset int) ([]*models.Earning, error)

	AppendLedgerEntry(ctx context.Context, e *models.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.LedgerEntry, error)

	CreateReferral(ctx context.Context, r *models.Referral) error
	GetPendingReferralForUpdate(ctx context.Context, referredID uuid.UUID) (*models.Referral, error)
	// MarkReferralRewarded pending -> rewarded; false, если реферал уже вознаграждён.
	MarkReferralRewarded(ctx context.Context, id uuid.UUID, bonus int64, at time.Time) (bool, error)

	CreateRedemption(ctx context.Context, r *models.Redemption) error
	CountRedemptions(ctx context.Context, couponID uuid.UUID) (int, error)
}

// Store хранилище с транзакциями. Вне WithinTx каждая операция выполняется отдельно.
type Store interface {
	Queries
	// WithinTx выполняет fn атомарно: ошибка fn откатывает все записи.
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}
