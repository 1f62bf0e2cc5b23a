package services

import (
	"context"
	"time"

	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

// EventPublisher публикует доменные события. Ошибки публикации не влияют на
// результат операции: события отправляются после коммита.
type EventPublisher interface {
	PublishCouponRedeemed(r *models.Redemption, usesLeft int) error
	PublishCouponClicked(couponID uuid.UUID, linkID *uuid.UUID) error
	PublishReferralRewarded(ref *models.Referral) error
	PublishEarningReleased(e *models.Earning) error
	PublishAccountRegistered(a *models.Account) error
}

type couponCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// CouponInvalidator сбрасывает кешированную карточку купона.
type CouponInvalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID)
}

type sweepLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type tokenIssuer interface {
	Issue(account *models.Account) (string, time.Time, error)
}

// appendLedger пишет запись журнала к уже изменённому балансу.
func appendLedger(ctx context.Context, q store.Queries, accountID uuid.UUID, entryType models.LedgerEntryType,
	balance models.BalanceKind, amount, balanceAfter float64, ref *uuid.UUID, at time.Time) error {
	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		Type:         entryType,
		Balance:      balance,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		ReferenceID:  ref,
		CreatedAt:    at,
	}
	return q.AppendLedgerEntry(ctx, entry)
}

func normalizePage(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
