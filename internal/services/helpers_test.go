package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/database"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/store"
	"kobonz/internal/store/memory"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return &database.DB{DB: db}, mock
}

type recordingPublisher struct {
	mu         sync.Mutex
	redeemed   []*models.Redemption
	clicked    []uuid.UUID
	referrals  []*models.Referral
	released   []*models.Earning
	registered []*models.Account
}

func (p *recordingPublisher) PublishCouponRedeemed(r *models.Redemption, usesLeft int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, r)
	return nil
}

func (p *recordingPublisher) PublishCouponClicked(couponID uuid.UUID, linkID *uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, couponID)
	return nil
}

func (p *recordingPublisher) PublishReferralRewarded(ref *models.Referral) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.referrals = append(p.referrals, ref)
	return nil
}

func (p *recordingPublisher) PublishEarningReleased(e *models.Earning) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, e)
	return nil
}

func (p *recordingPublisher) PublishAccountRegistered(a *models.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, a)
	return nil
}

func newTestAccount(t *testing.T, st store.Store, role models.Role, referredBy *uuid.UUID) *models.Account {
	t.Helper()
	now := time.Now()
	a := &models.Account{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		DisplayName:  "Test",
		Role:         role,
		ReferralCode: uuid.NewString()[:8],
		ReferredBy:   referredBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func newTestCoupon(t *testing.T, st store.Store, mutate func(c *models.Coupon)) *models.Coupon {
	t.Helper()
	now := time.Now()
	c := &models.Coupon{
		ID:            uuid.New(),
		ShopID:        uuid.New(),
		Title:         "Coupon",
		DiscountType:  models.DiscountTypePercent,
		DiscountValue: 10,
		UsesLeft:      5,
		Active:        true,
		Approved:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mutate != nil {
		mutate(c)
	}
	if err := st.CreateCoupon(context.Background(), c); err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	return c
}

func newTestLink(t *testing.T, st store.Store, affiliateID, couponID uuid.UUID) *models.AffiliateLink {
	t.Helper()
	l := &models.AffiliateLink{
		ID:           uuid.New(),
		AffiliateID:  affiliateID,
		CouponID:     couponID,
		TrackingCode: uuid.NewString()[:10],
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := st.CreateAffiliateLink(context.Background(), l); err != nil {
		t.Fatalf("create link: %v", err)
	}
	return l
}

func newReferral(t *testing.T, st store.Store, referrerID, referredID uuid.UUID) *models.Referral {
	t.Helper()
	r := &models.Referral{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Status:     models.ReferralStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := st.CreateReferral(context.Background(), r); err != nil {
		t.Fatalf("create referral: %v", err)
	}
	return r
}

func mustAccount(t *testing.T, st store.Store, id uuid.UUID) *models.Account {
	t.Helper()
	a, err := st.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a
}

func mustCoupon(t *testing.T, st store.Store, id uuid.UUID) *models.Coupon {
	t.Helper()
	c, err := st.GetCoupon(context.Background(), id)
	if err != nil {
		t.Fatalf("get coupon: %v", err)
	}
	return c
}

func ledgerOf(t *testing.T, st store.Store, id uuid.UUID) []*models.LedgerEntry {
	t.Helper()
	entries, err := st.ListLedgerEntries(context.Background(), id, 100, 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return entries
}

func newMemoryStore() *memory.Store {
	return memory.New()
}

// conflictingStore возвращает ErrConflict из UpdateCouponUses заданное число раз.
type conflictingStore struct {
	store.Store
	mu        sync.Mutex
	failures  int
	callCount int
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Store.WithinTx(ctx, func(q store.Queries) error {
		return fn(&conflictingQueries{Queries: q, parent: s})
	})
}

type conflictingQueries struct {
	store.Queries
	parent *conflictingStore
}

func (q *conflictingQueries) UpdateCouponUses(ctx context.Context, id uuid.UUID, usesLeft int, version int64) error {
	q.parent.mu.Lock()
	q.parent.callCount++
	fail := q.parent.callCount <= q.parent.failures
	q.parent.mu.Unlock()
	if fail {
		return store.ErrConflict
	}
	return q.Queries.UpdateCouponUses(ctx, id, usesLeft, version)
}
