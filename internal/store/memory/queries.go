package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (q *queries) CreateCoupon(_ context.Context, c *models.Coupon) error {
	st, unlock := q.state()
	defer unlock()

	if _, ok := st.coupons[c.ID]; ok {
		return fmt.Errorf("coupon %s: %w", c.ID, store.ErrDuplicate)
	}
	stored := *c
	stored.Clicks = 0
	stored.Version = 0
	st.coupons[c.ID] = stored
	return nil
}

func (q *queries) GetCoupon(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	st, unlock := q.state()
	defer unlock()

	c, ok := st.coupons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (q *queries) GetCouponForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return q.GetCoupon(ctx, id)
}

func (q *queries) ListCoupons(_ context.Context, shopID *uuid.UUID, onlyRedeemable bool, limit, offset int) ([]*models.Coupon, error) {
	st, unlock := q.state()
	defer unlock()

	var out []*models.Coupon
	for _, c := range st.coupons {
		if shopID != nil && c.ShopID != *shopID {
			continue
		}
		if onlyRedeemable && !(c.Active && c.Approved && c.UsesLeft > 0) {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (q *queries) UpdateCouponUses(_ context.Context, id uuid.UUID, usesLeft int, version int64) error {
	st, unlock := q.state()
	defer unlock()

	c, ok := st.coupons[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.Version != version {
		return fmt.Errorf("coupon %s version %d: %w", id, version, store.ErrConflict)
	}
	if usesLeft < 0 {
		return fmt.Errorf("coupon %s: uses_left must be non-negative", id)
	}
	c.UsesLeft = usesLeft
	c.Version++
	c.UpdatedAt = time.Now()
	st.coupons[id] = c
	return nil
}

func (q *queries) SetCouponApproved(_ context.Context, id uuid.UUID, approved bool) error {
	st, unlock := q.state()
	defer unlock()

	c, ok := st.coupons[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Approved = approved
	c.UpdatedAt = time.Now()
	st.coupons[id] = c
	return nil
}

func (q *queries) IncrementCouponClicks(_ context.Context, id uuid.UUID) error {
	st, unlock := q.state()
	defer unlock()

	c, ok := st.coupons[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Clicks++
	st.coupons[id] = c
	return nil
}

func (q *queries) CreateAccount(_ context.Context, a *models.Account) error {
	st, unlock := q.state()
	defer unlock()

	if _, ok := st.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrDuplicate)
	}
	for _, existing := range st.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return fmt.Errorf("email %s: %w", a.Email, store.ErrDuplicate)
		}
		if existing.ReferralCode == a.ReferralCode {
			return fmt.Errorf("referral code %s: %w", a.ReferralCode, store.ErrDuplicate)
		}
	}
	st.accounts[a.ID] = *a
	return nil
}

func (q *queries) findAccount(match func(a *models.Account) bool) (*models.Account, error) {
	st, unlock := q.state()
	defer unlock()

	for _, a := range st.accounts {
		if match(&a) {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	st, unlock := q.state()
	defer unlock()

	a, ok := st.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (q *queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.GetAccount(ctx, id)
}

func (q *queries) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	return q.findAccount(func(a *models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (q *queries) GetAccountByReferralCode(_ context.Context, code string) (*models.Account, error) {
	return q.findAccount(func(a *models.Account) bool { return a.ReferralCode == code })
}

func (q *queries) AddCredits(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	st, unlock := q.state()
	defer unlock()

	a, ok := st.accounts[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	a.Credits += delta
	a.UpdatedAt = time.Now()
	st.accounts[id] = a
	return a.Credits, nil
}

func (q *queries) AddAffiliateBalances(_ context.Context, id uuid.UUID, pendingDelta, availableDelta float64) (float64, float64, error) {
	st, unlock := q.state()
	defer unlock()

	a, ok := st.accounts[id]
	if !ok {
		return 0, 0, store.ErrNotFound
	}
	a.PendingBalance += pendingDelta
	a.AvailableBalance += availableDelta
	a.UpdatedAt = time.Now()
	st.accounts[id] = a
	return a.PendingBalance, a.AvailableBalance, nil
}

func (q *queries) MarkFirstRedemption(_ context.Context, id uuid.UUID) (bool, error) {
	st, unlock := q.state()
	defer unlock()

	a, ok := st.accounts[id]
	if !ok || a.HasRedeemedFirstCoupon {
		return false, nil
	}
	a.HasRedeemedFirstCoupon = true
	a.UpdatedAt = time.Now()
	st.accounts[id] = a
	return true, nil
}

func (q *queries) CreateAffiliateLink(_ context.Context, l *models.AffiliateLink) error {
	st, unlock := q.state()
	defer unlock()

	if _, ok := st.links[l.ID]; ok {
		return fmt.Errorf("link %s: %w", l.ID, store.ErrDuplicate)
	}
	for _, existing := range st.links {
		if existing.TrackingCode == l.TrackingCode ||
			(existing.AffiliateID == l.AffiliateID && existing.CouponID == l.CouponID) {
			return fmt.Errorf("affiliate link: %w", store.ErrDuplicate)
		}
	}
	stored := *l
	stored.Clicks = 0
	stored.Conversions = 0
	st.links[l.ID] = stored
	return nil
}

func (q *queries) findLink(match func(l *models.AffiliateLink) bool) (*models.AffiliateLink, error) {
	st, unlock := q.state()
	defer unlock()

	for _, l := range st.links {
		if match(&l) {
			return &l, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) GetAffiliateLinkByCode(_ context.Context, code string) (*models.AffiliateLink, error) {
	return q.findLink(func(l *models.AffiliateLink) bool { return l.TrackingCode == code })
}

func (q *queries) GetAffiliateLinkFor(_ context.Context, affiliateID, couponID uuid.UUID) (*models.AffiliateLink, error) {
	return q.findLink(func(l *models.AffiliateLink) bool {
		return l.AffiliateID == affiliateID && l.CouponID == couponID
	})
}

func (q *queries) ListAffiliateLinks(_ context.Context, affiliateID uuid.UUID) ([]*models.AffiliateLink, error) {
	st, unlock := q.state()
	defer unlock()

	var out []*models.AffiliateLink
	for _, l := range st.links {
		if l.AffiliateID == affiliateID {
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) bumpLink(id uuid.UUID, apply func(l *models.AffiliateLink)) error {
	st, unlock := q.state()
	defer unlock()

	l, ok := st.links[id]
	if !ok {
		return store.ErrNotFound
	}
	apply(&l)
	st.links[id] = l
	return nil
}

func (q *queries) IncrementLinkClicks(_ context.Context, id uuid.UUID) error {
	return q.bumpLink(id, func(l *models.AffiliateLink) { l.Clicks++ })
}

func (q *queries) IncrementLinkConversions(_ context.Context, id uuid.UUID) error {
	return q.bumpLink(id, func(l *models.AffiliateLink) { l.Conversions++ })
}

func (q *queries) CreateEarning(_ context.Context, e *models.Earning) error {
	st, unlock := q.state()
	defer unlock()

	if _, ok := st.earnings[e.ID]; ok {
		return fmt.Errorf("earning %s: %w", e.ID, store.ErrDuplicate)
	}
	st.earnings[e.ID] = *e
	return nil
}

func earningLess(a, b *models.Earning) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (q *queries) ListReleasableEarnings(_ context.Context, cutoff time.Time, after *store.EarningCursor, limit int) ([]*models.Earning, error) {
	st, unlock := q.state()
	defer unlock()

	var cursor *models.Earning
	if after != nil {
		cursor = &models.Earning{ID: after.ID, CreatedAt: after.CreatedAt}
	}

	var out []*models.Earning
	for _, e := range st.earnings {
		if e.Status != models.EarningStatusPending || e.CreatedAt.After(cutoff) {
			continue
		}
		if cursor != nil && !earningLess(cursor, &e) {
			continue
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return earningLess(out[i], out[j]) })
	return page(out, limit, 0), nil
}

func (q *queries) ReleaseEarning(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	st, unlock := q.state()
	defer unlock()

	e, ok := st.earnings[id]
	if !ok || e.Status != models.EarningStatusPending {
		return false, nil
	}
	e.Status = models.EarningStatusAvailable
	e.ReleasedAt = &at
	st.earnings[id] = e
	return true, nil
}

func (q *queries) ListEarnings(_ context.Context, affiliateID uuid.UUID, limit, offset int) ([]*models.Earning, error) {
	st, unlock := q.state()
	defer unlock()

	var out []*models.Earning
	for _, e := range st.earnings {
		if e.AffiliateID == affiliateID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (q *queries) AppendLedgerEntry(_ context.Context, e *models.LedgerEntry) error {
	st, unlock := q.state()
	defer unlock()

	st.ledger = append(st.ledger, *e)
	return nil
}

func (q *queries) ListLedgerEntries(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*models.LedgerEntry, error) {
	st, unlock := q.state()
	defer unlock()

	var out []*models.LedgerEntry
	for i := len(st.ledger) - 1; i >= 0; i-- {
		if st.ledger[i].AccountID == accountID {
			e := st.ledger[i]
			out = append(out, &e)
		}
	}
	return page(out, limit, offset), nil
}

func (q *queries) CreateReferral(_ context.Context, r *models.Referral) error {
	st, unlock := q.state()
	defer unlock()

	for _, existing := range st.referrals {
		if existing.ReferredID == r.ReferredID {
			return fmt.Errorf("referral for %s: %w", r.ReferredID, store.ErrDuplicate)
		}
	}
	st.referrals[r.ID] = *r
	return nil
}

func (q *queries) GetPendingReferralForUpdate(_ context.Context, referredID uuid.UUID) (*models.Referral, error) {
	st, unlock := q.state()
	defer unlock()

	for _, r := range st.referrals {
		if r.ReferredID == referredID && r.Status == models.ReferralStatusPending {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) MarkReferralRewarded(_ context.Context, id uuid.UUID, bonus int64, at time.Time) (bool, error) {
	st, unlock := q.state()
	defer unlock()

	r, ok := st.referrals[id]
	if !ok || r.Status != models.ReferralStatusPending {
		return false, nil
	}
	r.Status = models.ReferralStatusRewarded
	r.BonusAmount = bonus
	r.RewardedAt = &at
	st.referrals[id] = r
	return true, nil
}

func (q *queries) CreateRedemption(_ context.Context, r *models.Redemption) error {
	st, unlock := q.state()
	defer unlock()

	if _, ok := st.redemptions[r.ID]; ok {
		return fmt.Errorf("redemption %s: %w", r.ID, store.ErrDuplicate)
	}
	st.redemptions[r.ID] = *r
	return nil
}

func (q *queries) CountRedemptions(_ context.Context, couponID uuid.UUID) (int, error) {
	st, unlock := q.state()
	defer unlock()

	count := 0
	for _, r := range st.redemptions {
		if r.CouponID == couponID {
			count++
		}
	}
	return count, nil
}
