package postgres

import (
	"context"
	"fmt"
	"time"

	"kobonz/internal/models"

	"github.com/google/uuid"
)

func (q *queries) AppendLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, type, balance, amount, balance_after, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := q.q.ExecContext(ctx, query, e.ID, e.AccountID, e.Type, e.Balance, e.Amount, e.BalanceAfter, e.ReferenceID, e.CreatedAt); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", mapError(err))
	}
	return nil
}

func (q *queries) ListLedgerEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, account_id, type, balance, amount, balance_after, reference_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.q.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e := &models.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.Balance, &e.Amount, &e.BalanceAfter, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (q *queries) CreateReferral(ctx context.Context, r *models.Referral) error {
	query := `
		INSERT INTO referrals (id, referrer_id, referred_id, status, bonus_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := q.q.ExecContext(ctx, query, r.ID, r.ReferrerID, r.ReferredID, r.Status, r.BonusAmount, r.CreatedAt); err != nil {
		return fmt.Errorf("failed to create referral: %w", mapError(err))
	}
	return nil
}

func (q *queries) GetPendingReferralForUpdate(ctx context.Context, referredID uuid.UUID) (*models.Referral, error) {
	query := `
		SELECT id, referrer_id, referred_id, status, bonus_amount, created_at, rewarded_at
		FROM referrals
		WHERE referred_id = $1 AND status = 'pending'
		FOR UPDATE
	`
	r := &models.Referral{}
	if err := q.q.QueryRowContext(ctx, query, referredID).Scan(
		&r.ID, &r.ReferrerID, &r.ReferredID, &r.Status, &r.BonusAmount, &r.CreatedAt, &r.RewardedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to get pending referral: %w", mapError(err))
	}
	return r, nil
}

func (q *queries) MarkReferralRewarded(ctx context.Context, id uuid.UUID, bonus int64, at time.Time) (bool, error) {
	query := `
		UPDATE referrals
		SET status = 'rewarded', bonus_amount = $1, rewarded_at = $2
		WHERE id = $3 AND status = 'pending'
	`
	result, err := q.q.ExecContext(ctx, query, bonus, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to reward referral: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (q *queries) CreateRedemption(ctx context.Context, r *models.Redemption) error {
	query := `
		INSERT INTO redemptions (id, coupon_id, account_id, affiliate_link_id, affiliate_id, commission_amount, reward_points, referral_bonus, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := q.q.ExecContext(ctx, query, r.ID, r.CouponID, r.AccountID, r.AffiliateLinkID, r.AffiliateID,
		r.CommissionAmount, r.RewardPoints, r.ReferralBonus, r.CreatedAt); err != nil {
		return fmt.Errorf("failed to create redemption: %w", mapError(err))
	}
	return nil
}

func (q *queries) CountRedemptions(ctx context.Context, couponID uuid.UUID) (int, error) {
	var count int
	if err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM redemptions WHERE coupon_id = $1", couponID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}
